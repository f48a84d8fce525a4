package feed

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the vendor document feed
type Config struct {
	// BaseURL is the feed API root, e.g. https://api.example.com/xapi-multichannel-outbound/api/v1
	BaseURL string
	// APIKey is sent as the gateway API key header
	APIKey string
	// ChannelID, CountryCode and Language are fixed request headers the gateway requires
	ChannelID   string
	CountryCode string
	Language    string
	// DownloadDelay is the minimum spacing between download requests
	DownloadDelay time.Duration
}

// Errors for feed configuration
var (
	ErrFeedConfigMissingBaseURL = errors.New("feed: base url is required")
	ErrFeedConfigMissingAPIKey  = errors.New("feed: api key is required")
	ErrFeedMissingDocumentData  = errors.New("feed: download response carried no document data")
)

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrFeedConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrFeedConfigMissingAPIKey
	}
	if c.ChannelID == "" {
		c.ChannelID = "WEB"
	}
	if c.CountryCode == "" {
		c.CountryCode = "MX"
	}
	if c.Language == "" {
		c.Language = "SPA"
	}
	if c.DownloadDelay <= 0 {
		c.DownloadDelay = time.Second
	}
	return nil
}
