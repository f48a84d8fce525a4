package labelplatform

import (
	"errors"
	"strings"
)

// Config holds configuration for the label platform adapters
type Config struct {
	// ArticlesURL is the article API root, e.g. https://host/proxy/allstar/v3
	ArticlesURL string
	// IntegrationURL is the integration endpoint root, e.g. https://host/integration
	IntegrationURL string
	// CustomerCode is the platform customer the stores belong to
	CustomerCode string
	// ClientID and ClientSecret authenticate delivery calls
	ClientID     string
	ClientSecret string
	// ListPageSize is the page size used when walking the full catalogue
	ListPageSize int
}

// Errors for label platform configuration and responses
var (
	ErrPlatformConfigMissingArticlesURL    = errors.New("labelplatform: articles url is required")
	ErrPlatformConfigMissingIntegrationURL = errors.New("labelplatform: integration url is required")
	ErrPlatformConfigMissingCustomer       = errors.New("labelplatform: customer code is required")
	ErrPlatformConfigMissingCredentials    = errors.New("labelplatform: client id and secret are required")
)

const defaultListPageSize = 1000

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	c.ArticlesURL = strings.TrimRight(strings.TrimSpace(c.ArticlesURL), "/")
	c.IntegrationURL = strings.TrimRight(strings.TrimSpace(c.IntegrationURL), "/")
	if c.ArticlesURL == "" {
		return ErrPlatformConfigMissingArticlesURL
	}
	if c.IntegrationURL == "" {
		return ErrPlatformConfigMissingIntegrationURL
	}
	if c.CustomerCode == "" {
		return ErrPlatformConfigMissingCustomer
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrPlatformConfigMissingCredentials
	}
	if c.ListPageSize <= 0 {
		c.ListPageSize = defaultListPageSize
	}
	return nil
}
