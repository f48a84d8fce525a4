// Package feed adapts the vendor back-office document feed.
package feed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/httpclient"
)

// Client implements integration.DocumentFeed
type Client struct {
	cfg      Config
	http     *httpclient.Client
	tokens   httpclient.TokenSource
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *zap.Logger
}

// Ensure Client implements DocumentFeed
var _ integration.DocumentFeed = (*Client)(nil)

// NewClient creates a feed client. Downloads are spaced by cfg.DownloadDelay.
func NewClient(cfg Config, hc *httpclient.Client, tokens httpclient.TokenSource, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		http:     hc,
		tokens:   tokens,
		limiter:  rate.NewLimiter(rate.Every(cfg.DownloadDelay), 1),
		validate: validator.New(),
		logger:   logger.Named("feed"),
	}, nil
}

type listRequest struct {
	DepartmentID string `json:"departmentId"`
	Source       string `json:"source"`
	StoreID      string `json:"storeId"`
}

type listResponse struct {
	Documents []integration.DocumentRef `json:"documents"`
}

type downloadRequest struct {
	listRequest
	Documents []downloadDocument `json:"documents"`
}

type downloadDocument struct {
	Name     string `json:"name"`
	FileType string `json:"fileType"`
}

type downloadResponse struct {
	Documents []struct {
		Name string `json:"name"`
		Data string `json:"data"`
	} `json:"documents"`
}

// ListDocuments returns the documents the feed offers for the store.
// Entries without a name are logged and dropped.
func (c *Client) ListDocuments(ctx context.Context, store integration.Store) ([]integration.DocumentRef, error) {
	header, err := c.headers(ctx)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	body := listRequest{DepartmentID: store.DepartmentID, Source: store.Source, StoreID: store.VendorStoreID}
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/documents", header, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to list documents for store %s: %w", store.Code, err)
	}

	docs := make([]integration.DocumentRef, 0, len(resp.Documents))
	for _, doc := range resp.Documents {
		if err := c.validate.Struct(doc); err != nil {
			c.logger.Warn("Dropping malformed document entry",
				zap.String("store", store.Code),
				zap.Any("entry", doc),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Download fetches one document's base64 payload, waiting out the download delay first
func (c *Client) Download(ctx context.Context, store integration.Store, doc integration.DocumentRef) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	header, err := c.headers(ctx)
	if err != nil {
		return "", err
	}

	body := downloadRequest{
		listRequest: listRequest{DepartmentID: store.DepartmentID, Source: store.Source, StoreID: store.VendorStoreID},
		Documents:   []downloadDocument{{Name: doc.Name, FileType: doc.NameFileType()}},
	}
	var resp downloadResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/documents/downloads", header, body, &resp); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", doc.Name, err)
	}
	if len(resp.Documents) == 0 || resp.Documents[0].Data == "" {
		return "", fmt.Errorf("%w: %w: %s", integration.ErrTransport, ErrFeedMissingDocumentData, doc.Name)
	}

	c.logger.Debug("Document downloaded",
		zap.String("store", store.Code),
		zap.String("document", doc.Name),
	)
	return resp.Documents[0].Data, nil
}

func (c *Client) headers(ctx context.Context) (http.Header, error) {
	header, err := httpclient.BearerHeader(ctx, c.tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain feed token: %w", err)
	}
	header.Set("Tracking-Id", uuid.NewString())
	header.Set("Channel-Id", c.cfg.ChannelID)
	header.Set("Country-Code", c.cfg.CountryCode)
	header.Set("Language", c.cfg.Language)
	header.Set("x-Gateway-APIKey", c.cfg.APIKey)
	header.Set("Accept", "application/json")
	return header, nil
}
