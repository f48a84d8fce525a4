// Package labelplatform adapts the price-label management platform:
// the article query API used for published state and the integration
// endpoint that accepts batches.
package labelplatform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/httpclient"
)

const lookupPageSize = 10

// Adapter implements integration.ArticleCatalog and integration.DeliveryTarget
type Adapter struct {
	cfg    Config
	http   *httpclient.Client
	tokens httpclient.TokenSource
	logger *zap.Logger
}

// Ensure Adapter implements the platform ports
var (
	_ integration.ArticleCatalog = (*Adapter)(nil)
	_ integration.DeliveryTarget = (*Adapter)(nil)
)

// NewAdapter creates a label platform adapter
func NewAdapter(cfg Config, hc *httpclient.Client, tokens httpclient.TokenSource, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, http: hc, tokens: tokens, logger: logger.Named("labelplatform")}, nil
}

// CustomerCode returns the configured customer
func (a *Adapter) CustomerCode() string { return a.cfg.CustomerCode }

type queryParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Op    int    `json:"op"`
}

type articleQuery struct {
	QueryType string       `json:"queryType"`
	Logic     []any        `json:"logic"`
	Params    []queryParam `json:"params"`
}

type articlePage struct {
	Data struct {
		PageData []struct {
			Attribute map[string]any `json:"attribute"`
		} `json:"pageData"`
	} `json:"data"`
}

func (a *Adapter) articlesURL(storeCode string, pageNum, pageSize int) string {
	q := url.Values{}
	q.Set("pageNum", fmt.Sprint(pageNum))
	q.Set("pageSize", fmt.Sprint(pageSize))
	return fmt.Sprintf("%s/articles/%s/%s/complex-with-blob-picture?%s",
		a.cfg.ArticlesURL, url.PathEscape(a.cfg.CustomerCode), url.PathEscape(storeCode), q.Encode())
}

func (a *Adapter) queryPage(ctx context.Context, storeCode string, pageNum, pageSize int, params []queryParam) (*articlePage, error) {
	header, err := httpclient.BearerHeader(ctx, a.tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain platform token: %w", err)
	}
	if params == nil {
		params = []queryParam{}
	}
	body := articleQuery{QueryType: "SIMPLE", Logic: []any{}, Params: params}

	var page articlePage
	if err := a.http.PostJSON(ctx, a.articlesURL(storeCode, pageNum, pageSize), header, body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// LookupArticle returns the published attributes of sku, or Found=false when absent
func (a *Adapter) LookupArticle(ctx context.Context, storeCode, sku string) (integration.PublishedState, error) {
	page, err := a.queryPage(ctx, storeCode, 1, lookupPageSize, []queryParam{{Key: "articleId", Value: sku, Op: 0}})
	if err != nil {
		return integration.PublishedState{}, fmt.Errorf("failed to look up sku %s: %w", sku, err)
	}
	if len(page.Data.PageData) == 0 {
		return integration.PublishedState{}, nil
	}
	return integration.PublishedState{Found: true, Attributes: integration.Record(page.Data.PageData[0].Attribute)}, nil
}

// ListArticles walks every page of the store's catalogue until an empty page
func (a *Adapter) ListArticles(ctx context.Context, storeCode string) ([]integration.Record, error) {
	var items []integration.Record
	for pageNum := 1; ; pageNum++ {
		page, err := a.queryPage(ctx, storeCode, pageNum, a.cfg.ListPageSize, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list articles page %d: %w", pageNum, err)
		}
		if len(page.Data.PageData) == 0 {
			break
		}
		for _, entry := range page.Data.PageData {
			items = append(items, integration.Record(entry.Attribute))
		}
	}
	a.logger.Debug("Catalogue listed", zap.String("store", storeCode), zap.Int("items", len(items)))
	return items, nil
}

type deliveryRequest struct {
	StoreCode         string               `json:"storeCode"`
	CustomerStoreCode string               `json:"customerStoreCode"`
	BatchNo           string               `json:"batchNo"`
	Items             []integration.Record `json:"items"`
}

// Deliver posts one batch to the integration endpoint. A rejected batch is not an error here;
// the caller inspects the receipt.
func (a *Adapter) Deliver(ctx context.Context, batch integration.Batch) (integration.DeliveryReceipt, error) {
	header := http.Header{}
	header.Set("client-id", a.cfg.ClientID)
	header.Set("client-secret", a.cfg.ClientSecret)

	items := batch.Items
	if items == nil {
		items = []integration.Record{}
	}
	body := deliveryRequest{
		StoreCode:         batch.StoreCode,
		CustomerStoreCode: a.cfg.CustomerCode,
		BatchNo:           batch.BatchNo,
		Items:             items,
	}

	endpoint := fmt.Sprintf("%s/%s/%s", a.cfg.IntegrationURL, url.PathEscape(a.cfg.CustomerCode), url.PathEscape(batch.StoreCode))
	var raw map[string]any
	if err := a.http.PostJSON(ctx, endpoint, header, body, &raw); err != nil {
		return integration.DeliveryReceipt{}, fmt.Errorf("failed to deliver batch %s: %w", batch.BatchNo, err)
	}
	return receiptFrom(raw), nil
}

// receiptFrom tolerates numeric or string codes in the platform response.
// A null or empty errorCode counts as no error.
func receiptFrom(raw map[string]any) integration.DeliveryReceipt {
	var r integration.DeliveryReceipt
	r.StoreCode, _ = integration.ValueString(raw["storeCode"])
	if code := raw["errorCode"]; code != nil {
		s, ok := integration.ValueString(code)
		if !ok {
			s = fmt.Sprint(code)
		}
		r.ErrorCode = s
	}
	for _, key := range []string{"message", "errorMsg", "msg"} {
		if m, ok := raw[key].(string); ok && m != "" {
			r.Message = m
			break
		}
	}
	return r
}
