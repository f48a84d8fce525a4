package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

const oneDayMillis int64 = 86_400_000

// PromoSwitchChecker queues a label refresh for the day after a running
// promotion ends, so the label switches back to the normal template.
type PromoSwitchChecker struct {
	catalog  integration.ArticleCatalog
	queue    integration.PendingQueue
	location *time.Location
	logger   *zap.Logger
}

// NewPromoSwitchChecker creates a checker
func NewPromoSwitchChecker(catalog integration.ArticleCatalog, queue integration.PendingQueue, loc *time.Location, logger *zap.Logger) *PromoSwitchChecker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromoSwitchChecker{catalog: catalog, queue: queue, location: loc, logger: logger}
}

// Check scans the store's published catalogue for promotions ending within
// a day of now and appends one refresh entry per SKU not already pending.
func (c *PromoSwitchChecker) Check(ctx context.Context, storeCode string, now time.Time) (PromoSwitchResult, error) {
	items, err := c.catalog.ListArticles(ctx, storeCode)
	if err != nil {
		return PromoSwitchResult{}, fmt.Errorf("failed to list catalogue: %w", err)
	}
	pending, err := c.queue.List(ctx, storeCode)
	if err != nil {
		return PromoSwitchResult{}, fmt.Errorf("failed to read pending queue: %w", err)
	}
	skip := integration.PendingSKUs(pending)

	result := PromoSwitchResult{Scanned: len(items), Appended: []string{}}
	nowMs := now.UnixMilli()
	var entries []integration.Record

	for _, item := range items {
		to, ok := promotionEnd(item, nowMs)
		if !ok {
			continue
		}
		result.Ending++

		sku := item.SKU()
		if sku == "" {
			continue
		}
		if _, dup := skip[sku]; dup {
			continue
		}
		skip[sku] = struct{}{}

		refresh := time.UnixMilli(to).In(c.location).AddDate(0, 0, 1).Format(integration.RefreshMarkerLayout)
		entries = append(entries, integration.Record{
			integration.FieldSKU:           sku,
			integration.FieldRefreshMarker: refresh,
		})
		result.Appended = append(result.Appended, sku)
		c.logger.Info("Promotion ends within a day, refresh queued",
			zap.String("store", storeCode),
			zap.String("sku", sku),
			zap.String("promo_end", time.UnixMilli(to).In(c.location).Format(time.DateTime)),
			zap.String("refresh_on", refresh),
		)
	}

	if err := c.queue.Append(ctx, storeCode, entries...); err != nil {
		return result, fmt.Errorf("failed to queue promotion refresh: %w", err)
	}
	return result, nil
}

// promotionEnd returns the promotion end of a published item that is running
// at nowMs and ends within one day.
func promotionEnd(item integration.Record, nowMs int64) (int64, bool) {
	if !item.Has(integration.FieldSaleMode) || !item.Has(integration.FieldPromoDateFrom) {
		return 0, false
	}
	if item.StringOr(integration.FieldSaleMode, "") == integration.SaleModeNormal {
		return 0, false
	}
	from, ok := integration.ValueInt64(item[integration.FieldPromoDateFrom])
	if !ok {
		return 0, false
	}
	to, ok := integration.ValueInt64(item[integration.FieldPromoDateTo])
	if !ok {
		return 0, false
	}
	if from >= nowMs || to <= nowMs {
		return 0, false
	}
	return to, to < nowMs+oneDayMillis
}
