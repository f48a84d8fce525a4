package integration

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/labelsync/internal/domain/integration"
)

// DefaultLookupConcurrency bounds in-flight published-state lookups
const DefaultLookupConcurrency = 4

// RefreshEngine decides per record whether to emit, defer or suppress it.
// Published-state lookups run in parallel; decisions are applied in record order.
type RefreshEngine struct {
	catalog     integration.ArticleCatalog
	location    *time.Location
	concurrency int
	logger      *zap.Logger
}

// NewRefreshEngine creates an engine backed by catalog
func NewRefreshEngine(catalog integration.ArticleCatalog, loc *time.Location, concurrency int, logger *zap.Logger) *RefreshEngine {
	if loc == nil {
		loc = time.UTC
	}
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshEngine{catalog: catalog, location: loc, concurrency: concurrency, logger: logger}
}

// Decide evaluates coerced records for store at now. Each returned conversion
// error is a *FieldConversionError for a date field that was dropped. A lookup
// failure aborts the whole call.
func (e *RefreshEngine) Decide(ctx context.Context, storeCode string, records []integration.Record, now time.Time) (Decisions, []error, error) {
	evaluations := make([]*integration.Evaluation, 0, len(records))
	var convErrs []error
	var skus []string
	seen := make(map[string]struct{})

	for _, r := range records {
		ev, err := integration.EvaluateRecord(r, now, e.location)
		if err != nil {
			convErrs = append(convErrs, err)
		}
		evaluations = append(evaluations, ev)
		if !ev.NeedsLookup() {
			continue
		}
		if _, ok := seen[ev.SKU()]; !ok {
			seen[ev.SKU()] = struct{}{}
			skus = append(skus, ev.SKU())
		}
	}

	states, err := e.lookup(ctx, storeCode, skus)
	if err != nil {
		return Decisions{}, convErrs, err
	}

	d := Decisions{Lookups: len(skus)}
	for _, ev := range evaluations {
		action, rec := ev.Resolve(states[ev.SKU()], now)
		switch action {
		case integration.ActionEmit:
			d.Emit = append(d.Emit, rec)
		case integration.ActionDefer:
			d.Defer = append(d.Defer, rec)
		case integration.ActionSuppress:
			d.Suppressed++
		}
	}
	return d, convErrs, nil
}

func (e *RefreshEngine) lookup(ctx context.Context, storeCode string, skus []string) (map[string]integration.PublishedState, error) {
	states := make(map[string]integration.PublishedState, len(skus))
	if len(skus) == 0 {
		return states, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, sku := range skus {
		g.Go(func() error {
			state, err := e.catalog.LookupArticle(gctx, storeCode, sku)
			if err != nil {
				return err
			}
			mu.Lock()
			states[sku] = state
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("Published state resolved",
		zap.String("store", storeCode),
		zap.Int("skus", len(skus)),
	)
	return states, nil
}
