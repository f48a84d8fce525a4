package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// RunContextFunc scopes a run's context and logger with its id and store
type RunContextFunc func(ctx context.Context, logger *zap.Logger, runID, storeCode string) (context.Context, *zap.Logger)

func defaultRunContext(ctx context.Context, logger *zap.Logger, runID, storeCode string) (context.Context, *zap.Logger) {
	return ctx, logger.With(zap.String("run_id", runID), zap.String("store", storeCode))
}

// PipelineDeps are the ports a Pipeline runs against
type PipelineDeps struct {
	Feed    integration.DocumentFeed
	Decoder integration.Decoder
	Catalog integration.ArticleCatalog
	Target  integration.DeliveryTarget
	Ledger  integration.Ledger
	Pending integration.PendingQueue
	Archive integration.Archive
	KeyMaps integration.KeyMaps
}

// PipelineConfig tunes a Pipeline
type PipelineConfig struct {
	CustomerCode      string
	Location          *time.Location
	ChunkSize         int
	LookupConcurrency int
}

// Pipeline moves one store's vendor documents onto the label platform
type Pipeline struct {
	deps       PipelineDeps
	cfg        PipelineConfig
	coercer    *integration.Coercer
	engine     *RefreshEngine
	sender     *BatchSender
	sweeper    *PendingSweeper
	promo      *PromoSwitchChecker
	metrics    Metrics
	clock      func() time.Time
	runContext RunContextFunc
	logger     *zap.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithMetrics records run counters
func WithMetrics(m Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithClock overrides time.Now for the whole pipeline
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithRunContext overrides how run ids and store codes reach the context
func WithRunContext(fn RunContextFunc) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.runContext = fn
		}
	}
}

// NewPipeline wires the pipeline components over deps
func NewPipeline(deps PipelineDeps, cfg PipelineConfig, logger *zap.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if deps.Feed == nil || deps.Decoder == nil || deps.Catalog == nil || deps.Target == nil ||
		deps.Ledger == nil || deps.Pending == nil {
		return nil, errors.New("pipeline: feed, decoder, catalog, target, ledger and pending queue are required")
	}
	if deps.Archive == nil {
		deps.Archive = discardArchive{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		deps:       deps,
		cfg:        cfg,
		metrics:    NopMetrics{},
		clock:      time.Now,
		runContext: defaultRunContext,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.coercer = integration.NewCoercer(deps.KeyMaps.Types, cfg.Location)
	p.engine = NewRefreshEngine(deps.Catalog, cfg.Location, cfg.LookupConcurrency, logger)
	p.sender = NewBatchSender(deps.Target, cfg.Location, logger, WithChunkSize(cfg.ChunkSize), WithSenderClock(p.clock))
	p.sweeper = NewPendingSweeper(deps.Pending, p.sender, cfg.Location, p.metrics, logger)
	p.promo = NewPromoSwitchChecker(deps.Catalog, deps.Pending, cfg.Location, logger)
	return p, nil
}

// skippedNoteID names the archive entry kept for a document type the store
// does not integrate
func skippedNoteID(ref integration.DocumentRef) string {
	return "unintegrated_" + ref.ID()
}

type discardArchive struct{}

func (discardArchive) Save(context.Context, string, string, integration.Payload) error { return nil }

// RunStore sweeps the store's pending queue and integrates every new document.
// The report is always returned; the error is set when a transport or state
// failure aborted the run.
func (p *Pipeline) RunStore(ctx context.Context, store integration.Store) (*RunReport, error) {
	started := p.clock()
	report := &RunReport{
		RunID:     uuid.New(),
		Store:     store.Code,
		StartedAt: started,
		Documents: []DocumentResult{},
	}
	ctx, log := p.runContext(ctx, p.logger, report.RunID.String(), store.Code)

	err := p.runStore(ctx, log, store, report)
	report.FinishedAt = p.clock()
	if err != nil {
		report.Error = err.Error()
		log.Error("Store run aborted", zap.Error(err))
	} else {
		log.Info("Store run finished",
			zap.Int("listed", report.Listed),
			zap.Int("success", report.Count(DocumentSuccess)),
			zap.Int("failed", report.Count(DocumentFailed)),
			zap.Int("skipped", report.Count(DocumentSkipped)),
		)
	}
	p.metrics.RunFinished(ctx, store.Code, report.FinishedAt.Sub(started), err)
	return report, err
}

func (p *Pipeline) runStore(ctx context.Context, log *zap.Logger, store integration.Store, report *RunReport) error {
	if err := store.Validate(); err != nil {
		return err
	}

	sweep, err := p.sweeper.Sweep(ctx, store.Code, p.clock())
	report.Sweep = sweep
	if err != nil {
		return err
	}

	refs, err := p.deps.Feed.ListDocuments(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	report.Listed = len(refs)

	var todo []integration.DocumentRef
	for _, ref := range refs {
		seen, err := p.deps.Ledger.Has(ctx, store.Code, ref.ID())
		if err != nil {
			return fmt.Errorf("failed to check ledger: %w", err)
		}
		if seen {
			report.Ledgered++
			continue
		}
		if !store.Accepts(ref.Kind()) {
			log.Info("Document type not integrated for store",
				zap.String("document", ref.Name),
				zap.String("file_type", ref.FileType),
			)
			note := integration.Payload{"name": ref.Name, "fileType": ref.FileType}
			if err := p.deps.Archive.Save(ctx, store.Code, skippedNoteID(ref), note); err != nil {
				log.Warn("Failed to archive skipped document note", zap.String("document", ref.Name), zap.Error(err))
			}
			p.record(ctx, log, store, report, DocumentResult{Document: ref.Name, Kind: ref.Kind(), Status: DocumentSkipped}, nil)
			continue
		}
		todo = append(todo, ref)
	}

	for _, ref := range todo {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processDocument(ctx, log, store, ref, report); err != nil {
			return err
		}
	}
	return nil
}

// processDocument returns an error only when the whole run must stop
func (p *Pipeline) processDocument(ctx context.Context, log *zap.Logger, store integration.Store, ref integration.DocumentRef, report *RunReport) error {
	result := DocumentResult{Document: ref.Name, Kind: ref.Kind()}
	kind := ref.Kind()

	fieldMap, err := p.deps.KeyMaps.FieldMapFor(kind)
	if err != nil {
		result.Status = DocumentFailed
		p.record(ctx, log, store, report, result, err)
		return nil
	}

	data, err := p.deps.Feed.Download(ctx, store, ref)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", ref.Name, err)
	}

	payload, err := p.deps.Decoder.Decode(ref, data)
	if err != nil {
		result.Status = DocumentFailed
		p.record(ctx, log, store, report, result, err)
		return nil
	}

	if err := p.deps.Archive.Save(ctx, store.Code, ref.ID(), payload); err != nil {
		log.Warn("Failed to archive document", zap.String("document", ref.Name), zap.Error(err))
	}

	raw := payload.Records(kind)
	result.Records = len(raw)
	records := make([]integration.Record, 0, len(raw))
	for _, r := range raw {
		coerced, errs := p.coercer.Coerce(integration.MapFields(r, fieldMap))
		logConversions(log, ref.Name, errs)
		if coerced != nil {
			records = append(records, coerced)
		}
	}

	now := p.clock()
	decisions, convErrs, err := p.engine.Decide(ctx, store.Code, records, now)
	logConversions(log, ref.Name, convErrs)
	if err != nil {
		return fmt.Errorf("failed to resolve published state for %s: %w", ref.Name, err)
	}
	p.metrics.RecordsEvaluated(ctx, store.Code, integration.ActionEmit.String(), len(decisions.Emit))
	p.metrics.RecordsEvaluated(ctx, store.Code, integration.ActionDefer.String(), len(decisions.Defer))
	p.metrics.RecordsEvaluated(ctx, store.Code, integration.ActionSuppress.String(), decisions.Suppressed)

	appended, err := p.appendDeferred(ctx, store.Code, decisions.Defer)
	if err != nil {
		return err
	}
	result.Emitted = len(decisions.Emit)
	result.Deferred = appended

	if len(decisions.Emit) == 0 {
		if err := p.deps.Ledger.Insert(ctx, store.Code, ref.ID()); err != nil {
			return fmt.Errorf("failed to ledger %s: %w", ref.ID(), err)
		}
		result.Status = DocumentSuccess
		p.record(ctx, log, store, report, result, nil)
		return nil
	}

	outcome := p.sender.Send(ctx, store.Code, decisions.Emit)
	result.Delivered = outcome.Delivered
	p.metrics.BatchSent(ctx, store.Code, SourceDocument, outcome.Delivered, boolToInt(!outcome.OK()))

	if outcome.OK() {
		if err := p.deps.Ledger.Insert(ctx, store.Code, ref.ID()); err != nil {
			return fmt.Errorf("failed to ledger %s: %w", ref.ID(), err)
		}
		result.Status = DocumentSuccess
		p.record(ctx, log, store, report, result, nil)
		return nil
	}

	// Not ledgered, so the next run re-ingests it.
	if err := p.deps.Ledger.Remove(ctx, store.Code, ref.ID()); err != nil {
		return fmt.Errorf("failed to roll back ledger for %s: %w", ref.ID(), err)
	}
	result.Status = DocumentFailed
	p.record(ctx, log, store, report, result, outcome.Err)

	var delivery *integration.DeliveryError
	if errors.As(outcome.Err, &delivery) {
		return nil
	}
	return fmt.Errorf("failed to deliver %s: %w", ref.Name, outcome.Err)
}

// appendDeferred queues records not already pending and reports how many were added
func (p *Pipeline) appendDeferred(ctx context.Context, storeCode string, deferred []integration.Record) (int, error) {
	if len(deferred) == 0 {
		return 0, nil
	}
	existing, err := p.deps.Pending.List(ctx, storeCode)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending queue: %w", err)
	}
	keys := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		keys[e.Key()] = struct{}{}
	}

	fresh := make([]integration.Record, 0, len(deferred))
	for _, r := range deferred {
		k := r.Key()
		if _, dup := keys[k]; dup {
			continue
		}
		keys[k] = struct{}{}
		fresh = append(fresh, r)
	}
	if err := p.deps.Pending.Append(ctx, storeCode, fresh...); err != nil {
		return 0, fmt.Errorf("failed to queue deferred records: %w", err)
	}
	return len(fresh), nil
}

func (p *Pipeline) record(ctx context.Context, log *zap.Logger, store integration.Store, report *RunReport, result DocumentResult, err error) {
	fields := []zap.Field{
		zap.String("document", result.Document),
		zap.String("status", string(result.Status)),
		zap.String("customer", p.cfg.CustomerCode),
		zap.String("store", store.Code),
	}
	if err != nil {
		result.Error = err.Error()
		fields = append(fields, zap.String("error", result.Error))
		log.Warn("Document not integrated", fields...)
	} else {
		fields = append(fields,
			zap.Int("emitted", result.Emitted),
			zap.Int("deferred", result.Deferred),
			zap.Int("delivered", result.Delivered),
		)
		log.Info("Document processed", fields...)
	}
	report.Documents = append(report.Documents, result)
	p.metrics.DocumentProcessed(ctx, store.Code, result.Kind.String(), string(result.Status))
}

func logConversions(log *zap.Logger, document string, errs []error) {
	for _, err := range errs {
		var fce *integration.FieldConversionError
		if errors.As(err, &fce) {
			log.Warn("Field dropped",
				zap.String("document", document),
				zap.String("field", fce.Field),
				zap.Any("value", fce.Value),
				zap.Error(fce.Err),
			)
			continue
		}
		log.Warn("Field dropped", zap.String("document", document), zap.Error(err))
	}
}

// CheckPromoSwitch runs the promotion-switch check for store at the pipeline clock
func (p *Pipeline) CheckPromoSwitch(ctx context.Context, store integration.Store) (PromoSwitchResult, error) {
	ctx, log := p.runContext(ctx, p.logger, uuid.NewString(), store.Code)
	result, err := p.promo.Check(ctx, store.Code, p.clock())
	if err != nil {
		log.Error("Promotion switch check failed", zap.Error(err))
		return result, err
	}
	log.Info("Promotion switch check finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("ending", result.Ending),
		zap.Int("appended", len(result.Appended)),
	)
	return result, nil
}

// Ledger returns the store's ledgered document ids
func (p *Pipeline) Ledger(ctx context.Context, storeCode string) ([]string, error) {
	return p.deps.Ledger.List(ctx, storeCode)
}

// Pending returns the store's pending entries
func (p *Pipeline) Pending(ctx context.Context, storeCode string) ([]integration.Record, error) {
	return p.deps.Pending.List(ctx, storeCode)
}
