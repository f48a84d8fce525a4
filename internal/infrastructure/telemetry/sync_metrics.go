package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when SyncMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records pipeline activity: documents, record decisions,
// deliveries and store runs.
type SyncMetrics struct {
	documents        *Counter
	records          *Counter
	deliveredRecords *Counter
	deliveryFailures *Counter
	runs             *Counter
	runDuration      *Histogram
}

// NewSyncMetrics registers the pipeline instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &SyncMetrics{}
	var err error

	if m.documents, err = NewCounter(meter,
		"labelsync_documents_total",
		"Vendor documents processed, by outcome",
		"{documents}",
	); err != nil {
		return nil, err
	}
	if m.records, err = NewCounter(meter,
		"labelsync_records_total",
		"Records evaluated, by refresh decision",
		"{records}",
	); err != nil {
		return nil, err
	}
	if m.deliveredRecords, err = NewCounter(meter,
		"labelsync_delivered_records_total",
		"Records accepted by the label platform",
		"{records}",
	); err != nil {
		return nil, err
	}
	if m.deliveryFailures, err = NewCounter(meter,
		"labelsync_delivery_failures_total",
		"Delivery chunks rejected or failed",
		"{chunks}",
	); err != nil {
		return nil, err
	}
	if m.runs, err = NewCounter(meter,
		"labelsync_runs_total",
		"Store runs, by outcome",
		"{runs}",
	); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "labelsync_run_duration_seconds",
		Description: "Wall time of one store run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// DocumentProcessed counts one document outcome
func (m *SyncMetrics) DocumentProcessed(ctx context.Context, store, kind, status string) {
	m.documents.Inc(ctx, AttrStore.String(store), AttrKind.String(kind), AttrStatus.String(status))
}

// RecordsEvaluated counts n records that received action
func (m *SyncMetrics) RecordsEvaluated(ctx context.Context, store, action string, n int) {
	if n <= 0 {
		return
	}
	m.records.Add(ctx, int64(n), AttrStore.String(store), AttrAction.String(action))
}

// BatchSent records one sender outcome. source is "document" or "pending".
func (m *SyncMetrics) BatchSent(ctx context.Context, store, source string, delivered, failedChunks int) {
	attrs := []attribute.KeyValue{AttrStore.String(store), AttrSource.String(source)}
	if delivered > 0 {
		m.deliveredRecords.Add(ctx, int64(delivered), attrs...)
	}
	if failedChunks > 0 {
		m.deliveryFailures.Add(ctx, int64(failedChunks), attrs...)
	}
}

// RunFinished records one store run
func (m *SyncMetrics) RunFinished(ctx context.Context, store string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	attrs := []attribute.KeyValue{AttrStore.String(store), AttrOutcome.String(outcome)}
	m.runs.Inc(ctx, attrs...)
	m.runDuration.RecordDuration(ctx, elapsed, attrs...)
}
