package integration

import (
	"context"
	"time"
)

// Metrics receives pipeline counters. telemetry.SyncMetrics implements it.
type Metrics interface {
	DocumentProcessed(ctx context.Context, store, kind, status string)
	RecordsEvaluated(ctx context.Context, store, action string, n int)
	BatchSent(ctx context.Context, store, source string, delivered, failedChunks int)
	RunFinished(ctx context.Context, store string, elapsed time.Duration, err error)
}

// Delivery sources reported to Metrics
const (
	SourceDocument = "document"
	SourcePending  = "pending"
)

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) DocumentProcessed(context.Context, string, string, string)     {}
func (NopMetrics) RecordsEvaluated(context.Context, string, string, int)         {}
func (NopMetrics) BatchSent(context.Context, string, string, int, int)           {}
func (NopMetrics) RunFinished(context.Context, string, time.Duration, error)     {}
