package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// PendingSweeper delivers pending entries that have come due
type PendingSweeper struct {
	queue    integration.PendingQueue
	sender   *BatchSender
	location *time.Location
	metrics  Metrics
	logger   *zap.Logger
}

// NewPendingSweeper creates a sweeper over queue
func NewPendingSweeper(queue integration.PendingQueue, sender *BatchSender, loc *time.Location, metrics Metrics, logger *zap.Logger) *PendingSweeper {
	if loc == nil {
		loc = time.UTC
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingSweeper{queue: queue, sender: sender, location: loc, metrics: metrics, logger: logger}
}

// Sweep sends every due entry for store as one delivery. The queue is only
// rewritten when all of it was accepted. A rejected delivery is reported in
// SweepResult.Error; a transport failure is returned.
func (s *PendingSweeper) Sweep(ctx context.Context, storeCode string, now time.Time) (SweepResult, error) {
	entries, err := s.queue.List(ctx, storeCode)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to read pending queue: %w", err)
	}
	due, _ := integration.SplitDue(entries, now, s.location)
	result := SweepResult{Pending: len(entries), Due: len(due)}
	if len(due) == 0 {
		s.logger.Debug("No pending entries due", zap.String("store", storeCode), zap.Int("pending", len(entries)))
		return result, nil
	}

	outcome := s.sender.Send(ctx, storeCode, due)
	result.Delivered = outcome.Delivered
	s.metrics.BatchSent(ctx, storeCode, SourcePending, outcome.Delivered, boolToInt(!outcome.OK()))

	if !outcome.OK() {
		var delivery *integration.DeliveryError
		if errors.As(outcome.Err, &delivery) {
			s.logger.Warn("Pending delivery rejected, keeping entries",
				zap.String("store", storeCode),
				zap.Int("due", len(due)),
				zap.Error(outcome.Err),
			)
			result.Error = outcome.Err.Error()
			return result, nil
		}
		return result, fmt.Errorf("pending delivery: %w", outcome.Err)
	}

	delivered := make(map[string]struct{}, len(due))
	for _, e := range due {
		delivered[e.Key()] = struct{}{}
	}
	// Re-read so entries appended since the listing survive the rewrite.
	current, err := s.queue.List(ctx, storeCode)
	if err != nil {
		return result, fmt.Errorf("failed to re-read pending queue: %w", err)
	}
	remaining := make([]integration.Record, 0, len(current))
	for _, e := range current {
		if _, ok := delivered[e.Key()]; !ok {
			remaining = append(remaining, e)
		}
	}
	if err := s.queue.Replace(ctx, storeCode, remaining); err != nil {
		return result, fmt.Errorf("failed to rewrite pending queue: %w", err)
	}
	result.Rewritten = true

	s.logger.Info("Pending entries integrated",
		zap.String("store", storeCode),
		zap.Int("due", len(due)),
		zap.Int("delivered", outcome.Delivered),
		zap.Int("remaining", len(remaining)),
	)
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
