package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// DefaultChunkSize is the most records the platform accepts per call
const DefaultChunkSize = 1000

// BatchSender splits records into platform-sized chunks and delivers them in order
type BatchSender struct {
	target    integration.DeliveryTarget
	chunkSize int
	location  *time.Location
	clock     func() time.Time
	logger    *zap.Logger
}

// BatchSenderOption configures a BatchSender
type BatchSenderOption func(*BatchSender)

// WithChunkSize overrides DefaultChunkSize
func WithChunkSize(n int) BatchSenderOption {
	return func(s *BatchSender) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSenderClock overrides the clock used for batch numbers
func WithSenderClock(clock func() time.Time) BatchSenderOption {
	return func(s *BatchSender) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewBatchSender creates a sender for target. loc stamps the batch numbers.
func NewBatchSender(target integration.DeliveryTarget, loc *time.Location, logger *zap.Logger, opts ...BatchSenderOption) *BatchSender {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BatchSender{
		target:    target,
		chunkSize: DefaultChunkSize,
		location:  loc,
		clock:     time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers records for store and stops at the first chunk the platform
// does not accept. Outcome.Err is a *DeliveryError for a rejected chunk and
// wraps ErrTransport when the call itself failed.
func (s *BatchSender) Send(ctx context.Context, storeCode string, records []integration.Record) SendOutcome {
	var out SendOutcome

	for start := 0; start < len(records); start += s.chunkSize {
		end := min(start+s.chunkSize, len(records))
		out.Chunks++
		chunkNo := out.Chunks

		items := make([]integration.Record, 0, end-start)
		for _, r := range records[start:end] {
			if r.OnlySKU() {
				out.Dropped++
				continue
			}
			items = append(items, r)
		}
		if len(items) == 0 {
			continue
		}

		batch := integration.Batch{
			StoreCode: storeCode,
			BatchNo:   s.clock().In(s.location).Format(integration.BatchNoLayout),
			Items:     items,
		}
		receipt, err := s.target.Deliver(ctx, batch)
		if err != nil {
			out.Failed = chunkNo
			out.Err = fmt.Errorf("chunk %d: %w", chunkNo, err)
			return out
		}
		if !receipt.Accepted(storeCode) {
			msg := receipt.Message
			if msg == "" && receipt.StoreCode != storeCode {
				msg = fmt.Sprintf("unexpected store code %q", receipt.StoreCode)
			}
			out.Failed = chunkNo
			out.Err = &integration.DeliveryError{
				Store:   storeCode,
				Chunk:   chunkNo,
				Code:    receipt.ErrorCode,
				Message: msg,
			}
			return out
		}

		out.Sent++
		out.Delivered += len(items)
		s.logger.Debug("Chunk delivered",
			zap.String("store", storeCode),
			zap.String("batch_no", batch.BatchNo),
			zap.Int("chunk", chunkNo),
			zap.Int("items", len(items)),
		)
	}
	return out
}
