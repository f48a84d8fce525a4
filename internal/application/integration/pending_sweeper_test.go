package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/statestore"
)

func newSweeperFixture(t *testing.T, entries ...integration.Record) (*PendingSweeper, *statestore.MemoryPendingQueue, *MockDeliveryTarget) {
	t.Helper()
	queue := statestore.NewMemoryPendingQueue()
	require.NoError(t, queue.Append(context.Background(), "02", entries...))
	target := new(MockDeliveryTarget)
	sender := NewBatchSender(target, testLocation, nil)
	return NewPendingSweeper(queue, sender, testLocation, nil, nil), queue, target
}

func TestPendingSweeper_NothingDueLeavesQueueUntouched(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, testLocation)
	waiting := []integration.Record{
		{"sku": "A1", "price1": 10.0, "rsrvTxt2": "2099/12/31"},
		{"sku": "P1", "promoDateFrom": now.Add(time.Hour).UnixMilli()},
		{"sku": "X1"},
	}
	sweeper, queue, target := newSweeperFixture(t, waiting...)
	writes := queue.Writes()

	result, err := sweeper.Sweep(context.Background(), "02", now)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Pending: 3}, result)
	assert.Equal(t, writes, queue.Writes())
	target.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestPendingSweeper_DeliversDueAndRewrites(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, testLocation)
	duePromo := integration.Record{"sku": "P1", "promoDateFrom": now.Add(-time.Minute).UnixMilli(), "saleMode": "01"}
	dueMarker := integration.Record{"sku": "A1", "price1": 3.0, "rsrvTxt2": "2024/06/01"}
	waiting := integration.Record{"sku": "A2", "price1": 4.0, "rsrvTxt2": "2024/06/02"}
	sweeper, queue, target := newSweeperFixture(t, duePromo, waiting, dueMarker)

	target.On("Deliver", mock.Anything, batchOfSize(2)).Return(accepted("02"), nil).Once()

	result, err := sweeper.Sweep(context.Background(), "02", now)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Pending)
	assert.Equal(t, 2, result.Due)
	assert.Equal(t, 2, result.Delivered)
	assert.True(t, result.Rewritten)
	assert.Empty(t, result.Error)

	left, err := queue.List(context.Background(), "02")
	require.NoError(t, err)
	assert.Equal(t, []integration.Record{waiting}, left)

	batch := target.Calls[0].Arguments.Get(1).(integration.Batch)
	assert.Equal(t, "P1", batch.Items[0].SKU())
	assert.Equal(t, "A1", batch.Items[1].SKU())
	target.AssertExpectations(t)
}

func TestPendingSweeper_RejectedDeliveryKeepsEntries(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, testLocation)
	due := integration.Record{"sku": "A1", "price1": 3.0, "rsrvTxt2": "2024/05/30"}
	sweeper, queue, target := newSweeperFixture(t, due)
	writes := queue.Writes()

	target.On("Deliver", mock.Anything, mock.Anything).
		Return(integration.DeliveryReceipt{ErrorCode: "500", Message: "busy"}, nil).Once()

	result, err := sweeper.Sweep(context.Background(), "02", now)
	require.NoError(t, err)

	assert.False(t, result.Rewritten)
	assert.Contains(t, result.Error, "busy")
	assert.Equal(t, writes, queue.Writes())

	left, err := queue.List(context.Background(), "02")
	require.NoError(t, err)
	assert.Equal(t, []integration.Record{due}, left)
}

func TestPendingSweeper_TransportFailureIsReturned(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, testLocation)
	sweeper, queue, target := newSweeperFixture(t, integration.Record{"sku": "A1", "price1": 3.0, "rsrvTxt2": "2024/05/30"})
	writes := queue.Writes()

	target.On("Deliver", mock.Anything, mock.Anything).
		Return(integration.DeliveryReceipt{}, errors.Join(integration.ErrTransport, errors.New("timeout"))).Once()

	_, err := sweeper.Sweep(context.Background(), "02", now)

	assert.ErrorIs(t, err, integration.ErrTransport)
	assert.Equal(t, writes, queue.Writes())
}
