package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/labelsync/internal/domain/integration"
)

// runLedgerContract checks the behavior every Ledger backend must share
func runLedgerContract(t *testing.T, ledger integration.Ledger) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store lists nothing", func(t *testing.T) {
		ids, err := ledger.List(ctx, "0001")
		require.NoError(t, err)
		assert.Empty(t, ids)

		has, err := ledger.Has(ctx, "0001", "ITM_1.json")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("insert keeps sorted order and is idempotent", func(t *testing.T) {
		for _, id := range []string{"PRM_2.json", "ITM_9.json", "ITM_1.json", "PRM_2.json"} {
			require.NoError(t, ledger.Insert(ctx, "0002", id))
		}

		ids, err := ledger.List(ctx, "0002")
		require.NoError(t, err)
		assert.Equal(t, []string{"ITM_1.json", "ITM_9.json", "PRM_2.json"}, ids)

		has, err := ledger.Has(ctx, "0002", "ITM_9.json")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("remove deletes only the named id", func(t *testing.T) {
		require.NoError(t, ledger.Insert(ctx, "0003", "A.json"))
		require.NoError(t, ledger.Insert(ctx, "0003", "B.json"))
		require.NoError(t, ledger.Remove(ctx, "0003", "A.json"))
		require.NoError(t, ledger.Remove(ctx, "0003", "missing.json"))

		ids, err := ledger.List(ctx, "0003")
		require.NoError(t, err)
		assert.Equal(t, []string{"B.json"}, ids)
	})

	t.Run("stores are isolated", func(t *testing.T) {
		require.NoError(t, ledger.Insert(ctx, "0004", "X.json"))

		has, err := ledger.Has(ctx, "0005", "X.json")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

// runPendingContract checks the behavior every PendingQueue backend must share
func runPendingContract(t *testing.T, queue integration.PendingQueue) {
	t.Helper()
	ctx := context.Background()

	first := integration.Record{"sku": "A1", "rsrvTxt2": "2024/03/02"}
	second := integration.Record{"sku": "B2", "rsrvTxt2": "2024/03/05"}

	t.Run("empty store lists nothing", func(t *testing.T) {
		entries, err := queue.List(ctx, "0001")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("append preserves insertion order", func(t *testing.T) {
		require.NoError(t, queue.Append(ctx, "0002", first))
		require.NoError(t, queue.Append(ctx, "0002", second))

		entries, err := queue.List(ctx, "0002")
		require.NoError(t, err)
		assert.Equal(t, []integration.Record{first, second}, entries)
	})

	t.Run("append with no entries is a no-op", func(t *testing.T) {
		require.NoError(t, queue.Append(ctx, "0003"))

		entries, err := queue.List(ctx, "0003")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("replace overwrites the queue", func(t *testing.T) {
		require.NoError(t, queue.Append(ctx, "0004", first, second))
		require.NoError(t, queue.Replace(ctx, "0004", []integration.Record{second}))

		entries, err := queue.List(ctx, "0004")
		require.NoError(t, err)
		assert.Equal(t, []integration.Record{second}, entries)

		require.NoError(t, queue.Replace(ctx, "0004", nil))
		entries, err = queue.List(ctx, "0004")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("listed entries do not alias stored state", func(t *testing.T) {
		require.NoError(t, queue.Append(ctx, "0005", integration.Record{"sku": "C3", "rsrvTxt2": "2024/03/09"}))

		entries, err := queue.List(ctx, "0005")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		entries[0]["sku"] = "mutated"

		again, err := queue.List(ctx, "0005")
		require.NoError(t, err)
		assert.Equal(t, "C3", again[0].SKU())
	})
}
