package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/labelsync/internal/domain/integration"
)

func TestFileLedger(t *testing.T) {
	runLedgerContract(t, NewFileLedger(t.TempDir()))
}

func TestFilePendingQueue(t *testing.T) {
	runPendingContract(t, NewFilePendingQueue(t.TempDir()))
}

func TestFileLedger_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ledger := NewFileLedger(dir)

	t.Run("writes one sorted id per line", func(t *testing.T) {
		require.NoError(t, ledger.Insert(ctx, "0101", "Y.json"))
		require.NoError(t, ledger.Insert(ctx, "0101", "X.json"))

		data, err := os.ReadFile(filepath.Join(dir, "0101.txt"))
		require.NoError(t, err)
		assert.Equal(t, "X.json\nY.json\n", string(data))
	})

	t.Run("reads hand-edited unsorted files", func(t *testing.T) {
		path := filepath.Join(dir, "0102.txt")
		require.NoError(t, os.WriteFile(path, []byte("c.json\n\na.json\r\nb.json"), 0o644))

		ids, err := ledger.List(ctx, "0102")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.json", "b.json", "c.json"}, ids)

		has, err := ledger.Has(ctx, "0102", "a.json")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("rejects store codes that escape the directory", func(t *testing.T) {
		for _, code := range []string{"", "..", "a/b", `a\b`} {
			_, err := ledger.List(ctx, code)
			assert.ErrorIs(t, err, ErrInvalidStoreCode, code)
		}
	})
}

func TestFilePendingQueue_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	queue := NewFilePendingQueue(dir)

	t.Run("writes an indented array under the store directory", func(t *testing.T) {
		require.NoError(t, queue.Append(ctx, "0101", integration.Record{"sku": "A1", "rsrvTxt2": "2024/03/02"}))

		path, err := queue.Path("0101")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "0101", "pending_promo", "pending_promo.json"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[\n    {\n        \"rsrvTxt2\": \"2024/03/02\",\n        \"sku\": \"A1\"\n    }\n]", string(data))
	})

	t.Run("listing leaves the file untouched", func(t *testing.T) {
		path, err := queue.Path("0101")
		require.NoError(t, err)
		before, err := os.Stat(path)
		require.NoError(t, err)

		_, err = queue.List(ctx, "0101")
		require.NoError(t, err)

		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, before.ModTime(), after.ModTime())
	})

	t.Run("empty file reads as empty queue", func(t *testing.T) {
		path, err := queue.Path("0102")
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

		entries, err := queue.List(ctx, "0102")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path, err := queue.Path("0103")
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err = queue.List(ctx, "0103")
		assert.Error(t, err)

		err = queue.Append(ctx, "0103", integration.Record{"sku": "B2"})
		assert.Error(t, err)

		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "{not json", string(data))
	})

	t.Run("replace with nil writes an empty array", func(t *testing.T) {
		require.NoError(t, queue.Replace(ctx, "0104", nil))

		path, err := queue.Path("0104")
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("no temp files are left behind", func(t *testing.T) {
		path, err := queue.Path("0101")
		require.NoError(t, err)
		matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}
