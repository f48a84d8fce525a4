package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/archive"
	"github.com/erp/labelsync/internal/infrastructure/feed"
)

type stubFeed struct {
	docs map[string]string
}

func (s stubFeed) ListDocuments(context.Context, integration.Store) ([]integration.DocumentRef, error) {
	return nil, nil
}

func (s stubFeed) Download(_ context.Context, _ integration.Store, doc integration.DocumentRef) (string, error) {
	data, ok := s.docs[doc.Name]
	if !ok {
		return "", errors.New("no such document")
	}
	return data, nil
}

func TestDumpDocuments(t *testing.T) {
	encoded, err := feed.Encode(map[string]any{"items": []any{map[string]any{"sku": "A1"}}})
	require.NoError(t, err)

	dir := t.TempDir()
	source := stubFeed{docs: map[string]string{
		"ITM_0001.json.gz": encoded,
		"PRM_0002.json.gz": "not base64!",
	}}
	store := integration.Store{Code: "02"}

	err = dumpDocuments(context.Background(), source, feed.GzipJSONDecoder{}, archive.NewLocalArchive(dir), store,
		[]string{"ITM_0001.json.gz", "PRM_0002.json.gz", "ITM_0003.json.gz"}, zaptest.NewLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRM_0002.json.gz")
	assert.Contains(t, err.Error(), "ITM_0003.json.gz")

	data, err := os.ReadFile(filepath.Join(dir, "02", "ITM_0001.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sku": "A1"`)

	_, err = os.Stat(filepath.Join(dir, "02", "PRM_0002.json"))
	assert.True(t, os.IsNotExist(err))
}
