// Package archive stores reference copies of decoded vendor documents,
// either in a local directory or in an S3-compatible bucket.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/labelsync/internal/domain/integration"
)

// ErrInvalidKey is returned for store codes or ids that cannot form an object key
var ErrInvalidKey = errors.New("archive: invalid store code or document id")

// encode renders payload as indented JSON, the format operators read
func encode(payload integration.Payload) ([]byte, error) {
	data, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func checkKey(storeCode, id string) error {
	for _, part := range []string{storeCode, id} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return ErrInvalidKey
		}
	}
	return nil
}

// LocalArchive writes {dir}/{store}/{id}
type LocalArchive struct {
	dir string
}

// NewLocalArchive creates an archive rooted at dir
func NewLocalArchive(dir string) *LocalArchive {
	return &LocalArchive{dir: dir}
}

// Ensure LocalArchive implements Archive
var _ integration.Archive = (*LocalArchive)(nil)

// Path returns where a document is archived
func (a *LocalArchive) Path(storeCode, id string) string {
	return filepath.Join(a.dir, storeCode, id)
}

// Save overwrites any previous copy of the document
func (a *LocalArchive) Save(_ context.Context, storeCode, id string, payload integration.Payload) error {
	if err := checkKey(storeCode, id); err != nil {
		return err
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	path := a.Path(storeCode, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive %s: %w", path, err)
	}
	return nil
}

// Discard drops every document
type Discard struct{}

// Save does nothing
func (Discard) Save(context.Context, string, string, integration.Payload) error { return nil }

// Ensure Discard implements Archive
var _ integration.Archive = Discard{}
