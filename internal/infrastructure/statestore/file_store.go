// Package statestore holds the per-store Ledger and PendingQueue backends:
// flat files (the default), SQL through GORM, Redis, and an in-memory one for tests.
package statestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/erp/labelsync/internal/domain/integration"
)

// ErrInvalidStoreCode is returned for store codes that cannot name a file
var ErrInvalidStoreCode = errors.New("statestore: invalid store code")

// FileLedger keeps one newline-delimited, sorted file per store: {dir}/{store}.txt
type FileLedger struct {
	dir string
	mu  sync.Mutex
}

// NewFileLedger creates a file ledger rooted at dir
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{dir: dir}
}

// Ensure FileLedger implements Ledger
var _ integration.Ledger = (*FileLedger)(nil)

func (l *FileLedger) path(storeCode string) (string, error) {
	if err := checkStoreCode(storeCode); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, storeCode+".txt"), nil
}

// Has reports whether id is ledgered for the store
func (l *FileLedger) Has(_ context.Context, storeCode, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.readLocked(storeCode)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id, nil
}

// Insert adds id at its sorted position. Inserting a present id is a no-op.
func (l *FileLedger) Insert(_ context.Context, storeCode, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.readLocked(storeCode)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return nil
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return l.writeLocked(storeCode, ids)
}

// Remove deletes id if present
func (l *FileLedger) Remove(_ context.Context, storeCode, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.readLocked(storeCode)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, id)
	if i >= len(ids) || ids[i] != id {
		return nil
	}
	ids = append(ids[:i], ids[i+1:]...)
	return l.writeLocked(storeCode, ids)
}

// List returns the store's ledger in sorted order
func (l *FileLedger) List(_ context.Context, storeCode string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked(storeCode)
}

func (l *FileLedger) readLocked(storeCode string) ([]string, error) {
	path, err := l.path(storeCode)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}

	ids := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	// Files edited by hand may be out of order; binary search needs them sorted.
	if !sort.StringsAreSorted(ids) {
		sort.Strings(ids)
	}
	return ids, nil
}

func (l *FileLedger) writeLocked(storeCode string, ids []string) error {
	path, err := l.path(storeCode)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(path, buf.Bytes())
}

// FilePendingQueue keeps one JSON array per store: {dir}/{store}/pending_promo/pending_promo.json
type FilePendingQueue struct {
	dir string
	mu  sync.Mutex
}

// NewFilePendingQueue creates a file pending queue rooted at dir
func NewFilePendingQueue(dir string) *FilePendingQueue {
	return &FilePendingQueue{dir: dir}
}

// Ensure FilePendingQueue implements PendingQueue
var _ integration.PendingQueue = (*FilePendingQueue)(nil)

// Path returns the queue file for a store
func (q *FilePendingQueue) Path(storeCode string) (string, error) {
	if err := checkStoreCode(storeCode); err != nil {
		return "", err
	}
	return filepath.Join(q.dir, storeCode, "pending_promo", "pending_promo.json"), nil
}

// Append adds entries to the end of the store's queue
func (q *FilePendingQueue) Append(_ context.Context, storeCode string, entries ...integration.Record) error {
	if len(entries) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.readLocked(storeCode)
	if err != nil {
		return err
	}
	return q.writeLocked(storeCode, append(current, entries...))
}

// List returns the store's queue in insertion order
func (q *FilePendingQueue) List(_ context.Context, storeCode string) ([]integration.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readLocked(storeCode)
}

// Replace overwrites the store's queue with entries
func (q *FilePendingQueue) Replace(_ context.Context, storeCode string, entries []integration.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entries == nil {
		entries = []integration.Record{}
	}
	return q.writeLocked(storeCode, entries)
}

func (q *FilePendingQueue) readLocked(storeCode string) ([]integration.Record, error) {
	path, err := q.Path(storeCode)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []integration.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []integration.Record{}, nil
	}

	var entries []integration.Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse pending queue %s: %w", path, err)
	}
	if entries == nil {
		entries = []integration.Record{}
	}
	return entries, nil
}

func (q *FilePendingQueue) writeLocked(storeCode string, entries []integration.Record) error {
	path, err := q.Path(storeCode)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode pending queue: %w", err)
	}
	return writeFileAtomic(path, data)
}

func checkStoreCode(storeCode string) error {
	if storeCode == "" || strings.ContainsAny(storeCode, `/\`) || storeCode == "." || storeCode == ".." {
		return ErrInvalidStoreCode
	}
	return nil
}

// writeFileAtomic writes through a temp file in the same directory and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
