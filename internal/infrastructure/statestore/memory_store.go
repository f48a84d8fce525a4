package statestore

import (
	"context"
	"sort"
	"sync"

	"github.com/erp/labelsync/internal/domain/integration"
)

// MemoryLedger is an in-process Ledger.
// WARNING: state is lost on restart, so it is only suitable for tests and dry runs.
type MemoryLedger struct {
	mu     sync.RWMutex
	stores map[string][]string
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{stores: make(map[string][]string)}
}

// Ensure MemoryLedger implements Ledger
var _ integration.Ledger = (*MemoryLedger)(nil)

// Has reports whether id is ledgered for the store
func (l *MemoryLedger) Has(_ context.Context, storeCode, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.stores[storeCode]
	i := sort.SearchStrings(ids, id)
	return i < len(ids) && ids[i] == id, nil
}

// Insert adds id at its sorted position
func (l *MemoryLedger) Insert(_ context.Context, storeCode, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.stores[storeCode]
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return nil
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	l.stores[storeCode] = ids
	return nil
}

// Remove deletes id if present
func (l *MemoryLedger) Remove(_ context.Context, storeCode, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.stores[storeCode]
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		l.stores[storeCode] = append(ids[:i], ids[i+1:]...)
	}
	return nil
}

// List returns a copy of the store's ledger
func (l *MemoryLedger) List(_ context.Context, storeCode string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.stores[storeCode]...), nil
}

// MemoryPendingQueue is an in-process PendingQueue for tests and dry runs
type MemoryPendingQueue struct {
	mu     sync.RWMutex
	stores map[string][]integration.Record
	writes int
}

// NewMemoryPendingQueue creates an empty in-memory queue
func NewMemoryPendingQueue() *MemoryPendingQueue {
	return &MemoryPendingQueue{stores: make(map[string][]integration.Record)}
}

// Ensure MemoryPendingQueue implements PendingQueue
var _ integration.PendingQueue = (*MemoryPendingQueue)(nil)

// Append adds deep copies of entries to the store's queue
func (q *MemoryPendingQueue) Append(_ context.Context, storeCode string, entries ...integration.Record) error {
	if len(entries) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entries {
		q.stores[storeCode] = append(q.stores[storeCode], e.Clone())
	}
	q.writes++
	return nil
}

// List returns deep copies of the store's entries
func (q *MemoryPendingQueue) List(_ context.Context, storeCode string) ([]integration.Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]integration.Record, 0, len(q.stores[storeCode]))
	for _, e := range q.stores[storeCode] {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Replace overwrites the store's queue
func (q *MemoryPendingQueue) Replace(_ context.Context, storeCode string, entries []integration.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := make([]integration.Record, 0, len(entries))
	for _, e := range entries {
		copied = append(copied, e.Clone())
	}
	q.stores[storeCode] = copied
	q.writes++
	return nil
}

// Writes returns how many mutations have been applied, for tests
func (q *MemoryPendingQueue) Writes() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.writes
}
