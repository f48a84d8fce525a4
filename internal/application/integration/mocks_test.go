package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/feed"
)

// testLocation is a fixed UTC-6 zone so tests do not depend on tzdata
var testLocation = time.FixedZone("CST", -6*60*60)

// MockDeliveryTarget is a mock implementation of DeliveryTarget
type MockDeliveryTarget struct {
	mock.Mock
}

func (m *MockDeliveryTarget) Deliver(ctx context.Context, batch integration.Batch) (integration.DeliveryReceipt, error) {
	args := m.Called(ctx, batch)
	return args.Get(0).(integration.DeliveryReceipt), args.Error(1)
}

func accepted(storeCode string) integration.DeliveryReceipt {
	return integration.DeliveryReceipt{StoreCode: storeCode}
}

// MockArticleCatalog is a mock implementation of ArticleCatalog
type MockArticleCatalog struct {
	mock.Mock
}

func (m *MockArticleCatalog) LookupArticle(ctx context.Context, storeCode, sku string) (integration.PublishedState, error) {
	args := m.Called(ctx, storeCode, sku)
	return args.Get(0).(integration.PublishedState), args.Error(1)
}

func (m *MockArticleCatalog) ListArticles(ctx context.Context, storeCode string) ([]integration.Record, error) {
	args := m.Called(ctx, storeCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Record), args.Error(1)
}

// fakeFeed serves encoded documents from memory and records downloads
type fakeFeed struct {
	mu          sync.Mutex
	docs        []integration.DocumentRef
	data        map[string]string
	downloadErr map[string]error
	downloaded  []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{data: map[string]string{}, downloadErr: map[string]error{}}
}

// add registers a document whose payload is obj encoded the way the vendor sends it
func (f *fakeFeed) add(name, fileType string, obj any) {
	encoded, err := feed.Encode(obj)
	if err != nil {
		panic(err)
	}
	f.addRaw(name, fileType, encoded)
}

func (f *fakeFeed) addRaw(name, fileType, data string) {
	f.docs = append(f.docs, integration.DocumentRef{Name: name, FileType: fileType})
	f.data[name] = data
}

func (f *fakeFeed) ListDocuments(_ context.Context, _ integration.Store) ([]integration.DocumentRef, error) {
	return append([]integration.DocumentRef{}, f.docs...), nil
}

func (f *fakeFeed) Download(_ context.Context, _ integration.Store, doc integration.DocumentRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloaded = append(f.downloaded, doc.Name)
	if err := f.downloadErr[doc.Name]; err != nil {
		return "", err
	}
	data, ok := f.data[doc.Name]
	if !ok {
		return "", fmt.Errorf("%w: no such document %s", integration.ErrTransport, doc.Name)
	}
	return data, nil
}

// recordingArchive keeps saved document ids
type recordingArchive struct {
	saved    []string
	payloads map[string]integration.Payload
	err      error
}

func (a *recordingArchive) Save(_ context.Context, storeCode, id string, payload integration.Payload) error {
	key := storeCode + "/" + id
	a.saved = append(a.saved, key)
	if a.payloads == nil {
		a.payloads = make(map[string]integration.Payload)
	}
	a.payloads[key] = payload
	return a.err
}

// recordingMetrics counts calls per method
type recordingMetrics struct {
	mu        sync.Mutex
	documents map[string]int
	records   map[string]int
	delivered map[string]int
	runs      int
	runErrs   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{documents: map[string]int{}, records: map[string]int{}, delivered: map[string]int{}}
}

func (m *recordingMetrics) DocumentProcessed(_ context.Context, _, _, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[status]++
}

func (m *recordingMetrics) RecordsEvaluated(_ context.Context, _, action string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[action] += n
}

func (m *recordingMetrics) BatchSent(_ context.Context, _, source string, delivered, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[source] += delivered
}

func (m *recordingMetrics) RunFinished(_ context.Context, _ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if err != nil {
		m.runErrs++
	}
}

func itemRecords(n int) []integration.Record {
	out := make([]integration.Record, n)
	for i := range out {
		out[i] = integration.Record{"sku": fmt.Sprintf("SKU%05d", i), "price1": float64(i + 1)}
	}
	return out
}
