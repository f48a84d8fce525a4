package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/scheduler"
	"github.com/erp/labelsync/internal/interfaces/http/dto"
)

// MockStateReader is a mock implementation of StateReader
type MockStateReader struct {
	mock.Mock
}

func (m *MockStateReader) Ledger(ctx context.Context, storeCode string) ([]string, error) {
	args := m.Called(ctx, storeCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStateReader) Pending(ctx context.Context, storeCode string) ([]integration.Record, error) {
	args := m.Called(ctx, storeCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Record), args.Error(1)
}

// MockJobSubmitter is a mock implementation of JobSubmitter
type MockJobSubmitter struct {
	mock.Mock
}

func (m *MockJobSubmitter) Submit(kind scheduler.JobKind, storeCode, trigger string) (*scheduler.StoreJob, error) {
	args := m.Called(kind, storeCode, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.StoreJob), args.Error(1)
}

func (m *MockJobSubmitter) History(storeCode string, limit int) []*scheduler.StoreJob {
	args := m.Called(storeCode, limit)
	return args.Get(0).([]*scheduler.StoreJob)
}

var handlerStores = []integration.Store{
	{Code: "01", VendorStoreID: "52DUF", DepartmentID: "12NEO", Source: "CT", Kinds: []integration.DocumentKind{integration.DocumentKindItem}},
	{Code: "02", VendorStoreID: "52DUG", DepartmentID: "12NEO", Source: "CT", Kinds: []integration.DocumentKind{integration.DocumentKindItem, integration.DocumentKindPromotion}},
}

func serve(h *StoreHandler, method, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/stores", h.ListStores)
	engine.GET("/stores/:code/ledger", h.GetLedger)
	engine.GET("/stores/:code/pending", h.GetPending)
	engine.GET("/stores/:code/runs", h.ListRuns)
	engine.POST("/stores/:code/runs", h.TriggerRun)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStoreHandler_ListStores(t *testing.T) {
	h := NewStoreHandler(handlerStores, new(MockStateReader), nil)

	w := serve(h, http.MethodGet, "/stores")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]StoreResponse](t, w)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "01", resp.Data[0].Code)
	assert.Equal(t, []string{"ITM", "PRM"}, resp.Data[1].Kinds)
}

func TestStoreHandler_GetLedger(t *testing.T) {
	state := new(MockStateReader)
	state.On("Ledger", mock.Anything, "02").Return([]string{"X", "Y"}, nil).Once()
	h := NewStoreHandler(handlerStores, state, nil)

	w := serve(h, http.MethodGet, "/stores/02/ledger")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]string](t, w)
	assert.Equal(t, []string{"X", "Y"}, resp.Data)
	assert.Equal(t, 2, resp.Meta.Total)
	state.AssertExpectations(t)
}

func TestStoreHandler_GetPending(t *testing.T) {
	t.Run("returns entries", func(t *testing.T) {
		state := new(MockStateReader)
		state.On("Pending", mock.Anything, "01").
			Return([]integration.Record{{"sku": "A1", "rsrvTxt2": "2099/12/31"}}, nil).Once()
		h := NewStoreHandler(handlerStores, state, nil)

		w := serve(h, http.MethodGet, "/stores/01/pending")

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[[]map[string]any](t, w)
		assert.Equal(t, "A1", resp.Data[0]["sku"])
	})

	t.Run("state failure is a 500", func(t *testing.T) {
		state := new(MockStateReader)
		state.On("Pending", mock.Anything, "01").Return(nil, errors.New("corrupt pending file")).Once()
		h := NewStoreHandler(handlerStores, state, nil)

		w := serve(h, http.MethodGet, "/stores/01/pending")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode[any](t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, w.Body.String(), "corrupt")
	})

	t.Run("unknown store is a 404", func(t *testing.T) {
		h := NewStoreHandler(handlerStores, new(MockStateReader), nil)
		w := serve(h, http.MethodGet, "/stores/77/pending")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStoreHandler_TriggerRun(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		kind     scheduler.JobKind
		err      error
		wantCode int
	}{
		{name: "default kind is sync", kind: scheduler.JobKindSync, wantCode: http.StatusAccepted},
		{name: "promo switch", query: "?kind=promo_switch", kind: scheduler.JobKindPromoSwitch, wantCode: http.StatusAccepted},
		{name: "queue full", kind: scheduler.JobKindSync, err: scheduler.ErrJobQueueFull, wantCode: http.StatusTooManyRequests},
		{name: "scheduler stopped", kind: scheduler.JobKindSync, err: scheduler.ErrSchedulerNotRunning, wantCode: http.StatusServiceUnavailable},
		{name: "unexpected error", kind: scheduler.JobKindSync, err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := new(MockJobSubmitter)
			if tt.err != nil {
				jobs.On("Submit", tt.kind, "02", "manual").Return(nil, tt.err).Once()
			} else {
				jobs.On("Submit", tt.kind, "02", "manual").Return(scheduler.NewStoreJob(tt.kind, "02", "manual"), nil).Once()
			}
			h := NewStoreHandler(handlerStores, new(MockStateReader), jobs)

			w := serve(h, http.MethodPost, "/stores/02/runs"+tt.query)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.err == nil {
				resp := decode[scheduler.StoreJob](t, w)
				assert.Equal(t, tt.kind, resp.Data.Kind)
				assert.Equal(t, scheduler.JobStatusPending, resp.Data.Status)
			}
			jobs.AssertExpectations(t)
		})
	}

	t.Run("invalid kind", func(t *testing.T) {
		jobs := new(MockJobSubmitter)
		h := NewStoreHandler(handlerStores, new(MockStateReader), jobs)
		w := serve(h, http.MethodPost, "/stores/02/runs?kind=report")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		jobs.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("scheduler disabled", func(t *testing.T) {
		h := NewStoreHandler(handlerStores, new(MockStateReader), nil)
		w := serve(h, http.MethodPost, "/stores/02/runs")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestStoreHandler_ListRuns(t *testing.T) {
	jobs := new(MockJobSubmitter)
	finished := scheduler.NewStoreJob(scheduler.JobKindSync, "02", "interval")
	finished.Start()
	finished.Finish(nil)
	jobs.On("History", "02", 5).Return([]*scheduler.StoreJob{finished}).Once()
	h := NewStoreHandler(handlerStores, new(MockStateReader), jobs)

	w := serve(h, http.MethodGet, "/stores/02/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]scheduler.StoreJob](t, w)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, scheduler.JobStatusSuccess, resp.Data[0].Status)

	w = serve(h, http.MethodGet, "/stores/02/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	jobs.AssertExpectations(t)
}
