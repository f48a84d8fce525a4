package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/labelsync/internal/domain/integration"
	"github.com/erp/labelsync/internal/infrastructure/scheduler"
)

// StateReader exposes a store's ledger and pending queue
type StateReader interface {
	Ledger(ctx context.Context, storeCode string) ([]string, error)
	Pending(ctx context.Context, storeCode string) ([]integration.Record, error)
}

// JobSubmitter queues store jobs and reports finished ones
type JobSubmitter interface {
	Submit(kind scheduler.JobKind, storeCode, trigger string) (*scheduler.StoreJob, error)
	History(storeCode string, limit int) []*scheduler.StoreJob
}

// StoreHandler serves read-only views of per-store state and manual run triggers
type StoreHandler struct {
	BaseHandler
	stores map[string]integration.Store
	order  []string
	state  StateReader
	jobs   JobSubmitter
}

// NewStoreHandler creates a StoreHandler. jobs may be nil when the scheduler is disabled.
func NewStoreHandler(stores []integration.Store, state StateReader, jobs JobSubmitter) *StoreHandler {
	h := &StoreHandler{stores: make(map[string]integration.Store, len(stores)), state: state, jobs: jobs}
	for _, s := range stores {
		h.stores[s.Code] = s
		h.order = append(h.order, s.Code)
	}
	return h
}

// StoreResponse describes one configured store
type StoreResponse struct {
	Code          string   `json:"code"`
	VendorStoreID string   `json:"vendor_store_id"`
	DepartmentID  string   `json:"department_id"`
	Source        string   `json:"source"`
	Kinds         []string `json:"kinds"`
}

// RunRequest selects the job kind for a manual trigger
type RunRequest struct {
	Kind string `form:"kind" json:"kind" binding:"omitempty,oneof=sync promo_switch SYNC PROMO_SWITCH"`
}

// store resolves :code, writing a 404 when it is not configured
func (h *StoreHandler) store(c *gin.Context) (integration.Store, bool) {
	code := c.Param("code")
	s, ok := h.stores[code]
	if !ok {
		h.NotFound(c, "store "+code+" is not configured")
	}
	return s, ok
}

// ListStores returns the configured stores
func (h *StoreHandler) ListStores(c *gin.Context) {
	out := make([]StoreResponse, 0, len(h.order))
	for _, code := range h.order {
		s := h.stores[code]
		kinds := make([]string, 0, len(s.Kinds))
		for _, k := range s.Kinds {
			kinds = append(kinds, k.String())
		}
		out = append(out, StoreResponse{
			Code:          s.Code,
			VendorStoreID: s.VendorStoreID,
			DepartmentID:  s.DepartmentID,
			Source:        s.Source,
			Kinds:         kinds,
		})
	}
	h.List(c, out, len(out))
}

// GetLedger returns the store's ledgered document ids
func (h *StoreHandler) GetLedger(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	ids, err := h.state.Ledger(c.Request.Context(), s.Code)
	if err != nil {
		h.InternalError(c, "failed to read ledger", err)
		return
	}
	h.List(c, ids, len(ids))
}

// GetPending returns the store's pending entries
func (h *StoreHandler) GetPending(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	entries, err := h.state.Pending(c.Request.Context(), s.Code)
	if err != nil {
		h.InternalError(c, "failed to read pending queue", err)
		return
	}
	h.List(c, entries, len(entries))
}

// ListRuns returns the store's most recent finished jobs
func (h *StoreHandler) ListRuns(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	if h.jobs == nil {
		h.List(c, []*scheduler.StoreJob{}, 0)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		h.BadRequest(c, "limit must be a positive integer")
		return
	}
	jobs := h.jobs.History(s.Code, limit)
	h.List(c, jobs, len(jobs))
}

// TriggerRun queues a sync (default) or promotion-switch job for the store
func (h *StoreHandler) TriggerRun(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	var req RunRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "kind must be sync or promo_switch")
		return
	}
	if h.jobs == nil {
		h.ServiceUnavailable(c, "scheduler is disabled")
		return
	}

	kind := scheduler.JobKindSync
	if strings.EqualFold(req.Kind, string(scheduler.JobKindPromoSwitch)) {
		kind = scheduler.JobKindPromoSwitch
	}
	job, err := h.jobs.Submit(kind, s.Code, "manual")
	switch {
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.TooManyRequests(c, "job queue is full")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ServiceUnavailable(c, "scheduler is not running")
	case errors.Is(err, scheduler.ErrUnknownStore):
		h.NotFound(c, err.Error())
	case err != nil:
		h.InternalError(c, "failed to queue job", err)
	default:
		h.Accepted(c, job)
	}
}
