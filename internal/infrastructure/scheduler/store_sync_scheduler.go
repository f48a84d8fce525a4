package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/erp/labelsync/internal/application/integration"
	"github.com/erp/labelsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Store Sync Job Types
// ---------------------------------------------------------------------------

// JobKind selects what a job runs for its store
type JobKind string

const (
	JobKindSync        JobKind = "SYNC"
	JobKindPromoSwitch JobKind = "PROMO_SWITCH"
)

// JobStatus represents the status of a store job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// StoreJob is one pipeline or promotion-switch run for a store
type StoreJob struct {
	ID          uuid.UUID                         `json:"id"`
	Kind        JobKind                           `json:"kind"`
	StoreCode   string                            `json:"store"`
	Trigger     string                            `json:"trigger"`
	Status      JobStatus                         `json:"status"`
	Error       string                            `json:"error,omitempty"`
	SubmittedAt time.Time                         `json:"submitted_at"`
	StartedAt   *time.Time                        `json:"started_at,omitempty"`
	CompletedAt *time.Time                        `json:"completed_at,omitempty"`
	Report      *appintegration.RunReport         `json:"report,omitempty"`
	PromoSwitch *appintegration.PromoSwitchResult `json:"promo_switch,omitempty"`
}

// NewStoreJob creates a pending job
func NewStoreJob(kind JobKind, storeCode, trigger string) *StoreJob {
	return &StoreJob{
		ID:          uuid.New(),
		Kind:        kind,
		StoreCode:   storeCode,
		Trigger:     trigger,
		Status:      JobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *StoreJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Finish marks the job as done, failed when err is set
func (j *StoreJob) Finish(err error) {
	now := time.Now()
	j.CompletedAt = &now
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = JobStatusSuccess
}

// StoreRunner executes runs for one store at a time. *appintegration.Pipeline implements it.
type StoreRunner interface {
	RunStore(ctx context.Context, store integration.Store) (*appintegration.RunReport, error)
	CheckPromoSwitch(ctx context.Context, store integration.Store) (appintegration.PromoSwitchResult, error)
}

// ---------------------------------------------------------------------------
// StoreSyncSchedulerConfig
// ---------------------------------------------------------------------------

// StoreSyncSchedulerConfig holds configuration for the store sync scheduler
type StoreSyncSchedulerConfig struct {
	// Interval between full passes over every store
	Interval time.Duration
	// RunTimeout bounds a single store job
	RunTimeout time.Duration
	// QueueSize bounds manually submitted jobs waiting for the worker
	QueueSize int
	// MaxHistory is how many finished jobs are kept for the ops views
	MaxHistory int
}

// DefaultStoreSyncSchedulerConfig returns default configuration
func DefaultStoreSyncSchedulerConfig() StoreSyncSchedulerConfig {
	return StoreSyncSchedulerConfig{
		Interval:   15 * time.Minute,
		RunTimeout: 30 * time.Minute,
		QueueSize:  32,
		MaxHistory: 100,
	}
}

// Validate validates the configuration
func (c *StoreSyncSchedulerConfig) Validate() error {
	if c.Interval <= 0 || c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 || c.MaxHistory <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// StoreSyncScheduler
// ---------------------------------------------------------------------------

// StoreSyncScheduler runs store jobs on a single worker so that one store's
// run completes before the next begins.
type StoreSyncScheduler struct {
	config StoreSyncSchedulerConfig
	runner StoreRunner
	stores []integration.Store
	logger *zap.Logger

	jobs      chan *StoreJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.RWMutex
	history   []*StoreJob
}

// NewStoreSyncScheduler creates a new store sync scheduler
func NewStoreSyncScheduler(config StoreSyncSchedulerConfig, runner StoreRunner, stores []integration.Store, logger *zap.Logger) (*StoreSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StoreSyncScheduler{
		config:  config,
		runner:  runner,
		stores:  append([]integration.Store{}, stores...),
		logger:  logger,
		jobs:    make(chan *StoreJob, config.QueueSize),
		history: make([]*StoreJob, 0, config.MaxHistory),
	}, nil
}

// Stores returns the configured stores
func (s *StoreSyncScheduler) Stores() []integration.Store {
	return append([]integration.Store{}, s.stores...)
}

// Store returns the configured store with code
func (s *StoreSyncScheduler) Store(code string) (integration.Store, bool) {
	for _, st := range s.stores {
		if st.Code == code {
			return st, true
		}
	}
	return integration.Store{}, false
}

// Start starts the worker and the interval loop. The first pass runs immediately.
func (s *StoreSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)

	s.logger.Info("Store sync scheduler started",
		zap.Int("stores", len(s.stores)),
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop cancels the running job and waits for the worker to exit
func (s *StoreSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Store sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Store sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a job for a configured store and returns a copy of it as submitted
func (s *StoreSyncScheduler) Submit(kind JobKind, storeCode, trigger string) (*StoreJob, error) {
	if kind != JobKindSync && kind != JobKindPromoSwitch {
		return nil, ErrUnknownJobKind
	}
	if _, ok := s.Store(storeCode); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, storeCode)
	}

	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}

	job := NewStoreJob(kind, storeCode, trigger)
	// The worker owns job once queued; callers get the submitted state.
	snapshot := *job
	select {
	case s.jobs <- job:
		s.logger.Debug("Store job submitted",
			zap.String("job_id", snapshot.ID.String()),
			zap.String("store", storeCode),
			zap.String("kind", string(kind)),
		)
		return &snapshot, nil
	default:
		return nil, ErrJobQueueFull
	}
}

// TriggerPromoSwitch queues the promotion-switch check for every store.
// DailyTrigger calls it.
func (s *StoreSyncScheduler) TriggerPromoSwitch(_ context.Context) {
	for _, st := range s.stores {
		if _, err := s.Submit(JobKindPromoSwitch, st.Code, "daily"); err != nil {
			s.logger.Error("Failed to queue promotion switch check",
				zap.String("store", st.Code),
				zap.Error(err),
			)
		}
	}
}

// RunAll runs kind for every store in order on the calling goroutine.
// A failing store is logged and the pass moves on; the joined errors are returned.
func (s *StoreSyncScheduler) RunAll(ctx context.Context, kind JobKind, trigger string) error {
	var errs []error
	for _, st := range s.stores {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		job := NewStoreJob(kind, st.Code, trigger)
		if err := s.process(ctx, job, st); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", st.Code, err))
		}
	}
	return errors.Join(errs...)
}

// worker runs a pass every interval and drains submitted jobs in between
func (s *StoreSyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	_ = s.RunAll(ctx, JobKindSync, "interval")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunAll(ctx, JobKindSync, "interval")
		case job := <-s.jobs:
			st, ok := s.Store(job.StoreCode)
			if !ok {
				continue
			}
			_ = s.process(ctx, job, st)
		}
	}
}

// process executes a single job
func (s *StoreSyncScheduler) process(ctx context.Context, job *StoreJob, store integration.Store) error {
	job.Start()
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("store", store.Code),
		zap.String("kind", string(job.Kind)),
		zap.String("trigger", job.Trigger),
	)
	log.Info("Processing store job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	var err error
	switch job.Kind {
	case JobKindSync:
		job.Report, err = s.runner.RunStore(jobCtx, store)
	case JobKindPromoSwitch:
		var result appintegration.PromoSwitchResult
		result, err = s.runner.CheckPromoSwitch(jobCtx, store)
		job.PromoSwitch = &result
	default:
		err = ErrUnknownJobKind
	}
	job.Finish(err)

	if err != nil {
		log.Error("Store job failed", zap.Error(err))
	} else {
		log.Info("Store job completed", zap.Duration("elapsed", job.CompletedAt.Sub(*job.StartedAt)))
	}
	s.addToHistory(job)
	return err
}

// addToHistory adds a completed job to history
func (s *StoreSyncScheduler) addToHistory(job *StoreJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*StoreJob{job}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// History returns recent finished jobs, newest first. An empty storeCode matches every store.
func (s *StoreSyncScheduler) History(storeCode string, limit int) []*StoreJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*StoreJob, 0, limit)
	for _, job := range s.history {
		if storeCode != "" && job.StoreCode != storeCode {
			continue
		}
		result = append(result, job)
		if len(result) >= limit {
			break
		}
	}
	return result
}
