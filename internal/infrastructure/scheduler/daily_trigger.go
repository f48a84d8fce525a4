package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute of the daily fire time in Location
	Hour   int
	Minute int
	// Location the fire time is read in
	Location *time.Location
	// CheckInterval is how often to check if it's time to fire
	CheckInterval time.Duration
}

// DefaultDailyTriggerConfig fires at 23:00 UTC
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		Hour:          23,
		Minute:        0,
		Location:      time.UTC,
		CheckInterval: time.Minute,
	}
}

// Validate validates the configuration
func (c *DailyTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.CheckInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DailyTrigger calls fire once per calendar day at the configured time
type DailyTrigger struct {
	config DailyTriggerConfig
	fire   func(ctx context.Context)
	clock  func() time.Time
	logger *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last fired for
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, fire func(ctx context.Context), logger *zap.Logger) (*DailyTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{config: config, fire: fire, clock: time.Now, logger: logger}, nil
}

// Start starts the trigger loop
func (c *DailyTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Daily trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.String("location", c.config.Location.String()),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger
func (c *DailyTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DailyTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires at most once per local date, on the first check at
// or after the configured time.
func (c *DailyTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.clock().In(c.config.Location)
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	fireAt := time.Date(now.Year(), now.Month(), now.Day(), c.config.Hour, c.config.Minute, 0, 0, c.config.Location)
	if now.Before(fireAt) {
		return false
	}

	c.mu.Lock()
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Daily trigger firing", zap.String("date", currentDate))
	c.fire(ctx)
	return true
}
