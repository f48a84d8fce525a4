package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrUnknownStore is returned for a store code that is not configured
	ErrUnknownStore = errors.New("store is not configured")

	// ErrUnknownJobKind is returned for a job kind the scheduler cannot run
	ErrUnknownJobKind = errors.New("unknown job kind")
)
