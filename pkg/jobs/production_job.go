package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/runlog"
)

// ProductionJob wraps a regular job with a run logger, distributed locking and retries
type ProductionJob struct {
	job         Job
	lockManager JobLockManager
	events      runlog.Appender
	metrics     *metrics.Metrics
	logger      *logger.Logger

	// Configuration
	lockTimeout  time.Duration
	skipIfLocked bool
	retryOnError bool
	maxRetries   int
}

// ProductionJobConfig holds configuration for production job wrapper
type ProductionJobConfig struct {
	LockTimeout  time.Duration // How long to wait for lock acquisition
	SkipIfLocked bool          // Skip execution if lock can't be acquired
	RetryOnError bool          // Retry job execution on failure
	MaxRetries   int           // Maximum retry attempts
}

// DefaultProductionJobConfig returns sensible defaults for production jobs
func DefaultProductionJobConfig() *ProductionJobConfig {
	return &ProductionJobConfig{
		LockTimeout:  0,     // Fail fast, the next tick will try again
		SkipIfLocked: true,  // Skip if another instance is running
		RetryOnError: false, // Don't retry by default (cron will reschedule)
		MaxRetries:   0,
	}
}

// ProductionJobOption customises a ProductionJob
type ProductionJobOption func(*ProductionJob)

// WithRunEvents persists run events to events
func WithRunEvents(events runlog.Appender) ProductionJobOption {
	return func(p *ProductionJob) {
		p.events = events
	}
}

// WithJobMetrics records run outcomes on m
func WithJobMetrics(m *metrics.Metrics) ProductionJobOption {
	return func(p *ProductionJob) {
		p.metrics = m
	}
}

// WithJobLogger sets the process logger
func WithJobLogger(l *logger.Logger) ProductionJobOption {
	return func(p *ProductionJob) {
		p.logger = l
	}
}

// NewProductionJob creates a production-ready job wrapper. lockManager may be nil to
// run without a distributed lock.
func NewProductionJob(job Job, lockManager JobLockManager, config *ProductionJobConfig, opts ...ProductionJobOption) *ProductionJob {
	if config == nil {
		config = DefaultProductionJobConfig()
	}

	p := &ProductionJob{
		job:          job,
		lockManager:  lockManager,
		logger:       logger.New("production-job"),
		lockTimeout:  config.LockTimeout,
		skipIfLocked: config.SkipIfLocked,
		retryOnError: config.RetryOnError,
		maxRetries:   config.MaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the underlying job name
func (p *ProductionJob) Name() string {
	return p.job.Name()
}

// Schedule returns the underlying job schedule
func (p *ProductionJob) Schedule() string {
	return p.job.Schedule()
}

// Unwrap returns the wrapped job
func (p *ProductionJob) Unwrap() Job {
	return p.job
}

// Execute opens a run, takes the job lock and runs the job. The run logger is placed
// in ctx for the job; job_started and job_completed bracket every run that got the lock.
func (p *ProductionJob) Execute(ctx context.Context) error {
	jobName := p.job.Name()
	startTime := time.Now()

	rl := runlog.New(p.events, jobName, RunIDFromContext(ctx), p.logger)
	ctx = rl.ToContext(ctx)

	if p.lockManager != nil {
		lockGuard := NewLockGuard(p.lockManager, jobName)

		var acquired bool
		var err error
		if p.lockTimeout > 0 {
			acquired, err = lockGuard.AcquireWithTimeout(ctx, p.lockTimeout)
		} else {
			acquired, err = lockGuard.Acquire(ctx)
		}

		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			rl.Error(ctx, "lock_acquisition_error", "Failed to acquire distributed lock", err, nil)
			p.metrics.ObserveJob(jobName, string(runlog.StatusError), time.Since(startTime))
			return fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
		}

		if !acquired {
			if !p.skipIfLocked {
				return fmt.Errorf("could not acquire lock for job %s within timeout", jobName)
			}
			rl.Warning(ctx, runlog.ActionJobSkipped, "Job skipped, another instance is running", map[string]any{
				"reason": "locked",
			})
			p.metrics.JobSkip(jobName, "locked")
			return nil
		}

		// Release on a context that survives job cancellation
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if releaseErr := lockGuard.Release(releaseCtx); releaseErr != nil {
				p.logger.Error().
					Err(releaseErr).
					Str("job_name", jobName).
					Str("action", "lock_release_error").
					Msg("Failed to release distributed lock")
			}
		}()
	}

	rl.Info(ctx, runlog.ActionJobStarted, "Job started", map[string]any{
		"schedule": p.job.Schedule(),
	})

	err := p.executeWithRetry(ctx, rl)
	duration := time.Since(startTime)

	if err != nil {
		rl.Error(ctx, runlog.ActionJobCompleted, "Job failed", err, map[string]any{
			"duration_ms": duration.Milliseconds(),
		})
		p.metrics.ObserveJob(jobName, string(runlog.StatusError), duration)
		return err
	}

	rl.Success(ctx, runlog.ActionJobCompleted, "Job completed", map[string]any{
		"duration_ms": duration.Milliseconds(),
	})
	p.metrics.ObserveJob(jobName, string(runlog.StatusSuccess), duration)
	return nil
}

// executeWithRetry executes the job with retry logic if configured
func (p *ProductionJob) executeWithRetry(ctx context.Context, rl *runlog.Logger) error {
	var lastErr error
	maxAttempts := p.maxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			rl.Warning(ctx, "job_retry", "Retrying job execution after failure", map[string]any{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"error":        lastErr.Error(),
			})

			backoffDuration := time.Duration(1<<uint(attempt-2)) * time.Second
			select {
			case <-time.After(backoffDuration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := p.job.Execute(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !p.retryOnError || !p.shouldRetryError(err) {
			break
		}
	}

	return lastErr
}

// shouldRetryError rejects cancellation, everything else is retried
func (p *ProductionJob) shouldRetryError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// JobWithRetry creates a production job with retry logic
func JobWithRetry(job Job, lockManager JobLockManager, maxRetries int, opts ...ProductionJobOption) *ProductionJob {
	config := DefaultProductionJobConfig()
	config.RetryOnError = true
	config.MaxRetries = maxRetries
	return NewProductionJob(job, lockManager, config, opts...)
}
