package jobs

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when dispatching a job key that was never registered
var ErrJobNotFound = errors.New("job not found")

// Job represents a schedulable job that can be executed by the cron service
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns the job key, also used as the run log discriminator
	Name() string

	// Schedule returns the cron schedule expression for this job
	// Format: "minute hour day month weekday" or "@every duration"
	// Examples: "*/10 * * * *" (every 10 minutes), "@every 30s"
	Schedule() string
}

// JobManager manages and schedules multiple jobs
type JobManager interface {
	// RegisterJob adds a job to the manager
	RegisterJob(job Job) error

	// Start begins executing all registered jobs according to their schedules
	Start()

	// Stop gracefully shuts down the job manager
	Stop()

	// GetJobs returns all registered jobs
	GetJobs() []Job
}

type runIDKey struct{}

// WithRunID stores a pre-generated run id for the run logger created further down
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or ""
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
