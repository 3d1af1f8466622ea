package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/runlog"
	"github.com/cricmirror/core/pkg/services"
)

type RetentionCleanupJob struct {
	service services.RetentionCleaner
}

func NewRetentionCleanupJob(service services.RetentionCleaner) Job {
	return &RetentionCleanupJob{service: service}
}

func (j *RetentionCleanupJob) Name() string {
	return RetentionCleanupJobKey
}

func (j *RetentionCleanupJob) Schedule() string {
	return "0 4 * * *"
}

func (j *RetentionCleanupJob) Execute(ctx context.Context) error {
	result, err := j.service.Cleanup(ctx)
	if err != nil {
		return err
	}

	fields := map[string]any{"run_events": result.RunEvents}
	for collection, n := range result.Documents {
		fields[collection] = n
	}
	runlog.FromContext(ctx, j.Name()).Info(ctx, "retention_summary", "Retention cleanup finished", fields)
	return nil
}
