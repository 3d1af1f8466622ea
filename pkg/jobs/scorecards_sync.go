package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/services"
)

type ScorecardsSyncJob struct {
	service services.ScorecardSyncer
}

func NewScorecardsSyncJob(service services.ScorecardSyncer) Job {
	return &ScorecardsSyncJob{service: service}
}

func (j *ScorecardsSyncJob) Name() string {
	return ScorecardsJobKey
}

// Schedule runs every minute; stale scorecards (60s) are refetched
func (j *ScorecardsSyncJob) Schedule() string {
	return "@every 1m"
}

func (j *ScorecardsSyncJob) Execute(ctx context.Context) error {
	result, err := j.service.SyncScorecards(ctx)
	if err != nil {
		return err
	}
	reportSync(ctx, j.Name(), result)
	return nil
}
