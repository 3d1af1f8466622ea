package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/services"
)

type SquadsSyncJob struct {
	service services.SquadSyncer
}

func NewSquadsSyncJob(service services.SquadSyncer) Job {
	return &SquadsSyncJob{service: service}
}

func (j *SquadsSyncJob) Name() string {
	return SquadsJobKey
}

func (j *SquadsSyncJob) Schedule() string {
	return "*/10 * * * *"
}

func (j *SquadsSyncJob) Execute(ctx context.Context) error {
	result, err := j.service.SyncSquads(ctx)
	if err != nil {
		return err
	}
	reportSync(ctx, j.Name(), result)
	return nil
}
