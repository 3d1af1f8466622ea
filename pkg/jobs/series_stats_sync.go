package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/services"
)

type SeriesStatsSyncJob struct {
	service services.SeriesStatsSyncer
}

func NewSeriesStatsSyncJob(service services.SeriesStatsSyncer) Job {
	return &SeriesStatsSyncJob{service: service}
}

func (j *SeriesStatsSyncJob) Name() string {
	return SeriesStatsJobKey
}

// Schedule runs at 03:00 every third day
func (j *SeriesStatsSyncJob) Schedule() string {
	return "0 3 */3 * *"
}

func (j *SeriesStatsSyncJob) Execute(ctx context.Context) error {
	result, err := j.service.SyncSeriesStats(ctx)
	if err != nil {
		return err
	}
	reportSync(ctx, j.Name(), result)
	return nil
}
