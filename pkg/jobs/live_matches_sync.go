package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/runlog"
	"github.com/cricmirror/core/pkg/services"
)

// Job keys
const (
	LiveMatchesJobKey      = "live_matches"
	ScorecardsJobKey       = "scorecards"
	SquadsJobKey           = "squads"
	CommentaryJobKey       = "commentary"
	SeriesStatsJobKey      = "series_stats"
	RetentionCleanupJobKey = "retention_cleanup"
)

type LiveMatchesSyncJob struct {
	service services.LiveMatchSyncer
}

func NewLiveMatchesSyncJob(service services.LiveMatchSyncer) Job {
	return &LiveMatchesSyncJob{service: service}
}

func (j *LiveMatchesSyncJob) Name() string {
	return LiveMatchesJobKey
}

func (j *LiveMatchesSyncJob) Schedule() string {
	return "@every 30s"
}

func (j *LiveMatchesSyncJob) Execute(ctx context.Context) error {
	result, err := j.service.SyncLiveMatches(ctx)
	if err != nil {
		return err
	}
	reportSync(ctx, j.Name(), result)
	return nil
}

// reportSync records the item counts of a sync pass. Runs where every attempted item
// failed are flagged as warnings.
func reportSync(ctx context.Context, jobKey string, result services.SyncResult) {
	rl := runlog.FromContext(ctx, jobKey)
	if result.Failed > 0 && result.Written == 0 {
		rl.Warning(ctx, "sync_summary", "Sync finished without writing anything", result.Fields())
		return
	}
	rl.Info(ctx, "sync_summary", "Sync finished", result.Fields())
}
