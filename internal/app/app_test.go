package app

import (
	"context"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricmirror/core/internal/config"
	"github.com/cricmirror/core/pkg/cricbuzz"
	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/jobs"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/runlog"
)

func TestBuildJobs(t *testing.T) {
	cfg := config.Load()
	client := cricbuzz.NewClient(cricbuzz.DefaultConfig("test-key"), cricbuzz.WithLogger(logger.Nop()))

	built := BuildJobs(client, docstore.NewMemoryStore(), runlog.NewMemoryStore(), cfg, metrics.NewUnregistered())

	names := make([]string, 0, len(built))
	for _, job := range built {
		names = append(names, job.Name())
		_, err := cron.ParseStandard(job.Schedule())
		assert.NoError(t, err, job.Name())
	}
	assert.ElementsMatch(t, []string{
		jobs.LiveMatchesJobKey,
		jobs.ScorecardsJobKey,
		jobs.SquadsJobKey,
		jobs.CommentaryJobKey,
		jobs.SeriesStatsJobKey,
		jobs.RetentionCleanupJobKey,
	}, names)
}

func TestBuildJobs_Register(t *testing.T) {
	cfg := config.Load()
	client := cricbuzz.NewClient(cricbuzz.DefaultConfig("test-key"), cricbuzz.WithLogger(logger.Nop()))
	manager := jobs.NewProductionJobManager(nil, &jobs.ProductionJobManagerConfig{Logger: logger.Nop()})
	t.Cleanup(manager.Stop)

	require.NoError(t, RegisterJobs(manager, BuildJobs(client, docstore.NewMemoryStore(), runlog.NewMemoryStore(), cfg, nil)))

	statuses, err := manager.GetJobStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, statuses, 6)
	for _, s := range statuses {
		if s.Name == jobs.SeriesStatsJobKey {
			assert.Equal(t, 2, s.MaxRetries)
		} else {
			assert.Zero(t, s.MaxRetries, s.Name)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Load()
	cfg.Store.Backend = "mongo"

	_, err := New(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "invalid configuration")
}
