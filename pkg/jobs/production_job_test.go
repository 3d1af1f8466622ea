package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/runlog"
)

func newTestProductionJob(job Job, locks JobLockManager, cfg *ProductionJobConfig) (*ProductionJob, *runlog.MemoryStore, *metrics.Metrics) {
	events := runlog.NewMemoryStore()
	m := metrics.NewUnregistered()
	p := NewProductionJob(job, locks, cfg,
		WithRunEvents(events),
		WithJobMetrics(m),
		WithJobLogger(logger.Nop()),
	)
	return p, events, m
}

func actions(events []runlog.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func TestProductionJob_RecordsRun(t *testing.T) {
	const runID = "5f0c3c5e-8f43-4a52-9a55-3c1f2f1e2a10"
	var seen *runlog.Logger
	inner := &mockJob{
		name:     "scorecards",
		schedule: "@every 1m",
		executeFunc: func(ctx context.Context) error {
			seen = runlog.FromContext(ctx, "scorecards")
			seen.Info(ctx, "sync_summary", "Sync finished", map[string]any{"written": 3})
			return nil
		},
	}
	job, events, m := newTestProductionJob(inner, nil, nil)

	require.NoError(t, job.Execute(WithRunID(context.Background(), runID)))

	require.NotNil(t, seen)
	assert.Equal(t, runID, seen.RunID())

	list, err := events.RunEvents(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, []string{runlog.ActionJobStarted, "sync_summary", runlog.ActionJobCompleted}, actions(list))
	for _, e := range list {
		assert.Equal(t, "scorecards", e.JobKey)
	}
	assert.Equal(t, runlog.StatusSuccess, runlog.TerminalStatus(list))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("scorecards", "success")))
}

func TestProductionJob_RecordsFailure(t *testing.T) {
	boom := errors.New("circuit breaker is open")
	inner := &mockJob{
		name:        "commentary",
		executeFunc: func(context.Context) error { return boom },
	}
	job, events, m := newTestProductionJob(inner, nil, nil)

	err := job.Execute(context.Background())
	assert.ErrorIs(t, err, boom)

	runs, err := events.ListRuns(context.Background(), "commentary", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runlog.StatusError, runs[0].Status)

	list, _ := events.RunEvents(context.Background(), runs[0].RunID)
	last := list[len(list)-1]
	assert.Equal(t, runlog.ActionJobCompleted, last.Action)
	assert.Equal(t, boom.Error(), last.Context["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("commentary", "error")))
}

func TestProductionJob_SkipsWhenLocked(t *testing.T) {
	locks := NewPostgreSQLLockManager(NewMockDB())
	acquired, err := locks.AcquireLock(context.Background(), "squads")
	require.NoError(t, err)
	require.True(t, acquired)

	inner := &mockJob{name: "squads"}
	job, events, m := newTestProductionJob(inner, locks, nil)

	require.NoError(t, job.Execute(context.Background()))
	assert.Zero(t, inner.executed.Load())

	runs, _ := events.ListRuns(context.Background(), "squads", 10)
	require.Len(t, runs, 1)
	assert.Equal(t, runlog.StatusWarning, runs[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobSkipped.WithLabelValues("squads", "locked")))
}

func TestProductionJob_ReleasesLock(t *testing.T) {
	locks := NewPostgreSQLLockManager(NewMockDB())
	inner := &mockJob{name: "live_matches"}
	job, _, _ := newTestProductionJob(inner, locks, nil)

	require.NoError(t, job.Execute(context.Background()))
	require.NoError(t, job.Execute(context.Background()))

	assert.Equal(t, int32(2), inner.executed.Load())
	locked, err := locks.IsLocked(context.Background(), "live_matches")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestProductionJob_Retry(t *testing.T) {
	attempts := 0
	inner := &mockJob{
		name: "live_matches",
		executeFunc: func(context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			return nil
		},
	}
	events := runlog.NewMemoryStore()
	job := JobWithRetry(inner, nil, 2, WithRunEvents(events), WithJobLogger(logger.Nop()))

	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 2, attempts)

	runs, _ := events.ListRuns(context.Background(), "live_matches", 1)
	require.Len(t, runs, 1)
	list, _ := events.RunEvents(context.Background(), runs[0].RunID)
	assert.Contains(t, actions(list), "job_retry")
	assert.Equal(t, runlog.StatusSuccess, runlog.TerminalStatus(list))
}

func TestProductionJob_DoesNotRetryCancellation(t *testing.T) {
	attempts := 0
	inner := &mockJob{
		name: "live_matches",
		executeFunc: func(context.Context) error {
			attempts++
			return context.Canceled
		},
	}
	job := JobWithRetry(inner, nil, 3, WithJobLogger(logger.Nop()))

	assert.ErrorIs(t, job.Execute(context.Background()), context.Canceled)
	assert.Equal(t, 1, attempts)
}
