package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/runlog"
)

func newTestManager(t *testing.T, gate *Gate, dispatcher *Dispatcher) (*ProductionJobManager, *runlog.MemoryStore) {
	t.Helper()
	events := runlog.NewMemoryStore()
	m := NewProductionJobManager(nil, &ProductionJobManagerConfig{
		Gate:       gate,
		Dispatcher: dispatcher,
		Events:     events,
		Metrics:    metrics.NewUnregistered(),
		Logger:     logger.Nop(),
		JobTimeout: 5 * time.Second,
	})
	t.Cleanup(m.Stop)
	return m, events
}

func TestProductionJobManager_RunNowUsesRunID(t *testing.T) {
	manager, events := newTestManager(t, nil, nil)

	var gotRunID string
	job := &mockJob{
		name:     "live_matches",
		schedule: "@every 30s",
		executeFunc: func(ctx context.Context) error {
			gotRunID = RunIDFromContext(ctx)
			return nil
		},
	}
	require.NoError(t, manager.RegisterJob(job))

	const runID = "0b6f7c36-3a36-4f0e-9a0f-8b3cc4f0a001"
	require.NoError(t, manager.RunNow(context.Background(), "live_matches", runID))

	assert.Equal(t, runID, gotRunID)
	list, err := events.RunEvents(context.Background(), runID)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, runlog.ActionJobStarted, list[0].Action)
	assert.Equal(t, runlog.StatusSuccess, runlog.TerminalStatus(list))
}

func TestProductionJobManager_RunNowMintsRunID(t *testing.T) {
	manager, events := newTestManager(t, nil, nil)
	require.NoError(t, manager.RegisterJob(&mockJob{name: "squads", schedule: "*/10 * * * *"}))

	require.NoError(t, manager.RunNow(context.Background(), "squads", ""))

	runs, err := events.ListRuns(context.Background(), "squads", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].RunID, 36)
}

func TestProductionJobManager_UnknownJob(t *testing.T) {
	manager, _ := newTestManager(t, nil, nil)

	err := manager.RunNow(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = manager.Dispatch("nope", "")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestProductionJobManager_DuplicateRegistration(t *testing.T) {
	manager, _ := newTestManager(t, nil, nil)
	job := &mockJob{name: "commentary", schedule: "@every 30s"}

	require.NoError(t, manager.RegisterJob(job))
	assert.Error(t, manager.RegisterJob(job))
	assert.Len(t, manager.GetJobs(), 1)
}

func TestProductionJobManager_InvalidSchedule(t *testing.T) {
	manager, _ := newTestManager(t, nil, nil)

	err := manager.RegisterJob(&mockJob{name: "broken", schedule: "every now and then"})
	assert.Error(t, err)
	_, ok := manager.Job("broken")
	assert.False(t, ok)
}

func TestProductionJobManager_PausedRunIsDropped(t *testing.T) {
	var logs syncBuffer
	gate := newTestGate(&stubPause{paused: true}, nil, &logs)
	manager, events := newTestManager(t, gate, nil)

	job := &mockJob{name: "scorecards", schedule: "@every 1m"}
	require.NoError(t, manager.RegisterJob(job))

	require.NoError(t, manager.RunNow(context.Background(), "scorecards", ""))

	assert.Zero(t, job.executed.Load())
	runs, _ := events.ListRuns(context.Background(), "", 10)
	assert.Empty(t, runs, "dropped jobs open no run")
	assert.Equal(t, 1, logs.Count(`"action":"job_skipped"`))
}

func TestProductionJobManager_DisabledJobIsDropped(t *testing.T) {
	var logs syncBuffer
	gate := newTestGate(&stubPause{}, &stubToggles{disabled: map[string]bool{"squads": true}}, &logs)
	manager, _ := newTestManager(t, gate, nil)

	squads := &mockJob{name: "squads", schedule: "*/10 * * * *"}
	scorecards := &mockJob{name: "scorecards", schedule: "@every 1m"}
	require.NoError(t, manager.RegisterJob(squads))
	require.NoError(t, manager.RegisterJob(scorecards))

	require.NoError(t, manager.RunNow(context.Background(), "squads", ""))
	require.NoError(t, manager.RunNow(context.Background(), "scorecards", ""))

	assert.Zero(t, squads.executed.Load())
	assert.Equal(t, int32(1), scorecards.executed.Load())
	assert.Contains(t, logs.String(), `"reason":"disabled"`)
}

func TestProductionJobManager_DispatchRunsOnPool(t *testing.T) {
	dispatcher, err := NewDispatcher(2, logger.Nop(), nil)
	require.NoError(t, err)
	manager, events := newTestManager(t, nil, dispatcher)

	done := make(chan string, 1)
	job := &mockJob{
		name:     "series_stats",
		schedule: "0 3 */3 * *",
		executeFunc: func(ctx context.Context) error {
			done <- RunIDFromContext(ctx)
			return nil
		},
	}
	require.NoError(t, manager.RegisterJob(job))

	runID, err := manager.Dispatch("series_stats", "")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	select {
	case got := <-done:
		assert.Equal(t, runID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatched job did not run")
	}

	assert.Eventually(t, func() bool {
		list, _ := events.RunEvents(context.Background(), runID)
		return runlog.TerminalStatus(list) == runlog.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProductionJobManager_FailureIsReturned(t *testing.T) {
	manager, _ := newTestManager(t, nil, nil)
	boom := errors.New("upstream returned 502")
	require.NoError(t, manager.RegisterJob(&mockJob{
		name:        "live_matches",
		schedule:    "@every 30s",
		executeFunc: func(context.Context) error { return boom },
	}))

	assert.ErrorIs(t, manager.RunNow(context.Background(), "live_matches", ""), boom)
}

func TestProductionJobManager_RegisterJobWithRetry(t *testing.T) {
	manager, events := newTestManager(t, nil, nil)
	attempts := 0
	require.NoError(t, manager.RegisterJobWithRetry(&mockJob{
		name:     "series_stats",
		schedule: "0 3 */3 * *",
		executeFunc: func(context.Context) error {
			attempts++
			if attempts == 1 {
				return errors.New("upstream returned 503")
			}
			return nil
		},
	}, 2))

	const runID = "0b6f7c36-3a36-4f0e-9a0f-8b3cc4f0a002"
	require.NoError(t, manager.RunNow(context.Background(), "series_stats", runID))
	assert.Equal(t, 2, attempts)

	list, err := events.RunEvents(context.Background(), runID)
	require.NoError(t, err)
	var retried bool
	for _, e := range list {
		retried = retried || e.Action == "job_retry"
	}
	assert.True(t, retried, "the failed first attempt should be logged as a retry")
	assert.Equal(t, runlog.StatusSuccess, runlog.TerminalStatus(list))

	assert.Error(t, manager.RegisterJobWithRetry(&mockJob{name: "series_stats", schedule: "@every 1m"}, 1))
}

func TestProductionJobManager_GetJobStatus(t *testing.T) {
	manager, _ := newTestManager(t, nil, nil)
	require.NoError(t, manager.RegisterJob(&mockJob{name: "squads", schedule: "*/10 * * * *"}))
	require.NoError(t, manager.RegisterJob(&mockJob{name: "commentary", schedule: "@every 30s"}))
	require.NoError(t, manager.RegisterJob(&mockJob{name: "live_matches", schedule: "@every 30s"}))

	manager.Start()

	statuses, err := manager.GetJobStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "commentary", statuses[0].Name)
	assert.Equal(t, "live_matches", statuses[1].Name)
	assert.Equal(t, "squads", statuses[2].Name)
	for _, s := range statuses {
		assert.False(t, s.IsLocked)
		require.NotNil(t, s.NextRun, s.Name)
	}
	assert.Equal(t, "@every 30s", statuses[0].Schedule)
}

func TestProductionJobManager_LockingNeedsDB(t *testing.T) {
	manager := NewProductionJobManager(nil, &ProductionJobManagerConfig{EnableLocking: true, Logger: logger.Nop()})
	assert.Nil(t, manager.GetLockManager())

	locked, err := manager.IsJobLocked(context.Background(), "squads")
	require.NoError(t, err)
	assert.False(t, locked)

	withDB := NewProductionJobManager(NewMockDB(), &ProductionJobManagerConfig{EnableLocking: true, Logger: logger.Nop()})
	assert.NotNil(t, withDB.GetLockManager())
}
