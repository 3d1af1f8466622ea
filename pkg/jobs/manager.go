package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/cricmirror/core/pkg/logger"
)

const (
	defaultJobTimeout = 30 * time.Minute
	admissionTimeout  = 10 * time.Second
)

type cronJobManager struct {
	cron    *cron.Cron
	mu      sync.RWMutex
	jobs    []Job
	entries map[string]cron.EntryID
	logger  *logger.Logger
	gate    *Gate
	timeout time.Duration

	// dispatch is invoked for every admitted cron fire
	dispatch func(job Job)
}

// ManagerOption customises a job manager
type ManagerOption func(*cronJobManager)

// WithLocation evaluates cron expressions in loc
func WithLocation(loc *time.Location) ManagerOption {
	return func(m *cronJobManager) {
		if loc != nil {
			m.cron = cron.New(cron.WithLocation(loc))
		}
	}
}

// WithGate applies the admission predicate before every scheduled dispatch
func WithGate(g *Gate) ManagerOption {
	return func(m *cronJobManager) {
		m.gate = g
	}
}

// WithJobTimeout bounds a single run
func WithJobTimeout(d time.Duration) ManagerOption {
	return func(m *cronJobManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithManagerLogger sets the scheduler logger
func WithManagerLogger(l *logger.Logger) ManagerOption {
	return func(m *cronJobManager) {
		if l != nil {
			m.logger = l
		}
	}
}

func newCronJobManager(opts ...ManagerOption) *cronJobManager {
	m := &cronJobManager{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		jobs:    make([]Job, 0),
		entries: make(map[string]cron.EntryID),
		logger:  logger.New("job-manager"),
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dispatch = func(job Job) {
		_ = m.runInline(context.Background(), job, "")
	}
	return m
}

func (m *cronJobManager) RegisterJob(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	m.logger.Info().
		Str("action", "register_job").
		Str("job_name", job.Name()).
		Str("schedule", job.Schedule()).
		Msg("Registering job")

	id, err := m.cron.AddFunc(job.Schedule(), func() {
		m.fire(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.entries[job.Name()] = id
	m.mu.Unlock()
	return nil
}

// fire is the scheduler predicate: a refused job is never dispatched
func (m *cronJobManager) fire(job Job) {
	if m.gate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), admissionTimeout)
		admitted := m.gate.Check(ctx, job.Name())
		cancel()
		if !admitted {
			return
		}
	}
	m.dispatch(job)
}

// runInline executes job under the job timeout with a run-tagged logger in ctx.
// Wrapped jobs record their own start and completion, so only failures are logged.
// Without an installed dispatcher, scheduled fires run here on the cron goroutine.
func (m *cronJobManager) runInline(ctx context.Context, job Job, runID string) error {
	if runID == "" {
		runID = uuid.NewString()
	}
	jobLogger := m.logger.WithRun(runID, job.Name())

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = WithRunID(jobLogger.ToContext(ctx), runID)

	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		jobLogger.LogJobComplete(job.Name(), time.Since(start), err)
		return err
	}
	return nil
}

func (m *cronJobManager) Start() {
	m.logger.Info().
		Str("action", "start").
		Int("job_count", len(m.GetJobs())).
		Msg("Starting job manager")
	m.cron.Start()
}

func (m *cronJobManager) Stop() {
	m.logger.Info().Str("action", "stop_initiated").Msg("Stopping job manager")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info().Str("action", "stopped").Msg("Job manager stopped")
}

func (m *cronJobManager) GetJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Job(nil), m.jobs...)
}

// nextRun returns the next scheduled fire of jobName once the scheduler is running
func (m *cronJobManager) nextRun(jobName string) (time.Time, bool) {
	m.mu.RLock()
	id, ok := m.entries[jobName]
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}

	next := m.cron.Entry(id).Next
	return next, !next.IsZero()
}
