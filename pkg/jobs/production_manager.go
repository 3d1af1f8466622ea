package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cricmirror/core/pkg/database"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/runlog"
)

// ProductionJobManager schedules jobs wrapped with admission, run logging and
// distributed locking, and runs them on a bounded worker pool.
type ProductionJobManager struct {
	*cronJobManager

	lockManager JobLockManager
	dispatcher  *Dispatcher
	events      runlog.Appender
	metrics     *metrics.Metrics

	// Production features
	enableLocking bool
	defaultConfig *ProductionJobConfig
	startupJobs   []string
	byName        map[string]Job
}

// ProductionJobManagerConfig holds configuration for the production job manager
type ProductionJobManagerConfig struct {
	EnableLocking bool                 // Enable distributed locking for all jobs
	DefaultConfig *ProductionJobConfig // Default configuration for wrapped jobs
	Gate          *Gate                // Admission gate, nil admits everything
	Dispatcher    *Dispatcher          // Worker pool, nil runs each dispatch on its own goroutine
	Events        runlog.Appender      // Run event sink
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	Location      *time.Location // Zone cron expressions are evaluated in
	JobTimeout    time.Duration
	StartupJobs   []string // Jobs dispatched once on Start
}

// NewProductionJobManager creates a production-ready job manager. db may be nil when
// locking is disabled.
func NewProductionJobManager(db database.DBTX, config *ProductionJobManagerConfig) *ProductionJobManager {
	if config == nil {
		config = &ProductionJobManagerConfig{
			EnableLocking: db != nil,
		}
	}
	if config.DefaultConfig == nil {
		config.DefaultConfig = DefaultProductionJobConfig()
	}
	if config.Logger == nil {
		config.Logger = logger.New("production-job-manager")
	}

	m := &ProductionJobManager{
		cronJobManager: newCronJobManager(
			WithLocation(config.Location),
			WithGate(config.Gate),
			WithJobTimeout(config.JobTimeout),
			WithManagerLogger(config.Logger),
		),
		dispatcher:    config.Dispatcher,
		events:        config.Events,
		metrics:       config.Metrics,
		enableLocking: config.EnableLocking && db != nil,
		defaultConfig: config.DefaultConfig,
		startupJobs:   config.StartupJobs,
		byName:        make(map[string]Job),
	}
	if m.enableLocking {
		m.lockManager = NewPostgreSQLLockManager(db)
	}

	m.cronJobManager.dispatch = func(job Job) {
		if _, err := m.dispatchJob(job, ""); err != nil {
			m.logger.Warn().
				Err(err).
				Str("action", "dispatch_failed").
				Str("job_name", job.Name()).
				Msg("Scheduled job was not dispatched")
		}
	}
	return m
}

var _ JobManager = (*ProductionJobManager)(nil)

// RegisterJob wraps job as Admission(Production(job)) and schedules it
func (m *ProductionJobManager) RegisterJob(job Job) error {
	return m.RegisterJobWithConfig(job, m.defaultConfig)
}

// RegisterJobWithConfig registers a job with custom production configuration
func (m *ProductionJobManager) RegisterJobWithConfig(job Job, config *ProductionJobConfig) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	m.mu.RLock()
	_, exists := m.byName[job.Name()]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	finalJob := job
	if _, isProduction := job.(*ProductionJob); !isProduction {
		finalJob = NewProductionJob(job, m.lockManager, config,
			WithRunEvents(m.events),
			WithJobMetrics(m.metrics),
			WithJobLogger(m.logger),
		)
	}
	if m.gate != nil {
		finalJob = NewAdmissionJob(finalJob, m.gate)
	}

	if err := m.cronJobManager.RegisterJob(finalJob); err != nil {
		return err
	}

	m.mu.Lock()
	m.byName[job.Name()] = finalJob
	m.mu.Unlock()
	return nil
}

// RegisterJobWithRetry registers job so that a failed run is retried in place up to
// retries times with exponential backoff, under the same lock and run id.
func (m *ProductionJobManager) RegisterJobWithRetry(job Job, retries int) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	return m.RegisterJobWithConfig(JobWithRetry(job, m.lockManager, retries,
		WithRunEvents(m.events),
		WithJobMetrics(m.metrics),
		WithJobLogger(m.logger),
	), nil)
}

// Job returns the registered (wrapped) job
func (m *ProductionJobManager) Job(name string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.byName[name]
	return job, ok
}

// Dispatch queues name on the worker pool under runID (minted when empty) and returns
// the run id without waiting for the run.
func (m *ProductionJobManager) Dispatch(name, runID string) (string, error) {
	job, ok := m.Job(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return m.dispatchJob(job, runID)
}

func (m *ProductionJobManager) dispatchJob(job Job, runID string) (string, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	task := func() {
		_ = m.runInline(context.Background(), job, runID)
	}

	if m.dispatcher == nil {
		go task()
		return runID, nil
	}
	if err := m.dispatcher.Submit(job.Name(), task); err != nil {
		return runID, err
	}
	return runID, nil
}

// RunNow executes name synchronously under runID and returns the job error
func (m *ProductionJobManager) RunNow(ctx context.Context, name, runID string) error {
	job, ok := m.Job(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return m.runInline(ctx, job, runID)
}

// Start dispatches the startup jobs once, then starts the scheduler
func (m *ProductionJobManager) Start() {
	m.logger.Info().
		Str("action", "start").
		Int("job_count", len(m.GetJobs())).
		Bool("locking_enabled", m.enableLocking).
		Msg("Starting production job manager")

	for _, name := range m.startupJobs {
		job, ok := m.Job(name)
		if !ok {
			continue
		}
		m.logger.Info().
			Str("job_name", name).
			Str("action", "startup_job_start").
			Msg("Running job on startup")
		m.fire(job)
	}

	m.cron.Start()
}

// Stop stops scheduling, then waits for running jobs
func (m *ProductionJobManager) Stop() {
	m.cronJobManager.Stop()

	if m.dispatcher != nil {
		if err := m.dispatcher.Release(m.timeout); err != nil {
			m.logger.Warn().
				Err(err).
				Str("action", "worker_release_timeout").
				Msg("Jobs still running after shutdown timeout")
		}
	}
}

// GetLockManager returns the distributed lock manager, nil when locking is disabled
func (m *ProductionJobManager) GetLockManager() JobLockManager {
	return m.lockManager
}

// IsJobLocked checks if a specific job is currently locked
func (m *ProductionJobManager) IsJobLocked(ctx context.Context, jobName string) (bool, error) {
	if m.lockManager == nil {
		return false, nil
	}
	return m.lockManager.IsLocked(ctx, jobName)
}

// JobStatus represents the current status of a job
type JobStatus struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	IsLocked bool   `json:"is_locked"`
	// MaxRetries is how often a failed run is retried in place, 0 leaves it to the next fire
	MaxRetries int        `json:"max_retries"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}

func maxRetries(job Job) int {
	for {
		if p, ok := job.(*ProductionJob); ok {
			if !p.retryOnError {
				return 0
			}
			return p.maxRetries
		}
		w, ok := job.(interface{ Unwrap() Job })
		if !ok {
			return 0
		}
		job = w.Unwrap()
	}
}

// GetJobStatus returns status information for all jobs, ordered by name
func (m *ProductionJobManager) GetJobStatus(ctx context.Context) ([]JobStatus, error) {
	jobs := m.GetJobs()
	statuses := make([]JobStatus, 0, len(jobs))

	for _, job := range jobs {
		jobName := job.Name()
		isLocked, err := m.IsJobLocked(ctx, jobName)
		if err != nil {
			return nil, fmt.Errorf("failed to check lock status for job %s: %w", jobName, err)
		}

		status := JobStatus{
			Name:       jobName,
			Schedule:   job.Schedule(),
			IsLocked:   isLocked,
			MaxRetries: maxRetries(job),
		}
		if next, ok := m.nextRun(jobName); ok {
			status.NextRun = &next
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}
