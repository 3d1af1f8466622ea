// Package app wires configuration, storage, the Cricbuzz client and the job manager
// into a runnable process.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cricmirror/core/internal/config"
	"github.com/cricmirror/core/pkg/cache"
	"github.com/cricmirror/core/pkg/cricbuzz"
	"github.com/cricmirror/core/pkg/database"
	"github.com/cricmirror/core/pkg/database/pool"
	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/jobs"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/pausewindow"
	"github.com/cricmirror/core/pkg/server"
	"github.com/cricmirror/core/pkg/services"
)

// App holds the long-lived components of one process
type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	Pool        *pgxpool.Pool
	Store       *database.Store
	Documents   docstore.Store
	PauseWindow *pausewindow.Service
	Cricbuzz    *cricbuzz.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Manager     *jobs.ProductionJobManager

	closers []io.Closer
}

// Option customises New
type Option func(*options)

type options struct {
	poolConfig  *pool.Config
	startupJobs []string
}

// WithPoolConfig overrides the connection pool sizing
func WithPoolConfig(cfg *pool.Config) Option {
	return func(o *options) { o.poolConfig = cfg }
}

// WithStartupJobs dispatches the named jobs once when the manager starts
func WithStartupJobs(names ...string) Option {
	return func(o *options) { o.startupJobs = names }
}

// New connects to Postgres and the document store and registers every sync job.
// The scheduler is not started.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := &options{poolConfig: pool.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg, Logger: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	pgPool, err := pool.New(ctx, cfg.DatabaseURL(), o.poolConfig)
	if err != nil {
		return nil, err
	}
	a.Pool = pgPool
	a.Store = database.New(pgPool)

	log.Info().
		Str("action", "db_connected").
		Int32("max_conns", o.poolConfig.MaxConns).
		Msg("Database connection pool established")

	a.Documents, err = a.openDocuments(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.PauseWindow = pausewindow.NewService(a.Store, cache.NewMemoryCache(), pausewindow.Config{
		DefaultTimezone: cfg.App.Timezone,
	}, log)

	a.Cricbuzz = cricbuzz.NewClient(&cricbuzz.Config{
		APIKey:              cfg.Cricbuzz.APIKey,
		APIHost:             cfg.Cricbuzz.APIHost,
		BaseURL:             cfg.Cricbuzz.BaseURL,
		Timeout:             cfg.Cricbuzz.Timeout,
		RequestsPerMin:      cfg.Cricbuzz.RequestsPerMin,
		MaxRetries:          cfg.Cricbuzz.MaxRetries,
		CircuitFailureCount: uint32(max(cfg.Cricbuzz.CircuitFailureCount, 0)),
		CircuitOpenTimeout:  cfg.Cricbuzz.CircuitOpenTimeout,
		CircuitHalfOpenReqs: uint32(max(cfg.Cricbuzz.CircuitHalfOpenReqs, 0)),
	}, cricbuzz.WithMetrics(a.Metrics), cricbuzz.WithLogger(log))

	dispatcher, err := jobs.NewDispatcher(cfg.Worker.PoolSize, log, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	var lockDB database.DBTX
	if cfg.Worker.Locking {
		lockDB = pgPool
	}
	a.Manager = jobs.NewProductionJobManager(lockDB, &jobs.ProductionJobManagerConfig{
		EnableLocking: cfg.Worker.Locking,
		Gate:          jobs.NewGate(a.PauseWindow, a.Store, log, a.Metrics),
		Dispatcher:    dispatcher,
		Events:        a.Store,
		Metrics:       a.Metrics,
		Logger:        log,
		Location:      cfg.Location(),
		JobTimeout:    cfg.Worker.JobTimeout,
		StartupJobs:   o.startupJobs,
	})

	if err := RegisterJobs(a.Manager, BuildJobs(a.Cricbuzz, a.Documents, a.Store, cfg, a.Metrics)); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openDocuments(ctx context.Context) (docstore.Store, error) {
	switch a.Config.Store.Backend {
	case config.StoreFirestore:
		fs, err := docstore.NewFirestoreStore(ctx, a.Config.Store.FirestoreProjectID, a.Config.Store.FirestoreCredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, fs)
		a.Logger.Info().
			Str("action", "document_store_ready").
			Str("backend", config.StoreFirestore).
			Str("project_id", a.Config.Store.FirestoreProjectID).
			Msg("Using Firestore document store")
		return fs, nil
	default:
		return docstore.NewPostgresStore(a.Pool), nil
	}
}

// BuildJobs creates the sync jobs over their services
func BuildJobs(api services.CricbuzzAPI, docs docstore.Store, runs services.RunEventPruner, cfg *config.Config, m *metrics.Metrics) []jobs.Job {
	opts := []services.Option{services.WithMetrics(m)}

	return []jobs.Job{
		jobs.NewLiveMatchesSyncJob(services.NewMatchService(api, docs, opts...)),
		jobs.NewScorecardsSyncJob(services.NewScorecardService(api, docs, opts...)),
		jobs.NewSquadsSyncJob(services.NewSquadService(api, docs, opts...)),
		jobs.NewCommentarySyncJob(services.NewCommentaryService(api, docs, opts...)),
		jobs.NewSeriesStatsSyncJob(services.NewSeriesStatsService(api, docs, cfg.Series.IDs, opts...)),
		jobs.NewRetentionCleanupJob(services.NewRetentionService(runs, docs, services.RetentionConfig{
			RunLogDays: cfg.Retention.RunLogDays,
			MatchDays:  cfg.Retention.MatchDays,
		})),
	}
}

// retriedJobs maps jobs retried in place after a failure to their retry budget.
// Series stats run every third day, too rarely to wait for the next fire.
var retriedJobs = map[string]int{
	jobs.SeriesStatsJobKey: 2,
}

// RegisterJobs schedules built on m, with in-place retries for retriedJobs
func RegisterJobs(m *jobs.ProductionJobManager, built []jobs.Job) error {
	for _, job := range built {
		var err error
		if retries, ok := retriedJobs[job.Name()]; ok {
			err = m.RegisterJobWithRetry(job, retries)
		} else {
			err = m.RegisterJob(job)
		}
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
	}
	return nil
}

// Server builds the admin API over the app components
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		Host:           a.Config.Server.Host,
		Port:           a.Config.Server.Port,
		AllowedOrigins: a.Config.Server.CORSAllowedOrigins,
	}, server.Deps{
		DB:          a.Pool,
		PauseWindow: a.PauseWindow,
		Jobs:        a.Manager,
		Toggles:     a.Store,
		Runs:        a.Store,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
	}, a.Logger)
}

// Close releases the document store and the database pool
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn().Err(err).Str("action", "close_failed").Msg("Failed to close resource")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info().Str("action", "db_closed").Msg("Database connection pool closed")
	}
}
