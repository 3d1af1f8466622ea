package pausewindow

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cricmirror/core/pkg/cache"
	"github.com/cricmirror/core/pkg/logger"
)

const cacheKey = "pause_window_settings"

// SettingsStore persists the singleton pause window record.
type SettingsStore interface {
	LoadPauseWindow(ctx context.Context) (Settings, error)
	SavePauseWindow(ctx context.Context, settings Settings) error
}

// Config holds service tuning
type Config struct {
	CacheTTL        time.Duration // How long loaded settings are served from cache
	DefaultTimezone string        // Zone of the fallback window
	LoadTimeout     time.Duration // Upper bound on a single storage read
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		CacheTTL:        60 * time.Second,
		DefaultTimezone: "UTC",
		LoadTimeout:     3 * time.Second,
	}
}

type resolved struct {
	settings Settings
	loc      *time.Location
}

// Service answers "should background work run right now". None of its read methods
// fail: unusable configuration resolves to the default window.
type Service struct {
	store  SettingsStore
	cache  cache.Cache
	cfg    Config
	logger *logger.Logger
	group  singleflight.Group

	// generation moves on every invalidation; a load only caches what it read
	// if no invalidation happened meanwhile
	generation atomic.Uint64
}

// NewService creates a pause window service over store, caching through c
func NewService(store SettingsStore, c cache.Cache, cfg Config, log *logger.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = defaults.DefaultTimezone
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaults.LoadTimeout
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if log == nil {
		log = logger.New("pause-window")
	}

	return &Service{
		store:  store,
		cache:  c,
		cfg:    cfg,
		logger: log,
	}
}

// Current returns the effective settings, loading them on a cache miss.
func (s *Service) Current(ctx context.Context) Settings {
	return s.resolve(ctx).settings
}

// IsPaused reports whether now falls inside the configured window.
func (s *Service) IsPaused(ctx context.Context, now time.Time) bool {
	r := s.resolve(ctx)
	return r.settings.PausedAt(wholeSecond(now), r.loc)
}

// SecondsUntilResume is 0 when not paused.
func (s *Service) SecondsUntilResume(ctx context.Context, now time.Time) int64 {
	r := s.resolve(ctx)
	return r.settings.SecondsUntilResume(wholeSecond(now), r.loc)
}

// NextPauseAt returns the next window opening; ok is false when the window is disabled.
func (s *Service) NextPauseAt(ctx context.Context, now time.Time) (time.Time, bool) {
	r := s.resolve(ctx)
	return r.settings.NextPauseAt(wholeSecond(now), r.loc)
}

// NextResumeAt returns the next window close; ok is false when the window is disabled.
func (s *Service) NextResumeAt(ctx context.Context, now time.Time) (time.Time, bool) {
	r := s.resolve(ctx)
	return r.settings.NextResumeAt(wholeSecond(now), r.loc)
}

// RefreshCache drops the cached settings so the next read goes to storage.
func (s *Service) RefreshCache(_ context.Context) {
	s.generation.Add(1)
	s.cache.Forget(cacheKey)
	s.group.Forget(cacheKey)
}

// Update validates and persists new settings, then invalidates the cache.
func (s *Service) Update(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.store.SavePauseWindow(ctx, settings); err != nil {
		return err
	}
	s.RefreshCache(ctx)

	s.logger.Info().
		Str("action", "pause_window_updated").
		Bool("enabled", settings.Enabled).
		Str("start_time", settings.StartTime()).
		Str("end_time", settings.EndTime()).
		Str("timezone", settings.Timezone).
		Msg("Pause window settings updated")

	return nil
}

// Status is the snapshot shown on the admin status page
type Status struct {
	Enabled            bool       `json:"enabled"`
	StartTime          string     `json:"start_time"`
	EndTime            string     `json:"end_time"`
	Timezone           string     `json:"timezone"`
	Paused             bool       `json:"paused"`
	SecondsUntilResume int64      `json:"seconds_until_resume"`
	NextPauseAt        *time.Time `json:"next_pause_at"`
	NextResumeAt       *time.Time `json:"next_resume_at"`
	CheckedAt          time.Time  `json:"checked_at"`
}

// Status computes every derived value from a single settings read.
func (s *Service) Status(ctx context.Context, now time.Time) Status {
	r := s.resolve(ctx)
	now = wholeSecond(now)

	status := Status{
		Enabled:            r.settings.Enabled,
		StartTime:          r.settings.StartTime(),
		EndTime:            r.settings.EndTime(),
		Timezone:           r.settings.Timezone,
		Paused:             r.settings.PausedAt(now, r.loc),
		SecondsUntilResume: r.settings.SecondsUntilResume(now, r.loc),
		CheckedAt:          now.In(r.loc),
	}
	if at, ok := r.settings.NextPauseAt(now, r.loc); ok {
		status.NextPauseAt = &at
	}
	if at, ok := r.settings.NextResumeAt(now, r.loc); ok {
		status.NextResumeAt = &at
	}
	return status
}

// wholeSecond drops sub-second precision so that NextResumeAt equals
// now + SecondsUntilResume for every reading. Window edges are whole minutes, so
// no paused decision changes.
func wholeSecond(now time.Time) time.Time {
	return now.Truncate(time.Second)
}

func (s *Service) resolve(ctx context.Context) resolved {
	if cached, ok := s.cache.Get(cacheKey); ok {
		if r, ok := cached.(resolved); ok {
			return r
		}
	}

	v, _, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		return s.load(ctx), nil
	})
	return v.(resolved)
}

// load reads storage once. Only valid records are cached so a recovering
// database is picked up on the next call, and a read that raced an Update is
// returned to its callers but not cached.
func (s *Service) load(ctx context.Context) resolved {
	gen := s.generation.Load()

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
	defer cancel()

	settings, err := s.store.LoadPauseWindow(loadCtx)
	if err != nil {
		reason := "storage_error"
		if errors.Is(err, ErrNotFound) {
			reason = "not_found"
		}
		return s.fallback(reason, err)
	}

	if err := settings.Validate(); err != nil {
		return s.fallback("invalid_settings", err)
	}

	loc, _ := time.LoadLocation(settings.Timezone)
	r := resolved{settings: settings, loc: loc}
	if s.generation.Load() == gen {
		s.cache.Set(cacheKey, r, s.cfg.CacheTTL)
		// an invalidation landing between the check and the Set
		if s.generation.Load() != gen {
			s.cache.Forget(cacheKey)
		}
	}
	return r
}

func (s *Service) fallback(reason string, err error) resolved {
	settings := DefaultSettings(s.cfg.DefaultTimezone)
	loc, locErr := time.LoadLocation(settings.Timezone)
	if locErr != nil {
		settings.Timezone = "UTC"
		loc = time.UTC
	}

	s.logger.Warn().
		Err(err).
		Str("action", "pause_window_fallback").
		Str("reason", reason).
		Str("start_time", settings.StartTime()).
		Str("end_time", settings.EndTime()).
		Str("timezone", settings.Timezone).
		Msg("Using default pause window")

	return resolved{settings: settings, loc: loc}
}
