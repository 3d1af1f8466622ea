package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cricmirror/core/pkg/pausewindow"
)

const loadPauseWindow = `
SELECT enabled, start_minutes, end_minutes, timezone, updated_at
FROM pause_window_settings
WHERE id = 1`

const savePauseWindow = `
INSERT INTO pause_window_settings (id, enabled, start_minutes, end_minutes, timezone, updated_at)
VALUES (1, $1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
    enabled = EXCLUDED.enabled,
    start_minutes = EXCLUDED.start_minutes,
    end_minutes = EXCLUDED.end_minutes,
    timezone = EXCLUDED.timezone,
    updated_at = EXCLUDED.updated_at`

// LoadPauseWindow reads the singleton settings row
func (s *Store) LoadPauseWindow(ctx context.Context) (pausewindow.Settings, error) {
	var settings pausewindow.Settings
	err := s.db.QueryRow(ctx, loadPauseWindow).Scan(
		&settings.Enabled,
		&settings.StartMinutes,
		&settings.EndMinutes,
		&settings.Timezone,
		&settings.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pausewindow.Settings{}, pausewindow.ErrNotFound
	}
	if err != nil {
		return pausewindow.Settings{}, fmt.Errorf("failed to load pause window settings: %w", err)
	}
	return settings, nil
}

// SavePauseWindow upserts the singleton settings row
func (s *Store) SavePauseWindow(ctx context.Context, settings pausewindow.Settings) error {
	_, err := s.db.Exec(ctx, savePauseWindow,
		settings.Enabled,
		settings.StartMinutes,
		settings.EndMinutes,
		settings.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to save pause window settings: %w", err)
	}
	return nil
}

// JobToggle is the emergency on/off switch of one job
type JobToggle struct {
	JobKey    string    `json:"job_key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobEnabled reports whether jobKey may run. Jobs without a row are enabled.
func (s *Store) JobEnabled(ctx context.Context, jobKey string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM job_toggles WHERE job_key = $1`, jobKey).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read toggle for job %s: %w", jobKey, err)
	}
	return enabled, nil
}

// SetJobEnabled upserts the toggle of jobKey
func (s *Store) SetJobEnabled(ctx context.Context, jobKey string, enabled bool) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO job_toggles (job_key, enabled, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (job_key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		jobKey, enabled)
	if err != nil {
		return fmt.Errorf("failed to set toggle for job %s: %w", jobKey, err)
	}
	return nil
}

// ListJobToggles returns every stored toggle keyed by job
func (s *Store) ListJobToggles(ctx context.Context) (map[string]JobToggle, error) {
	rows, err := s.db.Query(ctx, `SELECT job_key, enabled, updated_at FROM job_toggles`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job toggles: %w", err)
	}
	defer rows.Close()

	toggles := make(map[string]JobToggle)
	for rows.Next() {
		var t JobToggle
		if err := rows.Scan(&t.JobKey, &t.Enabled, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job toggle: %w", err)
		}
		toggles[t.JobKey] = t
	}
	return toggles, rows.Err()
}
