package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cricmirror/core/pkg/runlog"
)

const appendRunEvent = `
INSERT INTO sync_run_events (run_id, job_key, action, status, message, context, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`

// AppendRunEvent inserts one run event
func (s *Store) AppendRunEvent(ctx context.Context, event runlog.Event) error {
	var payload []byte
	if len(event.Context) > 0 {
		var err error
		payload, err = json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("failed to encode run event context: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, appendRunEvent,
		event.RunID,
		event.JobKey,
		event.Action,
		string(event.Status),
		event.Message,
		payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append run event: %w", err)
	}
	return nil
}

const runEvents = `
SELECT id, run_id, job_key, action, COALESCE(status, ''), message, context, created_at
FROM sync_run_events
WHERE run_id = $1
ORDER BY created_at, id`

// RunEvents returns the timeline of one run
func (s *Store) RunEvents(ctx context.Context, runID string) ([]runlog.Event, error) {
	rows, err := s.db.Query(ctx, runEvents, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run events: %w", err)
	}
	defer rows.Close()

	var events []runlog.Event
	for rows.Next() {
		var (
			e       runlog.Event
			status  string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.JobKey, &e.Action, &status, &e.Message, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		e.Status = runlog.Status(status)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Context); err != nil {
				return nil, fmt.Errorf("failed to decode run event context: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// listRuns picks, per run, the status of the last job_completed event, even a NULL
// one, and only without such an event the status of the last event.
const listRuns = `
WITH runs AS (
    SELECT run_id,
           MIN(job_key)    AS job_key,
           MIN(created_at) AS started_at,
           MAX(created_at) AS finished_at,
           COUNT(*)        AS event_count
    FROM sync_run_events
    WHERE ($1 = '' OR job_key = $1)
    GROUP BY run_id
    ORDER BY started_at DESC
    LIMIT $2
)
SELECT r.run_id, r.job_key, r.started_at, r.finished_at, r.event_count,
       COALESCE(terminal.status, '') AS status
FROM runs r
LEFT JOIN LATERAL (
    SELECT e.status FROM sync_run_events e
    WHERE e.run_id = r.run_id
    ORDER BY (e.action = 'job_completed') DESC, e.created_at DESC, e.id DESC
    LIMIT 1
) terminal ON true
ORDER BY r.started_at DESC`

// ListRuns returns the most recent runs, optionally filtered by job
func (s *Store) ListRuns(ctx context.Context, jobKey string, limit int) ([]runlog.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, listRuns, jobKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []runlog.Run
	for rows.Next() {
		var (
			r      runlog.Run
			count  int64
			status string
		)
		if err := rows.Scan(&r.RunID, &r.JobKey, &r.StartedAt, &r.FinishedAt, &count, &status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.EventCount = int(count)
		r.Status = runlog.Status(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRunEventsBefore removes run events older than cutoff
func (s *Store) DeleteRunEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sync_run_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete run events: %w", err)
	}
	return tag.RowsAffected(), nil
}
