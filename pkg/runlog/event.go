package runlog

import (
	"context"
	"time"
)

// Status classifies a run event
type Status string

const (
	StatusUnset   Status = ""
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Valid reports whether s is a known status, including unset
func (s Status) Valid() bool {
	switch s {
	case StatusUnset, StatusInfo, StatusSuccess, StatusWarning, StatusError:
		return true
	}
	return false
}

// Well known actions
const (
	ActionJobStarted   = "job_started"
	ActionJobCompleted = "job_completed"
	ActionJobSkipped   = "job_skipped"
)

// Event is one persisted row of a run timeline
type Event struct {
	ID        int64          `json:"id,omitempty"`
	RunID     string         `json:"run_id"`
	JobKey    string         `json:"job_key"`
	Action    string         `json:"action"`
	Status    Status         `json:"status,omitempty"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Run summarises the events sharing one run id
type Run struct {
	RunID      string    `json:"run_id"`
	JobKey     string    `json:"job_key"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	EventCount int       `json:"event_count"`
}

// Appender persists run events
type Appender interface {
	AppendRunEvent(ctx context.Context, event Event) error
}

// EventStore is the full run event persistence surface
type EventStore interface {
	Appender
	// ListRuns returns the most recent runs, newest first. Empty jobKey matches all jobs.
	ListRuns(ctx context.Context, jobKey string, limit int) ([]Run, error)
	// RunEvents returns the timeline of one run ordered oldest first.
	RunEvents(ctx context.Context, runID string) ([]Event, error)
	// DeleteRunEventsBefore removes events created before cutoff.
	DeleteRunEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TerminalStatus returns the status of the last job_completed event, otherwise the
// status of the last event. events must be ordered oldest first.
func TerminalStatus(events []Event) Status {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Action == ActionJobCompleted {
			return events[i].Status
		}
	}
	if len(events) == 0 {
		return StatusUnset
	}
	return events[len(events)-1].Status
}

// Progress converts done/total into a percentage clamped to [0, 100].
func Progress(done, total int) int {
	if total <= 0 {
		return 0
	}
	pct := done * 100 / total
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
