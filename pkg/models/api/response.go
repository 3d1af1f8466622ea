package api

import (
	"time"

	"github.com/cricmirror/core/pkg/database/pool"
	"github.com/cricmirror/core/pkg/runlog"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Pool      *pool.Stats       `json:"pool,omitempty"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// PauseWindowRequest is the body of PUT /api/pause-window
type PauseWindowRequest struct {
	Enabled   *bool  `json:"enabled" validate:"required"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04,nefield=StartTime"`
	Timezone  string `json:"timezone" validate:"required,timezone"`
}

// JobResponse describes one registered job
type JobResponse struct {
	Key           string        `json:"key"`
	Schedule      string        `json:"schedule"`
	Enabled       bool          `json:"enabled"`
	IsLocked      bool          `json:"is_locked"`
	NextRun       *time.Time    `json:"next_run,omitempty"`
	LastRunID     string        `json:"last_run_id,omitempty"`
	LastRunStatus runlog.Status `json:"last_run_status,omitempty"`
	LastRunAt     *time.Time    `json:"last_run_at,omitempty"`
}

// JobToggleRequest is the body of PUT /api/jobs/{key}/toggle
type JobToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// DispatchResponse is returned when a job is queued by hand
type DispatchResponse struct {
	JobKey string `json:"job_key"`
	RunID  string `json:"run_id"`
}

// RunTimelineResponse is the ordered event list of one run
type RunTimelineResponse struct {
	RunID  string         `json:"run_id"`
	JobKey string         `json:"job_key"`
	Status runlog.Status  `json:"status"`
	Events []runlog.Event `json:"events"`
}
