package jobs

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cricmirror/core/pkg/database"
	"github.com/cricmirror/core/pkg/handlers"
	"github.com/cricmirror/core/pkg/jobs"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
	"github.com/cricmirror/core/pkg/runlog"
)

// Manager is the part of *jobs.ProductionJobManager the handler needs
type Manager interface {
	GetJobStatus(ctx context.Context) ([]jobs.JobStatus, error)
	Job(name string) (jobs.Job, bool)
	Dispatch(name, runID string) (string, error)
}

// ToggleStore persists the per-job emergency switches
type ToggleStore interface {
	ListJobToggles(ctx context.Context) (map[string]database.JobToggle, error)
	SetJobEnabled(ctx context.Context, jobKey string, enabled bool) error
}

// RunLister reads run summaries
type RunLister interface {
	ListRuns(ctx context.Context, jobKey string, limit int) ([]runlog.Run, error)
}

type Handler struct {
	manager   Manager
	toggles   ToggleStore
	runs      RunLister
	validator *validator.Validate
	logger    *logger.Logger
}

func NewHandler(manager Manager, toggles ToggleStore, runs RunLister, log *logger.Logger) *Handler {
	return &Handler{
		manager:   manager,
		toggles:   toggles,
		runs:      runs,
		validator: handlers.NewValidator(),
		logger:    log,
	}
}

// List handles GET /api/jobs
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses, err := h.manager.GetJobStatus(ctx)
	if err != nil {
		h.logger.Error().Err(err).Str("action", "list_jobs_failed").Msg("Failed to read job status")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read job status")
		return
	}

	toggles, err := h.toggles.ListJobToggles(ctx)
	if err != nil {
		h.logger.Error().Err(err).Str("action", "list_toggles_failed").Msg("Failed to read job toggles")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read job toggles")
		return
	}

	response := make([]api.JobResponse, 0, len(statuses))
	for _, status := range statuses {
		job := api.JobResponse{
			Key:      status.Name,
			Schedule: status.Schedule,
			Enabled:  true,
			IsLocked: status.IsLocked,
			NextRun:  status.NextRun,
		}
		if toggle, ok := toggles[status.Name]; ok {
			job.Enabled = toggle.Enabled
		}

		// a missing last run only leaves the fields empty
		last, err := h.runs.ListRuns(ctx, status.Name, 1)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_name", status.Name).Str("action", "last_run_failed").Msg("Failed to read last run")
		} else if len(last) > 0 {
			job.LastRunID = last[0].RunID
			job.LastRunStatus = last[0].Status
			startedAt := last[0].StartedAt
			job.LastRunAt = &startedAt
		}
		response = append(response, job)
	}

	handlers.WriteData(w, r, response, map[string]any{"total": len(response)})
}

// Toggle handles PUT /api/jobs/{key}/toggle
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if _, ok := h.manager.Job(key); !ok {
		handlers.WriteError(w, r, http.StatusNotFound, "unknown job "+key)
		return
	}

	var req api.JobToggleRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		handlers.WriteValidationError(w, r, err)
		return
	}

	if err := h.toggles.SetJobEnabled(ctx, key, *req.Enabled); err != nil {
		h.logger.Error().Err(err).Str("job_name", key).Str("action", "toggle_job_failed").Msg("Failed to toggle job")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to toggle job")
		return
	}

	h.logger.Info().
		Str("action", "job_toggled").
		Str("job_name", key).
		Bool("enabled", *req.Enabled).
		Msg("Job toggle updated")

	handlers.WriteData(w, r, database.JobToggle{JobKey: key, Enabled: *req.Enabled}, nil)
}

// Run handles POST /api/jobs/{key}/run. The job is queued under a fresh run id and
// still goes through admission.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	runID, err := h.manager.Dispatch(key, "")
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		handlers.WriteError(w, r, http.StatusNotFound, "unknown job "+key)
		return
	case errors.Is(err, jobs.ErrDispatchDropped):
		handlers.WriteError(w, r, http.StatusServiceUnavailable, "worker pool is full, try again later")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("job_name", key).Str("action", "manual_dispatch_failed").Msg("Failed to dispatch job")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to dispatch job")
		return
	}

	h.logger.Info().
		Str("action", "manual_dispatch").
		Str("job_name", key).
		Str("run_id", runID).
		Msg("Job dispatched from admin API")

	handlers.WriteJSON(w, r, http.StatusAccepted, api.Response{
		Success: true,
		Data:    api.DispatchResponse{JobKey: key, RunID: runID},
	})
}
