package runs

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cricmirror/core/pkg/handlers"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
	"github.com/cricmirror/core/pkg/runlog"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store reads run history
type Store interface {
	ListRuns(ctx context.Context, jobKey string, limit int) ([]runlog.Run, error)
	RunEvents(ctx context.Context, runID string) ([]runlog.Event, error)
}

type Handler struct {
	store  Store
	logger *logger.Logger
}

func NewHandler(store Store, log *logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

// List handles GET /api/runs?job=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	jobKey := r.URL.Query().Get("job")

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handlers.WriteError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), jobKey, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("action", "list_runs_failed").Msg("Failed to list runs")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []runlog.Run{}
	}

	handlers.WriteData(w, r, runs, map[string]any{"total": len(runs), "limit": limit})
}

// Timeline handles GET /api/runs/{runID}
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "runID")
	id, err := uuid.Parse(raw)
	if err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, "run id must be a UUID")
		return
	}
	runID := id.String()

	events, err := h.store.RunEvents(r.Context(), runID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Str("action", "run_timeline_failed").Msg("Failed to read run events")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read run events")
		return
	}
	if len(events) == 0 {
		handlers.WriteError(w, r, http.StatusNotFound, "run "+runID+" not found")
		return
	}

	handlers.WriteData(w, r, api.RunTimelineResponse{
		RunID:  runID,
		JobKey: events[0].JobKey,
		Status: runlog.TerminalStatus(events),
		Events: events,
	}, nil)
}
