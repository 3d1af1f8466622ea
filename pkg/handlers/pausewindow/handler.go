package pausewindow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cricmirror/core/pkg/handlers"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
	"github.com/cricmirror/core/pkg/pausewindow"
)

// Service is the part of *pausewindow.Service the handler needs
type Service interface {
	Status(ctx context.Context, now time.Time) pausewindow.Status
	Update(ctx context.Context, settings pausewindow.Settings) error
}

type Handler struct {
	service   Service
	validator *validator.Validate
	logger    *logger.Logger
	now       func() time.Time
}

func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: handlers.NewValidator(),
		logger:    log,
		now:       time.Now,
	}
}

// Get handles GET /api/pause-window
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	handlers.WriteData(w, r, h.service.Status(r.Context(), h.now()), nil)
}

// Update handles PUT /api/pause-window
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.PauseWindowRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		handlers.WriteValidationError(w, r, err)
		return
	}

	settings, err := toSettings(req)
	if err != nil {
		handlers.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.service.Update(ctx, settings); err != nil {
		if errors.Is(err, pausewindow.ErrInvalidSettings) {
			handlers.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error().
			Err(err).
			Str("action", "pause_window_update_failed").
			Msg("Failed to save pause window settings")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to save pause window settings")
		return
	}

	handlers.WriteData(w, r, h.service.Status(ctx, h.now()), nil)
}

func toSettings(req api.PauseWindowRequest) (pausewindow.Settings, error) {
	start, err := pausewindow.ParseClock(req.StartTime)
	if err != nil {
		return pausewindow.Settings{}, err
	}
	end, err := pausewindow.ParseClock(req.EndTime)
	if err != nil {
		return pausewindow.Settings{}, err
	}
	return pausewindow.Settings{
		Enabled:      *req.Enabled,
		StartMinutes: start,
		EndMinutes:   end,
		Timezone:     req.Timezone,
	}, nil
}
