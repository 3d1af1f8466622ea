package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cricmirror/core/pkg/database/pool"
	"github.com/cricmirror/core/pkg/handlers"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	logger *logger.Logger
	db     Pinger
}

// NewHandler creates a new health handler. db may be nil.
func NewHandler(log *logger.Logger, db Pinger) *Handler {
	return &Handler{
		logger: log,
		db:     db,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.db.Ping(ctx)
		cancel()

		response.Checks = map[string]string{"database": "ok"}
		if err != nil {
			h.logger.Warn().
				Err(err).
				Str("action", "health_check_db_failed").
				Msg("Database ping failed")
			response.Status = "degraded"
			response.Checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if p, ok := h.db.(*pgxpool.Pool); ok {
		stats := pool.GetStats(p)
		response.Pool = &stats
	}

	handlers.WriteJSON(w, r, status, response)

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("remote_addr", r.RemoteAddr).
		Int("status_code", status).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
