package handlers

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/adapters/http/dto"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	pool *pgxpool.Pool
}

func NewHealthHandler(pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			dto.Error(w, "数据库不可用", "INTERNAL_ERROR", http.StatusServiceUnavailable)
			return
		}
		status["database"] = "ok"
	}
	dto.Success(w, status, "")
}
