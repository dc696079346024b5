// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"blogapi/internal/apperr"
	"blogapi/internal/render"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(context.Context) error
}

// Handler serves /health and /ready. DB may be nil when no database is
// configured.
type Handler struct {
	DB Pinger
}

// Liveness handles GET /health.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) error {
	return render.JSON(w, http.StatusOK, struct{}{})
}

// Readiness handles GET /ready.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			return apperr.Wrap(err, http.StatusServiceUnavailable, "database unavailable")
		}
	}
	return render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
