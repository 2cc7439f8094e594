package http

import (
	"net/http"

	"github.com/go-chi/render"

	"fintools/internal/services"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	health *services.HealthService
}

// NewHealthHandler creates the handler over the health service.
func NewHealthHandler(health *services.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Check serves GET /api/health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.health.Check())
}
