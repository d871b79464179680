package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
)

// Pinger is any dependency that can report whether it is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the state of the service's dependencies
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
	log     *logger.Logger
}

// NewHealthHandler creates a health handler over the named checks
func NewHealthHandler(checks map[string]Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, log: log}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth returns service health status
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			h.log.FromContext(ctx).Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "healthy" {
		apperrors.ServiceUnavailable("one or more dependencies are unavailable").WriteJSON(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
