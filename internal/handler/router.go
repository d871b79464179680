package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
)

// ============ ROUTER SETUP ============

// SetupRoutes configures all HTTP routes.
// stats may be nil, in which case the admin API is not mounted.
func SetupRoutes(redirect *RedirectHandler, health *HealthHandler, stats *StatsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Fixed routes win over the link patterns by specificity
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if stats != nil {
		mux.HandleFunc("GET /api/owners/{ownerID}/stats", stats.HandleOwnerStats)
	}

	mux.HandleFunc("GET /{link}", redirect.HandleLink)
	mux.HandleFunc("GET /{prefix}/{link}", redirect.HandleOwnerLink)

	// Root and deeper paths
	mux.HandleFunc("GET /", notFound)

	return mux
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apperrors.NotFound(r.URL.Path).WriteJSON(w)
}
