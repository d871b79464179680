package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
)

// AdminTokenHeader carries the admin token on API requests
const AdminTokenHeader = "X-Admin-Token"

// StatsProvider builds per-owner statistics
type StatsProvider interface {
	OwnerStats(ctx context.Context, ownerID int64, limit int) (*model.OwnerStats, error)
}

// StatsHandler serves the owner statistics API
type StatsHandler struct {
	service StatsProvider
	token   string
	log     *logger.Logger
}

// NewStatsHandler creates a stats handler guarded by token
func NewStatsHandler(svc StatsProvider, token string, log *logger.Logger) *StatsHandler {
	return &StatsHandler{service: svc, token: token, log: log}
}

// HandleOwnerStats returns statistics for one owner
// GET /api/owners/{ownerID}/stats?limit=N
func (h *StatsHandler) HandleOwnerStats(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		apperrors.Unauthorized().WriteJSON(w)
		return
	}

	ownerID, err := strconv.ParseInt(r.PathValue("ownerID"), 10, 64)
	if err != nil || ownerID <= 0 {
		apperrors.InvalidParameter("ownerID", "must be a positive integer").WriteJSON(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			apperrors.InvalidParameter("limit", "must be a non-negative integer").WriteJSON(w)
			return
		}
	}

	stats, err := h.service.OwnerStats(r.Context(), ownerID, limit)
	if err != nil {
		h.log.FromContext(r.Context()).Error("owner stats failed", "owner_id", ownerID, "error", err)
		apperrors.DatabaseError().WriteJSON(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *StatsHandler) authorized(r *http.Request) bool {
	got := r.Header.Get(AdminTokenHeader)
	if h.token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
