package handler

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/darkodi/whatsapp-redirect/internal/errors"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/middleware"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/service"
	"github.com/darkodi/whatsapp-redirect/internal/validator"
)

// Redirector is the part of the redirect service the handler needs
type Redirector interface {
	HandleRedirect(ctx context.Context, req model.RedirectRequest) (*model.RedirectResult, error)
}

// RedirectHandler handles link visits
type RedirectHandler struct {
	service   Redirector
	validator *validator.LinkValidator
	log       *logger.Logger
}

// NewRedirectHandler creates a new handler instance
func NewRedirectHandler(svc Redirector, v *validator.LinkValidator, log *logger.Logger) *RedirectHandler {
	if v == nil {
		v = validator.NewLinkValidator()
	}
	return &RedirectHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

// ============ HANDLERS ============

// HandleLink redirects to one of the link owner's numbers
// GET /{link}
func (h *RedirectHandler) HandleLink(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, model.LinkKey{Name: r.PathValue("link")})
}

// HandleOwnerLink is HandleLink scoped to a single owner
// GET /{prefix}/{link}
func (h *RedirectHandler) HandleOwnerLink(w http.ResponseWriter, r *http.Request) {
	ownerID, appErr := h.validator.ValidateOwnerPrefix(r.PathValue("prefix"))
	if appErr != nil {
		appErr.WriteJSON(w)
		return
	}
	h.redirect(w, r, model.LinkKey{Name: r.PathValue("link"), OwnerID: &ownerID})
}

func (h *RedirectHandler) redirect(w http.ResponseWriter, r *http.Request, key model.LinkKey) {
	// Fixed routes never resolve as links
	if h.validator.IsReserved(key.Name) {
		apperrors.LinkNotFound(key.Name).WriteJSON(w)
		return
	}
	if appErr := h.validator.ValidateLinkName(key.Name); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	result, err := h.service.HandleRedirect(r.Context(), model.RedirectRequest{
		Key:       key,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			apperrors.LinkNotFound(key.String()).WriteJSON(w)
		case errors.Is(err, service.ErrNoNumbersAvailable):
			apperrors.NoNumbersAvailable(key.String()).WriteJSON(w)
		default:
			h.log.FromContext(r.Context()).Error("redirect failed", "link", key.String(), "error", err)
			apperrors.Internal("").WriteJSON(w)
		}
		return
	}

	// Browsers must come back through us so every visit is counted
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, result.Target.URL, http.StatusFound)
}
