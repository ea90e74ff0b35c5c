package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/pkg/logger"
)

// TargetResolver resolves an inbound short code to a redirect target.
type TargetResolver interface {
	Resolve(ctx context.Context, code, referrer string) (*models.ResolvedTarget, error)
}

// RedirectHandler handles GET /{code} redirect requests.
type RedirectHandler struct {
	resolver TargetResolver
	log      *logger.Logger
}

// NewRedirectHandler creates a RedirectHandler.
func NewRedirectHandler(resolver TargetResolver, log *logger.Logger) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, log: log}
}

// Redirect resolves the code and issues a permanent redirect to the target.
// Unknown codes get the same 404 body no matter which lookup path failed.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request, code string) {
	target, err := h.resolver.Resolve(r.Context(), code, r.Referer())
	if err != nil {
		if errors.Is(err, models.ErrLinkNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "short URL not found"})
			return
		}
		h.log.Error("redirect resolution failed", "code", code, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	http.Redirect(w, r, target.FinalURL, http.StatusMovedPermanently)
}
