package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lolfu/winrate-engine/internal/riot"
)

// GetRecommendations ranks champions for the named player.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		h.errorResponse(w, http.StatusBadRequest, "player name required")
		return
	}

	recs, err := h.recommendations.Recommend(r.Context(), name)
	switch {
	case err == nil:
		h.jsonResponse(w, http.StatusOK, recs)
	case errors.Is(err, riot.ErrNotFound):
		h.errorResponse(w, http.StatusNotFound, "player not found")
	case errors.Is(err, riot.ErrFatal):
		h.logger.Errorw("upstream rejected recommendation lookup", "player", name, "error", err)
		h.errorResponse(w, http.StatusBadGateway, "upstream request failed")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.errorResponse(w, http.StatusGatewayTimeout, "lookup timed out")
	default:
		h.logger.Errorw("recommendation failed", "player", name, "error", err)
		h.errorResponse(w, http.StatusInternalServerError, "internal error")
	}
}
