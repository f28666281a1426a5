package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lolfu/winrate-engine/internal/models"
)

type rankingsQuery struct {
	Tier       string `validate:"required,alpha,max=16"`
	Position   string `validate:"required"`
	MinSamples int    `validate:"gte=0"`
}

// GetRankings lists the champions of one tier and position by their
// population estimate.
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	q := rankingsQuery{
		Tier:       strings.ToUpper(chi.URLParam(r, "tier")),
		Position:   chi.URLParam(r, "position"),
		MinSamples: h.minSamples,
	}
	if v := r.URL.Query().Get("min_samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.errorResponse(w, http.StatusBadRequest, "min_samples must be an integer")
			return
		}
		q.MinSamples = n
	}
	if err := h.validator.Struct(q); err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	pos, err := models.ParsePosition(q.Position)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rankings := h.recommendations.Rankings(q.Tier, pos, uint64(q.MinSamples))
	if rankings == nil {
		rankings = []models.ChampionEstimate{}
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"tier":        q.Tier,
		"position":    pos,
		"min_samples": q.MinSamples,
		"matches":     h.recommendations.MatchCount(),
		"champions":   rankings,
	})
}
