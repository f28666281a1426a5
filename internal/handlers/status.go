package handlers

import "net/http"

// GetCrawlStatus reports frontier counts for the running crawl.
func (h *Handler) GetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.crawl.Status())
}
