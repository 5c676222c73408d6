package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"opsdesk/internal/service"
)

// SearchHandler routes /search/*. Every endpoint is served by whichever
// query path the router picked; the response carries the path taken.
type SearchHandler struct {
	search  service.SearchService
	healthy service.HealthSource
	logger  *zap.Logger
}

func NewSearchHandler(search service.SearchService, healthy service.HealthSource, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{search: search, healthy: healthy, logger: logger}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/search/results":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.results(w, r)
	case "/search/advanced-results":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.advancedResults(w, r)
	case "/search/latest-tickets":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.latest(w, r)
	case "/search/options":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.options(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *SearchHandler) results(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.search.Results(r.Context(), q.Get("query"),
		parseInt(q.Get("limit"), 20), parseInt(q.Get("offset"), 0))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SearchHandler) advancedResults(w http.ResponseWriter, r *http.Request) {
	var req service.SearchRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	resp, err := h.search.AdvancedResults(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SearchHandler) latest(w http.ResponseWriter, r *http.Request) {
	var req service.SearchRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	resp, err := h.search.Latest(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SearchHandler) options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.search.Options(r.Context())
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}
