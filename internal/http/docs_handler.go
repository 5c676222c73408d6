package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
	"opsdesk/internal/service"
)

// DocsHandler routes /docs/*: the four-level troubleshooting tree. Step
// writes feed the search projection; deletes are logical.
type DocsHandler struct {
	docs      repository.DocsRepository
	projector service.ProjectionEnqueuer
	healthy   service.HealthSource
	logger    *zap.Logger
}

func NewDocsHandler(docs repository.DocsRepository, projector service.ProjectionEnqueuer, healthy service.HealthSource, logger *zap.Logger) *DocsHandler {
	return &DocsHandler{docs: docs, projector: projector, healthy: healthy, logger: logger}
}

func (h *DocsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/docs/")
	level, rest, _ := strings.Cut(path, "/")
	if strings.Contains(rest, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch level {
	case "categories":
		h.serveCategories(w, r, rest)
	case "subcategories":
		h.serveSubcategories(w, r, rest)
	case "subsubcategories":
		h.serveSubSubcategories(w, r, rest)
	case "steps":
		h.serveSteps(w, r, rest)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createNodeRequest struct {
	Name             string `json:"name"`
	CategoryID       string `json:"category_id,omitempty"`
	SubcategoryID    string `json:"subcategory_id,omitempty"`
	SubSubcategoryID string `json:"subsubcategory_id,omitempty"`
}

func (h *DocsHandler) serveCategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case id == "" && r.Method == http.MethodGet:
		categories, err := h.docs.ListCategories(r.Context())
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	case id == "" && r.Method == http.MethodPost:
		var req createNodeRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		category, err := h.docs.CreateCategory(r.Context(), req.Name)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	case id != "" && r.Method == http.MethodDelete:
		tombstones, err := h.docs.DeleteCategory(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		h.tombstoneSteps(tombstones)
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// tombstoneSteps drops steps orphaned by a node delete from the search index.
func (h *DocsHandler) tombstoneSteps(tombstones []repository.StepTombstone) {
	for _, ts := range tombstones {
		h.projector.Enqueue(domain.EntityDocStep, ts.StepID, ts.Version, true)
	}
}

func (h *DocsHandler) serveSubcategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case id != "" && r.Method == http.MethodGet:
		subcategories, err := h.docs.ListSubcategories(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subcategories": subcategories})
	case id == "" && r.Method == http.MethodPost:
		var req createNodeRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		subcategory, err := h.docs.CreateSubcategory(r.Context(), req.CategoryID, req.Name)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusCreated, subcategory)
	case id != "" && r.Method == http.MethodDelete:
		tombstones, err := h.docs.DeleteSubcategory(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		h.tombstoneSteps(tombstones)
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DocsHandler) serveSubSubcategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case id != "" && r.Method == http.MethodGet:
		subsubs, err := h.docs.ListSubSubcategories(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subsubcategories": subsubs})
	case id == "" && r.Method == http.MethodPost:
		var req createNodeRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		subsub, err := h.docs.CreateSubSubcategory(r.Context(), req.SubcategoryID, req.Name)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusCreated, subsub)
	case id != "" && r.Method == http.MethodDelete:
		tombstones, err := h.docs.DeleteSubSubcategory(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		h.tombstoneSteps(tombstones)
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DocsHandler) serveSteps(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case id != "" && r.Method == http.MethodGet:
		steps, err := h.docs.ListSteps(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
	case id == "" && r.Method == http.MethodPost:
		var step domain.Step
		if err := readBodyJSON(r, 1<<20, &step); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		created, err := h.docs.CreateStep(r.Context(), &step)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		h.projector.Enqueue(domain.EntityDocStep, created.StepID, created.Version, false)
		writeJSON(w, http.StatusCreated, created)
	case id != "" && r.Method == http.MethodDelete:
		deleted, err := h.docs.DeleteStep(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, h.healthy, err)
			return
		}
		h.projector.Enqueue(domain.EntityDocStep, deleted.StepID, deleted.Version, true)
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
