package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
	"opsdesk/internal/service"
)

// SalesHandler routes /sales/*: lead pipeline, offers and the manual
// deadline sweep.
type SalesHandler struct {
	lifecycle service.LifecycleService
	sweep     service.SweepService
	healthy   service.HealthSource
	logger    *zap.Logger
}

func NewSalesHandler(lifecycle service.LifecycleService, sweep service.SweepService, healthy service.HealthSource, logger *zap.Logger) *SalesHandler {
	return &SalesHandler{lifecycle: lifecycle, sweep: sweep, healthy: healthy, logger: logger}
}

// leadEvents client-facing action names for lead transitions.
var leadEvents = map[string]domain.Event{
	"contact": domain.EventContact,
	"qualify": domain.EventQualify,
	"lose":    domain.EventMarkLost,
	"convert": domain.EventConvert,
}

// offerEvents client-facing action names for offer transitions. Expiry is
// sweep-only and deliberately absent.
var offerEvents = map[string]domain.Event{
	"send":   domain.EventSend,
	"accept": domain.EventAccept,
	"reject": domain.EventReject,
}

func (h *SalesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sales")
	switch {
	case path == "/leads":
		switch r.Method {
		case http.MethodPost:
			h.createLead(w, r)
		case http.MethodGet:
			h.listLeads(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case path == "/leads/export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.exportLeads(w, r)
	case path == "/notifications/run":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.runSweep(w, r)
	case strings.HasPrefix(path, "/leads/"):
		h.serveLead(w, r, strings.TrimPrefix(path, "/leads/"))
	case strings.HasPrefix(path, "/offers/"):
		h.serveOffer(w, r, strings.TrimPrefix(path, "/offers/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// serveLead dispatches /sales/leads/{id}[/action].
func (h *SalesHandler) serveLead(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getLead(w, r, id)
	case action == "offers" && r.Method == http.MethodPost:
		h.createOffer(w, r, id)
	case action == "offers" && r.Method == http.MethodGet:
		h.listOffers(w, r, id)
	default:
		event, ok := leadEvents[action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.transitionLead(w, r, id, event)
	}
}

// serveOffer dispatches /sales/offers/{id}[/action].
func (h *SalesHandler) serveOffer(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getOffer(w, r, id)
	case action == "status" && r.Method == http.MethodPost:
		h.transitionOfferGeneric(w, r, id)
	default:
		event, ok := offerEvents[action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.transitionOffer(w, r, id, event)
	}
}

func (h *SalesHandler) createLead(w http.ResponseWriter, r *http.Request) {
	var lead domain.Lead
	if err := readBodyJSON(r, 1<<20, &lead); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	created, err := h.lifecycle.CreateLead(r.Context(), &lead, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SalesHandler) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.LeadFilters{
		Status:      domain.LeadStatus(q.Get("status")),
		OwnerUserID: q.Get("owner"),
		Query:       q.Get("q"),
	}
	leads, total, err := h.lifecycle.ListLeads(r.Context(), filter,
		parseInt(q.Get("limit"), 50), parseInt(q.Get("offset"), 0))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "total": total})
}

func (h *SalesHandler) getLead(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := h.lifecycle.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *SalesHandler) exportLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.LeadFilters{
		Status:      domain.LeadStatus(q.Get("status")),
		OwnerUserID: q.Get("owner"),
	}
	// One page bounded well above any realistic pipeline size.
	leads, _, err := h.lifecycle.ListLeads(r.Context(), filter, 10000, 0)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	data, err := generateLeadExport(leads)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}

type transitionRequest struct {
	Version    int64  `json:"version"`
	LossReason string `json:"loss_reason,omitempty"`
	Event      string `json:"event,omitempty"`
}

func (h *SalesHandler) transitionLead(w http.ResponseWriter, r *http.Request, id string, event domain.Event) {
	var req transitionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	lead, err := h.lifecycle.TransitionLead(r.Context(), id, req.Version, event, req.LossReason, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *SalesHandler) createOffer(w http.ResponseWriter, r *http.Request, leadID string) {
	var offer domain.Offer
	if err := readBodyJSON(r, 1<<20, &offer); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	offer.LeadID = leadID
	created, err := h.lifecycle.CreateOffer(r.Context(), &offer, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SalesHandler) listOffers(w http.ResponseWriter, r *http.Request, leadID string) {
	offers, err := h.lifecycle.ListOffersByLead(r.Context(), leadID)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *SalesHandler) getOffer(w http.ResponseWriter, r *http.Request, id string) {
	offer, err := h.lifecycle.GetOffer(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (h *SalesHandler) transitionOffer(w http.ResponseWriter, r *http.Request, id string, event domain.Event) {
	var req transitionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	h.transitionOfferResolved(w, r, id, event, req.Version)
}

// transitionOfferGeneric POST /sales/offers/{id}/status with {"event": ...}.
func (h *SalesHandler) transitionOfferGeneric(w http.ResponseWriter, r *http.Request, id string) {
	var req transitionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	event, ok := offerEvents[req.Event]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown offer event %q", req.Event)})
		return
	}
	h.transitionOfferResolved(w, r, id, event, req.Version)
}

func (h *SalesHandler) transitionOfferResolved(w http.ResponseWriter, r *http.Request, id string, event domain.Event, version int64) {
	offer, job, err := h.lifecycle.TransitionOffer(r.Context(), id, version, event, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	resp := map[string]any{"offer": offer}
	if job != nil {
		resp["installation_job"] = job
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SalesHandler) runSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweep.SweepNow(r.Context())
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
