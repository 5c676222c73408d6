package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
	"opsdesk/internal/service"
)

// InstallationsHandler routes /installations/* and /technicians.
type InstallationsHandler struct {
	lifecycle   service.LifecycleService
	technicians repository.TechniciansRepository
	healthy     service.HealthSource
	logger      *zap.Logger
}

func NewInstallationsHandler(lifecycle service.LifecycleService, technicians repository.TechniciansRepository, healthy service.HealthSource, logger *zap.Logger) *InstallationsHandler {
	return &InstallationsHandler{lifecycle: lifecycle, technicians: technicians, healthy: healthy, logger: logger}
}

var jobEvents = map[string]domain.Event{
	"start":  domain.EventStart,
	"finish": domain.EventFinish,
}

func (h *InstallationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/installations":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.listJobs(w, r)
	case strings.HasPrefix(r.URL.Path, "/installations/"):
		h.serveJob(w, r, strings.TrimPrefix(r.URL.Path, "/installations/"))
	case r.URL.Path == "/technicians":
		switch r.Method {
		case http.MethodGet:
			h.listTechnicians(w, r)
		case http.MethodPost:
			h.createTechnician(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *InstallationsHandler) serveJob(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getJob(w, r, id)
	case action == "schedule" && r.Method == http.MethodPost:
		h.scheduleJob(w, r, id)
	default:
		event, ok := jobEvents[action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.transitionJob(w, r, id, event)
	}
}

func (h *InstallationsHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.JobFilters{
		Status:       domain.InstallationStatus(q.Get("status")),
		TechnicianID: q.Get("technician"),
		LeadID:       q.Get("lead"),
	}
	jobs, total, err := h.lifecycle.ListJobs(r.Context(), filter,
		parseInt(q.Get("limit"), 50), parseInt(q.Get("offset"), 0))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": total})
}

func (h *InstallationsHandler) getJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.lifecycle.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type scheduleJobRequest struct {
	Version            int64  `json:"version"`
	Date               string `json:"date"` // 2006-01-02 or RFC3339
	TechnicianID       string `json:"technician_id,omitempty"`
	RescheduleDeadline string `json:"reschedule_deadline,omitempty"`
}

func parseDayOrTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *InstallationsHandler) scheduleJob(w http.ResponseWriter, r *http.Request, id string) {
	var req scheduleJobRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	sched := service.ScheduleRequest{TechnicianID: req.TechnicianID}
	if req.Date != "" {
		date, err := parseDayOrTime(req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid date"})
			return
		}
		sched.Date = date
	}
	if req.RescheduleDeadline != "" {
		deadline, err := parseDayOrTime(req.RescheduleDeadline)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid reschedule_deadline"})
			return
		}
		sched.RescheduleDeadline = deadline
	}

	job, err := h.lifecycle.ScheduleJob(r.Context(), id, req.Version, sched, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *InstallationsHandler) transitionJob(w http.ResponseWriter, r *http.Request, id string, event domain.Event) {
	var req transitionRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	job, err := h.lifecycle.TransitionJob(r.Context(), id, req.Version, event, UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *InstallationsHandler) listTechnicians(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	technicians, err := h.technicians.ListTechnicians(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"technicians": technicians})
}

func (h *InstallationsHandler) createTechnician(w http.ResponseWriter, r *http.Request) {
	var tech domain.Technician
	if err := readBodyJSON(r, 1<<20, &tech); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if _, err := h.technicians.CreateTechnician(r.Context(), &tech); err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusCreated, tech)
}
