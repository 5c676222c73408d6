package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"opsdesk/internal/projector"
	"opsdesk/internal/service"
)

// ProjectorStats exposes projection queue counters.
type ProjectorStats interface {
	Stats() projector.Stats
}

// SystemHandler /health and /kpi/summary.
type SystemHandler struct {
	healthy service.HealthSource
	stats   ProjectorStats
	kpi     service.KPIService
	logger  *zap.Logger
}

func NewSystemHandler(healthy service.HealthSource, stats ProjectorStats, kpi service.KPIService, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{healthy: healthy, stats: stats, kpi: kpi, logger: logger}
}

// Health reports the backend snapshot and projection lag. 200 while the
// system of record is reachable, 503 otherwise; a degraded search or cache
// backend does not fail the check.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := h.healthy.Snapshot()
	status := http.StatusOK
	if !snap.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ok":         snap.OK,
		"relational": snap.Relational,
		"search":     snap.Search,
		"cache":      snap.Cache,
		"checked_at": snap.CheckedAt,
		"projection": h.stats.Stats(),
	})
}

func (h *SystemHandler) KPISummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := h.kpi.Summary(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, h.healthy, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
