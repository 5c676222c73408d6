package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
)

// errorBody uniform error payload. Retryable marks version conflicts, which
// clients resolve by re-reading and retrying. Backends carries the health
// snapshot on 503 responses.
type errorBody struct {
	Error     string           `json:"error"`
	Retryable bool             `json:"retryable,omitempty"`
	Backends  *health.Snapshot `json:"backends,omitempty"`
}

// writeError maps domain error kinds to HTTP statuses. Unknown errors are
// logged and come back as opaque 500s.
func writeError(w http.ResponseWriter, logger *zap.Logger, healthy interface{ Snapshot() health.Snapshot }, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Retryable: true})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrBackendUnavailable):
		body := errorBody{Error: err.Error()}
		if healthy != nil {
			snap := healthy.Snapshot()
			body.Backends = &snap
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
	default:
		// A raw driver error during a known relational outage is the outage.
		if healthy != nil {
			if snap := healthy.Snapshot(); !snap.Relational {
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "system of record unavailable", Backends: &snap})
				return
			}
		}
		logger.Error("Unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
