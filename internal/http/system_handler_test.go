package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/health"
	"opsdesk/internal/projector"
)

type staticStats struct {
	stats projector.Stats
}

func (s *staticStats) Stats() projector.Stats { return s.stats }

func TestHealthReportsFlatBackendFlags(t *testing.T) {
	healthy := &staticHealth{snap: health.Snapshot{OK: true, Relational: true, Search: false, Cache: true}}
	h := NewSystemHandler(healthy, &staticStats{}, nil, zap.NewNop())

	rec := doJSON(t, http.HandlerFunc(h.Health), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	require.Equal(t, true, body["ok"])
	require.Equal(t, true, body["relational"])
	require.Equal(t, false, body["search"])
	require.Equal(t, true, body["cache"])
	require.Contains(t, body, "projection")
}

func TestHealthIs503WhenRelationalDown(t *testing.T) {
	healthy := &staticHealth{snap: health.Snapshot{OK: false, Relational: false, Search: true, Cache: true}}
	h := NewSystemHandler(healthy, &staticStats{}, nil, zap.NewNop())

	rec := doJSON(t, http.HandlerFunc(h.Health), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	require.Equal(t, false, body["ok"])
	require.Equal(t, false, body["relational"])
}
