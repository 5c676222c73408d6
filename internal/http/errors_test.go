package httpapi

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
)

func TestWriteErrorMapsDomainKinds(t *testing.T) {
	healthy := &staticHealth{snap: health.Snapshot{OK: true, Relational: true}}

	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"not found", fmt.Errorf("lead x: %w", domain.ErrNotFound), 404, false},
		{"illegal transition", fmt.Errorf("offer: %w", domain.ErrIllegalTransition), 409, false},
		{"version conflict", fmt.Errorf("lead x: %w", domain.ErrVersionConflict), 409, true},
		{"validation", fmt.Errorf("%w: bad input", domain.ErrValidation), 400, false},
		{"backend unavailable", fmt.Errorf("%w: es down", domain.ErrBackendUnavailable), 503, false},
		{"unknown", errors.New("boom"), 500, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zap.NewNop(), healthy, tc.err)
			require.Equal(t, tc.status, rec.Code)

			body := decodeBody[errorBody](t, rec)
			require.Equal(t, tc.retryable, body.Retryable)
		})
	}
}

func TestWriteErrorAttachesSnapshotOn503(t *testing.T) {
	healthy := &staticHealth{snap: health.Snapshot{OK: true, Relational: true, Search: false}}
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), healthy, fmt.Errorf("%w: es down", domain.ErrBackendUnavailable))

	require.Equal(t, 503, rec.Code)
	body := decodeBody[errorBody](t, rec)
	require.NotNil(t, body.Backends)
	require.True(t, body.Backends.Relational)
	require.False(t, body.Backends.Search)
}

func TestWriteErrorTreatsUnknownAsOutageWhenRelationalDown(t *testing.T) {
	healthy := &staticHealth{snap: health.Snapshot{OK: false, Relational: false, Search: true}}
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), healthy, errors.New("driver: connection refused"))

	require.Equal(t, 503, rec.Code)
	body := decodeBody[errorBody](t, rec)
	require.NotNil(t, body.Backends)
	require.False(t, body.Backends.OK)
}
