package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type togglePinger struct {
	mu  sync.Mutex
	err error
}

func (p *togglePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *togglePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func newTestMonitor(relational, search, cache Pinger) *Monitor {
	return NewMonitor(relational, search, cache, time.Second, 100*time.Millisecond, zap.NewNop())
}

func TestMonitorPessimisticBeforeFirstProbe(t *testing.T) {
	m := newTestMonitor(&togglePinger{}, &togglePinger{}, &togglePinger{})
	snap := m.Snapshot()
	require.False(t, snap.OK)
	require.False(t, snap.Relational)
}

func TestMonitorProbeAllHealthy(t *testing.T) {
	m := newTestMonitor(&togglePinger{}, &togglePinger{}, &togglePinger{})
	m.Probe(context.Background())

	snap := m.Snapshot()
	require.True(t, snap.OK)
	require.True(t, snap.Relational)
	require.True(t, snap.Search)
	require.True(t, snap.Cache)
}

func TestMonitorOKMirrorsRelationalOnly(t *testing.T) {
	search := &togglePinger{err: errors.New("search down")}
	cache := &togglePinger{err: errors.New("cache down")}
	m := newTestMonitor(&togglePinger{}, search, cache)
	m.Probe(context.Background())

	snap := m.Snapshot()
	require.True(t, snap.OK, "search and cache outages must not fail the health check")
	require.False(t, snap.Search)
	require.False(t, snap.Cache)

	relational := &togglePinger{err: errors.New("db down")}
	m2 := newTestMonitor(relational, &togglePinger{}, &togglePinger{})
	m2.Probe(context.Background())
	require.False(t, m2.Snapshot().OK)
}

func TestMonitorReportFlipsSingleBackend(t *testing.T) {
	m := newTestMonitor(&togglePinger{}, &togglePinger{}, &togglePinger{})
	m.Probe(context.Background())

	m.Report(BackendSearch, false)
	snap := m.Snapshot()
	require.False(t, snap.Search)
	require.True(t, snap.Relational)
	require.True(t, snap.OK)

	m.Report(BackendSearch, true)
	require.True(t, m.Snapshot().Search)

	m.Report(BackendRelational, false)
	require.False(t, m.Snapshot().OK)
}

func TestMonitorRecoversOnNextProbe(t *testing.T) {
	search := &togglePinger{err: errors.New("down")}
	m := newTestMonitor(&togglePinger{}, search, &togglePinger{})
	m.Probe(context.Background())
	require.False(t, m.Snapshot().Search)

	search.set(nil)
	m.Probe(context.Background())
	require.True(t, m.Snapshot().Search)
}
