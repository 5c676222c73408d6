package health

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Backend names the three backing stores the monitor tracks.
type Backend string

const (
	BackendRelational Backend = "relational"
	BackendSearch     Backend = "search"
	BackendCache      Backend = "cache"
)

// Snapshot is the process-wide availability signal. OK mirrors the relational
// store only: search and cache are optional for correctness, they buy
// completeness and speed.
type Snapshot struct {
	OK         bool      `json:"ok"`
	Relational bool      `json:"relational"`
	Search     bool      `json:"search"`
	Cache      bool      `json:"cache"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Pinger probes one backend with a bounded timeout.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain probe function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Monitor keeps the last-known availability of the three stores, refreshed by
// a periodic probe loop and opportunistically by Report calls from request
// paths. Readers never block: the snapshot is an atomically swapped immutable
// struct, stale by at most the probe interval.
type Monitor struct {
	relational Pinger
	search     Pinger
	cache      Pinger

	interval time.Duration
	timeout  time.Duration

	snap   atomic.Pointer[Snapshot]
	logger *zap.Logger
}

func NewMonitor(relational, search, cache Pinger, interval, timeout time.Duration, logger *zap.Logger) *Monitor {
	m := &Monitor{
		relational: relational,
		search:     search,
		cache:      cache,
		interval:   interval,
		timeout:    timeout,
		logger:     logger,
	}
	// Pessimistic until the first probe completes.
	m.snap.Store(&Snapshot{CheckedAt: time.Now()})
	return m
}

// Snapshot returns the current composite availability. Cheap enough for every
// request path.
func (m *Monitor) Snapshot() Snapshot {
	return *m.snap.Load()
}

// Run probes immediately, then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe refreshes all three backends and swaps in a new snapshot.
func (m *Monitor) Probe(ctx context.Context) {
	prev := m.snap.Load()
	next := &Snapshot{
		Relational: m.ping(ctx, m.relational),
		Search:     m.ping(ctx, m.search),
		Cache:      m.ping(ctx, m.cache),
		CheckedAt:  time.Now(),
	}
	next.OK = next.Relational
	m.snap.Store(next)

	if prev.Relational != next.Relational || prev.Search != next.Search || prev.Cache != next.Cache {
		m.logger.Info("Backend availability changed",
			zap.Bool("relational", next.Relational),
			zap.Bool("search", next.Search),
			zap.Bool("cache", next.Cache),
		)
	}
}

// Report updates one backend's state from the outcome of a caller's own
// operation, without waiting for the next probe tick.
func (m *Monitor) Report(backend Backend, ok bool) {
	for {
		prev := m.snap.Load()
		next := *prev
		switch backend {
		case BackendRelational:
			next.Relational = ok
		case BackendSearch:
			next.Search = ok
		case BackendCache:
			next.Cache = ok
		default:
			return
		}
		next.OK = next.Relational
		next.CheckedAt = time.Now()
		if m.snap.CompareAndSwap(prev, &next) {
			return
		}
	}
}

func (m *Monitor) ping(ctx context.Context, p Pinger) bool {
	if p == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := p.Ping(probeCtx); err != nil {
		return false
	}
	return true
}
