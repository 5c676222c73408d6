package projector

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
	"opsdesk/internal/search"
)

// Source fetches the current authoritative projection of an entity from the
// system of record. ErrNotFound means the entity is gone and the projection
// becomes a tombstone.
type Source interface {
	FetchDoc(ctx context.Context, entityType, id string) (*domain.SearchDoc, error)
}

// Sink is the search-index side. search.ErrStaleVersion from Upsert counts as
// success: the index already converged past this version.
type Sink interface {
	Upsert(ctx context.Context, doc *domain.SearchDoc) error
}

// StatusReporter receives opportunistic availability updates from worker
// attempts. Satisfied by *health.Monitor.
type StatusReporter interface {
	Report(backend health.Backend, ok bool)
}

// Options tune the worker pool. Zero values get sane defaults.
type Options struct {
	Workers     int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type key struct {
	entityType string
	id         string
}

type task struct {
	version    int64
	tombstone  bool
	enqueuedAt time.Time
}

// Stats is a point-in-time view of propagation lag.
type Stats struct {
	QueueDepth       int           `json:"queue_depth"`
	InFlight         int           `json:"in_flight"`
	OldestPendingAge time.Duration `json:"oldest_pending_age"`
}

// Projector keeps the search index eventually consistent with the relational
// store. Mutations enqueue {entityType, id, version} after their relational
// write commits; workers re-fetch the authoritative record and upsert it with
// external versioning. A newer version enqueued for the same id supersedes any
// older pending or in-flight task. Retries back off exponentially up to
// MaxBackoff and never give up: projection is best-effort and must self-heal
// once an outage ends.
type Projector struct {
	source   Source
	sink     Sink
	reporter StatusReporter
	logger   *zap.Logger

	workers     int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu       sync.Mutex
	pending  map[key]task
	inflight map[key]bool

	wake chan struct{}
}

func New(source Source, sink Sink, reporter StatusReporter, opts Options, logger *zap.Logger) *Projector {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Projector{
		source:      source,
		sink:        sink,
		reporter:    reporter,
		logger:      logger,
		workers:     opts.Workers,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		pending:     make(map[key]task),
		inflight:    make(map[key]bool),
		wake:        make(chan struct{}, 64),
	}
}

// Enqueue registers a projection task. Callers never block: if an older
// version of the same entity is already queued, the newer version replaces it
// (the queue keeps at most one task per id, at the highest version seen).
func (p *Projector) Enqueue(entityType, id string, version int64, tombstone bool) {
	k := key{entityType: entityType, id: id}

	p.mu.Lock()
	cur, ok := p.pending[k]
	if !ok || version > cur.version {
		enqueuedAt := time.Now()
		if ok {
			enqueuedAt = cur.enqueuedAt // lag counts from the first unprojected write
		}
		p.pending[k] = task{version: version, tombstone: tombstone, enqueuedAt: enqueuedAt}
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run starts the worker pool and blocks until ctx is done.
func (p *Projector) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

// Stats reports queue depth and the age of the oldest unprojected write.
func (p *Projector) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{QueueDepth: len(p.pending), InFlight: len(p.inflight)}
	now := time.Now()
	for _, t := range p.pending {
		if age := now.Sub(t.enqueuedAt); age > s.OldestPendingAge {
			s.OldestPendingAge = age
		}
	}
	return s
}

// Drain processes everything currently queued and returns once the queue and
// all in-flight work are empty, or ctx expires. Test and shutdown helper.
func (p *Projector) Drain(ctx context.Context) error {
	for {
		p.mu.Lock()
		empty := len(p.pending) == 0 && len(p.inflight) == 0
		p.mu.Unlock()
		if empty {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (p *Projector) worker(ctx context.Context) {
	for {
		k, t, ok := p.take()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		p.process(ctx, k, t)
		p.release(k)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Projector) take() (key, task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, t := range p.pending {
		if p.inflight[k] {
			continue
		}
		delete(p.pending, k)
		p.inflight[k] = true
		return k, t, true
	}
	return key{}, task{}, false
}

func (p *Projector) release(k key) {
	p.mu.Lock()
	delete(p.inflight, k)
	requeued := false
	if _, ok := p.pending[k]; ok {
		requeued = true
	}
	p.mu.Unlock()

	if requeued {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// superseded reports whether a strictly newer version for the same id has been
// enqueued since this task was taken.
func (p *Projector) superseded(k key, version int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.pending[k]
	return ok && cur.version > version
}

func (p *Projector) process(ctx context.Context, k key, t task) {
	backoff := p.baseBackoff

	for {
		if ctx.Err() != nil {
			// Shutting down: put the task back so a restart replays it.
			p.requeue(k, t)
			return
		}
		if p.superseded(k, t.version) {
			return
		}

		doc, err := p.fetch(ctx, k, t)
		if err != nil {
			p.logger.Warn("Projection fetch failed, will retry",
				zap.String("entity_type", k.entityType),
				zap.String("entity_id", k.id),
				zap.Error(err),
			)
			if !p.sleep(ctx, &backoff) {
				p.requeue(k, t)
				return
			}
			continue
		}

		// The re-fetched record is authoritative; it may already carry a
		// version newer than the task's. Projecting it satisfies both.
		err = p.sink.Upsert(ctx, doc)
		if err == nil || errors.Is(err, search.ErrStaleVersion) {
			p.report(health.BackendSearch, true)
			return
		}

		p.report(health.BackendSearch, false)
		p.logger.Warn("Projection upsert failed, will retry",
			zap.String("entity_type", k.entityType),
			zap.String("entity_id", k.id),
			zap.Int64("version", doc.Version),
			zap.Error(err),
		)
		if !p.sleep(ctx, &backoff) {
			p.requeue(k, t)
			return
		}
	}
}

func (p *Projector) fetch(ctx context.Context, k key, t task) (*domain.SearchDoc, error) {
	if t.tombstone {
		return &domain.SearchDoc{
			EntityType: k.entityType,
			EntityID:   k.id,
			Version:    t.version,
			UpdatedAt:  time.Now().UTC(),
			Deleted:    true,
		}, nil
	}

	doc, err := p.source.FetchDoc(ctx, k.entityType, k.id)
	if errors.Is(err, domain.ErrNotFound) {
		// Row vanished between enqueue and fetch: project a tombstone rather
		// than leaving a ghost behind.
		return &domain.SearchDoc{
			EntityType: k.entityType,
			EntityID:   k.id,
			Version:    t.version,
			UpdatedAt:  time.Now().UTC(),
			Deleted:    true,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Projector) requeue(k key, t task) {
	p.mu.Lock()
	cur, ok := p.pending[k]
	if !ok || t.version > cur.version {
		p.pending[k] = t
	}
	p.mu.Unlock()
}

// sleep waits out the current backoff, doubling it up to the cap. Returns
// false when ctx ended first.
func (p *Projector) sleep(ctx context.Context, backoff *time.Duration) bool {
	timer := time.NewTimer(*backoff)
	defer timer.Stop()

	if next := *backoff * 2; next <= p.maxBackoff {
		*backoff = next
	} else {
		*backoff = p.maxBackoff
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Projector) report(backend health.Backend, ok bool) {
	if p.reporter != nil {
		p.reporter.Report(backend, ok)
	}
}
