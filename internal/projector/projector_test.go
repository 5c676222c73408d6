package projector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
	"opsdesk/internal/search"
)

// fakeSource serves docs from a map keyed "entityType:id".
type fakeSource struct {
	mu   sync.Mutex
	docs map[string]*domain.SearchDoc
	err  error
}

func (f *fakeSource) set(doc *domain.SearchDoc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = make(map[string]*domain.SearchDoc)
	}
	f.docs[doc.DocID()] = doc
}

func (f *fakeSource) FetchDoc(ctx context.Context, entityType, id string) (*domain.SearchDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[entityType+":"+id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, domain.ErrNotFound)
	}
	c := *doc
	return &c, nil
}

// fakeSink records upserts and enforces external versioning like the real
// index does: an upsert at or below the stored version is stale.
type fakeSink struct {
	mu      sync.Mutex
	stored  map[string]*domain.SearchDoc
	fail    bool
	upserts int
}

func (f *fakeSink) Upsert(ctx context.Context, doc *domain.SearchDoc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.fail {
		return fmt.Errorf("%w: index down", domain.ErrBackendUnavailable)
	}
	if f.stored == nil {
		f.stored = make(map[string]*domain.SearchDoc)
	}
	if cur, ok := f.stored[doc.DocID()]; ok && cur.Version >= doc.Version {
		return search.ErrStaleVersion
	}
	c := *doc
	f.stored[doc.DocID()] = &c
	return nil
}

func (f *fakeSink) get(docID string) *domain.SearchDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[docID]
}

func (f *fakeSink) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []bool
}

func (f *fakeReporter) Report(backend health.Backend, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, ok)
}

func newTestProjector(source Source, sink Sink, reporter StatusReporter) *Projector {
	return New(source, sink, reporter, Options{
		Workers:     2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}, zap.NewNop())
}

func drain(t *testing.T, p *Projector) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
}

func TestProjectorProjectsEnqueuedDoc(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	source.set(&domain.SearchDoc{EntityType: domain.EntityLead, EntityID: "l1", Version: 1, Title: "Acme"})

	p := newTestProjector(source, sink, &fakeReporter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(domain.EntityLead, "l1", 1, false)
	drain(t, p)

	got := sink.get("lead:l1")
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.Version)
	require.Equal(t, "Acme", got.Title)
}

func TestProjectorSupersedesStaleVersions(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	// The relational store is already at version 3 when the workers run.
	source.set(&domain.SearchDoc{EntityType: domain.EntityLead, EntityID: "l1", Version: 3, Title: "v3"})

	p := newTestProjector(source, sink, &fakeReporter{})

	// Enqueue an old and a new version before any worker starts: only the
	// highest survives in the queue.
	p.Enqueue(domain.EntityLead, "l1", 1, false)
	p.Enqueue(domain.EntityLead, "l1", 3, false)
	require.Equal(t, 1, p.Stats().QueueDepth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	drain(t, p)

	got := sink.get("lead:l1")
	require.NotNil(t, got)
	require.Equal(t, int64(3), got.Version)
}

func TestProjectorStaleUpsertCountsAsSuccess(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	source.set(&domain.SearchDoc{EntityType: domain.EntityOffer, EntityID: "o1", Version: 2})
	// Index already converged past what the source serves.
	require.NoError(t, sink.Upsert(context.Background(), &domain.SearchDoc{EntityType: domain.EntityOffer, EntityID: "o1", Version: 5}))

	reporter := &fakeReporter{}
	p := newTestProjector(source, sink, reporter)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(domain.EntityOffer, "o1", 2, false)
	drain(t, p)

	// The stale upsert did not dent the stored doc and reported search healthy.
	require.Equal(t, int64(5), sink.get("offer:o1").Version)
	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	require.NotEmpty(t, reporter.reports)
	require.True(t, reporter.reports[len(reporter.reports)-1])
}

func TestProjectorRetriesThroughOutage(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	source.set(&domain.SearchDoc{EntityType: domain.EntityLead, EntityID: "l1", Version: 2, Title: "survives"})
	sink.setFail(true)

	p := newTestProjector(source, sink, &fakeReporter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(domain.EntityLead, "l1", 2, false)

	// Let a few attempts fail, then end the outage.
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.upserts >= 2
	}, 5*time.Second, time.Millisecond)
	sink.setFail(false)

	drain(t, p)
	got := sink.get("lead:l1")
	require.NotNil(t, got)
	require.Equal(t, "survives", got.Title)
}

func TestProjectorTombstonesDeletes(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}

	p := newTestProjector(source, sink, &fakeReporter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(domain.EntityDocStep, "s1", 4, true)
	drain(t, p)

	got := sink.get("doc_step:s1")
	require.NotNil(t, got)
	require.True(t, got.Deleted)
	require.Equal(t, int64(4), got.Version)
}

func TestProjectorTombstonesVanishedRows(t *testing.T) {
	source := &fakeSource{} // nothing in the source: every fetch is ErrNotFound
	sink := &fakeSink{}

	p := newTestProjector(source, sink, &fakeReporter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(domain.EntityLead, "gone", 7, false)
	drain(t, p)

	got := sink.get("lead:gone")
	require.NotNil(t, got)
	require.True(t, got.Deleted)
}

func TestProjectorStatsTrackLag(t *testing.T) {
	p := newTestProjector(&fakeSource{}, &fakeSink{}, nil)
	// No workers running: tasks sit in the queue.
	p.Enqueue(domain.EntityLead, "l1", 1, false)
	p.Enqueue(domain.EntityLead, "l2", 1, false)

	time.Sleep(5 * time.Millisecond)
	stats := p.Stats()
	require.Equal(t, 2, stats.QueueDepth)
	require.Equal(t, 0, stats.InFlight)
	require.Greater(t, stats.OldestPendingAge, time.Duration(0))
}
