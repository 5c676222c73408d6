package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
	"opsdesk/internal/repository"
)

type docsFixture struct {
	repo     *repository.MemoryDocsRepository
	enqueuer *recordingEnqueuer
	handler  *DocsHandler
}

func newDocsFixture(t *testing.T) *docsFixture {
	t.Helper()
	f := &docsFixture{
		repo:     repository.NewMemoryDocsRepository(),
		enqueuer: &recordingEnqueuer{},
	}
	healthy := &staticHealth{snap: health.Snapshot{OK: true, Relational: true, Search: true, Cache: true}}
	f.handler = NewDocsHandler(f.repo, f.enqueuer, healthy, zap.NewNop())
	return f
}

func (f *docsFixture) seedStep(t *testing.T) (categoryID string, step *domain.Step) {
	t.Helper()
	ctx := context.Background()
	cat, err := f.repo.CreateCategory(ctx, "Heat Pumps")
	require.NoError(t, err)
	sub, err := f.repo.CreateSubcategory(ctx, cat.CategoryID, "Installation")
	require.NoError(t, err)
	subsub, err := f.repo.CreateSubSubcategory(ctx, sub.SubcategoryID, "Outdoor Unit")
	require.NoError(t, err)
	step, err = f.repo.CreateStep(ctx, &domain.Step{
		SubSubcategoryID: subsub.SubSubcategoryID,
		Title:            "Mount the bracket",
	})
	require.NoError(t, err)
	return cat.CategoryID, step
}

func (f *docsFixture) tombstonesFor(id string) []enqueuedDoc {
	var out []enqueuedDoc
	for _, rec := range f.enqueuer.records {
		if rec.tombstone && rec.id == id {
			out = append(out, rec)
		}
	}
	return out
}

func TestDeleteStepEnqueuesTombstone(t *testing.T) {
	f := newDocsFixture(t)
	_, step := f.seedStep(t)

	rec := doJSON(t, f.handler, http.MethodDelete, "/docs/steps/"+step.StepID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tombs := f.tombstonesFor(step.StepID)
	require.Len(t, tombs, 1)
	require.Equal(t, domain.EntityDocStep, tombs[0].entityType)
	require.Equal(t, step.Version+1, tombs[0].version)
}

func TestDeleteCategoryTombstonesSubtreeStepsInIndex(t *testing.T) {
	f := newDocsFixture(t)
	categoryID, step := f.seedStep(t)

	rec := doJSON(t, f.handler, http.MethodDelete, "/docs/categories/"+categoryID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The step under the deleted category gets a superseding tombstone, so it
	// stops surfacing in index-backed search.
	tombs := f.tombstonesFor(step.StepID)
	require.Len(t, tombs, 1)
	require.Equal(t, domain.EntityDocStep, tombs[0].entityType)
	require.Greater(t, tombs[0].version, step.Version)

	// And the relational view agrees: the orphaned step resolves as gone.
	_, err := f.repo.GetStep(context.Background(), step.StepID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}
