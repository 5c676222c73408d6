package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"opsdesk/internal/domain"
)

func seedDocTree(t *testing.T, repo *MemoryDocsRepository) (*domain.Category, *domain.Subcategory, *domain.SubSubcategory, *domain.Step) {
	t.Helper()
	ctx := context.Background()

	cat, err := repo.CreateCategory(ctx, "Heat Pumps")
	require.NoError(t, err)
	sub, err := repo.CreateSubcategory(ctx, cat.CategoryID, "Installation")
	require.NoError(t, err)
	subsub, err := repo.CreateSubSubcategory(ctx, sub.SubcategoryID, "Outdoor Unit")
	require.NoError(t, err)
	step, err := repo.CreateStep(ctx, &domain.Step{
		SubSubcategoryID: subsub.SubSubcategoryID,
		Title:            "Mount the bracket",
		Description:      "Outdoor unit rattles on its bracket.",
		Solution:         "Re-seat the bracket with the supplied anchors.",
	})
	require.NoError(t, err)
	return cat, sub, subsub, step
}

func TestDocTreeCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, sub, subsub, step := seedDocTree(t, repo)

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, cat.Name, cats[0].Name)

	subs, err := repo.ListSubcategories(ctx, cat.CategoryID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, sub.SubcategoryID, subs[0].SubcategoryID)

	steps, err := repo.ListSteps(ctx, subsub.SubSubcategoryID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, step.StepID, steps[0].StepID)
	require.Equal(t, int64(1), steps[0].Version)
}

func TestDeletedCategoryHidesWholeSubtree(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, sub, subsub, step := seedDocTree(t, repo)

	_, err := repo.DeleteCategory(ctx, cat.CategoryID)
	require.NoError(t, err)

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)

	// Every level under the deleted category is unreachable, even though
	// none of the child rows were touched.
	_, err = repo.ListSubcategories(ctx, cat.CategoryID)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.ListSubSubcategories(ctx, sub.SubcategoryID)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.ListSteps(ctx, subsub.SubSubcategoryID)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetStep(ctx, step.StepID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeletedSubcategoryHidesStepsOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, sub, subsub, step := seedDocTree(t, repo)

	_, err := repo.DeleteSubcategory(ctx, sub.SubcategoryID)
	require.NoError(t, err)

	// The category itself is still listed.
	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	subs, err := repo.ListSubcategories(ctx, cat.CategoryID)
	require.NoError(t, err)
	require.Empty(t, subs)

	_, err = repo.ListSteps(ctx, subsub.SubSubcategoryID)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetStep(ctx, step.StepID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateUnderDeletedParentFails(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, sub, subsub, _ := seedDocTree(t, repo)

	_, err := repo.DeleteCategory(ctx, cat.CategoryID)
	require.NoError(t, err)

	_, err = repo.CreateSubcategory(ctx, cat.CategoryID, "Maintenance")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.CreateSubSubcategory(ctx, sub.SubcategoryID, "Indoor Unit")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.CreateStep(ctx, &domain.Step{SubSubcategoryID: subsub.SubSubcategoryID, Title: "x"})
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteCategoryTombstonesSubtreeSteps(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, _, subsub, step := seedDocTree(t, repo)

	second, err := repo.CreateStep(ctx, &domain.Step{
		SubSubcategoryID: subsub.SubSubcategoryID,
		Title:            "Check the refrigerant line",
	})
	require.NoError(t, err)

	tombstones, err := repo.DeleteCategory(ctx, cat.CategoryID)
	require.NoError(t, err)
	require.Len(t, tombstones, 2)

	// Each orphaned step comes back at a bumped version so its index
	// tombstone supersedes the projected document.
	byID := make(map[string]int64)
	for _, ts := range tombstones {
		byID[ts.StepID] = ts.Version
	}
	require.Equal(t, step.Version+1, byID[step.StepID])
	require.Equal(t, second.Version+1, byID[second.StepID])
}

func TestDeleteSubSubcategoryTombstonesOnlyItsSteps(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	cat, _, subsub, step := seedDocTree(t, repo)

	otherSub, err := repo.CreateSubcategory(ctx, cat.CategoryID, "Maintenance")
	require.NoError(t, err)
	otherSubsub, err := repo.CreateSubSubcategory(ctx, otherSub.SubcategoryID, "Filters")
	require.NoError(t, err)
	otherStep, err := repo.CreateStep(ctx, &domain.Step{
		SubSubcategoryID: otherSubsub.SubSubcategoryID,
		Title:            "Replace the filter",
	})
	require.NoError(t, err)

	tombstones, err := repo.DeleteSubSubcategory(ctx, subsub.SubSubcategoryID)
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	require.Equal(t, step.StepID, tombstones[0].StepID)

	// The sibling branch is untouched and its step stays reachable.
	got, err := repo.GetStep(ctx, otherStep.StepID)
	require.NoError(t, err)
	require.Equal(t, otherStep.Version, got.Version)
}

func TestDeleteStepBumpsVersionForTombstone(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocsRepository()
	_, _, _, step := seedDocTree(t, repo)

	deleted, err := repo.DeleteStep(ctx, step.StepID)
	require.NoError(t, err)
	require.True(t, deleted.Deleted)
	require.Equal(t, step.Version+1, deleted.Version)

	// Deleting twice is not idempotent at the repo level.
	_, err = repo.DeleteStep(ctx, step.StepID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}
