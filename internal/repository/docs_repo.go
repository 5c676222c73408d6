package repository

import (
	"context"

	"opsdesk/internal/domain"
)

// StepTombstone identifies a live step orphaned by a parent delete. Its
// version is bumped by the delete so the projection tombstone supersedes the
// indexed document.
type StepTombstone struct {
	StepID  string
	Version int64
}

// DocsRepository data access for the troubleshooting docs tree. Parent
// references are immutable; there are no move operations. Deletes are
// logical: the row keeps its children, the API stops reaching them. Node
// deletes return tombstone refs for every live step underneath so callers
// can drop them from the search index.
type DocsRepository interface {
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) ([]StepTombstone, error)

	// CreateSubcategory fails with ErrNotFound when the parent is missing or
	// logically deleted.
	CreateSubcategory(ctx context.Context, categoryID, name string) (*domain.Subcategory, error)
	ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error)
	DeleteSubcategory(ctx context.Context, subcategoryID string) ([]StepTombstone, error)

	CreateSubSubcategory(ctx context.Context, subcategoryID, name string) (*domain.SubSubcategory, error)
	ListSubSubcategories(ctx context.Context, subcategoryID string) ([]*domain.SubSubcategory, error)
	DeleteSubSubcategory(ctx context.Context, subSubcategoryID string) ([]StepTombstone, error)

	CreateStep(ctx context.Context, step *domain.Step) (*domain.Step, error)
	GetStep(ctx context.Context, stepID string) (*domain.Step, error)
	ListSteps(ctx context.Context, subSubcategoryID string) ([]*domain.Step, error)
	// DeleteStep bumps the version so the projection can tombstone it.
	// Returns the deleted step at its new version.
	DeleteStep(ctx context.Context, stepID string) (*domain.Step, error)
}
