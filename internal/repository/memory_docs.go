package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// MemoryDocsRepository in-memory DocsRepository for tests. Logical deletes and
// parent-alive checks mirror the Postgres implementation.
type MemoryDocsRepository struct {
	mu sync.RWMutex

	categories    map[string]*domain.Category
	subcategories map[string]*domain.Subcategory
	subsubs       map[string]*domain.SubSubcategory
	steps         map[string]*domain.Step
}

func NewMemoryDocsRepository() *MemoryDocsRepository {
	return &MemoryDocsRepository{
		categories:    make(map[string]*domain.Category),
		subcategories: make(map[string]*domain.Subcategory),
		subsubs:       make(map[string]*domain.SubSubcategory),
		steps:         make(map[string]*domain.Step),
	}
}

var _ DocsRepository = (*MemoryDocsRepository)(nil)

func (r *MemoryDocsRepository) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	c := &domain.Category{
		CategoryID: uuid.NewString(),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.CategoryID] = c
	out := *c
	return &out, nil
}

func (r *MemoryDocsRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Category
	for _, c := range r.categories {
		if c.Deleted {
			continue
		}
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryDocsRepository) DeleteCategory(ctx context.Context, categoryID string) ([]StepTombstone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[categoryID]
	if !ok || c.Deleted {
		return nil, fmt.Errorf("category %s: %w", categoryID, domain.ErrNotFound)
	}
	c.Deleted = true
	return r.bumpOrphanedSteps(func(subsubID string) bool {
		ss, ok := r.subsubs[subsubID]
		if !ok {
			return false
		}
		sc, ok := r.subcategories[ss.SubcategoryID]
		return ok && sc.CategoryID == categoryID
	}), nil
}

// bumpOrphanedSteps bumps the version of every live step whose subsubcategory
// matches, mirroring the cascade in the Postgres implementation. Call with
// the lock held.
func (r *MemoryDocsRepository) bumpOrphanedSteps(under func(subsubID string) bool) []StepTombstone {
	var tombstones []StepTombstone
	now := time.Now().UTC()
	for _, s := range r.steps {
		if s.Deleted || !under(s.SubSubcategoryID) {
			continue
		}
		s.Version++
		s.UpdatedAt = now
		tombstones = append(tombstones, StepTombstone{StepID: s.StepID, Version: s.Version})
	}
	sort.Slice(tombstones, func(i, j int) bool { return tombstones[i].StepID < tombstones[j].StepID })
	return tombstones
}

func (r *MemoryDocsRepository) categoryAlive(categoryID string) bool {
	c, ok := r.categories[categoryID]
	return ok && !c.Deleted
}

func (r *MemoryDocsRepository) subcategoryAlive(subcategoryID string) bool {
	s, ok := r.subcategories[subcategoryID]
	return ok && !s.Deleted && r.categoryAlive(s.CategoryID)
}

func (r *MemoryDocsRepository) subsubAlive(subSubcategoryID string) bool {
	s, ok := r.subsubs[subSubcategoryID]
	return ok && !s.Deleted && r.subcategoryAlive(s.SubcategoryID)
}

func (r *MemoryDocsRepository) CreateSubcategory(ctx context.Context, categoryID, name string) (*domain.Subcategory, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.categoryAlive(categoryID) {
		return nil, fmt.Errorf("category %s: %w", categoryID, domain.ErrNotFound)
	}
	s := &domain.Subcategory{
		SubcategoryID: uuid.NewString(),
		CategoryID:    categoryID,
		Name:          name,
		CreatedAt:     time.Now().UTC(),
	}
	r.subcategories[s.SubcategoryID] = s
	out := *s
	return &out, nil
}

func (r *MemoryDocsRepository) ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.categoryAlive(categoryID) {
		return nil, fmt.Errorf("category %s: %w", categoryID, domain.ErrNotFound)
	}
	var out []*domain.Subcategory
	for _, s := range r.subcategories {
		if s.CategoryID != categoryID || s.Deleted {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryDocsRepository) DeleteSubcategory(ctx context.Context, subcategoryID string) ([]StepTombstone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subcategories[subcategoryID]
	if !ok || s.Deleted {
		return nil, fmt.Errorf("subcategory %s: %w", subcategoryID, domain.ErrNotFound)
	}
	s.Deleted = true
	return r.bumpOrphanedSteps(func(subsubID string) bool {
		ss, ok := r.subsubs[subsubID]
		return ok && ss.SubcategoryID == subcategoryID
	}), nil
}

func (r *MemoryDocsRepository) CreateSubSubcategory(ctx context.Context, subcategoryID, name string) (*domain.SubSubcategory, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.subcategoryAlive(subcategoryID) {
		return nil, fmt.Errorf("subcategory %s: %w", subcategoryID, domain.ErrNotFound)
	}
	s := &domain.SubSubcategory{
		SubSubcategoryID: uuid.NewString(),
		SubcategoryID:    subcategoryID,
		Name:             name,
		CreatedAt:        time.Now().UTC(),
	}
	r.subsubs[s.SubSubcategoryID] = s
	out := *s
	return &out, nil
}

func (r *MemoryDocsRepository) ListSubSubcategories(ctx context.Context, subcategoryID string) ([]*domain.SubSubcategory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.subcategoryAlive(subcategoryID) {
		return nil, fmt.Errorf("subcategory %s: %w", subcategoryID, domain.ErrNotFound)
	}
	var out []*domain.SubSubcategory
	for _, s := range r.subsubs {
		if s.SubcategoryID != subcategoryID || s.Deleted {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryDocsRepository) DeleteSubSubcategory(ctx context.Context, subSubcategoryID string) ([]StepTombstone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subsubs[subSubcategoryID]
	if !ok || s.Deleted {
		return nil, fmt.Errorf("subsubcategory %s: %w", subSubcategoryID, domain.ErrNotFound)
	}
	s.Deleted = true
	return r.bumpOrphanedSteps(func(subsubID string) bool {
		return subsubID == subSubcategoryID
	}), nil
}

func (r *MemoryDocsRepository) CreateStep(ctx context.Context, step *domain.Step) (*domain.Step, error) {
	if step.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.subsubAlive(step.SubSubcategoryID) {
		return nil, fmt.Errorf("subsubcategory %s: %w", step.SubSubcategoryID, domain.ErrNotFound)
	}
	step.StepID = uuid.NewString()
	if step.Status == "" {
		step.Status = "active"
	}
	now := time.Now().UTC()
	step.Version = 1
	step.CreatedAt = now
	step.UpdatedAt = now
	c := *step
	r.steps[step.StepID] = &c
	out := *step
	return &out, nil
}

func (r *MemoryDocsRepository) GetStep(ctx context.Context, stepID string) (*domain.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[stepID]
	if !ok || s.Deleted || !r.subsubAlive(s.SubSubcategoryID) {
		return nil, fmt.Errorf("step %s: %w", stepID, domain.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (r *MemoryDocsRepository) ListSteps(ctx context.Context, subSubcategoryID string) ([]*domain.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.subsubAlive(subSubcategoryID) {
		return nil, fmt.Errorf("subsubcategory %s: %w", subSubcategoryID, domain.ErrNotFound)
	}
	var out []*domain.Step
	for _, s := range r.steps {
		if s.SubSubcategoryID != subSubcategoryID || s.Deleted {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryDocsRepository) DeleteStep(ctx context.Context, stepID string) (*domain.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.steps[stepID]
	if !ok || s.Deleted {
		return nil, fmt.Errorf("step %s: %w", stepID, domain.ErrNotFound)
	}
	s.Deleted = true
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	c := *s
	return &c, nil
}
