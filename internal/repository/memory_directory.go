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

// MemoryActivitiesRepository in-memory ActivitiesRepository for tests.
type MemoryActivitiesRepository struct {
	mu         sync.RWMutex
	activities []*domain.Activity
}

func NewMemoryActivitiesRepository() *MemoryActivitiesRepository {
	return &MemoryActivitiesRepository{}
}

var _ ActivitiesRepository = (*MemoryActivitiesRepository)(nil)

func (r *MemoryActivitiesRepository) AppendActivity(ctx context.Context, a *domain.Activity) error {
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	c := *a
	r.activities = append(r.activities, &c)
	return nil
}

func (r *MemoryActivitiesRepository) ListActivities(ctx context.Context, leadID string, limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Activity
	for i := len(r.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if r.activities[i].LeadID == leadID {
			c := *r.activities[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// MemoryTechniciansRepository in-memory TechniciansRepository for tests.
type MemoryTechniciansRepository struct {
	mu          sync.RWMutex
	technicians map[string]*domain.Technician
}

func NewMemoryTechniciansRepository() *MemoryTechniciansRepository {
	return &MemoryTechniciansRepository{technicians: make(map[string]*domain.Technician)}
}

var _ TechniciansRepository = (*MemoryTechniciansRepository)(nil)

func (r *MemoryTechniciansRepository) CreateTechnician(ctx context.Context, t *domain.Technician) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if t.TechnicianID == "" {
		t.TechnicianID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.technicians[t.TechnicianID] = &c
	return t.TechnicianID, nil
}

func (r *MemoryTechniciansRepository) GetTechnician(ctx context.Context, technicianID string) (*domain.Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.technicians[technicianID]
	if !ok {
		return nil, fmt.Errorf("technician %s: %w", technicianID, domain.ErrNotFound)
	}
	c := *t
	return &c, nil
}

func (r *MemoryTechniciansRepository) ListTechnicians(ctx context.Context, activeOnly bool) ([]*domain.Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Technician
	for _, t := range r.technicians {
		if activeOnly && !t.Active {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
