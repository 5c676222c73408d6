package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// MemoryLeadsRepository in-memory LeadsRepository for tests and local runs
// without a database. Semantics mirror the Postgres implementation, including
// check-and-set failures.
type MemoryLeadsRepository struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
}

func NewMemoryLeadsRepository() *MemoryLeadsRepository {
	return &MemoryLeadsRepository{leads: make(map[string]*domain.Lead)}
}

var _ LeadsRepository = (*MemoryLeadsRepository)(nil)

func cloneLead(l *domain.Lead) *domain.Lead {
	c := *l
	return &c
}

func (r *MemoryLeadsRepository) CreateLead(ctx context.Context, lead *domain.Lead) (string, error) {
	if strings.TrimSpace(lead.CompanyName) == "" {
		return "", fmt.Errorf("%w: company_name is required", domain.ErrValidation)
	}
	if lead.LeadID == "" {
		lead.LeadID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadNew
	}
	now := time.Now().UTC()
	lead.Version = 1
	lead.CreatedAt = now
	lead.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[lead.LeadID] = cloneLead(lead)
	return lead.LeadID, nil
}

func (r *MemoryLeadsRepository) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
	}
	return cloneLead(lead), nil
}

func (r *MemoryLeadsRepository) ListLeads(ctx context.Context, filter LeadFilters, limit, offset int) ([]*domain.Lead, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var matched []*domain.Lead
	for _, lead := range r.leads {
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		if filter.OwnerUserID != "" && lead.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(lead.CompanyName), q) &&
				!strings.Contains(strings.ToLower(lead.ContactName), q) &&
				!strings.Contains(strings.ToLower(lead.Email), q) {
				continue
			}
		}
		matched = append(matched, cloneLead(lead))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryLeadsRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Lead
	for _, lead := range r.leads {
		if lead.Status != domain.LeadContacted && lead.Status != domain.LeadQualified {
			continue
		}
		if lead.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, cloneLead(lead))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryLeadsRepository) UpdateLeadStatus(ctx context.Context, leadID string, expectedVersion int64, status domain.LeadStatus, lossReason string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
	}
	if lead.Version != expectedVersion {
		return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrVersionConflict)
	}

	lead.Status = status
	if status == domain.LeadLost && lossReason != "" {
		lead.LossReason = lossReason
	}
	lead.Version++
	lead.UpdatedAt = time.Now().UTC()
	return cloneLead(lead), nil
}
