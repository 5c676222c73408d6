package repository

import (
	"context"
	"time"

	"opsdesk/internal/domain"
)

// LeadsRepository data access for sales leads. Status changes go through
// UpdateLeadStatus, a check-and-set write keyed by (id, expectedVersion), so
// concurrent transitions race safely.
type LeadsRepository interface {
	CreateLead(ctx context.Context, lead *domain.Lead) (string, error)

	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)

	// ListLeads supports the pipeline views: filter by status/owner, free-text
	// match on company/contact/email.
	ListLeads(ctx context.Context, filter LeadFilters, limit, offset int) ([]*domain.Lead, int, error)

	// ListIdleSince returns open leads (contacted or qualified) untouched since
	// cutoff, for the follow-up sweep.
	ListIdleSince(ctx context.Context, cutoff time.Time) ([]*domain.Lead, error)

	// UpdateLeadStatus performs the atomic transition write. Returns
	// domain.ErrVersionConflict when expectedVersion lost the race and
	// domain.ErrNotFound when the lead does not exist. lossReason is persisted
	// only for transitions into lost.
	UpdateLeadStatus(ctx context.Context, leadID string, expectedVersion int64, status domain.LeadStatus, lossReason string) (*domain.Lead, error)
}

// LeadFilters list filtering options.
type LeadFilters struct {
	Status      domain.LeadStatus // optional
	OwnerUserID string            // optional
	Query       string            // optional, matches company_name/contact_name/email
}
