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

// MemoryOffersRepository in-memory OffersRepository for tests. AcceptOffer
// keeps the Postgres contract: the status write and the job insert succeed or
// fail together.
type MemoryOffersRepository struct {
	mu     sync.RWMutex
	offers map[string]*domain.Offer

	// jobs is shared with MemoryInstallationsRepository so AcceptOffer can
	// insert into the same store the installations side reads from.
	jobs *MemoryInstallationsRepository
}

func NewMemoryOffersRepository(jobs *MemoryInstallationsRepository) *MemoryOffersRepository {
	return &MemoryOffersRepository{offers: make(map[string]*domain.Offer), jobs: jobs}
}

var _ OffersRepository = (*MemoryOffersRepository)(nil)

func cloneOffer(o *domain.Offer) *domain.Offer {
	c := *o
	c.Items = append([]domain.OfferItem(nil), o.Items...)
	return &c
}

func (r *MemoryOffersRepository) CreateOffer(ctx context.Context, offer *domain.Offer) (string, error) {
	if offer.LeadID == "" {
		return "", fmt.Errorf("%w: lead_id is required", domain.ErrValidation)
	}
	if offer.OfferID == "" {
		offer.OfferID = uuid.NewString()
	}
	if offer.Status == "" {
		offer.Status = domain.OfferDraft
	}
	now := time.Now().UTC()
	offer.Version = 1
	offer.CreatedAt = now
	offer.UpdatedAt = now
	for i := range offer.Items {
		if offer.Items[i].ItemID == "" {
			offer.Items[i].ItemID = uuid.NewString()
		}
		offer.Items[i].OfferID = offer.OfferID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.OfferID] = cloneOffer(offer)
	return offer.OfferID, nil
}

func (r *MemoryOffersRepository) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrNotFound)
	}
	return cloneOffer(offer), nil
}

func (r *MemoryOffersRepository) ListOffersByLead(ctx context.Context, leadID string) ([]*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Offer
	for _, offer := range r.offers {
		if offer.LeadID == leadID {
			out = append(out, cloneOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryOffersRepository) UpdateOfferStatus(ctx context.Context, offerID string, expectedVersion int64, status domain.OfferStatus) (*domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrNotFound)
	}
	if offer.Version != expectedVersion {
		return nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrVersionConflict)
	}
	offer.Status = status
	offer.Version++
	offer.UpdatedAt = time.Now().UTC()
	return cloneOffer(offer), nil
}

func (r *MemoryOffersRepository) AcceptOffer(ctx context.Context, offerID string, expectedVersion int64, job *domain.InstallationJob) (*domain.Offer, *domain.InstallationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	offer, ok := r.offers[offerID]
	if !ok {
		return nil, nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrNotFound)
	}
	// A stale version and a non-sent status both surface as a conflict, same
	// as the conditional UPDATE in the Postgres implementation.
	if offer.Version != expectedVersion || offer.Status != domain.OfferSent {
		return nil, nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrVersionConflict)
	}

	offer.Status = domain.OfferAccepted
	offer.Version++
	offer.UpdatedAt = time.Now().UTC()

	job.JobID = uuid.NewString()
	job.OfferID = offer.OfferID
	job.LeadID = offer.LeadID
	job.Status = domain.InstallationPending
	job.Version = 1
	job.CreatedAt = offer.UpdatedAt
	job.UpdatedAt = offer.UpdatedAt
	r.jobs.insert(job)

	return cloneOffer(offer), cloneJob(job), nil
}

func (r *MemoryOffersRepository) ListSentPastDeadline(ctx context.Context, now time.Time) ([]*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Offer
	for _, offer := range r.offers {
		if offer.Status == domain.OfferSent && offer.ValidUntil != nil && offer.ValidUntil.Before(now) {
			out = append(out, cloneOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferID < out[j].OfferID })
	return out, nil
}
