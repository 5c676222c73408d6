package repository

import (
	"context"
	"time"

	"opsdesk/internal/domain"
)

// OffersRepository data access for offers and their line items. AcceptOffer
// is special-cased because accepting must atomically create the installation
// job in the same transaction as the status write.
type OffersRepository interface {
	CreateOffer(ctx context.Context, offer *domain.Offer) (string, error)

	// GetOffer loads the offer with its line items.
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)

	ListOffersByLead(ctx context.Context, leadID string) ([]*domain.Offer, error)

	// UpdateOfferStatus check-and-set status write (send/reject/expire paths).
	UpdateOfferStatus(ctx context.Context, offerID string, expectedVersion int64, status domain.OfferStatus) (*domain.Offer, error)

	// AcceptOffer transitions sent -> accepted and inserts the pending
	// installation job in one transaction. The returned job carries its
	// generated id and version 1.
	AcceptOffer(ctx context.Context, offerID string, expectedVersion int64, job *domain.InstallationJob) (*domain.Offer, *domain.InstallationJob, error)

	// ListSentPastDeadline returns sent offers whose valid_until elapsed, for
	// the deadline sweep.
	ListSentPastDeadline(ctx context.Context, now time.Time) ([]*domain.Offer, error)
}
