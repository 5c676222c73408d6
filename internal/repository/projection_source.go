package repository

import (
	"context"
	"fmt"
	"strings"

	"opsdesk/internal/domain"
)

// ProjectionSource builds the authoritative search projection for an entity
// from the system of record. The projection worker calls this on every
// attempt so retried tasks always project the current state, never the state
// at enqueue time.
type ProjectionSource struct {
	leads         LeadsRepository
	offers        OffersRepository
	installations InstallationsRepository
	docs          DocsRepository
}

func NewProjectionSource(leads LeadsRepository, offers OffersRepository, installations InstallationsRepository, docs DocsRepository) *ProjectionSource {
	return &ProjectionSource{leads: leads, offers: offers, installations: installations, docs: docs}
}

func (s *ProjectionSource) FetchDoc(ctx context.Context, entityType, id string) (*domain.SearchDoc, error) {
	switch entityType {
	case domain.EntityLead:
		return s.leadDoc(ctx, id)
	case domain.EntityOffer:
		return s.offerDoc(ctx, id)
	case domain.EntityInstallation:
		return s.installationDoc(ctx, id)
	case domain.EntityDocStep:
		return s.stepDoc(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, entityType)
	}
}

func (s *ProjectionSource) leadDoc(ctx context.Context, id string) (*domain.SearchDoc, error) {
	lead, err := s.leads.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.SearchDoc{
		EntityType: domain.EntityLead,
		EntityID:   lead.LeadID,
		Version:    lead.Version,
		Title:      lead.CompanyName,
		Body:       joinFields(lead.ContactName, lead.Email, lead.Phone, lead.Notes, lead.LossReason),
		Status:     string(lead.Status),
		CompanyID:  lead.CompanyID,
		OwnerID:    lead.OwnerUserID,
		UpdatedAt:  lead.UpdatedAt,
	}, nil
}

func (s *ProjectionSource) offerDoc(ctx context.Context, id string) (*domain.SearchDoc, error) {
	offer, err := s.offers.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}

	title := "Offer"
	var ownerID, companyID string
	// The owning lead always exists (FK); its absence is a transient read
	// failure, not a reason to fail the projection.
	if lead, err := s.leads.GetLead(ctx, offer.LeadID); err == nil {
		title = "Offer - " + lead.CompanyName
		ownerID = lead.OwnerUserID
		companyID = lead.CompanyID
	}

	var items []string
	for _, item := range offer.Items {
		items = append(items, item.ProductName)
	}
	return &domain.SearchDoc{
		EntityType: domain.EntityOffer,
		EntityID:   offer.OfferID,
		Version:    offer.Version,
		Title:      title,
		Body:       joinFields(offer.Notes, strings.Join(items, " ")),
		Status:     string(offer.Status),
		CompanyID:  companyID,
		OwnerID:    ownerID,
		UpdatedAt:  offer.UpdatedAt,
	}, nil
}

func (s *ProjectionSource) installationDoc(ctx context.Context, id string) (*domain.SearchDoc, error) {
	job, err := s.installations.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	title := "Installation"
	if lead, err := s.leads.GetLead(ctx, job.LeadID); err == nil {
		title = "Installation - " + lead.CompanyName
	}
	return &domain.SearchDoc{
		EntityType: domain.EntityInstallation,
		EntityID:   job.JobID,
		Version:    job.Version,
		Title:      title,
		Body:       job.Notes,
		Status:     string(job.Status),
		CompanyID:  job.CompanyID,
		OwnerID:    job.TechnicianID,
		UpdatedAt:  job.UpdatedAt,
	}, nil
}

func (s *ProjectionSource) stepDoc(ctx context.Context, id string) (*domain.SearchDoc, error) {
	step, err := s.docs.GetStep(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.SearchDoc{
		EntityType: domain.EntityDocStep,
		EntityID:   step.StepID,
		Version:    step.Version,
		Title:      step.Title,
		Body:       joinFields(step.Description, step.Solution),
		Status:     step.Status,
		UpdatedAt:  step.UpdatedAt,
	}, nil
}

func joinFields(fields ...string) string {
	parts := fields[:0]
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}
