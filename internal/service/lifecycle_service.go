package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
)

// ProjectionEnqueuer hands a committed relational write to the search
// projection pipeline.
type ProjectionEnqueuer interface {
	Enqueue(entityType, id string, version int64, tombstone bool)
}

// defaultRescheduleWindow deadline granted after the scheduled date before
// the sweep marks a job undone, when the client does not set one.
const defaultRescheduleWindow = 14 * 24 * time.Hour

// ScheduleRequest parameters of the schedule transition.
type ScheduleRequest struct {
	Date               time.Time
	TechnicianID       string    // optional
	RescheduleDeadline time.Time // optional, defaults to Date + 14 days
}

// LeadDetail lead plus its recent activity trail.
type LeadDetail struct {
	Lead       *domain.Lead       `json:"lead"`
	Activities []*domain.Activity `json:"activities"`
}

// LifecycleService owns every status mutation of leads, offers and
// installation jobs. The pattern is always the same: resolve the transition
// against the state machine, apply it as one check-and-set relational write,
// then run the side effects (projection enqueue, activity append,
// notification) best-effort. A failed side effect is logged and never rolls
// back the committed write.
type LifecycleService interface {
	CreateLead(ctx context.Context, lead *domain.Lead, actorID string) (*domain.Lead, error)
	GetLead(ctx context.Context, leadID string) (*LeadDetail, error)
	ListLeads(ctx context.Context, filter repository.LeadFilters, limit, offset int) ([]*domain.Lead, int, error)

	// TransitionLead applies event to the lead. expectedVersion 0 means
	// "current version": the service reads first, which narrows but does not
	// remove the conflict window.
	TransitionLead(ctx context.Context, leadID string, expectedVersion int64, event domain.Event, lossReason, actorID string) (*domain.Lead, error)

	CreateOffer(ctx context.Context, offer *domain.Offer, actorID string) (*domain.Offer, error)
	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
	ListOffersByLead(ctx context.Context, leadID string) ([]*domain.Offer, error)

	// TransitionOffer applies event to the offer. The accept event also
	// creates the pending installation job in the same transaction and
	// returns it; the job is nil for every other event.
	TransitionOffer(ctx context.Context, offerID string, expectedVersion int64, event domain.Event, actorID string) (*domain.Offer, *domain.InstallationJob, error)

	GetJob(ctx context.Context, jobID string) (*domain.InstallationJob, error)
	ListJobs(ctx context.Context, filter repository.JobFilters, limit, offset int) ([]*domain.InstallationJob, int, error)
	ScheduleJob(ctx context.Context, jobID string, expectedVersion int64, req ScheduleRequest, actorID string) (*domain.InstallationJob, error)
	TransitionJob(ctx context.Context, jobID string, expectedVersion int64, event domain.Event, actorID string) (*domain.InstallationJob, error)
}

type lifecycleService struct {
	leads         repository.LeadsRepository
	offers        repository.OffersRepository
	installations repository.InstallationsRepository
	technicians   repository.TechniciansRepository
	activities    repository.ActivitiesRepository

	projector ProjectionEnqueuer
	notifier  NotificationService
	calendar  CalendarUpserter // nil disables the calendar side effect

	logger *zap.Logger
}

func NewLifecycleService(
	leads repository.LeadsRepository,
	offers repository.OffersRepository,
	installations repository.InstallationsRepository,
	technicians repository.TechniciansRepository,
	activities repository.ActivitiesRepository,
	projector ProjectionEnqueuer,
	notifier NotificationService,
	calendar CalendarUpserter,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		leads:         leads,
		offers:        offers,
		installations: installations,
		technicians:   technicians,
		activities:    activities,
		projector:     projector,
		notifier:      notifier,
		calendar:      calendar,
		logger:        logger,
	}
}

// ---- leads ----

func (s *lifecycleService) CreateLead(ctx context.Context, lead *domain.Lead, actorID string) (*domain.Lead, error) {
	lead.Status = domain.LeadNew
	leadID, err := s.leads.CreateLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	s.projector.Enqueue(domain.EntityLead, leadID, lead.Version, false)
	s.appendActivity(ctx, leadID, actorID, "created", fmt.Sprintf("Lead %s created", lead.CompanyName), nil)
	return lead, nil
}

func (s *lifecycleService) GetLead(ctx context.Context, leadID string) (*LeadDetail, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activities.ListActivities(ctx, leadID, 50)
	if err != nil {
		s.logger.Warn("Listing lead activities failed", zap.String("lead_id", leadID), zap.Error(err))
		activities = nil
	}
	return &LeadDetail{Lead: lead, Activities: activities}, nil
}

func (s *lifecycleService) ListLeads(ctx context.Context, filter repository.LeadFilters, limit, offset int) ([]*domain.Lead, int, error) {
	return s.leads.ListLeads(ctx, filter, limit, offset)
}

func (s *lifecycleService) TransitionLead(ctx context.Context, leadID string, expectedVersion int64, event domain.Event, lossReason, actorID string) (*domain.Lead, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	next, err := domain.NextLeadStatus(lead.Status, event)
	if err != nil {
		return nil, err
	}
	if next == domain.LeadLost && lossReason == "" {
		return nil, fmt.Errorf("%w: loss_reason is required to mark a lead lost", domain.ErrValidation)
	}
	if expectedVersion == 0 {
		expectedVersion = lead.Version
	}

	prev := lead.Status
	updated, err := s.leads.UpdateLeadStatus(ctx, leadID, expectedVersion, next, lossReason)
	if err != nil {
		return nil, err
	}

	s.projector.Enqueue(domain.EntityLead, leadID, updated.Version, false)
	s.appendStatusActivity(ctx, leadID, actorID, string(prev), string(next))

	switch next {
	case domain.LeadContacted:
		s.notify(ctx, updated.OwnerUserID, domain.NotifyLeadContacted,
			fmt.Sprintf("Lead %s marked contacted", updated.CompanyName), domain.EntityLead, leadID)
	case domain.LeadLost:
		s.notify(ctx, updated.OwnerUserID, domain.NotifyLeadLost,
			fmt.Sprintf("Lead %s lost: %s", updated.CompanyName, lossReason), domain.EntityLead, leadID)
	}
	return updated, nil
}

// ---- offers ----

func (s *lifecycleService) CreateOffer(ctx context.Context, offer *domain.Offer, actorID string) (*domain.Offer, error) {
	lead, err := s.leads.GetLead(ctx, offer.LeadID)
	if err != nil {
		return nil, err
	}
	if !domain.CanCreateOffer(lead) {
		return nil, fmt.Errorf("%w: cannot create an offer for a lost lead", domain.ErrIllegalTransition)
	}

	offer.Status = domain.OfferDraft
	offerID, err := s.offers.CreateOffer(ctx, offer)
	if err != nil {
		return nil, err
	}

	s.projector.Enqueue(domain.EntityOffer, offerID, offer.Version, false)
	s.appendActivity(ctx, offer.LeadID, actorID, "offer_created",
		fmt.Sprintf("Offer %s drafted", offerID), nil)
	return offer, nil
}

func (s *lifecycleService) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	return s.offers.GetOffer(ctx, offerID)
}

func (s *lifecycleService) ListOffersByLead(ctx context.Context, leadID string) ([]*domain.Offer, error) {
	return s.offers.ListOffersByLead(ctx, leadID)
}

func (s *lifecycleService) TransitionOffer(ctx context.Context, offerID string, expectedVersion int64, event domain.Event, actorID string) (*domain.Offer, *domain.InstallationJob, error) {
	offer, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	next, err := domain.NextOfferStatus(offer.Status, event)
	if err != nil {
		return nil, nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = offer.Version
	}

	var updated *domain.Offer
	var job *domain.InstallationJob
	if event == domain.EventAccept {
		// Accept atomically creates the pending installation job.
		updated, job, err = s.offers.AcceptOffer(ctx, offerID, expectedVersion, &domain.InstallationJob{})
	} else {
		updated, err = s.offers.UpdateOfferStatus(ctx, offerID, expectedVersion, next)
	}
	if err != nil {
		return nil, nil, err
	}

	s.projector.Enqueue(domain.EntityOffer, offerID, updated.Version, false)
	if job != nil {
		s.projector.Enqueue(domain.EntityInstallation, job.JobID, job.Version, false)
	}
	s.appendActivity(ctx, updated.LeadID, actorID, "offer_"+string(event),
		fmt.Sprintf("Offer %s: %s", offerID, next), nil)

	lead, leadErr := s.leads.GetLead(ctx, updated.LeadID)
	if leadErr != nil {
		s.logger.Warn("Loading lead for offer notification failed",
			zap.String("offer_id", offerID), zap.Error(leadErr))
		return updated, job, nil
	}
	switch next {
	case domain.OfferSent:
		s.notify(ctx, lead.OwnerUserID, domain.NotifyOfferSent,
			fmt.Sprintf("Offer sent to %s", lead.CompanyName), domain.EntityOffer, offerID)
	case domain.OfferRejected:
		s.notify(ctx, lead.OwnerUserID, domain.NotifyOfferRejected,
			fmt.Sprintf("Offer rejected by %s", lead.CompanyName), domain.EntityOffer, offerID)
	case domain.OfferExpired:
		s.notify(ctx, lead.OwnerUserID, domain.NotifyOfferExpired,
			fmt.Sprintf("Offer for %s expired", lead.CompanyName), domain.EntityOffer, offerID)
	}
	return updated, job, nil
}

// ---- installation jobs ----

func (s *lifecycleService) GetJob(ctx context.Context, jobID string) (*domain.InstallationJob, error) {
	return s.installations.GetJob(ctx, jobID)
}

func (s *lifecycleService) ListJobs(ctx context.Context, filter repository.JobFilters, limit, offset int) ([]*domain.InstallationJob, int, error) {
	return s.installations.ListJobs(ctx, filter, limit, offset)
}

func (s *lifecycleService) ScheduleJob(ctx context.Context, jobID string, expectedVersion int64, req ScheduleRequest, actorID string) (*domain.InstallationJob, error) {
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required to schedule a job", domain.ErrValidation)
	}
	if req.TechnicianID != "" {
		if _, err := s.technicians.GetTechnician(ctx, req.TechnicianID); err != nil {
			return nil, fmt.Errorf("technician %s: %w", req.TechnicianID, domain.ErrValidation)
		}
	}
	deadline := req.RescheduleDeadline
	if deadline.IsZero() {
		deadline = req.Date.Add(defaultRescheduleWindow)
	}

	job, err := s.installations.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	next, err := domain.NextInstallationStatus(job.Status, domain.EventSchedule)
	if err != nil {
		return nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = job.Version
	}

	updated, err := s.installations.UpdateJobStatus(ctx, jobID, expectedVersion, next, &repository.JobSchedule{
		Date:               req.Date,
		TechnicianID:       req.TechnicianID,
		RescheduleDeadline: deadline,
	})
	if err != nil {
		return nil, err
	}

	s.projector.Enqueue(domain.EntityInstallation, jobID, updated.Version, false)
	s.appendActivity(ctx, updated.LeadID, actorID, "job_scheduled",
		fmt.Sprintf("Installation scheduled for %s", req.Date.Format("2006-01-02")), nil)
	s.notifyJob(ctx, updated, domain.NotifyJobScheduled,
		fmt.Sprintf("Installation scheduled for %s", req.Date.Format("2006-01-02")))
	if updated.TechnicianID != "" {
		s.notify(ctx, updated.TechnicianID, domain.NotifyJobScheduled,
			fmt.Sprintf("Installation assigned for %s", req.Date.Format("2006-01-02")),
			domain.EntityInstallation, updated.JobID)
	}
	s.upsertCalendarEvent(ctx, updated)
	return updated, nil
}

func (s *lifecycleService) TransitionJob(ctx context.Context, jobID string, expectedVersion int64, event domain.Event, actorID string) (*domain.InstallationJob, error) {
	if event == domain.EventSchedule {
		return nil, fmt.Errorf("%w: schedule requires a date", domain.ErrValidation)
	}

	job, err := s.installations.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	next, err := domain.NextInstallationStatus(job.Status, event)
	if err != nil {
		return nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = job.Version
	}

	updated, err := s.installations.UpdateJobStatus(ctx, jobID, expectedVersion, next, nil)
	if err != nil {
		return nil, err
	}

	s.projector.Enqueue(domain.EntityInstallation, jobID, updated.Version, false)
	s.appendActivity(ctx, updated.LeadID, actorID, "job_"+string(event),
		fmt.Sprintf("Installation job %s: %s", jobID, next), nil)

	switch next {
	case domain.InstallationDone:
		s.notifyJob(ctx, updated, domain.NotifyJobDone, "Installation completed")
	case domain.InstallationUndone:
		s.notifyJob(ctx, updated, domain.NotifyJobUndone, "Installation missed its reschedule deadline")
	}
	return updated, nil
}

// ---- side effects ----

func (s *lifecycleService) appendActivity(ctx context.Context, leadID, actorID, activityType, content string, meta json.RawMessage) {
	err := s.activities.AppendActivity(ctx, &domain.Activity{
		LeadID:  leadID,
		UserID:  actorID,
		Type:    activityType,
		Content: content,
		Meta:    meta,
	})
	if err != nil {
		s.logger.Warn("Appending activity failed",
			zap.String("lead_id", leadID), zap.String("type", activityType), zap.Error(err))
	}
}

func (s *lifecycleService) appendStatusActivity(ctx context.Context, leadID, actorID, from, to string) {
	meta, _ := json.Marshal(map[string]string{"from": from, "to": to})
	s.appendActivity(ctx, leadID, actorID, "status_change",
		fmt.Sprintf("Status changed from %s to %s", from, to), meta)
}

func (s *lifecycleService) notify(ctx context.Context, userID, kind, message, sourceType, sourceID string) {
	if err := s.notifier.Notify(ctx, userID, kind, message, sourceType, sourceID); err != nil {
		s.logger.Warn("Notification dispatch failed",
			zap.String("kind", kind), zap.String("source_id", sourceID), zap.Error(err))
	}
}

// notifyJob routes a job notification to the owner of the originating lead.
func (s *lifecycleService) notifyJob(ctx context.Context, job *domain.InstallationJob, kind, message string) {
	lead, err := s.leads.GetLead(ctx, job.LeadID)
	if err != nil {
		s.logger.Warn("Loading lead for job notification failed",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	s.notify(ctx, lead.OwnerUserID, kind, message, domain.EntityInstallation, job.JobID)
}

func (s *lifecycleService) upsertCalendarEvent(ctx context.Context, job *domain.InstallationJob) {
	if s.calendar == nil {
		return
	}
	lead, err := s.leads.GetLead(ctx, job.LeadID)
	if err != nil {
		s.logger.Warn("Loading lead for calendar event failed",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	eventID, err := s.calendar.UpsertEvent(ctx, job, lead)
	if err != nil {
		s.logger.Warn("Calendar upsert failed", zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	if eventID != "" && eventID != job.CalendarEventID {
		if err := s.installations.SetCalendarEventID(ctx, job.JobID, eventID); err != nil {
			s.logger.Warn("Storing calendar event id failed",
				zap.String("job_id", job.JobID), zap.Error(err))
		}
	}
}
