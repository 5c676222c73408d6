package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
)

type enqueueRecord struct {
	entityType string
	id         string
	version    int64
	tombstone  bool
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	records []enqueueRecord
}

func (f *fakeEnqueuer) Enqueue(entityType, id string, version int64, tombstone bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, enqueueRecord{entityType, id, version, tombstone})
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeEnqueuer) last() enqueueRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

type fakeCalendar struct {
	mu      sync.Mutex
	eventID string
	err     error
	calls   int
}

func (f *fakeCalendar) UpsertEvent(ctx context.Context, job *domain.InstallationJob, lead *domain.Lead) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.eventID, f.err
}

type lifecycleFixture struct {
	leads         *repository.MemoryLeadsRepository
	offers        *repository.MemoryOffersRepository
	installations *repository.MemoryInstallationsRepository
	notifications *repository.MemoryNotificationsRepository
	technicians   *repository.MemoryTechniciansRepository
	activities    *repository.MemoryActivitiesRepository
	enqueuer      *fakeEnqueuer
	calendar      *fakeCalendar
	notifier      NotificationService
	svc           LifecycleService
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	installations := repository.NewMemoryInstallationsRepository()
	f := &lifecycleFixture{
		leads:         repository.NewMemoryLeadsRepository(),
		offers:        repository.NewMemoryOffersRepository(installations),
		installations: installations,
		notifications: repository.NewMemoryNotificationsRepository(),
		technicians:   repository.NewMemoryTechniciansRepository(),
		activities:    repository.NewMemoryActivitiesRepository(),
		enqueuer:      &fakeEnqueuer{},
		calendar:      &fakeCalendar{eventID: "cal-1"},
	}
	logger := zap.NewNop()
	f.notifier = NewNotificationService(f.notifications, nil, logger)
	f.svc = NewLifecycleService(
		f.leads, f.offers, f.installations, f.technicians, f.activities,
		f.enqueuer, f.notifier, f.calendar, logger,
	)
	return f
}

func (f *lifecycleFixture) createLead(t *testing.T, owner string) *domain.Lead {
	t.Helper()
	lead, err := f.svc.CreateLead(context.Background(), &domain.Lead{
		CompanyName: "Acme GmbH",
		ContactName: "Jo Doe",
		OwnerUserID: owner,
	}, owner)
	require.NoError(t, err)
	return lead
}

func TestLifecycleFullChain(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	lead := f.createLead(t, "u1")
	require.Equal(t, domain.LeadNew, lead.Status)
	require.Equal(t, int64(1), lead.Version)

	lead, err := f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventContact, "", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.LeadContacted, lead.Status)
	require.Equal(t, int64(2), lead.Version)

	lead, err = f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventQualify, "", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.LeadQualified, lead.Status)

	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{
		LeadID: lead.LeadID,
		Total:  990,
		Items:  []domain.OfferItem{{ProductName: "Sensor kit", Qty: 3, UnitPrice: 330}},
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.OfferDraft, offer.Status)

	offer, job, err := f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.NoError(t, err)
	require.Nil(t, job)
	require.Equal(t, domain.OfferSent, offer.Status)

	offer, job, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventAccept, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.OfferAccepted, offer.Status)
	require.NotNil(t, job, "accepting must create the installation job")
	require.Equal(t, domain.InstallationPending, job.Status)
	require.Equal(t, lead.LeadID, job.LeadID)
	require.Equal(t, int64(1), job.Version)

	techID, err := f.technicians.CreateTechnician(ctx, &domain.Technician{Name: "Sam", Active: true})
	require.NoError(t, err)

	job, err = f.svc.ScheduleJob(ctx, job.JobID, job.Version, ScheduleRequest{
		Date:         time.Now().Add(48 * time.Hour),
		TechnicianID: techID,
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.InstallationScheduled, job.Status)
	require.NotNil(t, job.ScheduledDate)
	require.NotNil(t, job.RescheduleDeadline)
	require.Equal(t, techID, job.TechnicianID)

	job, err = f.svc.TransitionJob(ctx, job.JobID, job.Version, domain.EventStart, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.InstallationInProgress, job.Status)

	job, err = f.svc.TransitionJob(ctx, job.JobID, job.Version, domain.EventFinish, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.InstallationDone, job.Status)

	// Calendar side effect fired once, for the schedule transition.
	require.Equal(t, 1, f.calendar.calls)
	stored, err := f.installations.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, "cal-1", stored.CalendarEventID)

	// Every mutation reached the projection queue.
	require.GreaterOrEqual(t, f.enqueuer.count(), 8)

	// Owner got notified along the way: contacted, sent, scheduled, done.
	notifications, err := f.notifier.List(ctx, "u1", false, 50, 0)
	require.NoError(t, err)
	kinds := make(map[string]int)
	for _, n := range notifications {
		kinds[n.Kind]++
	}
	require.Equal(t, 1, kinds[domain.NotifyLeadContacted])
	require.Equal(t, 1, kinds[domain.NotifyOfferSent])
	require.Equal(t, 1, kinds[domain.NotifyJobScheduled])
	require.Equal(t, 1, kinds[domain.NotifyJobDone])

	// The activity trail recorded the journey.
	detail, err := f.svc.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	require.NotEmpty(t, detail.Activities)
}

func TestLifecycleIllegalTransitionLeavesLeadUntouched(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")
	before := f.enqueuer.count()

	_, err := f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventQualify, "", "u1")
	require.True(t, errors.Is(err, domain.ErrIllegalTransition))

	stored, err := f.leads.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	require.Equal(t, domain.LeadNew, stored.Status)
	require.Equal(t, int64(1), stored.Version)
	require.Equal(t, before, f.enqueuer.count(), "a rejected transition must not enqueue a projection")
}

func TestLifecycleVersionConflict(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	_, err := f.svc.TransitionLead(ctx, lead.LeadID, lead.Version+5, domain.EventContact, "", "u1")
	require.True(t, errors.Is(err, domain.ErrVersionConflict))

	stored, err := f.leads.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	require.Equal(t, domain.LeadNew, stored.Status)
}

func TestLifecycleLostRequiresReason(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	_, err := f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventMarkLost, "", "u1")
	require.True(t, errors.Is(err, domain.ErrValidation))

	lead, err = f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventMarkLost, "budget cut", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.LeadLost, lead.Status)
	require.Equal(t, "budget cut", lead.LossReason)
}

func TestLifecycleNoOfferForLostLead(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	_, err := f.svc.TransitionLead(ctx, lead.LeadID, lead.Version, domain.EventMarkLost, "no fit", "u1")
	require.NoError(t, err)

	_, err = f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID}, "u1")
	require.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestLifecycleSendIsIrreversible(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID}, "u1")
	require.NoError(t, err)
	offer, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.NoError(t, err)

	_, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.True(t, errors.Is(err, domain.ErrIllegalTransition))

	stored, err := f.offers.GetOffer(ctx, offer.OfferID)
	require.NoError(t, err)
	require.Equal(t, domain.OfferSent, stored.Status)
	require.Equal(t, offer.Version, stored.Version)
}

func TestScheduleJobRejectsUnknownTechnician(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID}, "u1")
	require.NoError(t, err)
	offer, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.NoError(t, err)
	_, job, err := f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventAccept, "u1")
	require.NoError(t, err)

	_, err = f.svc.ScheduleJob(ctx, job.JobID, job.Version, ScheduleRequest{
		Date:         time.Now().Add(24 * time.Hour),
		TechnicianID: "00000000-0000-0000-0000-000000000000",
	}, "u1")
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestScheduleJobNotifiesTechnician(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	lead := f.createLead(t, "u1")

	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID}, "u1")
	require.NoError(t, err)
	offer, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.NoError(t, err)
	_, job, err := f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventAccept, "u1")
	require.NoError(t, err)

	techID, err := f.technicians.CreateTechnician(ctx, &domain.Technician{Name: "Sam", Active: true})
	require.NoError(t, err)

	job, err = f.svc.ScheduleJob(ctx, job.JobID, job.Version, ScheduleRequest{
		Date:         time.Now().Add(24 * time.Hour),
		TechnicianID: techID,
	}, "u1")
	require.NoError(t, err)

	// The assigned technician hears about the appointment, not only the owner.
	forTech, err := f.notifier.List(ctx, techID, false, 50, 0)
	require.NoError(t, err)
	require.Len(t, forTech, 1)
	require.Equal(t, domain.NotifyJobScheduled, forTech[0].Kind)
	require.Equal(t, job.JobID, forTech[0].SourceID)

	forOwner, err := f.notifier.List(ctx, "u1", false, 50, 0)
	require.NoError(t, err)
	scheduled := 0
	for _, n := range forOwner {
		if n.Kind == domain.NotifyJobScheduled {
			scheduled++
		}
	}
	require.Equal(t, 1, scheduled)
}

func TestCalendarFailureDoesNotBlockScheduling(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	f.calendar.err = errors.New("calendar unreachable")
	lead := f.createLead(t, "u1")

	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID}, "u1")
	require.NoError(t, err)
	offer, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventSend, "u1")
	require.NoError(t, err)
	_, job, err := f.svc.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventAccept, "u1")
	require.NoError(t, err)

	job, err = f.svc.ScheduleJob(ctx, job.JobID, job.Version, ScheduleRequest{Date: time.Now().Add(24 * time.Hour)}, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.InstallationScheduled, job.Status)
	require.Empty(t, job.CalendarEventID)
}
