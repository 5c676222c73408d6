package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
)

func TestKPISummaryCounts(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)
	kpi := NewKPIService(f.leads, f.installations, f.notifications, zap.NewNop())

	// Two leads stay new, one goes through accept to produce a pending job.
	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateLead(ctx, &domain.Lead{CompanyName: "Idle Co", OwnerUserID: "u1"}, "u1")
		require.NoError(t, err)
	}
	lead, err := f.svc.CreateLead(ctx, &domain.Lead{CompanyName: "Acme Heating", OwnerUserID: "u1"}, "u1")
	require.NoError(t, err)
	for _, event := range []domain.Event{domain.EventContact, domain.EventQualify} {
		_, err = f.svc.TransitionLead(ctx, lead.LeadID, 0, event, "", "u1")
		require.NoError(t, err)
	}
	offer, err := f.svc.CreateOffer(ctx, &domain.Offer{LeadID: lead.LeadID, Currency: "EUR"}, "u1")
	require.NoError(t, err)
	_, _, err = f.svc.TransitionOffer(ctx, offer.OfferID, 0, domain.EventSend, "u1")
	require.NoError(t, err)
	_, job, err := f.svc.TransitionOffer(ctx, offer.OfferID, 0, domain.EventAccept, "u1")
	require.NoError(t, err)

	_, err = f.svc.ScheduleJob(ctx, job.JobID, 0, ScheduleRequest{Date: time.Now().Add(48 * time.Hour)}, "u1")
	require.NoError(t, err)

	summary, err := kpi.Summary(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, summary.LeadsByStatus["new"])
	require.Equal(t, 1, summary.LeadsByStatus["qualified"])
	require.Equal(t, 0, summary.LeadsByStatus["lost"])
	require.Equal(t, 1, summary.OpenJobs, "the scheduled job counts as open")

	// contacted + offer_sent + job_scheduled notifications landed unread.
	require.Equal(t, 3, summary.Unread)
}

func TestKPISummaryEmptyPipeline(t *testing.T) {
	f := newLifecycleFixture(t)
	kpi := NewKPIService(f.leads, f.installations, f.notifications, zap.NewNop())

	summary, err := kpi.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.Zero(t, summary.OpenJobs)
	require.Zero(t, summary.Unread)
	for _, total := range summary.LeadsByStatus {
		require.Zero(t, total)
	}
}
