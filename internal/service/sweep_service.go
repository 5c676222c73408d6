package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
	"opsdesk/internal/store"
)

// followupWindow how long a contacted or qualified lead may sit untouched
// before its owner gets a follow-up reminder.
const followupWindow = 5 * 24 * time.Hour

// SweepResult counts of deadline transitions applied by one sweep pass.
type SweepResult struct {
	OffersExpired int `json:"offers_expired"`
	JobsUndone    int `json:"jobs_undone"`
	FollowupsDue  int `json:"followups_due"`
}

// SweepService periodically expires sent offers past valid_until, marks
// scheduled/in-progress jobs past their reschedule deadline undone, and
// reminds owners of idle leads. Each transition goes through the lifecycle
// service so notifications and search projections fire exactly as for
// client-driven transitions.
type SweepService interface {
	Run(ctx context.Context)
	SweepNow(ctx context.Context) (*SweepResult, error)
}

type sweepService struct {
	leads         repository.LeadsRepository
	offers        repository.OffersRepository
	installations repository.InstallationsRepository
	lifecycle     LifecycleService
	notifier      NotificationService
	cache         store.KV // nil tolerated: sweeps just skip invalidation
	interval      time.Duration
	logger        *zap.Logger

	// followedUp records the lead version at the last reminder, so an idle
	// lead is reminded once and again only after it changed and idled anew.
	mu         sync.Mutex
	followedUp map[string]int64
}

func NewSweepService(
	leads repository.LeadsRepository,
	offers repository.OffersRepository,
	installations repository.InstallationsRepository,
	lifecycle LifecycleService,
	notifier NotificationService,
	cache store.KV,
	interval time.Duration,
	logger *zap.Logger,
) SweepService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &sweepService{
		leads:         leads,
		offers:        offers,
		installations: installations,
		lifecycle:     lifecycle,
		notifier:      notifier,
		cache:         cache,
		interval:      interval,
		logger:        logger,
		followedUp:    make(map[string]int64),
	}
}

func (s *sweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepNow(ctx); err != nil {
				s.logger.Error("Deadline sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *sweepService) SweepNow(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	result := &SweepResult{}

	offers, err := s.offers.ListSentPastDeadline(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, offer := range offers {
		_, _, err := s.lifecycle.TransitionOffer(ctx, offer.OfferID, offer.Version, domain.EventExpire, "")
		switch {
		case err == nil:
			result.OffersExpired++
		case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrIllegalTransition):
			// Someone transitioned the offer between list and sweep. Fine.
		default:
			s.logger.Warn("Expiring offer failed", zap.String("offer_id", offer.OfferID), zap.Error(err))
		}
	}

	jobs, err := s.installations.ListOverduePastDeadline(ctx, now)
	if err != nil {
		return result, err
	}
	for _, job := range jobs {
		_, err := s.lifecycle.TransitionJob(ctx, job.JobID, job.Version, domain.EventMarkUndone, "")
		switch {
		case err == nil:
			result.JobsUndone++
		case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrIllegalTransition):
		default:
			s.logger.Warn("Marking job undone failed", zap.String("job_id", job.JobID), zap.Error(err))
		}
	}

	result.FollowupsDue = s.remindIdleLeads(ctx, now)

	// Bulk status changes go stale in the cached search options; drop them.
	if s.cache != nil && result.OffersExpired+result.JobsUndone > 0 {
		if err := s.cache.Delete(ctx, optionsCacheKey); err != nil {
			s.logger.Warn("Search options cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("Deadline sweep finished",
		zap.Int("offers_expired", result.OffersExpired),
		zap.Int("jobs_undone", result.JobsUndone),
		zap.Int("followups_due", result.FollowupsDue))
	return result, nil
}

func (s *sweepService) remindIdleLeads(ctx context.Context, now time.Time) int {
	idle, err := s.leads.ListIdleSince(ctx, now.Add(-followupWindow))
	if err != nil {
		s.logger.Warn("Listing idle leads failed", zap.Error(err))
		return 0
	}

	reminded := 0
	for _, lead := range idle {
		if lead.OwnerUserID == "" {
			continue
		}
		s.mu.Lock()
		seen := s.followedUp[lead.LeadID] == lead.Version
		s.mu.Unlock()
		if seen {
			continue
		}
		err := s.notifier.Notify(ctx, lead.OwnerUserID, domain.NotifyFollowupDue,
			fmt.Sprintf("Follow-up due: %s", lead.CompanyName), domain.EntityLead, lead.LeadID)
		if err != nil {
			s.logger.Warn("Follow-up notification failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.followedUp[lead.LeadID] = lead.Version
		s.mu.Unlock()
		reminded++
	}
	return reminded
}
