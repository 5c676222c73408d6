package service

import (
	"context"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/repository"
)

// KPISummary dashboard counters, all read from the relational store.
type KPISummary struct {
	LeadsByStatus map[string]int `json:"leads_by_status"`
	OpenJobs      int            `json:"open_jobs"`
	Unread        int            `json:"unread_notifications"`
}

// KPIService aggregates the dashboard numbers.
type KPIService interface {
	Summary(ctx context.Context, userID string) (*KPISummary, error)
}

type kpiService struct {
	leads         repository.LeadsRepository
	installations repository.InstallationsRepository
	notifications repository.NotificationsRepository
	logger        *zap.Logger
}

func NewKPIService(leads repository.LeadsRepository, installations repository.InstallationsRepository, notifications repository.NotificationsRepository, logger *zap.Logger) KPIService {
	return &kpiService{leads: leads, installations: installations, notifications: notifications, logger: logger}
}

var kpiLeadStatuses = []domain.LeadStatus{
	domain.LeadNew, domain.LeadContacted, domain.LeadQualified, domain.LeadLost, domain.LeadConverted,
}

var kpiOpenJobStatuses = []domain.InstallationStatus{
	domain.InstallationPending, domain.InstallationScheduled, domain.InstallationInProgress,
}

func (s *kpiService) Summary(ctx context.Context, userID string) (*KPISummary, error) {
	summary := &KPISummary{LeadsByStatus: make(map[string]int, len(kpiLeadStatuses))}

	for _, status := range kpiLeadStatuses {
		_, total, err := s.leads.ListLeads(ctx, repository.LeadFilters{Status: status}, 1, 0)
		if err != nil {
			return nil, err
		}
		summary.LeadsByStatus[string(status)] = total
	}

	for _, status := range kpiOpenJobStatuses {
		_, total, err := s.installations.ListJobs(ctx, repository.JobFilters{Status: status}, 1, 0)
		if err != nil {
			return nil, err
		}
		summary.OpenJobs += total
	}

	unread, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.Unread = unread
	return summary, nil
}
