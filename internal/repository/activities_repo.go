package repository

import (
	"context"

	"opsdesk/internal/domain"
)

// ActivitiesRepository append-only audit trail on leads.
type ActivitiesRepository interface {
	AppendActivity(ctx context.Context, a *domain.Activity) error
	ListActivities(ctx context.Context, leadID string, limit int) ([]*domain.Activity, error)
}

// TechniciansRepository installer directory.
type TechniciansRepository interface {
	CreateTechnician(ctx context.Context, t *domain.Technician) (string, error)
	GetTechnician(ctx context.Context, technicianID string) (*domain.Technician, error)
	ListTechnicians(ctx context.Context, activeOnly bool) ([]*domain.Technician, error)
}
