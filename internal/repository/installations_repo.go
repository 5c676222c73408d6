package repository

import (
	"context"
	"time"

	"opsdesk/internal/domain"
)

// JobSchedule carries the fields set by the schedule transition.
type JobSchedule struct {
	Date               time.Time
	TechnicianID       string // optional
	RescheduleDeadline time.Time
}

// InstallationsRepository data access for installation jobs. Jobs are created
// by OffersRepository.AcceptOffer; here they are read and transitioned.
type InstallationsRepository interface {
	GetJob(ctx context.Context, jobID string) (*domain.InstallationJob, error)

	ListJobs(ctx context.Context, filter JobFilters, limit, offset int) ([]*domain.InstallationJob, int, error)

	// UpdateJobStatus check-and-set transition write. schedule is non-nil only
	// for the schedule event and also sets date/technician/deadline.
	UpdateJobStatus(ctx context.Context, jobID string, expectedVersion int64, status domain.InstallationStatus, schedule *JobSchedule) (*domain.InstallationJob, error)

	// SetCalendarEventID records the best-effort calendar upsert result.
	// Metadata only: no version bump, no projection.
	SetCalendarEventID(ctx context.Context, jobID, eventID string) error

	// ListOverduePastDeadline returns scheduled/in_progress jobs whose
	// reschedule deadline elapsed, for the deadline sweep.
	ListOverduePastDeadline(ctx context.Context, now time.Time) ([]*domain.InstallationJob, error)
}

// JobFilters list filtering options.
type JobFilters struct {
	Status       domain.InstallationStatus // optional
	TechnicianID string                    // optional
	LeadID       string                    // optional
}
