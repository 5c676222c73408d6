package domain

import "time"

// InstallationStatus field execution state of an installation job.
type InstallationStatus string

const (
	InstallationPending    InstallationStatus = "pending"
	InstallationScheduled  InstallationStatus = "scheduled"
	InstallationInProgress InstallationStatus = "in_progress"
	InstallationDone       InstallationStatus = "done"
	InstallationUndone     InstallationStatus = "undone"
)

// InstallationJob is created when an offer is accepted (installation_jobs
// table). Technician assignment is a weak reference; "undone" marks jobs past
// the rescheduling deadline that never reached done.
type InstallationJob struct {
	JobID     string `db:"job_id" json:"job_id"` // UUID, PRIMARY KEY
	LeadID    string `db:"lead_id" json:"lead_id"`
	OfferID   string `db:"offer_id" json:"offer_id"`
	CompanyID string `db:"company_id" json:"company_id,omitempty"`

	Status        InstallationStatus `db:"status" json:"status"` // pending/scheduled/in_progress/done/undone
	ScheduledDate *time.Time         `db:"scheduled_date" json:"scheduled_date,omitempty"`
	TechnicianID  string             `db:"technician_id" json:"technician_id,omitempty"` // UUID, nullable

	// RescheduleDeadline: a scheduled/in_progress job still not done past this
	// instant is swept to undone.
	RescheduleDeadline *time.Time `db:"reschedule_deadline" json:"reschedule_deadline,omitempty"`

	// CalendarEventID tracks the best-effort calendar upsert for scheduling.
	CalendarEventID string `db:"calendar_event_id" json:"calendar_event_id,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`

	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
