package domain

import "time"

// Notification kinds emitted by the lifecycle state machine.
const (
	NotifyLeadContacted = "lead_contacted"
	NotifyLeadLost      = "lead_lost"
	NotifyOfferSent     = "offer_sent"
	NotifyOfferRejected = "offer_rejected"
	NotifyOfferExpired  = "offer_expired"
	NotifyJobScheduled  = "job_scheduled"
	NotifyJobDone       = "job_done"
	NotifyJobUndone     = "job_undone"
	NotifyFollowupDue   = "sales_followup_due"
)

// Notification belongs to exactly one recipient user (notifications table).
// Rows are created only by the fan-out in response to state-machine
// transitions, never directly by clients.
type Notification struct {
	NotificationID string `db:"notification_id" json:"notification_id"` // UUID, PRIMARY KEY
	UserID         string `db:"user_id" json:"user_id"`                 // recipient

	Kind    string `db:"kind" json:"kind"`
	Message string `db:"message" json:"message"`

	// Source entity the notification points back to.
	SourceType string `db:"source_type" json:"source_type"` // lead/offer/installation
	SourceID   string `db:"source_id" json:"source_id"`

	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
