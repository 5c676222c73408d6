package domain

import (
	"encoding/json"
	"time"
)

// Activity audit trail entry on a lead (sales_activities table). Written
// best-effort alongside mutations; a failed activity insert never fails the
// mutation itself.
type Activity struct {
	ActivityID string `db:"activity_id" json:"activity_id"` // UUID, PRIMARY KEY
	LeadID     string `db:"lead_id" json:"lead_id"`
	UserID     string `db:"user_id" json:"user_id,omitempty"` // acting user, nullable

	Type    string          `db:"type" json:"type"` // status_change/field_change/offer_sent/...
	Content string          `db:"content" json:"content,omitempty"`
	Meta    json.RawMessage `db:"meta" json:"meta,omitempty"` // JSONB, nullable

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
