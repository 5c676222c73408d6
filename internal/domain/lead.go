package domain

import "time"

// LeadStatus sales pipeline stage of a lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadLost      LeadStatus = "lost"
	LeadConverted LeadStatus = "converted"
)

// Lead is a sales lead (sales_leads table). Owned by the sales subsystem;
// status is mutated only through the lifecycle state machine.
type Lead struct {
	LeadID string `db:"lead_id" json:"lead_id"` // UUID, PRIMARY KEY

	CompanyID   string `db:"company_id" json:"company_id,omitempty"` // UUID, nullable
	CompanyName string `db:"company_name" json:"company_name"`
	ContactName string `db:"contact_name" json:"contact_name,omitempty"`
	Phone       string `db:"phone" json:"phone,omitempty"`
	Email       string `db:"email" json:"email,omitempty"`

	Status      LeadStatus `db:"status" json:"status"` // new/contacted/qualified/lost/converted
	OwnerUserID string     `db:"owner_user_id" json:"owner_user_id,omitempty"`
	LeadSource  string     `db:"lead_source" json:"lead_source,omitempty"`
	LossReason  string     `db:"loss_reason" json:"loss_reason,omitempty"` // required when status -> lost
	Notes       string     `db:"notes" json:"notes,omitempty"`

	// Version guards check-and-set writes and tags search projections.
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
