package domain

import "time"

// Technician installer directory entry (technicians table). Installation jobs
// hold a weak reference to at most one technician; nothing owns the other.
type Technician struct {
	TechnicianID string `db:"technician_id" json:"technician_id"` // UUID, PRIMARY KEY

	Name  string `db:"name" json:"name"`
	Phone string `db:"phone" json:"phone,omitempty"`
	Email string `db:"email" json:"email,omitempty"`

	// Availability free-form scheduling metadata (working days, region).
	Availability string `db:"availability" json:"availability,omitempty"`
	Active       bool   `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
