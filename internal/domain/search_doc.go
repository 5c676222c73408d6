package domain

import "time"

// Searchable entity types projected into the search index.
const (
	EntityLead         = "lead"
	EntityOffer        = "offer"
	EntityInstallation = "installation"
	EntityDocStep      = "doc_step"
)

// SearchDoc is the derived, eventually-consistent projection of a searchable
// entity. It is keyed by the source identity and tagged with the source's
// version; the index discards writes carrying a version lower than the one
// already stored, so out-of-order completions never regress the projection.
type SearchDoc struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Version    int64  `json:"version"`

	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CompanyID string    `json:"company_id,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// Deleted marks a tombstone. Deletions propagate as tombstones, not
	// physical deletes, so a racing stale upsert cannot resurrect the doc.
	Deleted bool `json:"deleted"`
}

// DocID is the index-side identity: all entity types share one index, so the
// id is namespaced by type.
func (d *SearchDoc) DocID() string {
	return d.EntityType + ":" + d.EntityID
}
