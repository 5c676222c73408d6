package domain

import "time"

// OfferStatus commercial state of an offer.
type OfferStatus string

const (
	OfferDraft    OfferStatus = "draft"
	OfferSent     OfferStatus = "sent"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// Offer belongs to exactly one lead (sales_offers table). Sending an offer is
// irreversible; an offer cannot be created for a lost lead.
type Offer struct {
	OfferID string `db:"offer_id" json:"offer_id"` // UUID, PRIMARY KEY
	LeadID  string `db:"lead_id" json:"lead_id"`   // UUID, NOT NULL, FK to sales_leads

	Status   OfferStatus `db:"status" json:"status"` // draft/sent/accepted/rejected/expired
	Currency string      `db:"currency" json:"currency"`
	Total    float64     `db:"total" json:"total"`
	Notes    string      `db:"notes" json:"notes,omitempty"`

	// ValidUntil is the send deadline; a sent offer past it is swept to expired.
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`

	Items []OfferItem `db:"-" json:"items,omitempty"`

	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OfferItem one line item of an offer (sales_offer_items table).
type OfferItem struct {
	ItemID      string  `db:"item_id" json:"item_id"`
	OfferID     string  `db:"offer_id" json:"offer_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	Description string  `db:"description" json:"description,omitempty"`
	Qty         float64 `db:"qty" json:"qty"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	DiscountPct float64 `db:"discount_pct" json:"discount_pct"`
	VatPct      float64 `db:"vat_pct" json:"vat_pct"`
	SortOrder   int     `db:"sort_order" json:"sort_order"`
}
