package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// PostgresOffersRepository offer repository backed by the system of record.
type PostgresOffersRepository struct {
	db *sql.DB
}

func NewPostgresOffersRepository(db *sql.DB) *PostgresOffersRepository {
	return &PostgresOffersRepository{db: db}
}

var _ OffersRepository = (*PostgresOffersRepository)(nil)

const offerColumns = `
	offer_id::text,
	lead_id::text,
	status,
	currency,
	total,
	COALESCE(notes, '') AS notes,
	valid_until,
	version,
	created_at,
	updated_at`

func scanOffer(row interface{ Scan(...any) error }) (*domain.Offer, error) {
	var offer domain.Offer
	var validUntil sql.NullTime
	err := row.Scan(
		&offer.OfferID,
		&offer.LeadID,
		&offer.Status,
		&offer.Currency,
		&offer.Total,
		&offer.Notes,
		&validUntil,
		&offer.Version,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if validUntil.Valid {
		offer.ValidUntil = &validUntil.Time
	}
	return &offer, nil
}

func (r *PostgresOffersRepository) CreateOffer(ctx context.Context, offer *domain.Offer) (string, error) {
	if offer.LeadID == "" {
		return "", fmt.Errorf("%w: lead_id is required", domain.ErrValidation)
	}
	if offer.OfferID == "" {
		offer.OfferID = uuid.NewString()
	}
	if offer.Status == "" {
		offer.Status = domain.OfferDraft
	}
	if offer.Currency == "" {
		offer.Currency = "EUR"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales_offers (offer_id, lead_id, status, currency, total, notes, valid_until, version)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, NULLIF($6, ''), $7, 1)
		RETURNING version, created_at, updated_at
	`, offer.OfferID, offer.LeadID, offer.Status, offer.Currency, offer.Total, offer.Notes, offer.ValidUntil).
		Scan(&offer.Version, &offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	for i := range offer.Items {
		item := &offer.Items[i]
		if item.ItemID == "" {
			item.ItemID = uuid.NewString()
		}
		item.OfferID = offer.OfferID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales_offer_items (item_id, offer_id, product_name, description, qty, unit_price, discount_pct, vat_pct, sort_order)
			VALUES ($1::uuid, $2::uuid, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		`, item.ItemID, item.OfferID, item.ProductName, item.Description,
			item.Qty, item.UnitPrice, item.DiscountPct, item.VatPct, item.SortOrder)
		if err != nil {
			return "", fmt.Errorf("failed to create offer item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit offer: %w", err)
	}
	return offer.OfferID, nil
}

func (r *PostgresOffersRepository) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	if offerID == "" {
		return nil, fmt.Errorf("%w: offer_id is required", domain.ErrValidation)
	}

	query := `SELECT ` + offerColumns + ` FROM sales_offers WHERE offer_id = $1::uuid`
	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, offerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("offer %s: %w", offerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	items, err := r.listItems(ctx, offerID)
	if err != nil {
		return nil, err
	}
	offer.Items = items
	return offer, nil
}

func (r *PostgresOffersRepository) listItems(ctx context.Context, offerID string) ([]domain.OfferItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id::text, offer_id::text, product_name, COALESCE(description, ''),
		       qty, unit_price, discount_pct, vat_pct, sort_order
		FROM sales_offer_items
		WHERE offer_id = $1::uuid
		ORDER BY sort_order, item_id
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offer items: %w", err)
	}
	defer rows.Close()

	var items []domain.OfferItem
	for rows.Next() {
		var item domain.OfferItem
		err := rows.Scan(&item.ItemID, &item.OfferID, &item.ProductName, &item.Description,
			&item.Qty, &item.UnitPrice, &item.DiscountPct, &item.VatPct, &item.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresOffersRepository) ListOffersByLead(ctx context.Context, leadID string) ([]*domain.Offer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM sales_offers WHERE lead_id = $1::uuid ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func (r *PostgresOffersRepository) UpdateOfferStatus(ctx context.Context, offerID string, expectedVersion int64, status domain.OfferStatus) (*domain.Offer, error) {
	query := `
		UPDATE sales_offers
		SET status = $3, version = version + 1, updated_at = now()
		WHERE offer_id = $1::uuid AND version = $2
		RETURNING ` + offerColumns

	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, offerID, expectedVersion, status))
	if err == nil {
		return offer, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update offer status: %w", err)
	}
	return nil, casFailure(ctx, r.db, "sales_offers", "offer_id", offerID)
}

func (r *PostgresOffersRepository) AcceptOffer(ctx context.Context, offerID string, expectedVersion int64, job *domain.InstallationJob) (*domain.Offer, *domain.InstallationJob, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.OfferID = offerID
	job.Status = domain.InstallationPending

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sales_offers
		SET status = 'accepted', version = version + 1, updated_at = now()
		WHERE offer_id = $1::uuid AND version = $2 AND status = 'sent'
		RETURNING ` + offerColumns
	offer, err := scanOffer(tx.QueryRowContext(ctx, query, offerID, expectedVersion))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, casFailure(ctx, r.db, "sales_offers", "offer_id", offerID)
		}
		return nil, nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	// The job inherits the offer's lead; lead_id is NOT NULL on
	// installation_jobs, so it has to come from the accepted row.
	job.LeadID = offer.LeadID

	err = tx.QueryRowContext(ctx, `
		INSERT INTO installation_jobs (job_id, lead_id, offer_id, company_id, status, notes, version)
		VALUES ($1::uuid, $2::uuid, $3::uuid,
		        COALESCE(NULLIF($4, '')::uuid, (SELECT company_id FROM sales_leads WHERE lead_id = $2::uuid)),
		        'pending', NULLIF($5, ''), 1)
		RETURNING version, created_at, updated_at, COALESCE(company_id::text, '')
	`, job.JobID, job.LeadID, job.OfferID, job.CompanyID, job.Notes).
		Scan(&job.Version, &job.CreatedAt, &job.UpdatedAt, &job.CompanyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create installation job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit accept: %w", err)
	}
	return offer, job, nil
}

func (r *PostgresOffersRepository) ListSentPastDeadline(ctx context.Context, now time.Time) ([]*domain.Offer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+offerColumns+`
		FROM sales_offers
		WHERE status = 'sent' AND valid_until IS NOT NULL AND valid_until < $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired offers: %w", err)
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}
