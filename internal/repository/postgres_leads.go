package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// PostgresLeadsRepository lead repository backed by the system of record.
type PostgresLeadsRepository struct {
	db *sql.DB
}

func NewPostgresLeadsRepository(db *sql.DB) *PostgresLeadsRepository {
	return &PostgresLeadsRepository{db: db}
}

var _ LeadsRepository = (*PostgresLeadsRepository)(nil)

const leadColumns = `
	lead_id::text,
	COALESCE(company_id::text, '') AS company_id,
	company_name,
	COALESCE(contact_name, '') AS contact_name,
	COALESCE(phone, '') AS phone,
	COALESCE(email, '') AS email,
	status,
	COALESCE(owner_user_id, '') AS owner_user_id,
	COALESCE(lead_source, '') AS lead_source,
	COALESCE(loss_reason, '') AS loss_reason,
	COALESCE(notes, '') AS notes,
	version,
	created_at,
	updated_at`

func scanLead(row interface{ Scan(...any) error }) (*domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.LeadID,
		&lead.CompanyID,
		&lead.CompanyName,
		&lead.ContactName,
		&lead.Phone,
		&lead.Email,
		&lead.Status,
		&lead.OwnerUserID,
		&lead.LeadSource,
		&lead.LossReason,
		&lead.Notes,
		&lead.Version,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *PostgresLeadsRepository) CreateLead(ctx context.Context, lead *domain.Lead) (string, error) {
	if strings.TrimSpace(lead.CompanyName) == "" {
		return "", fmt.Errorf("%w: company_name is required", domain.ErrValidation)
	}
	if lead.LeadID == "" {
		lead.LeadID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadNew
	}

	query := `
		INSERT INTO sales_leads (
			lead_id, company_id, company_name, contact_name, phone, email,
			status, owner_user_id, lead_source, notes, version
		)
		VALUES ($1::uuid, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, 1)
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		lead.LeadID, lead.CompanyID, lead.CompanyName, lead.ContactName,
		lead.Phone, lead.Email, lead.Status, lead.OwnerUserID,
		lead.LeadSource, lead.Notes,
	).Scan(&lead.Version, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create lead: %w", err)
	}
	return lead.LeadID, nil
}

func (r *PostgresLeadsRepository) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	if leadID == "" {
		return nil, fmt.Errorf("%w: lead_id is required", domain.ErrValidation)
	}

	query := `SELECT ` + leadColumns + ` FROM sales_leads WHERE lead_id = $1::uuid`
	lead, err := scanLead(r.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("lead %s: %w", leadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func (r *PostgresLeadsRepository) ListLeads(ctx context.Context, filter LeadFilters, limit, offset int) ([]*domain.Lead, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := []string{}
	args := []any{}
	argn := 1
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argn))
		args = append(args, filter.Status)
		argn++
	}
	if filter.OwnerUserID != "" {
		where = append(where, fmt.Sprintf("owner_user_id = $%d", argn))
		args = append(args, filter.OwnerUserID)
		argn++
	}
	if filter.Query != "" {
		where = append(where, fmt.Sprintf("(company_name ILIKE $%d OR contact_name ILIKE $%d OR email ILIKE $%d)", argn, argn, argn))
		args = append(args, "%"+filter.Query+"%")
		argn++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM sales_leads
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, clause, argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*domain.Lead
	total := 0
	for rows.Next() {
		var lead domain.Lead
		err := rows.Scan(
			&lead.LeadID, &lead.CompanyID, &lead.CompanyName, &lead.ContactName,
			&lead.Phone, &lead.Email, &lead.Status, &lead.OwnerUserID,
			&lead.LeadSource, &lead.LossReason, &lead.Notes,
			&lead.Version, &lead.CreatedAt, &lead.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, &lead)
	}
	return leads, total, rows.Err()
}

func (r *PostgresLeadsRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM sales_leads
		WHERE status IN ('contacted', 'qualified') AND updated_at <= $1
		ORDER BY updated_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle leads: %w", err)
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *PostgresLeadsRepository) UpdateLeadStatus(ctx context.Context, leadID string, expectedVersion int64, status domain.LeadStatus, lossReason string) (*domain.Lead, error) {
	query := `
		UPDATE sales_leads
		SET status = $3,
		    loss_reason = CASE WHEN $3 = 'lost' THEN NULLIF($4, '') ELSE loss_reason END,
		    version = version + 1,
		    updated_at = now()
		WHERE lead_id = $1::uuid AND version = $2
		RETURNING ` + leadColumns

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, leadID, expectedVersion, status, lossReason))
	if err == nil {
		return lead, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil, casFailure(ctx, r.db, "sales_leads", "lead_id", leadID)
}

// casFailure distinguishes a lost check-and-set race from a missing row.
func casFailure(ctx context.Context, db *sql.DB, table, idColumn, id string) error {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1::uuid)", table, idColumn)
	if err := db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, domain.ErrVersionConflict)
}
