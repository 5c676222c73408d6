package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// PostgresActivitiesRepository audit trail repository.
type PostgresActivitiesRepository struct {
	db *sql.DB
}

func NewPostgresActivitiesRepository(db *sql.DB) *PostgresActivitiesRepository {
	return &PostgresActivitiesRepository{db: db}
}

var _ ActivitiesRepository = (*PostgresActivitiesRepository)(nil)

func (r *PostgresActivitiesRepository) AppendActivity(ctx context.Context, a *domain.Activity) error {
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	var meta any
	if len(a.Meta) > 0 {
		meta = []byte(a.Meta)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sales_activities (activity_id, lead_id, user_id, type, content, meta)
		VALUES ($1::uuid, $2::uuid, NULLIF($3, ''), $4, NULLIF($5, ''), $6)
	`, a.ActivityID, a.LeadID, a.UserID, a.Type, a.Content, meta)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (r *PostgresActivitiesRepository) ListActivities(ctx context.Context, leadID string, limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id::text, lead_id::text, COALESCE(user_id, ''), type,
		       COALESCE(content, ''), COALESCE(meta, 'null'::jsonb), created_at
		FROM sales_activities
		WHERE lead_id = $1::uuid
		ORDER BY created_at DESC, activity_id DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var list []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		var meta []byte
		err := rows.Scan(&a.ActivityID, &a.LeadID, &a.UserID, &a.Type, &a.Content, &meta, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if string(meta) != "null" {
			a.Meta = meta
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// PostgresTechniciansRepository installer directory repository.
type PostgresTechniciansRepository struct {
	db *sql.DB
}

func NewPostgresTechniciansRepository(db *sql.DB) *PostgresTechniciansRepository {
	return &PostgresTechniciansRepository{db: db}
}

var _ TechniciansRepository = (*PostgresTechniciansRepository)(nil)

func (r *PostgresTechniciansRepository) CreateTechnician(ctx context.Context, t *domain.Technician) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if t.TechnicianID == "" {
		t.TechnicianID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO technicians (technician_id, name, phone, email, availability, active)
		VALUES ($1::uuid, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
	`, t.TechnicianID, t.Name, t.Phone, t.Email, t.Availability, t.Active)
	if err != nil {
		return "", fmt.Errorf("failed to create technician: %w", err)
	}
	return t.TechnicianID, nil
}

func (r *PostgresTechniciansRepository) GetTechnician(ctx context.Context, technicianID string) (*domain.Technician, error) {
	var t domain.Technician
	err := r.db.QueryRowContext(ctx, `
		SELECT technician_id::text, name, COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(availability, ''), active, created_at
		FROM technicians
		WHERE technician_id = $1::uuid
	`, technicianID).Scan(&t.TechnicianID, &t.Name, &t.Phone, &t.Email, &t.Availability, &t.Active, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("technician %s: %w", technicianID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return &t, nil
}

func (r *PostgresTechniciansRepository) ListTechnicians(ctx context.Context, activeOnly bool) ([]*domain.Technician, error) {
	query := `
		SELECT technician_id::text, name, COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(availability, ''), active, created_at
		FROM technicians
	`
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	var list []*domain.Technician
	for rows.Next() {
		var t domain.Technician
		err := rows.Scan(&t.TechnicianID, &t.Name, &t.Phone, &t.Email, &t.Availability, &t.Active, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
