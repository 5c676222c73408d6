package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"opsdesk/internal/domain"
)

// PostgresInstallationsRepository installation job repository.
type PostgresInstallationsRepository struct {
	db *sql.DB
}

func NewPostgresInstallationsRepository(db *sql.DB) *PostgresInstallationsRepository {
	return &PostgresInstallationsRepository{db: db}
}

var _ InstallationsRepository = (*PostgresInstallationsRepository)(nil)

const jobColumns = `
	job_id::text,
	lead_id::text,
	offer_id::text,
	COALESCE(company_id::text, '') AS company_id,
	status,
	scheduled_date,
	COALESCE(technician_id::text, '') AS technician_id,
	reschedule_deadline,
	COALESCE(calendar_event_id, '') AS calendar_event_id,
	COALESCE(notes, '') AS notes,
	version,
	created_at,
	updated_at`

func scanJob(row interface{ Scan(...any) error }) (*domain.InstallationJob, error) {
	var job domain.InstallationJob
	var scheduled, deadline sql.NullTime
	err := row.Scan(
		&job.JobID,
		&job.LeadID,
		&job.OfferID,
		&job.CompanyID,
		&job.Status,
		&scheduled,
		&job.TechnicianID,
		&deadline,
		&job.CalendarEventID,
		&job.Notes,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduled.Valid {
		job.ScheduledDate = &scheduled.Time
	}
	if deadline.Valid {
		job.RescheduleDeadline = &deadline.Time
	}
	return &job, nil
}

func (r *PostgresInstallationsRepository) GetJob(ctx context.Context, jobID string) (*domain.InstallationJob, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job_id is required", domain.ErrValidation)
	}

	query := `SELECT ` + jobColumns + ` FROM installation_jobs WHERE job_id = $1::uuid`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("installation job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get installation job: %w", err)
	}
	return job, nil
}

func (r *PostgresInstallationsRepository) ListJobs(ctx context.Context, filter JobFilters, limit, offset int) ([]*domain.InstallationJob, int, error) {
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
	if filter.TechnicianID != "" {
		where = append(where, fmt.Sprintf("technician_id = $%d::uuid", argn))
		args = append(args, filter.TechnicianID)
		argn++
	}
	if filter.LeadID != "" {
		where = append(where, fmt.Sprintf("lead_id = $%d::uuid", argn))
		args = append(args, filter.LeadID)
		argn++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM installation_jobs
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, jobColumns, clause, argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list installation jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.InstallationJob
	total := 0
	for rows.Next() {
		var job domain.InstallationJob
		var scheduled, deadline sql.NullTime
		err := rows.Scan(
			&job.JobID, &job.LeadID, &job.OfferID, &job.CompanyID, &job.Status,
			&scheduled, &job.TechnicianID, &deadline, &job.CalendarEventID,
			&job.Notes, &job.Version, &job.CreatedAt, &job.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan installation job: %w", err)
		}
		if scheduled.Valid {
			job.ScheduledDate = &scheduled.Time
		}
		if deadline.Valid {
			job.RescheduleDeadline = &deadline.Time
		}
		jobs = append(jobs, &job)
	}
	return jobs, total, rows.Err()
}

func (r *PostgresInstallationsRepository) UpdateJobStatus(ctx context.Context, jobID string, expectedVersion int64, status domain.InstallationStatus, schedule *JobSchedule) (*domain.InstallationJob, error) {
	var (
		job *domain.InstallationJob
		err error
	)
	if schedule != nil {
		query := `
			UPDATE installation_jobs
			SET status = $3,
			    scheduled_date = $4,
			    technician_id = NULLIF($5, '')::uuid,
			    reschedule_deadline = $6,
			    version = version + 1,
			    updated_at = now()
			WHERE job_id = $1::uuid AND version = $2
			RETURNING ` + jobColumns
		job, err = scanJob(r.db.QueryRowContext(ctx, query,
			jobID, expectedVersion, status, schedule.Date, schedule.TechnicianID, schedule.RescheduleDeadline))
	} else {
		query := `
			UPDATE installation_jobs
			SET status = $3, version = version + 1, updated_at = now()
			WHERE job_id = $1::uuid AND version = $2
			RETURNING ` + jobColumns
		job, err = scanJob(r.db.QueryRowContext(ctx, query, jobID, expectedVersion, status))
	}
	if err == nil {
		return job, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update installation job status: %w", err)
	}
	return nil, casFailure(ctx, r.db, "installation_jobs", "job_id", jobID)
}

func (r *PostgresInstallationsRepository) SetCalendarEventID(ctx context.Context, jobID, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE installation_jobs SET calendar_event_id = NULLIF($2, '') WHERE job_id = $1::uuid`,
		jobID, eventID)
	if err != nil {
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}
	return nil
}

func (r *PostgresInstallationsRepository) ListOverduePastDeadline(ctx context.Context, now time.Time) ([]*domain.InstallationJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM installation_jobs
		WHERE status IN ('scheduled', 'in_progress')
		  AND reschedule_deadline IS NOT NULL
		  AND reschedule_deadline < $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.InstallationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
