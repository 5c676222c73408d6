package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"opsdesk/internal/domain"
)

// PostgresDocsRepository troubleshooting docs tree repository.
type PostgresDocsRepository struct {
	db *sql.DB
}

func NewPostgresDocsRepository(db *sql.DB) *PostgresDocsRepository {
	return &PostgresDocsRepository{db: db}
}

var _ DocsRepository = (*PostgresDocsRepository)(nil)

// Liveness checks walk up the tree: a node with a logically deleted ancestor
// counts as deleted itself.

func (r *PostgresDocsRepository) categoryAlive(ctx context.Context, categoryID string) error {
	return r.checkAlive(ctx, "doc_categories", categoryID, `
		SELECT EXISTS(
			SELECT 1 FROM doc_categories
			WHERE category_id = $1::uuid AND NOT deleted
		)`)
}

func (r *PostgresDocsRepository) subcategoryAlive(ctx context.Context, subcategoryID string) error {
	return r.checkAlive(ctx, "doc_subcategories", subcategoryID, `
		SELECT EXISTS(
			SELECT 1
			FROM doc_subcategories sc
			JOIN doc_categories c ON c.category_id = sc.category_id AND NOT c.deleted
			WHERE sc.subcategory_id = $1::uuid AND NOT sc.deleted
		)`)
}

func (r *PostgresDocsRepository) subsubAlive(ctx context.Context, subSubcategoryID string) error {
	return r.checkAlive(ctx, "doc_subsubcategories", subSubcategoryID, `
		SELECT EXISTS(
			SELECT 1
			FROM doc_subsubcategories ss
			JOIN doc_subcategories sc ON sc.subcategory_id = ss.subcategory_id AND NOT sc.deleted
			JOIN doc_categories c ON c.category_id = sc.category_id AND NOT c.deleted
			WHERE ss.subsubcategory_id = $1::uuid AND NOT ss.deleted
		)`)
}

func (r *PostgresDocsRepository) checkAlive(ctx context.Context, table, id, query string) error {
	var alive bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&alive); err != nil {
		return fmt.Errorf("failed to check %s: %w", table, err)
	}
	if !alive {
		return fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
	}
	return nil
}

// deleteNode marks the node deleted and bumps the version of every live step
// underneath it, in one transaction. The bumped versions let the projection
// tombstone the orphaned steps under external versioning.
func (r *PostgresDocsRepository) deleteNode(ctx context.Context, table, idColumn, id, stepFilter string) ([]StepTombstone, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET deleted = true WHERE %s = $1::uuid AND NOT deleted", table, idColumn), id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		UPDATE doc_steps
		SET version = version + 1, updated_at = now()
		WHERE NOT deleted AND %s
		RETURNING step_id::text, version
	`, stepFilter), id)
	if err != nil {
		return nil, fmt.Errorf("failed to bump orphaned steps: %w", err)
	}
	var tombstones []StepTombstone
	for rows.Next() {
		var ts StepTombstone
		if err := rows.Scan(&ts.StepID, &ts.Version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan orphaned step: %w", err)
		}
		tombstones = append(tombstones, ts)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return tombstones, nil
}

func (r *PostgresDocsRepository) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	c := &domain.Category{CategoryID: uuid.NewString(), Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO doc_categories (category_id, name) VALUES ($1::uuid, $2) RETURNING created_at`,
		c.CategoryID, c.Name).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

func (r *PostgresDocsRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id::text, name, created_at FROM doc_categories WHERE NOT deleted ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var list []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *PostgresDocsRepository) DeleteCategory(ctx context.Context, categoryID string) ([]StepTombstone, error) {
	return r.deleteNode(ctx, "doc_categories", "category_id", categoryID, `
		subsubcategory_id IN (
			SELECT ss.subsubcategory_id
			FROM doc_subsubcategories ss
			JOIN doc_subcategories sc ON sc.subcategory_id = ss.subcategory_id
			WHERE sc.category_id = $1::uuid
		)`)
}

func (r *PostgresDocsRepository) CreateSubcategory(ctx context.Context, categoryID, name string) (*domain.Subcategory, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := r.categoryAlive(ctx, categoryID); err != nil {
		return nil, err
	}
	s := &domain.Subcategory{SubcategoryID: uuid.NewString(), CategoryID: categoryID, Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO doc_subcategories (subcategory_id, category_id, name) VALUES ($1::uuid, $2::uuid, $3) RETURNING created_at`,
		s.SubcategoryID, s.CategoryID, s.Name).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subcategory: %w", err)
	}
	return s, nil
}

func (r *PostgresDocsRepository) ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error) {
	if err := r.categoryAlive(ctx, categoryID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT subcategory_id::text, category_id::text, name, created_at
		FROM doc_subcategories
		WHERE category_id = $1::uuid AND NOT deleted
		ORDER BY created_at
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	defer rows.Close()

	var list []*domain.Subcategory
	for rows.Next() {
		var s domain.Subcategory
		if err := rows.Scan(&s.SubcategoryID, &s.CategoryID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *PostgresDocsRepository) DeleteSubcategory(ctx context.Context, subcategoryID string) ([]StepTombstone, error) {
	return r.deleteNode(ctx, "doc_subcategories", "subcategory_id", subcategoryID, `
		subsubcategory_id IN (
			SELECT ss.subsubcategory_id
			FROM doc_subsubcategories ss
			WHERE ss.subcategory_id = $1::uuid
		)`)
}

func (r *PostgresDocsRepository) CreateSubSubcategory(ctx context.Context, subcategoryID, name string) (*domain.SubSubcategory, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := r.subcategoryAlive(ctx, subcategoryID); err != nil {
		return nil, err
	}
	s := &domain.SubSubcategory{SubSubcategoryID: uuid.NewString(), SubcategoryID: subcategoryID, Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO doc_subsubcategories (subsubcategory_id, subcategory_id, name) VALUES ($1::uuid, $2::uuid, $3) RETURNING created_at`,
		s.SubSubcategoryID, s.SubcategoryID, s.Name).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subsubcategory: %w", err)
	}
	return s, nil
}

func (r *PostgresDocsRepository) ListSubSubcategories(ctx context.Context, subcategoryID string) ([]*domain.SubSubcategory, error) {
	if err := r.subcategoryAlive(ctx, subcategoryID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT subsubcategory_id::text, subcategory_id::text, name, created_at
		FROM doc_subsubcategories
		WHERE subcategory_id = $1::uuid AND NOT deleted
		ORDER BY created_at
	`, subcategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subsubcategories: %w", err)
	}
	defer rows.Close()

	var list []*domain.SubSubcategory
	for rows.Next() {
		var s domain.SubSubcategory
		if err := rows.Scan(&s.SubSubcategoryID, &s.SubcategoryID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subsubcategory: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func (r *PostgresDocsRepository) DeleteSubSubcategory(ctx context.Context, subSubcategoryID string) ([]StepTombstone, error) {
	return r.deleteNode(ctx, "doc_subsubcategories", "subsubcategory_id", subSubcategoryID,
		`subsubcategory_id = $1::uuid`)
}

const stepColumns = `
	step_id::text,
	subsubcategory_id::text,
	title,
	COALESCE(description, '') AS description,
	COALESCE(solution, '') AS solution,
	COALESCE(image_path, '') AS image_path,
	status,
	deleted,
	version,
	created_at,
	updated_at`

// qualifiedStepColumns is stepColumns with the doc_steps alias, for joined
// selects where the column names are ambiguous.
const qualifiedStepColumns = `
	s.step_id::text,
	s.subsubcategory_id::text,
	s.title,
	COALESCE(s.description, '') AS description,
	COALESCE(s.solution, '') AS solution,
	COALESCE(s.image_path, '') AS image_path,
	s.status,
	s.deleted,
	s.version,
	s.created_at,
	s.updated_at`

func scanStep(row interface{ Scan(...any) error }) (*domain.Step, error) {
	var s domain.Step
	err := row.Scan(
		&s.StepID, &s.SubSubcategoryID, &s.Title, &s.Description, &s.Solution,
		&s.ImagePath, &s.Status, &s.Deleted, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresDocsRepository) CreateStep(ctx context.Context, step *domain.Step) (*domain.Step, error) {
	if strings.TrimSpace(step.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if err := r.subsubAlive(ctx, step.SubSubcategoryID); err != nil {
		return nil, err
	}
	if step.StepID == "" {
		step.StepID = uuid.NewString()
	}
	if step.Status == "" {
		step.Status = "active"
	}

	query := `
		INSERT INTO doc_steps (step_id, subsubcategory_id, title, description, solution, image_path, status, version)
		VALUES ($1::uuid, $2::uuid, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, 1)
		RETURNING ` + stepColumns
	created, err := scanStep(r.db.QueryRowContext(ctx, query,
		step.StepID, step.SubSubcategoryID, step.Title, step.Description,
		step.Solution, step.ImagePath, step.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to create step: %w", err)
	}
	return created, nil
}

// GetStep resolves only steps whose whole ancestor chain is alive. The
// projection relies on this: a step orphaned by a parent delete fetches as
// not-found and gets tombstoned.
func (r *PostgresDocsRepository) GetStep(ctx context.Context, stepID string) (*domain.Step, error) {
	query := `
		SELECT ` + qualifiedStepColumns + `
		FROM doc_steps s
		JOIN doc_subsubcategories ss ON ss.subsubcategory_id = s.subsubcategory_id AND NOT ss.deleted
		JOIN doc_subcategories sc ON sc.subcategory_id = ss.subcategory_id AND NOT sc.deleted
		JOIN doc_categories c ON c.category_id = sc.category_id AND NOT c.deleted
		WHERE s.step_id = $1::uuid AND NOT s.deleted`
	step, err := scanStep(r.db.QueryRowContext(ctx, query, stepID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("step %s: %w", stepID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

func (r *PostgresDocsRepository) ListSteps(ctx context.Context, subSubcategoryID string) ([]*domain.Step, error) {
	if err := r.subsubAlive(ctx, subSubcategoryID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM doc_steps
		WHERE subsubcategory_id = $1::uuid AND NOT deleted
		ORDER BY created_at
	`, subSubcategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var list []*domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		list = append(list, step)
	}
	return list, rows.Err()
}

func (r *PostgresDocsRepository) DeleteStep(ctx context.Context, stepID string) (*domain.Step, error) {
	query := `
		UPDATE doc_steps
		SET deleted = true, version = version + 1, updated_at = now()
		WHERE step_id = $1::uuid AND NOT deleted
		RETURNING ` + stepColumns
	step, err := scanStep(r.db.QueryRowContext(ctx, query, stepID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("step %s: %w", stepID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete step: %w", err)
	}
	return step, nil
}
