package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"opsdesk/internal/domain"
)

// PostgresSearchFallback relational twin of the index queries. One UNION over
// the four searchable tables, shaped exactly like the projection docs.
type PostgresSearchFallback struct {
	db *sql.DB
}

func NewPostgresSearchFallback(db *sql.DB) *PostgresSearchFallback {
	return &PostgresSearchFallback{db: db}
}

var _ SearchFallback = (*PostgresSearchFallback)(nil)

const fallbackUnion = `
	SELECT 'lead' AS entity_type,
	       l.lead_id::text AS entity_id,
	       l.version,
	       l.company_name AS title,
	       concat_ws(' ', l.contact_name, l.email, l.phone, l.notes) AS body,
	       l.status::text AS status,
	       COALESCE(l.company_id::text, '') AS company_id,
	       COALESCE(l.owner_user_id, '') AS owner_id,
	       l.updated_at
	FROM sales_leads l
	UNION ALL
	SELECT 'offer',
	       o.offer_id::text,
	       o.version,
	       'Offer - ' || l.company_name,
	       COALESCE(o.notes, ''),
	       o.status::text,
	       COALESCE(l.company_id::text, ''),
	       COALESCE(l.owner_user_id, ''),
	       o.updated_at
	FROM sales_offers o
	JOIN sales_leads l ON l.lead_id = o.lead_id
	UNION ALL
	SELECT 'installation',
	       j.job_id::text,
	       j.version,
	       'Installation - ' || l.company_name,
	       COALESCE(j.notes, ''),
	       j.status::text,
	       COALESCE(j.company_id::text, ''),
	       COALESCE(j.technician_id::text, ''),
	       j.updated_at
	FROM installation_jobs j
	JOIN sales_leads l ON l.lead_id = j.lead_id
	UNION ALL
	SELECT 'doc_step',
	       s.step_id::text,
	       s.version,
	       s.title,
	       concat_ws(' ', s.description, s.solution),
	       s.status,
	       '',
	       '',
	       s.updated_at
	FROM doc_steps s
	JOIN doc_subsubcategories ss ON ss.subsubcategory_id = s.subsubcategory_id AND NOT ss.deleted
	JOIN doc_subcategories sc ON sc.subcategory_id = ss.subcategory_id AND NOT sc.deleted
	JOIN doc_categories c ON c.category_id = sc.category_id AND NOT c.deleted
	WHERE NOT s.deleted`

func (r *PostgresSearchFallback) Search(ctx context.Context, q FallbackQuery) ([]domain.SearchDoc, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{}
	args := []any{}
	argn := 1
	if q.Text != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR body ILIKE $%d)", argn, argn))
		args = append(args, "%"+q.Text+"%")
		argn++
	}
	if len(q.EntityTypes) > 0 {
		where = append(where, fmt.Sprintf("entity_type = ANY($%d)", argn))
		args = append(args, pq.Array(q.EntityTypes))
		argn++
	}
	if q.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argn))
		args = append(args, q.Status)
		argn++
	}
	if q.OwnerID != "" {
		where = append(where, fmt.Sprintf("owner_id = $%d", argn))
		args = append(args, q.OwnerID)
		argn++
	}
	if q.Since != nil {
		where = append(where, fmt.Sprintf("updated_at >= $%d", argn))
		args = append(args, *q.Since)
		argn++
	}
	if q.Until != nil {
		where = append(where, fmt.Sprintf("updated_at <= $%d", argn))
		args = append(args, *q.Until)
		argn++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT entity_type, entity_id, version, title, body, status, company_id, owner_id, updated_at,
		       COUNT(*) OVER() AS total
		FROM (%s) AS docs
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, fallbackUnion, clause, argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to run fallback search: %w", err)
	}
	defer rows.Close()

	var docs []domain.SearchDoc
	total := 0
	for rows.Next() {
		var d domain.SearchDoc
		err := rows.Scan(&d.EntityType, &d.EntityID, &d.Version, &d.Title, &d.Body,
			&d.Status, &d.CompanyID, &d.OwnerID, &d.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan fallback doc: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func (r *PostgresSearchFallback) Options(ctx context.Context) (*SearchOptions, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT entity_type, status, owner_id
		FROM (%s) AS docs
	`, fallbackUnion)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load search options: %w", err)
	}
	defer rows.Close()

	types := map[string]bool{}
	statuses := map[string]bool{}
	owners := map[string]bool{}
	for rows.Next() {
		var entityType, status, owner string
		if err := rows.Scan(&entityType, &status, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan search options: %w", err)
		}
		types[entityType] = true
		statuses[status] = true
		if owner != "" {
			owners[owner] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opts := &SearchOptions{
		EntityTypes: sortedKeys(types),
		Statuses:    sortedKeys(statuses),
		Owners:      sortedKeys(owners),
	}
	return opts, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
