package servicetype

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetBySlug(ctx context.Context, slug string) (*ServiceType, error) {
	const q = `
		SELECT id, slug, name, category, description, embedded, created_at
		FROM service_types
		WHERE slug = $1`

	var st ServiceType
	err := r.db.QueryRowContext(ctx, q, slug).Scan(
		&st.ID, &st.Slug, &st.Name, &st.Category, &st.Description, &st.Embedded, &st.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service type: %w", err)
	}
	return &st, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, st *ServiceType) (bool, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO service_types (id, slug, name, category, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q, st.ID, st.Slug, st.Name, st.Category, st.Description)
	if err != nil {
		return false, fmt.Errorf("upsert service type: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert service type: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepo) MarkEmbedded(ctx context.Context, slug string) error {
	const q = `UPDATE service_types SET embedded = TRUE WHERE slug = $1`
	if _, err := r.db.ExecContext(ctx, q, slug); err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListUnembedded(ctx context.Context, limit int) ([]ServiceType, error) {
	const q = `
		SELECT id, slug, name, category, description, embedded, created_at
		FROM service_types
		WHERE embedded = FALSE
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list unembedded: %w", err)
	}
	defer rows.Close()

	var out []ServiceType
	for rows.Next() {
		var st ServiceType
		if err := rows.Scan(&st.ID, &st.Slug, &st.Name, &st.Category, &st.Description, &st.Embedded, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service type: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SearchLexical matches the raw query against name, slug and category using
// trigram similarity. Requires the pg_trgm extension.
func (r *PostgresRepo) SearchLexical(ctx context.Context, query string, threshold float64, limit int) ([]Match, error) {
	const q = `
		SELECT slug, name,
		       similarity(name || ' ' || replace(slug, '_', ' ') || ' ' || category, $1) AS score
		FROM service_types
		WHERE similarity(name || ' ' || replace(slug, '_', ' ') || ' ' || category, $1) >= $2
		ORDER BY score DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, q, query, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m := Match{MatchSource: MatchSourceText}
		if err := rows.Scan(&m.Slug, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
