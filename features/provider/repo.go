package provider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rateright/backend/internal/geo"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const providerColumns = `id, name, category, lng, lat, address, city, phone, email, website, rating, review_count, description, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(s rowScanner, p *Provider) error {
	return s.Scan(
		&p.ID, &p.Name, &p.Category, &p.Location.Lng, &p.Location.Lat,
		&p.Address, &p.City, &p.Phone, &p.Email, &p.Website,
		&p.Rating, &p.ReviewCount, &p.Description, &p.CreatedAt,
	)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*Provider, error) {
	q := fmt.Sprintf(`SELECT %s FROM providers WHERE id = $1`, providerColumns)

	var p Provider
	err := scanProvider(r.db.QueryRowContext(ctx, q, id), &p)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepo) GetByIDs(ctx context.Context, ids []string) ([]Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM providers WHERE id = ANY($1)`, providerColumns)

	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := scanProvider(rows, &p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert keys on (name, address) so re-running discovery for the same area
// never duplicates a business. Fields the new row leaves empty keep their
// stored values.
func (r *PostgresRepo) Upsert(ctx context.Context, p *Provider) (*Provider, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	q := fmt.Sprintf(`
		INSERT INTO providers (id, name, category, lng, lat, address, city, phone, email, website, rating, review_count, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (name, address) DO UPDATE SET
			category     = COALESCE(NULLIF(EXCLUDED.category, ''), providers.category),
			lng          = EXCLUDED.lng,
			lat          = EXCLUDED.lat,
			city         = COALESCE(NULLIF(EXCLUDED.city, ''), providers.city),
			phone        = COALESCE(NULLIF(EXCLUDED.phone, ''), providers.phone),
			email        = COALESCE(NULLIF(EXCLUDED.email, ''), providers.email),
			website      = COALESCE(NULLIF(EXCLUDED.website, ''), providers.website),
			rating       = GREATEST(EXCLUDED.rating, providers.rating),
			review_count = GREATEST(EXCLUDED.review_count, providers.review_count),
			description  = COALESCE(NULLIF(EXCLUDED.description, ''), providers.description)
		RETURNING %s`, providerColumns)

	var stored Provider
	err := scanProvider(r.db.QueryRowContext(ctx, q,
		p.ID, p.Name, p.Category, p.Location.Lng, p.Location.Lat,
		p.Address, p.City, p.Phone, p.Email, p.Website,
		p.Rating, p.ReviewCount, p.Description,
	), &stored)
	if err != nil {
		return nil, fmt.Errorf("upsert provider: %w", err)
	}
	return &stored, nil
}

// distanceExpr is the spherical law of cosines over the row's lat/lng,
// parameterised on the query point. least() guards acos against rounding
// just above 1.
const distanceExpr = `6371000 * acos(least(1.0,
	cos(radians($2)) * cos(radians(lat)) * cos(radians(lng) - radians($3))
	+ sin(radians($2)) * sin(radians(lat))))`

func (r *PostgresRepo) FindNearbyByCategory(ctx context.Context, category string, center geo.Point, radiusMeters float64, limit int) ([]Nearby, error) {
	q := fmt.Sprintf(`
		SELECT %s, %s AS distance_meters
		FROM providers
		WHERE category = $1
		  AND %s <= $4
		ORDER BY distance_meters
		LIMIT $5`, providerColumns, distanceExpr, distanceExpr)

	rows, err := r.db.QueryContext(ctx, q, category, center.Lat, center.Lng, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby providers: %w", err)
	}
	defer rows.Close()

	var out []Nearby
	for rows.Next() {
		var n Nearby
		if err := rows.Scan(
			&n.ID, &n.Name, &n.Category, &n.Location.Lng, &n.Location.Lat,
			&n.Address, &n.City, &n.Phone, &n.Email, &n.Website,
			&n.Rating, &n.ReviewCount, &n.Description, &n.CreatedAt,
			&n.DistanceMeters,
		); err != nil {
			return nil, fmt.Errorf("scan nearby provider: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
