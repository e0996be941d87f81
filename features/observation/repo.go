package observation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rateright/backend/features/provider"
	"rateright/backend/internal/geo"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, o *Observation) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO observations (id, provider_id, service_type, category, price, currency, source_type, source_url, lng, lat, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, q,
		o.ID, o.ProviderID, o.ServiceType, o.Category, o.Price, o.Currency,
		string(o.SourceType), o.SourceURL, o.Location.Lng, o.Location.Lat, o.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListByProvider(ctx context.Context, providerID string, limit int) ([]Observation, error) {
	const q = `
		SELECT id, provider_id, service_type, category, price, currency, source_type, source_url, lng, lat, observed_at, created_at
		FROM observations
		WHERE provider_id = $1
		ORDER BY observed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, providerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanObservation(rows *sql.Rows) (Observation, error) {
	var o Observation
	var src string
	err := rows.Scan(
		&o.ID, &o.ProviderID, &o.ServiceType, &o.Category, &o.Price, &o.Currency,
		&src, &o.SourceURL, &o.Location.Lng, &o.Location.Lat, &o.ObservedAt, &o.CreatedAt,
	)
	if err != nil {
		return o, fmt.Errorf("scan observation: %w", err)
	}
	o.SourceType = SourceType(src)
	return o, nil
}

// distance over the observation's denormalized coordinates, so the query
// never depends on the provider row having moved.
const distanceExpr = `6371000 * acos(least(1.0,
	cos(radians($2)) * cos(radians(o.lat)) * cos(radians(o.lng) - radians($3))
	+ sin(radians($2)) * sin(radians(o.lat))))`

func (r *PostgresRepo) FindNearby(ctx context.Context, serviceSlug string, center geo.Point, radiusMeters float64, providerLimit int) ([]PricedProvider, error) {
	q := fmt.Sprintf(`
		SELECT o.id, o.provider_id, o.service_type, o.category, o.price, o.currency,
		       o.source_type, o.source_url, o.lng, o.lat, o.observed_at, o.created_at,
		       p.id, p.name, p.category, p.lng, p.lat, p.address, p.city, p.phone,
		       p.email, p.website, p.rating, p.review_count, p.description, p.created_at,
		       %s AS distance_meters
		FROM observations o
		JOIN providers p ON p.id = o.provider_id
		WHERE o.service_type = $1
		  AND %s <= $4
		ORDER BY distance_meters, o.observed_at DESC`, distanceExpr, distanceExpr)

	rows, err := r.db.QueryContext(ctx, q, serviceSlug, center.Lat, center.Lng, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("find nearby observations: %w", err)
	}
	defer rows.Close()

	var (
		out   []PricedProvider
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			o        Observation
			src      string
			p        provider.Provider
			distance float64
		)
		if err := rows.Scan(
			&o.ID, &o.ProviderID, &o.ServiceType, &o.Category, &o.Price, &o.Currency,
			&src, &o.SourceURL, &o.Location.Lng, &o.Location.Lat, &o.ObservedAt, &o.CreatedAt,
			&p.ID, &p.Name, &p.Category, &p.Location.Lng, &p.Location.Lat, &p.Address, &p.City, &p.Phone,
			&p.Email, &p.Website, &p.Rating, &p.ReviewCount, &p.Description, &p.CreatedAt,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("scan nearby observation: %w", err)
		}
		o.SourceType = SourceType(src)

		i, seen := index[p.ID]
		if !seen {
			if len(out) >= providerLimit {
				continue
			}
			out = append(out, PricedProvider{Provider: p, DistanceMeters: distance})
			i = len(out) - 1
			index[p.ID] = i
		}
		out[i].Observations = append(out[i].Observations, o)
	}
	return out, rows.Err()
}
