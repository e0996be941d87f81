package provider

import (
	"context"
	"errors"
	"time"

	"rateright/backend/internal/geo"
)

var ErrNotFound = errors.New("provider not found")

type Provider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Location    geo.Point `json:"location"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	ReviewCount int       `json:"review_count,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Nearby is a provider row annotated with its distance from a query point.
type Nearby struct {
	Provider
	DistanceMeters float64 `json:"distance_meters"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Provider, error)
	GetByIDs(ctx context.Context, ids []string) ([]Provider, error)
	// Upsert inserts by (name, address), filling in fields that a later
	// discovery pass learned. Returns the stored row with its id.
	Upsert(ctx context.Context, p *Provider) (*Provider, error)
	// FindNearbyByCategory returns providers of a category within
	// radiusMeters of the point, closest first.
	FindNearbyByCategory(ctx context.Context, category string, center geo.Point, radiusMeters float64, limit int) ([]Nearby, error)
}
