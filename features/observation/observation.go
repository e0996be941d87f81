package observation

import (
	"context"
	"time"

	"rateright/backend/features/provider"
	"rateright/backend/internal/geo"
)

// SourceType records how a price was obtained.
type SourceType string

const (
	SourceScrape     SourceType = "scrape"
	SourceManual     SourceType = "manual"
	SourceReceipt    SourceType = "receipt"
	SourceQuote      SourceType = "quote"
	SourceEmailReply SourceType = "email_reply"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceScrape, SourceManual, SourceReceipt, SourceQuote, SourceEmailReply:
		return true
	}
	return false
}

// Observation is one observed price for a service at a provider. Rows are
// append-only; corrections are new observations, never edits.
type Observation struct {
	ID          string     `json:"id"`
	ProviderID  string     `json:"provider_id"`
	ServiceType string     `json:"service_type"`
	Category    string     `json:"category,omitempty"`
	Price       float64    `json:"price"`
	Currency    string     `json:"currency"`
	SourceType  SourceType `json:"source_type"`
	SourceURL   string     `json:"source_url,omitempty"`
	Location    geo.Point  `json:"location"`
	ObservedAt  time.Time  `json:"observed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PricedProvider is a provider with its price observations for one service,
// annotated with distance from the query point.
type PricedProvider struct {
	Provider       provider.Provider `json:"provider"`
	DistanceMeters float64           `json:"distance_meters"`
	Observations   []Observation     `json:"observations"`
}

type Repository interface {
	Insert(ctx context.Context, o *Observation) error
	ListByProvider(ctx context.Context, providerID string, limit int) ([]Observation, error)
	// FindNearby returns providers that have at least one observation for
	// the service within radiusMeters of the point, closest provider
	// first, capped at providerLimit providers.
	FindNearby(ctx context.Context, serviceSlug string, center geo.Point, radiusMeters float64, providerLimit int) ([]PricedProvider, error)
}
