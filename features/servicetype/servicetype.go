package servicetype

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("service type not found")

// ServiceType is a named category of service work. The embedding vector
// itself lives in the semantic index keyed by slug; Embedded records
// whether one has been written yet.
type ServiceType struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Embedded    bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type MatchSource string

const (
	MatchSourceText   MatchSource = "text"
	MatchSourceVector MatchSource = "vector"
)

// Match is one query-resolution hit. Ephemeral, never persisted.
type Match struct {
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	MatchSource MatchSource `json:"match_source"`
	Score       float64     `json:"score"`
}

type Repository interface {
	GetBySlug(ctx context.Context, slug string) (*ServiceType, error)
	// Upsert inserts the service type when the slug is new; existing rows
	// are left untouched. Reports whether a row was inserted.
	Upsert(ctx context.Context, st *ServiceType) (bool, error)
	MarkEmbedded(ctx context.Context, slug string) error
	// ListUnembedded feeds the lazy embedding backfill.
	ListUnembedded(ctx context.Context, limit int) ([]ServiceType, error)
	SearchLexical(ctx context.Context, query string, threshold float64, limit int) ([]Match, error)
}
