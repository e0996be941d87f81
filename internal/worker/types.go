package worker

import (
	"context"

	"rateright/backend/features/discovery"
	"rateright/backend/features/servicetype"
)

// CascadeRunner executes a price-discovery cascade for one claimed task.
type CascadeRunner interface {
	Run(ctx context.Context, task *discovery.Task) error
}

// QueryCondenser turns a raw user query into a clean service-type name.
type QueryCondenser interface {
	CondenseQuery(ctx context.Context, query string) string
}

// TypeRegistrar registers service types discovered from raw queries so
// future searches resolve them lexically and semantically.
type TypeRegistrar interface {
	EnsureExists(ctx context.Context, name, category, description string) (*servicetype.ServiceType, error)
}

// ReplyChecker polls the inquiry inbox and converts replies into
// price observations.
type ReplyChecker interface {
	CheckReplies(ctx context.Context) (int, error)
}
