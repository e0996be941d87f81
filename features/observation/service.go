package observation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rateright/backend/features/provider"
	"rateright/backend/features/servicetype"
)

var ErrValidation = errors.New("validation error")

// Service validates manual price submissions and denormalizes the provider
// location onto the observation row.
type Service struct {
	repo      Repository
	providers provider.Repository
	types     servicetype.Repository
}

func NewService(repo Repository, providers provider.Repository, types servicetype.Repository) *Service {
	return &Service{repo: repo, providers: providers, types: types}
}

func (s *Service) Record(ctx context.Context, o *Observation) error {
	if o.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if !o.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source_type %q", ErrValidation, o.SourceType)
	}
	if o.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}

	st, err := s.types.GetBySlug(ctx, o.ServiceType)
	if err != nil {
		if errors.Is(err, servicetype.ErrNotFound) {
			return fmt.Errorf("%w: unknown service type %q", ErrValidation, o.ServiceType)
		}
		return err
	}
	o.Category = st.Category

	p, err := s.providers.GetByID(ctx, o.ProviderID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return fmt.Errorf("%w: unknown provider %q", ErrValidation, o.ProviderID)
		}
		return err
	}
	o.Location = p.Location

	if o.ObservedAt.IsZero() {
		o.ObservedAt = time.Now().UTC()
	}
	return s.repo.Insert(ctx, o)
}

func (s *Service) ListByProvider(ctx context.Context, providerID string, limit int) ([]Observation, error) {
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider_id is required", ErrValidation)
	}
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListByProvider(ctx, providerID, limit)
}
