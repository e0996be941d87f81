package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/internal/adapter/serpapi"
	"rateright/backend/internal/geo"
)

// PlaceSearcher is the external business-listing capability, nil when
// SerpAPI is not configured.
type PlaceSearcher interface {
	SearchMaps(ctx context.Context, query string, lat, lng, radiusMeters float64) ([]serpapi.Business, error)
}

// Orchestrator runs the price-discovery cascade for one claimed key:
// business-listing discovery to gather candidate providers, then the tier
// strategies per provider with bounded concurrency. Tier order is strict
// per provider; providers run in parallel.
type Orchestrator struct {
	places       PlaceSearcher
	providers    provider.Repository
	observations observation.Repository
	strategies   []Strategy
	claims       ClaimStore
	pool         *ants.Pool
	logger       *slog.Logger

	candidateLimit int
}

func NewOrchestrator(
	places PlaceSearcher,
	providers provider.Repository,
	observations observation.Repository,
	strategies []Strategy,
	claims ClaimStore,
	concurrency int,
	logger *slog.Logger,
) (*Orchestrator, error) {
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		places:         places,
		providers:      providers,
		observations:   observations,
		strategies:     strategies,
		claims:         claims,
		pool:           pool,
		logger:         logger,
		candidateLimit: 20,
	}, nil
}

func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Run executes the cascade for one task and releases the claim when done,
// regardless of outcome. The caller bounds total duration via ctx.
func (o *Orchestrator) Run(ctx context.Context, task *Task) error {
	defer func() {
		if err := o.claims.Release(context.WithoutCancel(ctx), task.Key); err != nil {
			o.logger.ErrorContext(ctx, "failed to release discovery claim", "key", task.Key, "error", err)
		}
	}()

	candidates := o.gatherCandidates(ctx, task)
	if len(candidates) == 0 {
		o.logger.InfoContext(ctx, "discovery found no candidate providers", "key", task.Key)
		return nil
	}

	var wg sync.WaitGroup
	for i := range candidates {
		p := candidates[i]
		wg.Add(1)
		if err := o.pool.Submit(func() {
			defer wg.Done()
			o.runProvider(ctx, task, &p)
		}); err != nil {
			wg.Done()
			o.logger.WarnContext(ctx, "failed to submit cascade job", "provider_id", p.ID, "error", err)
		}
	}
	wg.Wait()

	o.logger.InfoContext(ctx, "discovery cascade finished", "key", task.Key, "candidates", len(candidates))
	return ctx.Err()
}

// gatherCandidates unions providers from the place-search capability with
// already-known unpriced providers of the same category near the point.
func (o *Orchestrator) gatherCandidates(ctx context.Context, task *Task) []provider.Provider {
	center := geo.Point{Lng: task.Lng, Lat: task.Lat}
	priced := o.pricedProviders(ctx, task, center)

	var (
		out  []provider.Provider
		seen = make(map[string]bool)
	)
	add := func(p provider.Provider) {
		if seen[p.ID] || priced[p.ID] || len(out) >= o.candidateLimit {
			return
		}
		seen[p.ID] = true
		out = append(out, p)
	}

	if o.places != nil {
		businesses, err := o.places.SearchMaps(ctx, task.Query, task.Lat, task.Lng, task.RadiusMeters)
		if err != nil {
			o.logger.WarnContext(ctx, "place search unavailable", "error", err)
		}
		var ids []string
		for _, b := range businesses {
			// The zoom level only approximates the search area, so
			// listings can come back well outside it. Enforce the radius
			// before anything is stored or crawled.
			if geo.Haversine(center, geo.Point{Lng: b.Longitude, Lat: b.Latitude}) > task.RadiusMeters {
				continue
			}
			category := task.Category
			if category == "" {
				category = b.Type
			}
			stored, err := o.providers.Upsert(ctx, &provider.Provider{
				Name:        b.Name,
				Category:    category,
				Location:    geo.Point{Lng: b.Longitude, Lat: b.Latitude},
				Address:     b.Address,
				Phone:       b.Phone,
				Website:     b.Website,
				Rating:      b.Rating,
				ReviewCount: b.ReviewCount,
			})
			if err != nil {
				o.logger.WarnContext(ctx, "provider upsert failed", "name", b.Name, "error", err)
				continue
			}
			ids = append(ids, stored.ID)
		}
		for _, p := range o.discoveredWithinRadius(ctx, ids, center, task.RadiusMeters) {
			add(p)
		}
	}

	if task.Category != "" {
		known, err := o.providers.FindNearbyByCategory(ctx, task.Category, center, task.RadiusMeters, o.candidateLimit)
		if err != nil {
			o.logger.WarnContext(ctx, "nearby provider lookup failed", "error", err)
		}
		for _, n := range known {
			add(n.Provider)
		}
	}
	return out
}

// discoveredWithinRadius re-reads the just-discovered rows as a batch and
// keeps the ones whose stored location is inside the task radius. An
// upsert keyed on (name, address) can hold an earlier location for a
// listing the search reported elsewhere.
func (o *Orchestrator) discoveredWithinRadius(ctx context.Context, ids []string, center geo.Point, radiusMeters float64) []provider.Provider {
	if len(ids) == 0 {
		return nil
	}
	rows, err := o.providers.GetByIDs(ctx, ids)
	if err != nil {
		o.logger.WarnContext(ctx, "discovered provider lookup failed", "error", err)
		return nil
	}
	kept := rows[:0]
	for _, p := range rows {
		if geo.Haversine(center, p.Location) <= radiusMeters {
			kept = append(kept, p)
		}
	}
	return kept
}

// pricedProviders returns the IDs that already carry an observation for
// the task's service in this area, so the cascade skips them.
func (o *Orchestrator) pricedProviders(ctx context.Context, task *Task, center geo.Point) map[string]bool {
	out := make(map[string]bool)
	slug := task.ServiceSlug
	if slug == "" {
		return out
	}
	existing, err := o.observations.FindNearby(ctx, slug, center, task.RadiusMeters, o.candidateLimit)
	if err != nil {
		o.logger.WarnContext(ctx, "priced provider lookup failed", "error", err)
		return out
	}
	for _, pp := range existing {
		out[pp.Provider.ID] = true
	}
	return out
}

func (o *Orchestrator) runProvider(ctx context.Context, task *Task, p *provider.Provider) {
	v := &Visit{Task: task, Provider: p}
	for _, s := range o.strategies {
		if ctx.Err() != nil {
			return
		}
		res, err := s.Run(ctx, v)
		logTier(ctx, o.logger, s.Name(), res, err, p.ID)
		if res == TierFound {
			return
		}
	}
}
