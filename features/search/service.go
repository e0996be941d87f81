package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"rateright/backend/features/discovery"
	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/features/servicetype"
	"rateright/backend/internal/geo"
	"rateright/backend/internal/middleware"
)

var ErrValidation = errors.New("validation error")

// Resolver is the query-matching side of the service-type feature.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]servicetype.Match, bool, error)
}

// InquiryStatuses reports the latest inquiry status per provider for a
// service, so search results show whether an email is already out.
type InquiryStatuses interface {
	LatestStatusByProvider(ctx context.Context, providerIDs []string, serviceSlug string) (map[string]string, error)
}

// Publisher hands discovery tasks to the queue. Satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// ReplyChecker drains the inquiry inbox. Every search kicks one check in
// the background so replies land without waiting for the poller interval.
type ReplyChecker interface {
	CheckReplies(ctx context.Context) (int, error)
}

type Config struct {
	CoverageThreshold int
	ProviderLimit     int
	ClaimTTL          time.Duration
	// CooldownTTL keeps a just-finished key from immediately re-triggering
	// when the cascade found nothing.
	CooldownTTL time.Duration
	Topic       string
}

// Service is the top-level search coordinator: resolve the query, aggregate
// known prices, and when coverage is thin hand the key to the discovery
// queue without blocking the caller.
type Service struct {
	resolver     Resolver
	observations observation.Repository
	providers    provider.Repository
	types        servicetype.Repository
	inquiries    InquiryStatuses
	claims       discovery.ClaimStore
	publisher    Publisher
	replies      ReplyChecker
	logger       *slog.Logger
	cfg          Config

	replyCheckRunning atomic.Bool
}

func NewService(
	resolver Resolver,
	observations observation.Repository,
	providers provider.Repository,
	types servicetype.Repository,
	inquiries InquiryStatuses,
	claims discovery.ClaimStore,
	publisher Publisher,
	replies ReplyChecker,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.ProviderLimit <= 0 {
		cfg.ProviderLimit = 50
	}
	return &Service{
		resolver:     resolver,
		observations: observations,
		providers:    providers,
		types:        types,
		inquiries:    inquiries,
		claims:       claims,
		publisher:    publisher,
		replies:      replies,
		logger:       logger,
		cfg:          cfg,
	}
}

func (s *Service) Search(ctx context.Context, query string, lat, lng, radiusMeters float64) (*Response, error) {
	s.kickReplyCheck(ctx)

	matches, textOnly, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	center := geo.Point{Lng: lng, Lat: lat}
	priced, err := s.aggregate(ctx, matches, center, radiusMeters)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Query:               query,
		MatchedServiceTypes: matches,
		Results:             []Result{},
		TextOnly:            textOnly,
	}

	resp.PriceStats = ComputeStats(priced)
	for _, pp := range priced {
		resp.Results = append(resp.Results, toResult(pp, resp.PriceStats))
	}

	s.appendUnpriced(ctx, matches, center, radiusMeters, resp)
	s.annotateInquiries(ctx, matches, query, resp)

	pricedCount := 0
	if resp.PriceStats != nil {
		pricedCount = resp.PriceStats.SampleSize
	}
	if pricedCount < s.cfg.CoverageThreshold {
		s.triggerDiscovery(ctx, query, matches, lat, lng, radiusMeters, resp)
	}
	return resp, nil
}

// kickReplyCheck drains the inquiry inbox off the request path. At most
// one check runs at a time; searches arriving while one is in flight
// skip it.
func (s *Service) kickReplyCheck(ctx context.Context) {
	if s.replies == nil || !s.replyCheckRunning.CompareAndSwap(false, true) {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer s.replyCheckRunning.Store(false)
		cctx, cancel := context.WithTimeout(bg, time.Minute)
		defer cancel()
		if _, err := s.replies.CheckReplies(cctx); err != nil {
			s.logger.WarnContext(cctx, "background reply check failed", "error", err)
		}
	}()
}

// aggregate collects priced providers across every matched service type,
// deduplicated by provider, closest first.
func (s *Service) aggregate(ctx context.Context, matches []servicetype.Match, center geo.Point, radiusMeters float64) ([]observation.PricedProvider, error) {
	var (
		out   []observation.PricedProvider
		index = make(map[string]int)
	)
	for _, m := range matches {
		found, err := s.observations.FindNearby(ctx, m.Slug, center, radiusMeters, s.cfg.ProviderLimit)
		if err != nil {
			return nil, err
		}
		for _, pp := range found {
			if i, seen := index[pp.Provider.ID]; seen {
				out[i].Observations = append(out[i].Observations, pp.Observations...)
				continue
			}
			index[pp.Provider.ID] = len(out)
			out = append(out, pp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if len(out) > s.cfg.ProviderLimit {
		out = out[:s.cfg.ProviderLimit]
	}
	return out, nil
}

// appendUnpriced adds nearby providers of the matched categories that have
// no price yet, so callers can still contact or book them.
func (s *Service) appendUnpriced(ctx context.Context, matches []servicetype.Match, center geo.Point, radiusMeters float64, resp *Response) {
	seen := make(map[string]bool, len(resp.Results))
	for _, r := range resp.Results {
		seen[r.ID] = true
	}

	for _, category := range s.matchedCategories(ctx, matches) {
		nearby, err := s.providers.FindNearbyByCategory(ctx, category, center, radiusMeters, s.cfg.ProviderLimit)
		if err != nil {
			s.logger.WarnContext(ctx, "unpriced provider lookup failed", "category", category, "error", err)
			continue
		}
		for _, n := range nearby {
			if seen[n.ID] || len(resp.Results) >= s.cfg.ProviderLimit {
				continue
			}
			seen[n.ID] = true
			r := providerResult(n.Provider)
			r.DistanceMeters = n.DistanceMeters
			resp.Results = append(resp.Results, r)
		}
	}
}

func (s *Service) matchedCategories(ctx context.Context, matches []servicetype.Match) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, m := range matches {
		st, err := s.types.GetBySlug(ctx, m.Slug)
		if err != nil {
			s.logger.WarnContext(ctx, "matched service type missing", "slug", m.Slug, "error", err)
			continue
		}
		if st.Category != "" && !seen[st.Category] {
			seen[st.Category] = true
			out = append(out, st.Category)
		}
	}
	return out
}

func (s *Service) annotateInquiries(ctx context.Context, matches []servicetype.Match, query string, resp *Response) {
	if s.inquiries == nil || len(resp.Results) == 0 {
		return
	}
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.ID)
	}
	statuses, err := s.inquiries.LatestStatusByProvider(ctx, ids, primarySlug(matches, query))
	if err != nil {
		s.logger.WarnContext(ctx, "inquiry status lookup failed", "error", err)
		return
	}
	for i := range resp.Results {
		resp.Results[i].InquiryStatus = statuses[resp.Results[i].ID]
	}
}

const cooldownSuffix = ":cooldown"

// triggerDiscovery claims the normalized key and queues a cascade. A second
// cooldown key stops a just-completed empty cascade from re-firing on every
// poll. Claim-store failures degrade to a plain response, never an error.
func (s *Service) triggerDiscovery(ctx context.Context, query string, matches []servicetype.Match, lat, lng, radiusMeters float64, resp *Response) {
	if s.claims == nil || s.publisher == nil {
		return
	}
	key := discovery.NormalizeKey(query, lat, lng, radiusMeters)

	inflight, err := s.claims.InFlight(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "claim store unavailable", "error", err)
		return
	}
	if inflight {
		resp.ScrapingInProgress = true
		return
	}

	claimed, err := s.claims.Claim(ctx, key, s.cfg.ClaimTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "claim store unavailable", "error", err)
		return
	}
	if !claimed {
		// lost the race to another searcher; their cascade covers us
		resp.ScrapingInProgress = true
		return
	}

	cooled, err := s.claims.Claim(ctx, key+cooldownSuffix, s.cfg.CooldownTTL)
	if err != nil || !cooled {
		// a cascade for this key just finished without improving coverage;
		// don't re-fire on every poll
		if relErr := s.claims.Release(ctx, key); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release claim", "key", key, "error", relErr)
		}
		return
	}

	task := s.buildTask(ctx, key, query, matches, lat, lng, radiusMeters)
	body, err := json.Marshal(task)
	if err == nil {
		err = s.publisher.Publish(s.cfg.Topic, body)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to queue discovery task", "key", key, "error", err)
		if relErr := s.claims.Release(ctx, key); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release claim after publish failure", "key", key, "error", relErr)
		}
		return
	}

	resp.DiscoveryTriggered = true
	resp.ScrapingInProgress = true
	s.logger.InfoContext(ctx, "discovery triggered", "key", key)
}

func (s *Service) buildTask(ctx context.Context, key, query string, matches []servicetype.Match, lat, lng, radiusMeters float64) *discovery.Task {
	task := &discovery.Task{
		Key:           key,
		Query:         query,
		Lat:           lat,
		Lng:           lng,
		RadiusMeters:  radiusMeters,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if len(matches) > 0 {
		task.ServiceSlug = matches[0].Slug
		task.ServiceName = matches[0].Name
		if st, err := s.types.GetBySlug(ctx, matches[0].Slug); err == nil {
			task.Category = st.Category
			task.Description = st.Description
		}
	}
	return task
}

func primarySlug(matches []servicetype.Match, query string) string {
	if len(matches) > 0 {
		return matches[0].Slug
	}
	return query
}

func toResult(pp observation.PricedProvider, stats *PriceStats) Result {
	r := providerResult(pp.Provider)
	r.DistanceMeters = pp.DistanceMeters

	lowest := 0.0
	for _, o := range pp.Observations {
		r.Observations = append(r.Observations, ResultObservation{
			ServiceType: o.ServiceType,
			Price:       o.Price,
			Currency:    o.Currency,
			SourceType:  string(o.SourceType),
			ObservedAt:  o.ObservedAt.UTC().Format(time.RFC3339),
		})
		if o.Price > 0 && (lowest == 0 || o.Price < lowest) {
			lowest = o.Price
		}
	}
	r.PriceCallout = Classify(lowest, stats)
	return r
}

func providerResult(p provider.Provider) Result {
	return Result{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Address:      p.Address,
		City:         p.City,
		Location:     p.Location.GeoJSON(),
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
		Description:  p.Description,
		Website:      p.Website,
		Observations: []ResultObservation{},
	}
}
