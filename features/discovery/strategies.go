package discovery

import (
	"context"
	"log/slog"
	"time"

	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/internal/adapter/gemini"
	"rateright/backend/internal/scraper"
	"rateright/backend/internal/textutil"
)

// TierResult is the tri-state outcome of one cascade tier.
type TierResult int

const (
	// TierFound means the tier produced a price; later tiers are skipped.
	TierFound TierResult = iota
	// TierNotFound means the tier ran and found nothing.
	TierNotFound
	// TierUnavailable means the tier's external capability is not
	// configured or is down. Treated like not-found for cascade control,
	// logged distinctly.
	TierUnavailable
)

func (r TierResult) String() string {
	switch r {
	case TierFound:
		return "found"
	case TierNotFound:
		return "not_found"
	case TierUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Visit is the per-provider scratch shared by the tiers of one cascade
// pass: the crawl tier records the most relevant page it saw so the
// semantic tier can reuse it instead of refetching.
type Visit struct {
	Task     *Task
	Provider *provider.Provider
	Crawl    *scraper.CrawlResult
}

// Strategy is one tagged cascade tier. Tiers run in order per provider;
// the first TierFound stops the cascade for that provider.
type Strategy interface {
	Name() string
	Run(ctx context.Context, v *Visit) (TierResult, error)
}

// CrawlTier fetches the provider's website and applies the context-aware
// price regex.
type CrawlTier struct {
	crawler      *scraper.Crawler
	observations observation.Repository
}

func NewCrawlTier(crawler *scraper.Crawler, observations observation.Repository) *CrawlTier {
	return &CrawlTier{crawler: crawler, observations: observations}
}

func (t *CrawlTier) Name() string { return "website_crawl" }

func (t *CrawlTier) Run(ctx context.Context, v *Visit) (TierResult, error) {
	if v.Provider.Website == "" {
		return TierNotFound, nil
	}

	res, err := t.crawler.CrawlForPrice(ctx, v.Provider.Website, v.Task.Query)
	if err != nil {
		return TierUnavailable, err
	}
	v.Crawl = &res

	if res.Hit == nil {
		return TierNotFound, nil
	}
	if err := writeScraped(ctx, t.observations, v, res.Hit.Price, res.Hit.Currency, res.HitURL); err != nil {
		return TierNotFound, err
	}
	return TierFound, nil
}

// PriceExtractor is the LLM extraction capability, nil when Gemini is not
// configured.
type PriceExtractor interface {
	ExtractPrice(ctx context.Context, text, serviceDesc string) (*gemini.PriceHit, error)
}

// SemanticTier sends the most query-relevant crawled page through the LLM
// extractor. Gated on token overlap so irrelevant pages never cost a call.
type SemanticTier struct {
	extractor    PriceExtractor
	observations observation.Repository
	overlapGate  int
}

func NewSemanticTier(extractor PriceExtractor, observations observation.Repository, overlapGate int) *SemanticTier {
	return &SemanticTier{extractor: extractor, observations: observations, overlapGate: overlapGate}
}

func (t *SemanticTier) Name() string { return "semantic_extraction" }

func (t *SemanticTier) Run(ctx context.Context, v *Visit) (TierResult, error) {
	if t.extractor == nil {
		return TierUnavailable, nil
	}
	if v.Crawl == nil || v.Crawl.BestText == "" {
		return TierNotFound, nil
	}
	if overlap := textutil.Overlap(v.Crawl.BestText, textutil.Tokenize(v.Task.Query)); overlap < t.overlapGate {
		return TierNotFound, nil
	}

	desc := v.Task.Description
	if desc == "" {
		desc = v.Task.Query
	}
	hit, err := t.extractor.ExtractPrice(ctx, v.Crawl.BestText, desc)
	if err != nil {
		return TierUnavailable, err
	}
	if hit == nil {
		return TierNotFound, nil
	}
	if err := writeScraped(ctx, t.observations, v, hit.Price, hit.Currency, v.Crawl.BestURL); err != nil {
		return TierNotFound, err
	}
	return TierFound, nil
}

func writeScraped(ctx context.Context, repo observation.Repository, v *Visit, price float64, currency, sourceURL string) error {
	slug := v.Task.ServiceSlug
	if slug == "" {
		slug = textutil.Slugify(v.Task.Query)
	}
	return repo.Insert(ctx, &observation.Observation{
		ProviderID:  v.Provider.ID,
		ServiceType: slug,
		Category:    v.Task.Category,
		Price:       price,
		Currency:    currency,
		SourceType:  observation.SourceScrape,
		SourceURL:   sourceURL,
		Location:    v.Provider.Location,
		ObservedAt:  time.Now().UTC(),
	})
}

func logTier(ctx context.Context, logger *slog.Logger, name string, res TierResult, err error, providerID string) {
	switch {
	case err != nil:
		logger.WarnContext(ctx, "cascade tier failed", "tier", name, "result", res.String(), "provider_id", providerID, "error", err)
	case res == TierUnavailable:
		logger.WarnContext(ctx, "cascade tier unavailable", "tier", name, "provider_id", providerID)
	default:
		logger.DebugContext(ctx, "cascade tier finished", "tier", name, "result", res.String(), "provider_id", providerID)
	}
}
