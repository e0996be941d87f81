package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/internal/adapter/gemini"
	"rateright/backend/internal/geo"
	"rateright/backend/internal/scraper"
)

type stubExtractor struct {
	hit *gemini.PriceHit
	err error
}

func (s *stubExtractor) ExtractPrice(context.Context, string, string) (*gemini.PriceHit, error) {
	return s.hit, s.err
}

func testVisit(crawl *scraper.CrawlResult) *Visit {
	return &Visit{
		Task: newTask(),
		Provider: &provider.Provider{
			ID:       "p-1",
			Website:  "https://garage.example",
			Location: geo.Point{Lng: 77.2090, Lat: 28.6139},
		},
		Crawl: crawl,
	}
}

func TestCrawlTierSkipsProviderWithoutWebsite(t *testing.T) {
	tier := NewCrawlTier(scraper.NewCrawler(), &stubObservations{})
	v := testVisit(nil)
	v.Provider.Website = ""

	res, err := tier.Run(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, TierNotFound, res)
}

func TestSemanticTierUnavailableWithoutExtractor(t *testing.T) {
	tier := NewSemanticTier(nil, &stubObservations{}, 2)

	res, err := tier.Run(context.Background(), testVisit(nil))
	require.NoError(t, err)
	assert.Equal(t, TierUnavailable, res)
}

func TestSemanticTierGatesOnTokenOverlap(t *testing.T) {
	obs := &stubObservations{}
	tier := NewSemanticTier(&stubExtractor{hit: &gemini.PriceHit{Price: 1800, Currency: "INR"}}, obs, 2)

	t.Run("below gate skips extraction", func(t *testing.T) {
		v := testVisit(&scraper.CrawlResult{BestText: "welcome to our homepage"})
		res, err := tier.Run(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, TierNotFound, res)
		assert.Empty(t, obs.inserted)
	})

	t.Run("at gate extracts and records", func(t *testing.T) {
		v := testVisit(&scraper.CrawlResult{
			BestText: "car ac repair and gas refill from our workshop",
			BestURL:  "https://garage.example/services",
		})
		res, err := tier.Run(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, TierFound, res)

		require.Len(t, obs.inserted, 1)
		o := obs.inserted[0]
		assert.Equal(t, "p-1", o.ProviderID)
		assert.Equal(t, "car_ac_repair", o.ServiceType)
		assert.Equal(t, 1800.0, o.Price)
		assert.Equal(t, observation.SourceScrape, o.SourceType)
		assert.Equal(t, "https://garage.example/services", o.SourceURL)
		assert.Equal(t, v.Provider.Location, o.Location)
	})
}

func TestSemanticTierNoCrawlTextIsNotFound(t *testing.T) {
	tier := NewSemanticTier(&stubExtractor{}, &stubObservations{}, 2)

	res, err := tier.Run(context.Background(), testVisit(nil))
	require.NoError(t, err)
	assert.Equal(t, TierNotFound, res)
}

func TestSemanticTierExtractorFailureIsUnavailable(t *testing.T) {
	tier := NewSemanticTier(&stubExtractor{err: errors.New("quota")}, &stubObservations{}, 2)
	v := testVisit(&scraper.CrawlResult{BestText: "car ac repair service pricing"})

	res, err := tier.Run(context.Background(), v)
	assert.Error(t, err)
	assert.Equal(t, TierUnavailable, res)
}

func TestSemanticTierInconclusiveExtractionIsNotFound(t *testing.T) {
	obs := &stubObservations{}
	tier := NewSemanticTier(&stubExtractor{hit: nil}, obs, 2)
	v := testVisit(&scraper.CrawlResult{BestText: "car ac repair service pricing"})

	res, err := tier.Run(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, TierNotFound, res)
	assert.Empty(t, obs.inserted)
}
