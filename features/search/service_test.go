package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateright/backend/features/discovery"
	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/features/servicetype"
	"rateright/backend/internal/geo"
)

type stubResolver struct {
	matches  []servicetype.Match
	textOnly bool
	err      error
}

func (s *stubResolver) Resolve(context.Context, string) ([]servicetype.Match, bool, error) {
	return s.matches, s.textOnly, s.err
}

type stubObservations struct {
	observation.Repository
	bySlug map[string][]observation.PricedProvider
}

func (s *stubObservations) FindNearby(_ context.Context, slug string, _ geo.Point, _ float64, _ int) ([]observation.PricedProvider, error) {
	return s.bySlug[slug], nil
}

type stubProviders struct {
	provider.Repository
	nearby []provider.Nearby
}

func (s *stubProviders) FindNearbyByCategory(context.Context, string, geo.Point, float64, int) ([]provider.Nearby, error) {
	return s.nearby, nil
}

type stubTypes struct {
	servicetype.Repository
	bySlug map[string]*servicetype.ServiceType
}

func (s *stubTypes) GetBySlug(_ context.Context, slug string) (*servicetype.ServiceType, error) {
	st, ok := s.bySlug[slug]
	if !ok {
		return nil, servicetype.ErrNotFound
	}
	return st, nil
}

type stubInquiries struct {
	statuses map[string]string
}

func (s *stubInquiries) LatestStatusByProvider(context.Context, []string, string) (map[string]string, error) {
	return s.statuses, nil
}

type capturePublisher struct {
	mu        sync.Mutex
	published [][]byte
}

func (c *capturePublisher) Publish(_ string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, body)
	return nil
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func carACMatch() []servicetype.Match {
	return []servicetype.Match{{Slug: "car_ac_repair", Name: "Car AC Repair", MatchSource: servicetype.MatchSourceVector, Score: 0.9}}
}

func carACTypes() *stubTypes {
	return &stubTypes{bySlug: map[string]*servicetype.ServiceType{
		"car_ac_repair": {Slug: "car_ac_repair", Name: "Car AC Repair", Category: "auto_repair", Description: "AC gas refill and compressor work"},
	}}
}

func newTestService(resolver Resolver, obs observation.Repository, provs provider.Repository, pub Publisher) *Service {
	return NewService(
		resolver, obs, provs, carACTypes(),
		&stubInquiries{statuses: map[string]string{}},
		discovery.NewMemoryClaims(), pub, nil, testLogger(),
		Config{CoverageThreshold: 1, ClaimTTL: time.Minute, CooldownTTL: time.Minute, Topic: "discovery.task"},
	)
}

func seededObservations(price float64) *stubObservations {
	return &stubObservations{bySlug: map[string][]observation.PricedProvider{
		"car_ac_repair": {{
			Provider: provider.Provider{
				ID: "p-1", Name: "Cool Garage", Category: "auto_repair",
				Location: geo.Point{Lng: 77.2090, Lat: 28.6139},
			},
			DistanceMeters: 0,
			Observations: []observation.Observation{{
				ProviderID: "p-1", ServiceType: "car_ac_repair",
				Price: price, Currency: "INR", SourceType: observation.SourceManual,
				ObservedAt: time.Now(),
			}},
		}},
	}}
}

func TestSearchWithSeededObservation(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(&stubResolver{matches: carACMatch()}, seededObservations(2500), &stubProviders{}, pub)

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Cool Garage", resp.Results[0].Name)
	assert.Equal(t, 0.0, resp.Results[0].DistanceMeters)
	assert.Equal(t, "Point", resp.Results[0].Location.Type)
	assert.Equal(t, []float64{77.2090, 28.6139}, resp.Results[0].Location.Coordinates)

	require.NotNil(t, resp.PriceStats)
	assert.Equal(t, 1, resp.PriceStats.SampleSize)
	assert.Equal(t, 2500.0, resp.PriceStats.MinPrice)
	assert.Equal(t, 2500.0, resp.PriceStats.AvgPrice)
	assert.Equal(t, 2500.0, resp.PriceStats.MaxPrice)
	assert.Equal(t, 2500.0, resp.PriceStats.MedianPrice)

	// coverage satisfied, no cascade queued
	assert.False(t, resp.DiscoveryTriggered)
	assert.False(t, resp.ScrapingInProgress)
	assert.Zero(t, pub.count())
}

func TestSearchWithNoCoverageTriggersDiscovery(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(&stubResolver{matches: carACMatch()},
		&stubObservations{bySlug: map[string][]observation.PricedProvider{}}, &stubProviders{}, pub)

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Nil(t, resp.PriceStats)
	assert.True(t, resp.DiscoveryTriggered)
	assert.True(t, resp.ScrapingInProgress)
	require.Equal(t, 1, pub.count())

	var task discovery.Task
	require.NoError(t, json.Unmarshal(pub.published[0], &task))
	assert.Equal(t, "car_ac_repair", task.ServiceSlug)
	assert.Equal(t, "auto_repair", task.Category)
	assert.Equal(t, discovery.NormalizeKey("car ac repair", 28.6139, 77.2090, 5000), task.Key)
}

func TestSearchCoalescesConcurrentDiscovery(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(&stubResolver{matches: carACMatch()},
		&stubObservations{bySlug: map[string][]observation.PricedProvider{}}, &stubProviders{}, pub)

	var wg sync.WaitGroup
	responses := make([]*Response, 8)
	for i := 0; i < len(responses); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
			if assert.NoError(t, err) {
				responses[i] = resp
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, pub.count())
	triggered := 0
	for _, resp := range responses {
		require.NotNil(t, resp)
		assert.True(t, resp.ScrapingInProgress)
		if resp.DiscoveryTriggered {
			triggered++
		}
	}
	assert.Equal(t, 1, triggered)
}

func TestSearchCooldownPreventsImmediateRetrigger(t *testing.T) {
	pub := &capturePublisher{}
	claims := discovery.NewMemoryClaims()
	svc := NewService(&stubResolver{matches: carACMatch()},
		&stubObservations{bySlug: map[string][]observation.PricedProvider{}},
		&stubProviders{}, carACTypes(), nil, claims, pub, nil, testLogger(),
		Config{CoverageThreshold: 1, ClaimTTL: time.Minute, CooldownTTL: time.Minute, Topic: "discovery.task"})

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	require.True(t, resp.DiscoveryTriggered)

	// cascade finishes and releases its claim
	key := discovery.NormalizeKey("car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, claims.Release(context.Background(), key))

	resp, err = svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	assert.False(t, resp.DiscoveryTriggered)
	assert.False(t, resp.ScrapingInProgress)
	assert.Equal(t, 1, pub.count())
}

func TestSearchCalloutsAcrossProviders(t *testing.T) {
	obs := &stubObservations{bySlug: map[string][]observation.PricedProvider{
		"car_ac_repair": {
			{
				Provider:       provider.Provider{ID: "cheap", Name: "Cheap Garage"},
				DistanceMeters: 100,
				Observations: []observation.Observation{{
					ProviderID: "cheap", ServiceType: "car_ac_repair", Price: 1000, Currency: "INR",
				}},
			},
			{
				Provider:       provider.Provider{ID: "dear", Name: "Dear Garage"},
				DistanceMeters: 200,
				Observations: []observation.Observation{{
					ProviderID: "dear", ServiceType: "car_ac_repair", Price: 4000, Currency: "INR",
				}},
			},
		},
	}}
	svc := newTestService(&stubResolver{matches: carACMatch()}, obs, &stubProviders{}, &capturePublisher{})

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	require.NotNil(t, resp.Results[0].PriceCallout)
	assert.Equal(t, CalloutBest, resp.Results[0].PriceCallout.Label)

	require.NotNil(t, resp.Results[1].PriceCallout)
	assert.Equal(t, CalloutAboveAvg, resp.Results[1].PriceCallout.Label)
	assert.InDelta(t, 1.6, resp.Results[1].PriceCallout.Ratio, 1e-9)
}

func TestSearchAppendsUnpricedProviders(t *testing.T) {
	provs := &stubProviders{nearby: []provider.Nearby{
		{Provider: provider.Provider{ID: "p-1", Name: "Cool Garage"}, DistanceMeters: 0},
		{Provider: provider.Provider{ID: "p-2", Name: "Quiet Garage", Category: "auto_repair"}, DistanceMeters: 800},
	}}
	svc := newTestService(&stubResolver{matches: carACMatch()}, seededObservations(2500), provs, &capturePublisher{})

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	// priced provider is not duplicated; the unpriced one rides along
	assert.Equal(t, "p-1", resp.Results[0].ID)
	assert.Equal(t, "p-2", resp.Results[1].ID)
	assert.Empty(t, resp.Results[1].Observations)
	assert.Nil(t, resp.Results[1].PriceCallout)

	require.NotNil(t, resp.PriceStats)
	assert.Equal(t, 1, resp.PriceStats.SampleSize)
}

func TestSearchPropagatesTextOnlyFlag(t *testing.T) {
	svc := newTestService(&stubResolver{matches: carACMatch(), textOnly: true},
		seededObservations(2500), &stubProviders{}, &capturePublisher{})

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	assert.True(t, resp.TextOnly)
}

type stubReplies struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *stubReplies) CheckReplies(context.Context) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return 0, nil
}

func (s *stubReplies) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSearchKicksBackgroundReplyCheck(t *testing.T) {
	replies := &stubReplies{started: make(chan struct{}, 1)}
	svc := NewService(&stubResolver{matches: carACMatch()}, seededObservations(2500),
		&stubProviders{}, carACTypes(), &stubInquiries{statuses: map[string]string{}},
		discovery.NewMemoryClaims(), &capturePublisher{}, replies, testLogger(),
		Config{CoverageThreshold: 1, ClaimTTL: time.Minute, CooldownTTL: time.Minute, Topic: "discovery.task"})

	_, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)

	select {
	case <-replies.started:
	case <-time.After(2 * time.Second):
		t.Fatal("search never kicked a reply check")
	}
}

func TestSearchReplyCheckIsSingleFlight(t *testing.T) {
	replies := &stubReplies{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewService(&stubResolver{matches: carACMatch()}, seededObservations(2500),
		&stubProviders{}, carACTypes(), &stubInquiries{statuses: map[string]string{}},
		discovery.NewMemoryClaims(), &capturePublisher{}, replies, testLogger(),
		Config{CoverageThreshold: 1, ClaimTTL: time.Minute, CooldownTTL: time.Minute, Topic: "discovery.task"})

	_, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	<-replies.started

	// A search arriving while a check is in flight does not start another.
	_, err = svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	close(replies.release)

	assert.Equal(t, 1, replies.callCount())
}

func TestSearchInquiryStatusAnnotation(t *testing.T) {
	svc := NewService(&stubResolver{matches: carACMatch()}, seededObservations(2500),
		&stubProviders{}, carACTypes(),
		&stubInquiries{statuses: map[string]string{"p-1": "sent"}},
		discovery.NewMemoryClaims(), &capturePublisher{}, nil, testLogger(),
		Config{CoverageThreshold: 1, ClaimTTL: time.Minute, CooldownTTL: time.Minute, Topic: "discovery.task"})

	resp, err := svc.Search(context.Background(), "car ac repair", 28.6139, 77.2090, 5000)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "sent", resp.Results[0].InquiryStatus)
}
