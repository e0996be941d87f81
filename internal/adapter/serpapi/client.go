// Package serpapi is a thin client for the SerpAPI Google Maps engine,
// used by the business-listing discovery tier.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Business is one place returned by the maps engine.
type Business struct {
	Name        string
	Address     string
	Rating      float64
	ReviewCount int
	Phone       string
	Website     string
	Latitude    float64
	Longitude   float64
	Type        string
}

type Client struct {
	apiKey  string
	client  *http.Client
	baseURL string
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://serpapi.com/search.json",
	}
}

// SetBaseURL overrides the endpoint, for tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// radius→zoom ladder; maps search has no radius parameter, so the zoom
// level approximates the covered area.
var radiusToZoom = []struct {
	radius float64
	zoom   int
}{
	{500, 18},
	{1500, 16},
	{3000, 15},
	{5000, 14},
	{10000, 13},
	{20000, 12},
}

func zoomFor(radiusMeters float64) int {
	for _, rz := range radiusToZoom {
		if radiusMeters <= rz.radius {
			return rz.zoom
		}
	}
	return 11
}

// SearchMaps returns businesses matching the query near the given point.
func (c *Client) SearchMaps(ctx context.Context, query string, lat, lng, radiusMeters float64) ([]Business, error) {
	zoom := zoomFor(radiusMeters)
	slog.InfoContext(ctx, "serpapi maps search", "query", query, "lat", lat, "lng", lng, "zoom", zoom)

	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("q", query)
	params.Set("ll", fmt.Sprintf("@%f,%f,%dz", lat, lng, zoom))
	params.Set("type", "search")
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi error: %d", resp.StatusCode)
	}

	var result struct {
		LocalResults []struct {
			Title          string  `json:"title"`
			Address        string  `json:"address"`
			Rating         float64 `json:"rating"`
			Reviews        int     `json:"reviews"`
			Phone          string  `json:"phone"`
			Website        string  `json:"website"`
			Type           string  `json:"type"`
			GPSCoordinates struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"gps_coordinates"`
		} `json:"local_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	var businesses []Business
	for _, place := range result.LocalResults {
		if place.Title == "" || place.GPSCoordinates.Latitude == 0 && place.GPSCoordinates.Longitude == 0 {
			continue
		}
		businesses = append(businesses, Business{
			Name:        place.Title,
			Address:     place.Address,
			Rating:      place.Rating,
			ReviewCount: place.Reviews,
			Phone:       place.Phone,
			Website:     place.Website,
			Latitude:    place.GPSCoordinates.Latitude,
			Longitude:   place.GPSCoordinates.Longitude,
			Type:        place.Type,
		})
	}
	return businesses, nil
}
