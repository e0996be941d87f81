package search

import (
	"rateright/backend/features/servicetype"
	"rateright/backend/internal/geo"
)

// Response is the search API payload. Field names are part of the client
// contract; do not rename.
type Response struct {
	Query               string              `json:"query"`
	MatchedServiceTypes []servicetype.Match `json:"matched_service_types"`
	Results             []Result            `json:"results"`
	DiscoveryTriggered  bool                `json:"discovery_triggered"`
	PriceStats          *PriceStats         `json:"price_stats"`
	ScrapingInProgress  bool                `json:"scraping_in_progress"`
	TextOnly            bool                `json:"text_only,omitempty"`
}

type Result struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Category       string              `json:"category"`
	Address        string              `json:"address"`
	City           string              `json:"city"`
	Location       geo.GeoJSON         `json:"location"`
	DistanceMeters float64             `json:"distance_meters"`
	Rating         float64             `json:"rating,omitempty"`
	ReviewCount    int                 `json:"review_count,omitempty"`
	Description    string              `json:"description,omitempty"`
	Website        string              `json:"website,omitempty"`
	Observations   []ResultObservation `json:"observations"`
	InquiryStatus  string              `json:"inquiry_status,omitempty"`
	PriceCallout   *Callout            `json:"price_callout,omitempty"`
}

type ResultObservation struct {
	ServiceType string  `json:"service_type"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	SourceType  string  `json:"source_type"`
	ObservedAt  string  `json:"observed_at"`
}

type PriceStats struct {
	MinPrice    float64 `json:"min_price"`
	AvgPrice    float64 `json:"avg_price"`
	MaxPrice    float64 `json:"max_price"`
	MedianPrice float64 `json:"median_price"`
	Currency    string  `json:"currency"`
	SampleSize  int     `json:"sample_size"`
}

// Callout compares one provider's lowest price to the local distribution.
type Callout struct {
	Label  string  `json:"label"`
	Ratio  float64 `json:"ratio,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

const (
	CalloutBest     = "best"
	CalloutBelowAvg = "below_avg"
	CalloutAboveAvg = "above_avg"
	CalloutNearAvg  = "near_avg"
)
