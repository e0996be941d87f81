package discovery

import (
	"fmt"
	"strings"
)

// Task is one queued discovery request, published to NSQ by the search
// coordinator and consumed by the discovery worker.
type Task struct {
	Key          string  `json:"key"`
	Query        string  `json:"query"`
	ServiceSlug  string  `json:"service_slug,omitempty"`
	ServiceName  string  `json:"service_name,omitempty"`
	Category     string  `json:"category,omitempty"`
	Description  string  `json:"description,omitempty"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_meters"`

	CorrelationID string `json:"correlation_id,omitempty"`
}

// NormalizeKey builds the coalescing key for a search. Query text is
// lowercased with whitespace collapsed, coordinates rounded to four
// decimals (~11 m) so indistinguishable positions share a cascade.
func NormalizeKey(query string, lat, lng, radiusMeters float64) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("discovery:%s:%.4f:%.4f:%.0f", q, lat, lng, radiusMeters)
}
