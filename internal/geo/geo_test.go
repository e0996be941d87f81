package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_ZeroDistance(t *testing.T) {
	p := Point{Lng: 77.2090, Lat: 28.6139}
	assert.InDelta(t, 0, Haversine(p, p), 0.001)
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Connaught Place to India Gate, roughly 2.2 km.
	cp := Point{Lng: 77.2167, Lat: 28.6315}
	ig := Point{Lng: 77.2295, Lat: 28.6129}

	d := Haversine(cp, ig)
	assert.Greater(t, d, 2000.0)
	assert.Less(t, d, 2600.0)
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Point{Lng: -0.1276, Lat: 51.5074}
	b := Point{Lng: 2.3522, Lat: 48.8566}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-6)
}

func TestGeoJSON_Ordering(t *testing.T) {
	g := Point{Lng: 77.2090, Lat: 28.6139}.GeoJSON()
	assert.Equal(t, "Point", g.Type)
	// GeoJSON is [lng, lat], not [lat, lng].
	assert.Equal(t, []float64{77.2090, 28.6139}, g.Coordinates)
}
