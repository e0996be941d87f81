package geo

import "math"

const EarthRadiusMeters = 6371000

// Point is a WGS84 coordinate pair. JSON shape matches GeoJSON ordering
// ([lng, lat]) via the Coordinates helper below.
type Point struct {
	Lng float64
	Lat float64
}

// GeoJSON is the wire representation used by the search API.
type GeoJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func (p Point) GeoJSON() GeoJSON {
	return GeoJSON{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}}
}

// Haversine returns the great-circle distance in metres between two points.
func Haversine(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
