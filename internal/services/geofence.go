package services

import (
	"math"

	"fleetops-backend/internal/models"
)

// Earth radius in meters, shared with the distance formula used across
// implementations so verdicts stay bit-reproducible.
const earthRadiusMeters = 6371000.0

// DefaultAccuracyCeilingMeters is the reported-accuracy ceiling above
// which a GPS sample is treated as informational only.
const DefaultAccuracyCeilingMeters = 100.0

// Location represents a geographic point
type Location struct {
	Latitude  float64
	Longitude float64
}

// GeofenceVerdict is the result of checking a point against a circular
// boundary. The boundary is inclusive: distance == radius passes.
type GeofenceVerdict struct {
	Within         bool `json:"within"`
	DistanceMeters int  `json:"distance_meters"`
	RadiusMeters   int  `json:"radius_meters"`
}

// Distance calculates the great-circle distance between two points in
// meters using the haversine formula.
func Distance(a, b Location) float64 {
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// IsWithin checks a point against a circular boundary. The distance is
// rounded to the nearest meter before comparison.
func IsWithin(point, center Location, radiusMeters int) GeofenceVerdict {
	distance := int(math.Round(Distance(point, center)))
	return GeofenceVerdict{
		Within:         distance <= radiusMeters,
		DistanceMeters: distance,
		RadiusMeters:   radiusMeters,
	}
}

// IsAccurate reports whether a sample's reported accuracy is within the
// ceiling. Samples without a reported accuracy count as accurate. This
// is advisory only and never fails a transition by itself.
func IsAccurate(sample models.GeoSample, maxAccuracyMeters float64) bool {
	if sample.Accuracy == nil {
		return true
	}
	return *sample.Accuracy <= maxAccuracyMeters
}
