package models

// GeofenceKind distinguishes the staging boundary checked at clock-in
// from the (optionally different) boundary checked at shift end.
type GeofenceKind string

const (
	GeofenceKindStart GeofenceKind = "start"
	GeofenceKindEnd   GeofenceKind = "end"
)

// Geofence is a named circular staging-area boundary. Read-only to the
// lifecycle engine; provisioned by managers.
type Geofence struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	ShiftType    ShiftType    `json:"shift_type" db:"shift_type"`
	ZoneID       *string      `json:"zone_id" db:"zone_id"`
	Kind         GeofenceKind `json:"kind" db:"kind"`
	CenterLat    float64      `json:"center_lat" db:"center_lat"`
	CenterLng    float64      `json:"center_lng" db:"center_lng"`
	RadiusMeters int          `json:"radius_meters" db:"radius_meters"`
	CreatedAt    int64        `json:"created_at" db:"created_at"`
	UpdatedAt    int64        `json:"updated_at" db:"updated_at"`
}

// GeoSample is a point reading sent by the driver app. Accuracy (meters)
// is optional; samples with poor accuracy still pass through the hard
// gate and only affect advisory flags.
type GeoSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Valid reports whether the sample is a plausible WGS84 coordinate.
func (g GeoSample) Valid() bool {
	if g.Latitude < -90 || g.Latitude > 90 {
		return false
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return false
	}
	if g.Accuracy != nil && *g.Accuracy < 0 {
		return false
	}
	return true
}
