package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetops-backend/internal/models"
)

var manilaDepot = Location{Latitude: 14.5995, Longitude: 120.9842}

func TestDistanceZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, Distance(manilaDepot, manilaDepot))
}

func TestDistanceIsSymmetric(t *testing.T) {
	makati := Location{Latitude: 14.5547, Longitude: 121.0244}

	d1 := Distance(manilaDepot, makati)
	d2 := Distance(makati, manilaDepot)

	assert.InDelta(t, d1, d2, 0.0001)
	// Manila city hall to Makati CBD is roughly 6.5 km.
	assert.InDelta(t, 6500, d1, 500)
}

func TestDistanceKnownReference(t *testing.T) {
	// One degree of latitude is ~111.2 km on a 6371 km sphere.
	oneDegreeNorth := Location{Latitude: manilaDepot.Latitude + 1, Longitude: manilaDepot.Longitude}
	assert.InDelta(t, 111195, Distance(manilaDepot, oneDegreeNorth), 50)
}

func TestIsWithinInsideRadius(t *testing.T) {
	// ~78 m east of the depot center.
	nearby := Location{Latitude: 14.5995, Longitude: 120.9849}

	verdict := IsWithin(nearby, manilaDepot, 150)

	assert.True(t, verdict.Within)
	assert.Equal(t, 150, verdict.RadiusMeters)
	assert.Greater(t, verdict.DistanceMeters, 0)
	assert.LessOrEqual(t, verdict.DistanceMeters, 150)
}

func TestIsWithinOutsideRadius(t *testing.T) {
	// ~1.1 km north of the depot center.
	far := Location{Latitude: 14.6095, Longitude: 120.9842}

	verdict := IsWithin(far, manilaDepot, 150)

	assert.False(t, verdict.Within)
	assert.Greater(t, verdict.DistanceMeters, 1000)
}

func TestIsWithinBoundaryIsInclusive(t *testing.T) {
	point := Location{Latitude: 14.6005, Longitude: 120.9842}
	exact := int(math.Round(Distance(point, manilaDepot)))

	verdict := IsWithin(point, manilaDepot, exact)
	assert.True(t, verdict.Within, "distance == radius must pass")

	verdict = IsWithin(point, manilaDepot, exact-1)
	assert.False(t, verdict.Within)
}

func TestIsWithinDepotSamplePoints(t *testing.T) {
	// One ten-thousandth of a degree east is ~11 m at this latitude.
	near := Location{Latitude: 14.5995, Longitude: 120.9843}
	verdict := IsWithin(near, manilaDepot, 150)
	assert.True(t, verdict.Within)
	assert.InDelta(t, 11, verdict.DistanceMeters, 1)

	// 0.0055° north and 0.0058° east works out to ~874 m on a
	// 6371 km sphere (611.6 m north, 624.1 m east).
	far := Location{Latitude: 14.6050, Longitude: 120.9900}
	verdict = IsWithin(far, manilaDepot, 150)
	assert.False(t, verdict.Within)
	assert.InDelta(t, 874, verdict.DistanceMeters, 1)
}

func TestIsAccurate(t *testing.T) {
	good := 25.0
	poor := 250.0

	assert.True(t, IsAccurate(models.GeoSample{Accuracy: nil}, DefaultAccuracyCeilingMeters))
	assert.True(t, IsAccurate(models.GeoSample{Accuracy: &good}, DefaultAccuracyCeilingMeters))
	assert.False(t, IsAccurate(models.GeoSample{Accuracy: &poor}, DefaultAccuracyCeilingMeters))
}
