package geomatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/storesense/internal/model"
)

// Square roughly 220m x 220m centered on Kyoto Station.
var square = []model.GeoPoint{
	{Lat: 34.984, Lng: 135.757},
	{Lat: 34.984, Lng: 135.759},
	{Lat: 34.986, Lng: 135.759},
	{Lat: 34.986, Lng: 135.757},
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Tokyo Station to Shinjuku Station, ~6.2km.
	tokyo := model.GeoPoint{Lat: 35.6812, Lng: 139.7671}
	shinjuku := model.GeoPoint{Lat: 35.6896, Lng: 139.7006}
	d := Haversine(tokyo, shinjuku)
	assert.InDelta(t, 6100, d, 200)
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	p := model.GeoPoint{Lat: -33.86, Lng: 151.21}
	assert.Zero(t, Haversine(p, p))
}

func TestPointInCircle_BoundaryInclusive(t *testing.T) {
	center := model.GeoPoint{Lat: 35.0, Lng: 135.0}
	// Walk north until just past the radius.
	near := model.GeoPoint{Lat: 35.00060, Lng: 135.0} // ~66.8m
	far := model.GeoPoint{Lat: 35.00100, Lng: 135.0}  // ~111.3m

	assert.True(t, PointInCircle(near, center, 75))
	assert.False(t, PointInCircle(far, center, 75))

	// Exactly on the boundary counts as inside.
	d := Haversine(center, near)
	assert.True(t, PointInCircle(near, center, d))
}

func TestPointInCircle_ZeroRadius(t *testing.T) {
	p := model.GeoPoint{Lat: 1, Lng: 1}
	assert.False(t, PointInCircle(p, p, 0))
}

func TestPointInPolygon_InsideOutside(t *testing.T) {
	inside := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	outside := model.GeoPoint{Lat: 34.990, Lng: 135.758}
	assert.True(t, PointInPolygon(inside, square))
	assert.False(t, PointInPolygon(outside, square))
}

func TestPointInPolygon_StartVertexInvariant(t *testing.T) {
	probes := []model.GeoPoint{
		{Lat: 34.985, Lng: 135.758},   // inside
		{Lat: 34.990, Lng: 135.758},   // outside north
		{Lat: 34.9845, Lng: 135.7575}, // inside near corner
		{Lat: 34.984, Lng: 135.758},   // on southern edge
	}
	for rot := 0; rot < len(square); rot++ {
		rotated := append(append([]model.GeoPoint{}, square[rot:]...), square[:rot]...)
		for i, p := range probes {
			want := PointInPolygon(p, square)
			assert.Equal(t, want, PointInPolygon(p, rotated),
				"probe %d changed result under rotation %d", i, rot)
		}
	}
}

func TestPointInPolygon_WindingInvariant(t *testing.T) {
	reversed := make([]model.GeoPoint, len(square))
	for i, v := range square {
		reversed[len(square)-1-i] = v
	}
	inside := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	outside := model.GeoPoint{Lat: 34.983, Lng: 135.758}
	assert.True(t, PointInPolygon(inside, reversed))
	assert.False(t, PointInPolygon(outside, reversed))
}

func TestPointInPolygon_BoundaryInclusive(t *testing.T) {
	onEdge := model.GeoPoint{Lat: 34.984, Lng: 135.758}
	onVertex := square[0]
	assert.True(t, PointInPolygon(onEdge, square))
	assert.True(t, PointInPolygon(onVertex, square))
}

func TestPointInPolygon_Degenerate(t *testing.T) {
	p := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	assert.False(t, PointInPolygon(p, nil))
	assert.False(t, PointInPolygon(p, square[:2]))
}

func TestDistanceToPolygonEdge(t *testing.T) {
	// Center of the square: ~111m from the nearest (any) edge.
	center := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	d := DistanceToPolygonEdge(center, square)
	assert.InDelta(t, 91, d, 25)

	// A point just inside the southern edge is much closer to it.
	nearEdge := model.GeoPoint{Lat: 34.9841, Lng: 135.758}
	assert.Less(t, DistanceToPolygonEdge(nearEdge, square), d)

	assert.True(t, math.IsInf(DistanceToPolygonEdge(center, nil), 1))
}

func TestBoundingBoxPrefilter_NeverFalseNegative(t *testing.T) {
	fence := &model.Geofence{Kind: model.GeofencePolygon, Vertices: square}
	grid := []model.GeoPoint{
		{Lat: 34.9845, Lng: 135.7575},
		{Lat: 34.985, Lng: 135.758},
		{Lat: 34.9855, Lng: 135.7585},
		{Lat: 34.990, Lng: 135.758},
		{Lat: 34.980, Lng: 135.750},
	}
	for _, p := range grid {
		if PointInPolygon(p, square) {
			assert.True(t, BoundingBoxPrefilter(p, fence),
				"prefilter rejected a contained point %+v", p)
		}
	}
}

func TestContains_CircleAndPolygon(t *testing.T) {
	circle := &model.Geofence{
		Kind:         model.GeofenceCircle,
		Center:       model.GeoPoint{Lat: 35.0, Lng: 135.0},
		RadiusMeters: 75,
	}
	assert.True(t, Contains(model.GeoPoint{Lat: 35.00009, Lng: 135.0}, circle))

	poly := &model.Geofence{Kind: model.GeofencePolygon, Vertices: square}
	assert.True(t, Contains(model.GeoPoint{Lat: 34.985, Lng: 135.758}, poly))
	assert.False(t, Contains(model.GeoPoint{Lat: 34.990, Lng: 135.758}, poly))

	degenerate := &model.Geofence{Kind: model.GeofencePolygon, Vertices: square[:2]}
	assert.False(t, Contains(model.GeoPoint{Lat: 34.985, Lng: 135.758}, degenerate))
	assert.False(t, Contains(model.GeoPoint{Lat: 34.985, Lng: 135.758}, nil))
}
