// Package geomatch implements the pure geometry behind geofence detection:
// great-circle distance, circle and polygon containment, and the cheap
// bounding-box prefilter applied before the full polygon test.
package geomatch

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sells-group/storesense/internal/model"
)

// earthRadiusM is the mean Earth radius used for haversine distance.
// Accuracy is within ±0.5% at retail-geofence scales.
const earthRadiusM = 6371000.0

// onEdgeEpsilonDeg bounds how far (in degrees) a point may sit from an edge
// and still count as on the boundary. Roughly a centimeter at the equator.
const onEdgeEpsilonDeg = 1e-7

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PointInCircle reports whether p lies within the circular fence, boundary
// inclusive.
func PointInCircle(p model.GeoPoint, center model.GeoPoint, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return false
	}
	return Haversine(p, center) <= radiusMeters
}

// PointInPolygon runs the ray-casting (Jordan curve) test: a horizontal ray
// from p toward +infinity longitude crosses the polygon's edges; an odd
// crossing count means inside. The result is invariant to the starting
// vertex and to winding order. Points on an edge or vertex count as inside.
// Polygons with fewer than three vertices always report false.
func PointInPolygon(p model.GeoPoint, vertices []model.GeoPoint) bool {
	if len(vertices) < 3 {
		return false
	}
	pt := p.Point()

	inside := false
	n := len(vertices)
	for i := 0; i < n; i++ {
		a := vertices[i].Point()
		b := vertices[(i+1)%n].Point()

		if pointOnSegment(pt, a, b) {
			return true
		}

		// Half-open comparison so a vertex exactly at the ray's latitude is
		// counted once, not twice.
		if (a[1] > pt[1]) != (b[1] > pt[1]) {
			crossLng := a[0] + (pt[1]-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if pt[0] < crossLng {
				inside = !inside
			}
		}
	}
	return inside
}

// pointOnSegment reports whether p lies on segment ab within a small
// tolerance, working in degree space.
func pointOnSegment(p, a, b orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > onEdgeEpsilonDeg {
		return false
	}
	if p[0] < math.Min(a[0], b[0])-onEdgeEpsilonDeg || p[0] > math.Max(a[0], b[0])+onEdgeEpsilonDeg {
		return false
	}
	if p[1] < math.Min(a[1], b[1])-onEdgeEpsilonDeg || p[1] > math.Max(a[1], b[1])+onEdgeEpsilonDeg {
		return false
	}
	return true
}

// DistanceToPolygonEdge returns the minimum distance in meters from p to any
// edge of the polygon. Used only for intra-fence confidence refinement, not
// containment. Returns +Inf for degenerate input.
func DistanceToPolygonEdge(p model.GeoPoint, vertices []model.GeoPoint) float64 {
	if len(vertices) < 2 {
		return math.Inf(1)
	}
	min := math.Inf(1)
	n := len(vertices)
	for i := 0; i < n; i++ {
		a := vertices[i]
		b := vertices[(i+1)%n]
		if d := distanceToSegment(p, a, b); d < min {
			min = d
		}
	}
	return min
}

// distanceToSegment projects the three points onto a local equirectangular
// plane centered on p and measures point-to-segment distance there. The
// projection error is negligible at the sub-kilometer spans geofence edges
// cover.
func distanceToSegment(p, a, b model.GeoPoint) float64 {
	cosLat := math.Cos(p.Lat * math.Pi / 180)
	mPerDegLat := earthRadiusM * math.Pi / 180
	mPerDegLng := mPerDegLat * cosLat

	ax := (a.Lng - p.Lng) * mPerDegLng
	ay := (a.Lat - p.Lat) * mPerDegLat
	bx := (b.Lng - p.Lng) * mPerDegLng
	by := (b.Lat - p.Lat) * mPerDegLat

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))
	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(cx, cy)
}

// BoundingBoxPrefilter is the cheap axis-aligned check applied before the
// full polygon test. A false result guarantees PointInPolygon would be
// false; a true result guarantees nothing.
func BoundingBoxPrefilter(p model.GeoPoint, fence *model.Geofence) bool {
	if fence == nil || fence.Degenerate() {
		return false
	}
	return fence.Bound().Contains(p.Point())
}

// Contains evaluates a fence of either kind against p, boundary inclusive.
// Degenerate fences report false; the caller decides whether to fall back
// to distance-only matching.
func Contains(p model.GeoPoint, fence *model.Geofence) bool {
	if fence == nil || fence.Degenerate() {
		return false
	}
	switch fence.Kind {
	case model.GeofenceCircle:
		return PointInCircle(p, fence.Center, fence.RadiusMeters)
	case model.GeofencePolygon:
		if !BoundingBoxPrefilter(p, fence) {
			return false
		}
		return PointInPolygon(p, fence.Vertices)
	default:
		return false
	}
}
