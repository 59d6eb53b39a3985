package model

import (
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint is a WGS-84 coordinate pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to an orb.Point (lng, lat order).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// GeofenceKind discriminates the geofence tagged union.
type GeofenceKind string

const (
	GeofenceCircle  GeofenceKind = "circle"
	GeofencePolygon GeofenceKind = "polygon"
)

// Geofence is a bounded region owned by a store: either a circle around a
// center point or an arbitrary polygon. A store without a geofence falls
// back to distance-only matching.
type Geofence struct {
	Kind GeofenceKind `json:"kind"`

	// Circle fields.
	Center       GeoPoint `json:"center,omitempty"`
	RadiusMeters float64  `json:"radius_meters,omitempty"`

	// Polygon fields. Vertices are an ordered, non-self-intersecting ring;
	// the closing edge back to the first vertex is implied.
	Vertices []GeoPoint `json:"vertices,omitempty"`
}

// Degenerate reports whether the geofence cannot be evaluated: a polygon
// with fewer than three vertices or a circle with a non-positive radius.
// Degenerate fences are treated as absent by the matchers.
func (g *Geofence) Degenerate() bool {
	if g == nil {
		return true
	}
	switch g.Kind {
	case GeofenceCircle:
		return g.RadiusMeters <= 0
	case GeofencePolygon:
		return len(g.Vertices) < 3
	default:
		return true
	}
}

// Ring returns the polygon vertices as a closed orb.Ring.
// Returns nil for non-polygon or degenerate fences.
func (g *Geofence) Ring() orb.Ring {
	if g == nil || g.Kind != GeofencePolygon || len(g.Vertices) < 3 {
		return nil
	}
	ring := make(orb.Ring, 0, len(g.Vertices)+1)
	for _, v := range g.Vertices {
		ring = append(ring, v.Point())
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Bound returns the axis-aligned bounding box of the fence, expanded to the
// circle's radius for circular fences. Used as a cheap prefilter.
func (g *Geofence) Bound() orb.Bound {
	if g == nil {
		return orb.Bound{}
	}
	switch g.Kind {
	case GeofenceCircle:
		// One degree of latitude is ~111,320 m. A degree of longitude spans
		// cos(lat) of that, so the longitude pad widens with latitude;
		// clamped so near-polar fences degrade to a full-longitude band
		// instead of an inverted box.
		latPad := g.RadiusMeters / 111320.0
		cosLat := math.Cos(g.Center.Lat * math.Pi / 180)
		lngPad := 180.0
		if cosLat > 1e-6 {
			lngPad = latPad / cosLat
		}
		return orb.Bound{
			Min: orb.Point{g.Center.Lng - lngPad, g.Center.Lat - latPad},
			Max: orb.Point{g.Center.Lng + lngPad, g.Center.Lat + latPad},
		}
	case GeofencePolygon:
		ring := g.Ring()
		if ring == nil {
			return orb.Bound{}
		}
		return ring.Bound()
	default:
		return orb.Bound{}
	}
}
