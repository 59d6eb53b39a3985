package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeofence_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		fence *Geofence
		want  bool
	}{
		{"nil fence", nil, true},
		{"circle with radius", &Geofence{Kind: GeofenceCircle, RadiusMeters: 50}, false},
		{"circle zero radius", &Geofence{Kind: GeofenceCircle}, true},
		{"polygon three vertices", &Geofence{Kind: GeofencePolygon, Vertices: []GeoPoint{
			{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0},
		}, RadiusMeters: 0}, false},
		{"polygon two vertices", &Geofence{Kind: GeofencePolygon, Vertices: []GeoPoint{
			{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1},
		}}, true},
		{"unknown kind", &Geofence{Kind: "blob"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fence.Degenerate())
		})
	}
}

func TestGeofence_RingCloses(t *testing.T) {
	fence := &Geofence{
		Kind: GeofencePolygon,
		Vertices: []GeoPoint{
			{Lat: 35.0, Lng: 135.0},
			{Lat: 35.0, Lng: 135.001},
			{Lat: 35.001, Lng: 135.001},
			{Lat: 35.001, Lng: 135.0},
		},
	}
	ring := fence.Ring()
	require.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestGeofence_BoundCoversCircle(t *testing.T) {
	fence := &Geofence{
		Kind:         GeofenceCircle,
		Center:       GeoPoint{Lat: 40.0, Lng: -75.0},
		RadiusMeters: 100,
	}
	b := fence.Bound()
	assert.True(t, b.Contains(fence.Center.Point()))
	// A point ~90m north of center must still be inside the padded box.
	assert.True(t, b.Contains(GeoPoint{Lat: 40.0008, Lng: -75.0}.Point()))
	// Same distance due east: a degree of longitude spans only cos(40°) of
	// a latitude degree, so the box must be wider than it is tall.
	assert.True(t, b.Contains(GeoPoint{Lat: 40.0, Lng: -74.99895}.Point()))
}

func TestGeofence_BoundNearPoleSpansAllLongitudes(t *testing.T) {
	fence := &Geofence{
		Kind:         GeofenceCircle,
		Center:       GeoPoint{Lat: 89.99999, Lng: 0},
		RadiusMeters: 100,
	}
	b := fence.Bound()
	assert.True(t, b.Contains(GeoPoint{Lat: 89.99999, Lng: 179.0}.Point()))
	assert.True(t, b.Contains(GeoPoint{Lat: 89.99999, Lng: -179.0}.Point()))
}

func TestNetworkSignature_Usable(t *testing.T) {
	assert.False(t, NetworkSignature{}.Usable())
	assert.True(t, NetworkSignature{SSID: "CoffeeShop"}.Usable())
	assert.True(t, NetworkSignature{BSSID: "aa:bb:cc:dd:ee:ff"}.Usable())
}

func TestFromCandidate_NilMapsToNoDetection(t *testing.T) {
	res := FromCandidate(nil, false)
	require.NotNil(t, res)
	assert.Nil(t, res.Store)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, MethodNone, res.Method)
}

func TestFromCandidate_CopiesFields(t *testing.T) {
	st := &Store{ID: "s1", Name: "Store One"}
	res := FromCandidate(&Candidate{
		Store:          st,
		Confidence:     85,
		Method:         MethodWiFi,
		DistanceMeters: 12.5,
	}, true)
	assert.Equal(t, "s1", res.Store.ID)
	assert.Equal(t, 85, res.Confidence)
	assert.Equal(t, MethodWiFi, res.Method)
	assert.True(t, res.RequiresConfirmation)
}
