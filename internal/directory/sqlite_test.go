package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesense/internal/model"
)

func newTestDirectory(t *testing.T) *SQLite {
	t.Helper()
	d, err := NewSQLite(filepath.Join(t.TempDir(), "directory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func sampleStores() []*model.Store {
	return []*model.Store{
		{
			ID:       "central",
			Name:     "Central Market",
			Location: model.GeoPoint{Lat: 35.0000, Lng: 135.0000},
			Geofence: &model.Geofence{
				Kind:         model.GeofenceCircle,
				Center:       model.GeoPoint{Lat: 35.0000, Lng: 135.0000},
				RadiusMeters: 75,
			},
			Signatures: []model.NetworkSignature{
				{SSID: "CentralWiFi", BSSID: "aa:bb:cc:00:00:01"},
			},
			Authorized: true,
			ChainID:    "chain-1",
		},
		{
			ID:       "north",
			Name:     "North Annex",
			Location: model.GeoPoint{Lat: 35.0020, Lng: 135.0000}, // ~222m north
			Signatures: []model.NetworkSignature{
				{SSID: "NorthWiFi"},
			},
		},
		{
			ID:       "faraway",
			Name:     "Faraway Outlet",
			Location: model.GeoPoint{Lat: 36.0, Lng: 136.0},
		},
	}
}

func TestSQLite_QueryNearby(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	require.NoError(t, d.UpsertStores(ctx, sampleStores()))

	point := model.GeoPoint{Lat: 35.0001, Lng: 135.0}
	got, err := d.QueryNearby(ctx, &point, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Nearest first.
	assert.Equal(t, "central", got[0].ID)
	assert.Equal(t, "north", got[1].ID)

	// Geofence and signatures round-trip.
	require.NotNil(t, got[0].Geofence)
	assert.Equal(t, model.GeofenceCircle, got[0].Geofence.Kind)
	assert.Equal(t, 75.0, got[0].Geofence.RadiusMeters)
	require.Len(t, got[0].Signatures, 1)
	assert.Equal(t, "aa:bb:cc:00:00:01", got[0].Signatures[0].BSSID)
	assert.True(t, got[0].Authorized)

	assert.Nil(t, got[1].Geofence)
}

func TestSQLite_QueryNearby_RadiusExcludes(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	require.NoError(t, d.UpsertStores(ctx, sampleStores()))

	point := model.GeoPoint{Lat: 35.0, Lng: 135.0}
	got, err := d.QueryNearby(ctx, &point, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "central", got[0].ID)
}

func TestSQLite_WiFiOnlyMode(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	require.NoError(t, d.UpsertStores(ctx, sampleStores()))

	got, err := d.QueryNearby(ctx, nil, 0)
	require.NoError(t, err)
	// Only signature-bearing stores participate.
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{"central", "north"}, ids)
}

func TestSQLite_PolygonFenceRoundTrip(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	poly := &model.Store{
		ID:       "poly",
		Name:     "Polygon Plaza",
		Location: model.GeoPoint{Lat: 34.985, Lng: 135.758},
		Geofence: &model.Geofence{
			Kind: model.GeofencePolygon,
			Vertices: []model.GeoPoint{
				{Lat: 34.984, Lng: 135.757},
				{Lat: 34.984, Lng: 135.759},
				{Lat: 34.986, Lng: 135.759},
				{Lat: 34.986, Lng: 135.757},
			},
		},
	}
	require.NoError(t, d.UpsertStores(ctx, []*model.Store{poly}))

	point := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	got, err := d.QueryNearby(ctx, &point, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Geofence)
	assert.Len(t, got[0].Geofence.Vertices, 4)
}

func TestSQLite_VersionChangesOnImport(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	v0, err := d.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, d.UpsertStores(ctx, sampleStores()))
	v1, err := d.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v1)
}

func TestSQLite_UpsertReplacesSignatures(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	st := &model.Store{
		ID:         "s",
		Name:       "S",
		Signatures: []model.NetworkSignature{{SSID: "Old"}},
	}
	require.NoError(t, d.UpsertStores(ctx, []*model.Store{st}))

	st.Signatures = []model.NetworkSignature{{SSID: "New"}}
	require.NoError(t, d.UpsertStores(ctx, []*model.Store{st}))

	point := st.Location
	got, err := d.QueryNearby(ctx, &point, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Signatures, 1)
	assert.Equal(t, "New", got[0].Signatures[0].SSID)
}

func TestSQLite_UpdateGeofences(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	require.NoError(t, d.UpsertStores(ctx, sampleStores()))

	fence := &model.Geofence{
		Kind: model.GeofencePolygon,
		Vertices: []model.GeoPoint{
			{Lat: 35.0010, Lng: 134.9990},
			{Lat: 35.0010, Lng: 135.0010},
			{Lat: 35.0030, Lng: 135.0010},
			{Lat: 35.0030, Lng: 134.9990},
		},
	}
	updated, err := d.UpdateGeofences(ctx, map[string]*model.Geofence{
		"north":   fence,
		"unknown": fence, // footprint without a store: silently ignored
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	point := model.GeoPoint{Lat: 35.0020, Lng: 135.0}
	got, err := d.QueryNearby(ctx, &point, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Geofence)
	assert.Equal(t, model.GeofencePolygon, got[0].Geofence.Kind)
	assert.Len(t, got[0].Geofence.Vertices, 4)

	// Signatures survive a geofence-only update.
	require.Len(t, got[0].Signatures, 1)
	assert.Equal(t, "NorthWiFi", got[0].Signatures[0].SSID)
}
