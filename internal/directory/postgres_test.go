package directory

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storesense/internal/model"
)

var pgColumns = []string{
	"id", "name", "lat", "lng", "chain_id", "authorized",
	"fence_kind", "fence_lat", "fence_lng", "fence_radius_m", "fence_wkt",
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestPostgres_QueryNearby_CircleFence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_DWithin").
		WithArgs(135.0, 35.0, 300.0).
		WillReturnRows(pgxmock.NewRows(pgColumns).AddRow(
			"central", "Central Market", 35.0, 135.0, "chain-1", true,
			strPtr("circle"), f64Ptr(35.0), f64Ptr(135.0), f64Ptr(75.0), nil,
		))
	mock.ExpectQuery("FROM store_signatures").
		WithArgs("central").
		WillReturnRows(pgxmock.NewRows([]string{"ssid", "bssid"}).
			AddRow("CentralWiFi", "aa:bb:cc:00:00:01"))

	d := NewPostgresWithPool(mock)
	point := model.GeoPoint{Lat: 35.0, Lng: 135.0}
	got, err := d.QueryNearby(context.Background(), &point, 300)
	require.NoError(t, err)
	require.Len(t, got, 1)

	st := got[0]
	assert.Equal(t, "central", st.ID)
	require.NotNil(t, st.Geofence)
	assert.Equal(t, model.GeofenceCircle, st.Geofence.Kind)
	assert.Equal(t, 75.0, st.Geofence.RadiusMeters)
	require.Len(t, st.Signatures, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryNearby_PolygonWKT(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	wktPoly := "POLYGON ((135.757 34.984, 135.759 34.984, 135.759 34.986, 135.757 34.986, 135.757 34.984))"
	mock.ExpectQuery("ST_DWithin").
		WithArgs(135.758, 34.985, 500.0).
		WillReturnRows(pgxmock.NewRows(pgColumns).AddRow(
			"poly", "Polygon Plaza", 34.985, 135.758, "", false,
			strPtr("polygon"), nil, nil, nil, strPtr(wktPoly),
		))
	mock.ExpectQuery("FROM store_signatures").
		WithArgs("poly").
		WillReturnRows(pgxmock.NewRows([]string{"ssid", "bssid"}))

	d := NewPostgresWithPool(mock)
	point := model.GeoPoint{Lat: 34.985, Lng: 135.758}
	got, err := d.QueryNearby(context.Background(), &point, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)

	fence := got[0].Geofence
	require.NotNil(t, fence)
	assert.Equal(t, model.GeofencePolygon, fence.Kind)
	// Closing vertex dropped.
	assert.Len(t, fence.Vertices, 4)
	assert.Equal(t, 34.984, fence.Vertices[0].Lat)
	assert.Equal(t, 135.757, fence.Vertices[0].Lng)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryNearby_BadWKTDemotesFence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_DWithin").
		WithArgs(135.0, 35.0, 100.0).
		WillReturnRows(pgxmock.NewRows(pgColumns).AddRow(
			"bad", "Bad Fence", 35.0, 135.0, "", false,
			strPtr("polygon"), nil, nil, nil, strPtr("POLYGON garbage"),
		))
	mock.ExpectQuery("FROM store_signatures").
		WithArgs("bad").
		WillReturnRows(pgxmock.NewRows([]string{"ssid", "bssid"}))

	d := NewPostgresWithPool(mock)
	point := model.GeoPoint{Lat: 35.0, Lng: 135.0}
	got, err := d.QueryNearby(context.Background(), &point, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Geofence, "undecodable fence demotes to distance-only")
}

func TestPostgres_WiFiOnlyMode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("JOIN store_signatures").
		WithArgs(wifiScanLimit).
		WillReturnRows(pgxmock.NewRows(pgColumns).AddRow(
			"s1", "Store One", 35.0, 135.0, "", false,
			nil, nil, nil, nil, nil,
		))
	mock.ExpectQuery("FROM store_signatures").
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"ssid", "bssid"}).AddRow("Net", ""))

	d := NewPostgresWithPool(mock)
	got, err := d.QueryNearby(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Geofence)
	require.Len(t, got[0].Signatures, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Version(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM stores").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("42:2026-08-01"))

	d := NewPostgresWithPool(mock)
	v, err := d.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42:2026-08-01", v)
}
