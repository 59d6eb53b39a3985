package directory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// Pool is the subset of pgxpool.Pool the postgres directory uses. pgxmock
// satisfies it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres implements Directory over a PostGIS-backed catalog. The nearby
// query leans on ST_DWithin with a KNN ordering; polygon geofences come
// back as WKT and are decoded with go-geom.
type Postgres struct {
	pool Pool
}

// NewPostgres connects a pgx pool to the directory database.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "directory: parse postgres config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "directory: connect postgres")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Test hook.
func NewPostgresWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

const nearbySQL = `
SELECT s.id, s.name,
       ST_Y(s.location::geometry) AS lat,
       ST_X(s.location::geometry) AS lng,
       s.chain_id, s.authorized,
       s.fence_kind,
       ST_Y(s.fence_center::geometry) AS fence_lat,
       ST_X(s.fence_center::geometry) AS fence_lng,
       s.fence_radius_m,
       ST_AsText(s.fence_polygon) AS fence_wkt
FROM stores s
WHERE ST_DWithin(s.location::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
ORDER BY s.location::geometry <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)`

const wifiOnlySQL = `
SELECT DISTINCT s.id, s.name,
       ST_Y(s.location::geometry) AS lat,
       ST_X(s.location::geometry) AS lng,
       s.chain_id, s.authorized,
       s.fence_kind,
       ST_Y(s.fence_center::geometry) AS fence_lat,
       ST_X(s.fence_center::geometry) AS fence_lng,
       s.fence_radius_m,
       ST_AsText(s.fence_polygon) AS fence_wkt
FROM stores s
JOIN store_signatures sig ON sig.store_id = s.id
ORDER BY s.id
LIMIT $1`

const signaturesSQL = `
SELECT ssid, bssid FROM store_signatures WHERE store_id = $1 ORDER BY ssid, bssid`

func (p *Postgres) QueryNearby(ctx context.Context, point *model.GeoPoint, radiusMeters float64) ([]*model.Store, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if point == nil {
		rows, err = p.pool.Query(ctx, wifiOnlySQL, wifiScanLimit)
	} else {
		rows, err = p.pool.Query(ctx, nearbySQL, point.Lng, point.Lat, radiusMeters)
	}
	if err != nil {
		return nil, eris.Wrap(err, "directory: postgres query nearby")
	}

	stores, err := scanPgStores(rows)
	if err != nil {
		return nil, err
	}
	for _, st := range stores {
		if err := p.loadSignatures(ctx, st); err != nil {
			return nil, err
		}
	}
	return stores, nil
}

// Version reads the directory snapshot marker maintained by the catalog's
// import jobs.
func (p *Postgres) Version(ctx context.Context) (string, error) {
	var version string
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*)::text || ':' || COALESCE(MAX(updated_at)::text, '') FROM stores`,
	).Scan(&version)
	if err != nil {
		return "", eris.Wrap(err, "directory: postgres version")
	}
	return version, nil
}

func (p *Postgres) loadSignatures(ctx context.Context, st *model.Store) error {
	rows, err := p.pool.Query(ctx, signaturesSQL, st.ID)
	if err != nil {
		return eris.Wrapf(err, "directory: postgres signatures %s", st.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var sig model.NetworkSignature
		if err := rows.Scan(&sig.SSID, &sig.BSSID); err != nil {
			return eris.Wrap(err, "directory: scan signature row")
		}
		st.Signatures = append(st.Signatures, sig)
	}
	return eris.Wrap(rows.Err(), "directory: iterate signature rows")
}

func scanPgStores(rows pgx.Rows) ([]*model.Store, error) {
	defer rows.Close()

	var stores []*model.Store
	for rows.Next() {
		var (
			st          model.Store
			fenceKind   *string
			fenceLat    *float64
			fenceLng    *float64
			fenceRadius *float64
			fenceWKT    *string
		)
		err := rows.Scan(&st.ID, &st.Name, &st.Location.Lat, &st.Location.Lng,
			&st.ChainID, &st.Authorized,
			&fenceKind, &fenceLat, &fenceLng, &fenceRadius, &fenceWKT)
		if err != nil {
			return nil, eris.Wrap(err, "directory: scan store row")
		}
		st.Geofence = buildFence(st.ID, fenceKind, fenceLat, fenceLng, fenceRadius, fenceWKT)
		stores = append(stores, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "directory: iterate store rows")
	}
	return stores, nil
}

// buildFence assembles a geofence from the catalog's columns. Undecodable
// geometry demotes the store to distance-only matching instead of failing
// the whole query.
func buildFence(storeID string, kind *string, lat, lng, radius *float64, fenceWKT *string) *model.Geofence {
	if kind == nil {
		return nil
	}
	switch model.GeofenceKind(*kind) {
	case model.GeofenceCircle:
		if lat == nil || lng == nil || radius == nil {
			return nil
		}
		return &model.Geofence{
			Kind:         model.GeofenceCircle,
			Center:       model.GeoPoint{Lat: *lat, Lng: *lng},
			RadiusMeters: *radius,
		}
	case model.GeofencePolygon:
		if fenceWKT == nil {
			return nil
		}
		vertices, err := polygonVertices(*fenceWKT)
		if err != nil {
			zap.L().Warn("undecodable geofence polygon, store demoted to distance-only",
				zap.String("store_id", storeID),
				zap.Error(err),
			)
			return nil
		}
		return &model.Geofence{Kind: model.GeofencePolygon, Vertices: vertices}
	default:
		return nil
	}
}

// polygonVertices decodes a WKT POLYGON's outer ring, dropping the closing
// vertex.
func polygonVertices(s string) ([]model.GeoPoint, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "directory: unmarshal wkt")
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("directory: expected POLYGON, got %T", g)
	}
	if poly.NumLinearRings() == 0 {
		return nil, eris.New("directory: polygon has no rings")
	}
	ring := poly.LinearRing(0)
	n := ring.NumCoords()
	if n > 1 && ring.Coord(0).Equal(geom.XY, ring.Coord(n-1)) {
		n--
	}
	vertices := make([]model.GeoPoint, 0, n)
	for i := 0; i < n; i++ {
		c := ring.Coord(i)
		vertices = append(vertices, model.GeoPoint{Lat: c.Y(), Lng: c.X()})
	}
	return vertices, nil
}
