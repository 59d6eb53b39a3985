package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/storesense/internal/geomatch"
	"github.com/sells-group/storesense/internal/model"
)

// SQLite implements Directory over a local modernc.org/sqlite database.
// Geofences are stored as JSON documents; the nearby query runs a cheap
// bounding-box prefilter in SQL and refines with haversine in Go.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the directory database and configures WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "directory: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "directory: exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS stores (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	chain_id   TEXT NOT NULL DEFAULT '',
	authorized INTEGER NOT NULL DEFAULT 0,
	geofence   TEXT,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signatures (
	store_id TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	ssid     TEXT NOT NULL DEFAULT '',
	bssid    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (store_id, ssid, bssid)
);

CREATE INDEX IF NOT EXISTS idx_stores_lat_lng ON stores(lat, lng);
CREATE INDEX IF NOT EXISTS idx_signatures_store_id ON signatures(store_id);
`

// Migrate creates the schema.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "directory: migrate")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertStores writes a batch of stores and their signatures, replacing any
// previous signature set per store. Used by the importers.
func (s *SQLite) UpsertStores(ctx context.Context, stores []*model.Store) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "directory: begin upsert")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, st := range stores {
		var fenceJSON any
		if st.Geofence != nil {
			b, err := json.Marshal(st.Geofence)
			if err != nil {
				return eris.Wrapf(err, "directory: marshal geofence %s", st.ID)
			}
			fenceJSON = string(b)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stores (id, name, lat, lng, chain_id, authorized, geofence, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				lat = excluded.lat,
				lng = excluded.lng,
				chain_id = excluded.chain_id,
				authorized = excluded.authorized,
				geofence = excluded.geofence,
				updated_at = excluded.updated_at`,
			st.ID, st.Name, st.Location.Lat, st.Location.Lng,
			st.ChainID, boolToInt(st.Authorized), fenceJSON, now,
		)
		if err != nil {
			return eris.Wrapf(err, "directory: upsert store %s", st.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM signatures WHERE store_id = ?`, st.ID); err != nil {
			return eris.Wrapf(err, "directory: clear signatures %s", st.ID)
		}
		for _, sig := range st.Signatures {
			if !sig.Usable() {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO signatures (store_id, ssid, bssid) VALUES (?, ?, ?)`,
				st.ID, sig.SSID, sig.BSSID,
			)
			if err != nil {
				return eris.Wrapf(err, "directory: insert signature %s", st.ID)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "directory: commit upsert")
}

// UpdateGeofences replaces the geofence of each listed store, leaving the
// rest of the record untouched. Returns how many stores matched; missing
// ids are not an error, geofence imports routinely cover more footprints
// than the directory has stores.
func (s *SQLite) UpdateGeofences(ctx context.Context, fences map[string]*model.Geofence) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "directory: begin geofence update")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	updated := 0
	for id, fence := range fences {
		b, err := json.Marshal(fence)
		if err != nil {
			return 0, eris.Wrapf(err, "directory: marshal geofence %s", id)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE stores SET geofence = ?, updated_at = ? WHERE id = ?`,
			string(b), now, id,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "directory: update geofence %s", id)
		}
		if n, err := res.RowsAffected(); err == nil {
			updated += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "directory: commit geofence update")
	}
	return updated, nil
}

func (s *SQLite) QueryNearby(ctx context.Context, point *model.GeoPoint, radiusMeters float64) ([]*model.Store, error) {
	if point == nil {
		return s.wifiOnlyStores(ctx)
	}

	// Degree-space bounding box; longitude widened by latitude, clamped so
	// polar fixes degrade to a full scan instead of an inverted box.
	latPad := radiusMeters / 111320.0
	cosLat := math.Cos(point.Lat * math.Pi / 180)
	lngPad := 180.0
	if cosLat > 1e-6 {
		lngPad = latPad / cosLat
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, lat, lng, chain_id, authorized, geofence
		FROM stores
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		point.Lat-latPad, point.Lat+latPad,
		point.Lng-lngPad, point.Lng+lngPad,
	)
	if err != nil {
		return nil, eris.Wrap(err, "directory: query nearby")
	}
	stores, err := scanStores(rows)
	if err != nil {
		return nil, err
	}

	type withDist struct {
		store *model.Store
		dist  float64
	}
	var hits []withDist
	for _, st := range stores {
		d := geomatch.Haversine(*point, st.Location)
		if d <= radiusMeters {
			hits = append(hits, withDist{store: st, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].store.ID < hits[j].store.ID
	})

	out := make([]*model.Store, 0, len(hits))
	for _, h := range hits {
		if err := s.loadSignatures(ctx, h.store); err != nil {
			return nil, err
		}
		out = append(out, h.store)
	}
	return out, nil
}

// wifiOnlyStores serves the no-fix path: every store that has at least one
// signature, bounded by wifiScanLimit.
func (s *SQLite) wifiOnlyStores(ctx context.Context) ([]*model.Store, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT st.id, st.name, st.lat, st.lng, st.chain_id, st.authorized, st.geofence
		FROM stores st
		JOIN signatures sig ON sig.store_id = st.id
		ORDER BY st.id
		LIMIT %d`, wifiScanLimit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "directory: query wifi-only stores")
	}
	stores, err := scanStores(rows)
	if err != nil {
		return nil, err
	}
	for _, st := range stores {
		if err := s.loadSignatures(ctx, st); err != nil {
			return nil, err
		}
	}
	return stores, nil
}

// Version is the store count plus the newest updated_at, which changes on
// every import.
func (s *SQLite) Version(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) || ':' || COALESCE(MAX(updated_at), '') FROM stores`,
	).Scan(&version)
	if err != nil {
		return "", eris.Wrap(err, "directory: version")
	}
	return version, nil
}

func (s *SQLite) loadSignatures(ctx context.Context, st *model.Store) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ssid, bssid FROM signatures WHERE store_id = ? ORDER BY ssid, bssid`,
		st.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "directory: load signatures %s", st.ID)
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

func scanStores(rows *sql.Rows) ([]*model.Store, error) {
	defer rows.Close()

	var stores []*model.Store
	for rows.Next() {
		var (
			st        model.Store
			auth      int
			fenceJSON sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &st.Location.Lat, &st.Location.Lng,
			&st.ChainID, &auth, &fenceJSON); err != nil {
			return nil, eris.Wrap(err, "directory: scan store row")
		}
		st.Authorized = auth != 0
		if fenceJSON.Valid && fenceJSON.String != "" {
			var fence model.Geofence
			if err := json.Unmarshal([]byte(fenceJSON.String), &fence); err != nil {
				return nil, eris.Wrapf(err, "directory: unmarshal geofence %s", st.ID)
			}
			st.Geofence = &fence
		}
		stores = append(stores, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "directory: iterate store rows")
	}
	return stores, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
