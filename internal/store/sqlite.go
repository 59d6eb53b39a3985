package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteMemory implements Memory using modernc.org/sqlite.
type SQLiteMemory struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteMemory, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteMemory{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS confirmed_stores (
	store_id     TEXT PRIMARY KEY,
	confirmed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS favorites (
	store_id TEXT PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	added_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteMemory) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteMemory) Close() error {
	return s.db.Close()
}

func (s *SQLiteMemory) Contains(ctx context.Context, storeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM confirmed_stores WHERE store_id = ?`, storeID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: contains %s", storeID)
	}
	return true, nil
}

func (s *SQLiteMemory) Add(ctx context.Context, storeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmed_stores (store_id, confirmed_at) VALUES (?, ?)
		 ON CONFLICT (store_id) DO UPDATE SET confirmed_at = excluded.confirmed_at`,
		storeID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add confirmed %s", storeID)
}

func (s *SQLiteMemory) Remove(ctx context.Context, storeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM confirmed_stores WHERE store_id = ?`, storeID,
	)
	return eris.Wrapf(err, "sqlite: remove confirmed %s", storeID)
}

func (s *SQLiteMemory) ListConfirmed(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id FROM confirmed_stores ORDER BY confirmed_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list confirmed")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan confirmed row")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate confirmed rows")
}

func (s *SQLiteMemory) AddFavorite(ctx context.Context, storeID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO favorites (store_id, name, added_at) VALUES (?, ?, ?)
		 ON CONFLICT (store_id) DO UPDATE SET name = excluded.name`,
		storeID, name, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add favorite %s", storeID)
}

func (s *SQLiteMemory) RemoveFavorite(ctx context.Context, storeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE store_id = ?`, storeID,
	)
	return eris.Wrapf(err, "sqlite: remove favorite %s", storeID)
}

func (s *SQLiteMemory) ListFavorites(ctx context.Context) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, name, added_at FROM favorites ORDER BY added_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list favorites")
	}
	defer rows.Close()

	var favs []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.StoreID, &f.Name, &f.AddedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan favorite row")
		}
		favs = append(favs, f)
	}
	return favs, eris.Wrap(rows.Err(), "sqlite: iterate favorite rows")
}
