// Package store persists user-owned detection state: the set of stores the
// user has explicitly confirmed, and their favorites. The detection engine
// itself only reads the confirmed set through confirm.Memory; writes happen
// from the confirmation surface (CLI or serve endpoint).
package store

import (
	"context"
	"time"
)

// Favorite is a user-pinned store.
type Favorite struct {
	StoreID string    `json:"store_id"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// Memory is the durable confirmed-store set plus favorites.
type Memory interface {
	// Confirmed-store set. Contains satisfies confirm.Memory.
	Contains(ctx context.Context, storeID string) (bool, error)
	Add(ctx context.Context, storeID string) error
	Remove(ctx context.Context, storeID string) error
	ListConfirmed(ctx context.Context) ([]string, error)

	// Favorites.
	AddFavorite(ctx context.Context, storeID, name string) error
	RemoveFavorite(ctx context.Context, storeID string) error
	ListFavorites(ctx context.Context) ([]Favorite, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
