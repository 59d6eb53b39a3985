// Package directory serves read-only store snapshots to the detection
// engine. Implementations share one contract: QueryNearby returns every
// store within the search radius of a point, with geofences and network
// signatures populated, and Version changes whenever the underlying
// snapshot does (the fence cache keys off it).
package directory

import (
	"context"

	"github.com/sells-group/storesense/internal/model"
)

// Directory is the engine's view of the store catalog.
type Directory interface {
	// QueryNearby returns stores within radiusMeters of point, nearest
	// first. A nil point requests WiFi-only mode: every signature-bearing
	// store, bounded by the implementation's scan limit.
	QueryNearby(ctx context.Context, point *model.GeoPoint, radiusMeters float64) ([]*model.Store, error)

	// Version identifies the current snapshot for cache invalidation.
	Version(ctx context.Context) (string, error)

	Close() error
}

// wifiScanLimit bounds how many signature-bearing stores a WiFi-only query
// may return. Radio matching is cheap but the snapshot should stay small.
const wifiScanLimit = 500
