package geomatch

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/sells-group/storesense/internal/model"
)

// compiledFence holds the precomputed bound for a store's fence so repeated
// containment checks skip re-deriving it every cycle.
type compiledFence struct {
	fence *model.Geofence
	bound orb.Bound
}

// FenceCache amortizes fence compilation across detection cycles. Entries
// are valid for a single directory snapshot version; when the version
// changes the cache resets.
type FenceCache struct {
	mu      sync.RWMutex
	version string
	fences  map[string]*compiledFence
}

// NewFenceCache returns an empty cache.
func NewFenceCache() *FenceCache {
	return &FenceCache{fences: make(map[string]*compiledFence)}
}

// Contains evaluates the store's fence against p using cached geometry,
// compiling and storing it on first sight under the given snapshot version.
func (c *FenceCache) Contains(version string, store *model.Store, p model.GeoPoint) bool {
	cf := c.lookup(version, store)
	if cf == nil {
		return false
	}
	if !cf.bound.Contains(p.Point()) {
		return false
	}
	switch cf.fence.Kind {
	case model.GeofenceCircle:
		return PointInCircle(p, cf.fence.Center, cf.fence.RadiusMeters)
	case model.GeofencePolygon:
		return PointInPolygon(p, cf.fence.Vertices)
	default:
		return false
	}
}

// Len reports the number of cached fences. Test hook.
func (c *FenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fences)
}

func (c *FenceCache) lookup(version string, store *model.Store) *compiledFence {
	if store == nil || store.Geofence == nil || store.Geofence.Degenerate() {
		return nil
	}

	c.mu.RLock()
	if c.version == version {
		if cf, ok := c.fences[store.ID]; ok {
			c.mu.RUnlock()
			return cf
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		c.version = version
		c.fences = make(map[string]*compiledFence)
	}
	if cf, ok := c.fences[store.ID]; ok {
		return cf
	}
	cf := &compiledFence{fence: store.Geofence, bound: store.Geofence.Bound()}
	c.fences[store.ID] = cf
	return cf
}
