package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/storesense/internal/geomatch"
	"github.com/sells-group/storesense/internal/model"
)

// Static is an in-memory Directory for tests and file-driven CLI runs.
type Static struct {
	mu      sync.RWMutex
	stores  []*model.Store
	version string
}

// NewStatic builds a Static directory over the given stores.
func NewStatic(version string, stores []*model.Store) *Static {
	return &Static{stores: stores, version: version}
}

// Replace swaps the snapshot, bumping the version.
func (s *Static) Replace(version string, stores []*model.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = stores
	s.version = version
}

func (s *Static) QueryNearby(_ context.Context, point *model.GeoPoint, radiusMeters float64) ([]*model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if point == nil {
		var out []*model.Store
		for _, st := range s.stores {
			if len(st.Signatures) > 0 {
				out = append(out, st)
			}
			if len(out) == wifiScanLimit {
				break
			}
		}
		return out, nil
	}

	type withDist struct {
		store *model.Store
		dist  float64
	}
	var hits []withDist
	for _, st := range s.stores {
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
	out := make([]*model.Store, len(hits))
	for i, h := range hits {
		out[i] = h.store
	}
	return out, nil
}

func (s *Static) Version(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *Static) Close() error { return nil }
