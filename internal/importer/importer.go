// Package importer populates the store directory from curated files: YAML
// or JSON chain lists, XLSX exports, and shapefile geofence footprints.
package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/storesense/internal/model"
)

// Sink receives imported records. *directory.SQLite satisfies it.
type Sink interface {
	UpsertStores(ctx context.Context, stores []*model.Store) error
	UpdateGeofences(ctx context.Context, fences map[string]*model.Geofence) (int, error)
}

// Importer writes store files into a directory sink.
type Importer struct {
	sink Sink
}

// New returns an importer over the given sink.
func New(sink Sink) *Importer {
	return &Importer{sink: sink}
}

// ImportFile dispatches on file extension: .yaml/.yml/.json are store
// lists, .xlsx is a spreadsheet export, .shp attaches polygon geofences to
// existing stores. Returns how many stores were written or updated.
func (i *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return i.ImportStoreFile(ctx, path)
	case ".xlsx":
		return i.ImportXLSX(ctx, path)
	case ".shp":
		return i.ImportShapefile(ctx, path, DefaultStoreIDField)
	default:
		return 0, eris.Errorf("importer: unsupported file type %s", path)
	}
}

// storeFile is the YAML/JSON document shape: a list of store records.
type storeFile struct {
	Stores []storeRecord `yaml:"stores" json:"stores"`
}

type storeRecord struct {
	ID         string       `yaml:"id" json:"id"`
	Name       string       `yaml:"name" json:"name"`
	Lat        float64      `yaml:"lat" json:"lat"`
	Lng        float64      `yaml:"lng" json:"lng"`
	ChainID    string       `yaml:"chain_id" json:"chain_id"`
	Authorized bool         `yaml:"authorized" json:"authorized"`
	Geofence   *fenceRecord `yaml:"geofence" json:"geofence"`
	Signatures []sigRecord  `yaml:"signatures" json:"signatures"`
}

type fenceRecord struct {
	Kind         string           `yaml:"kind" json:"kind"`
	Center       *model.GeoPoint  `yaml:"center" json:"center"`
	RadiusMeters float64          `yaml:"radius_meters" json:"radius_meters"`
	Vertices     []model.GeoPoint `yaml:"vertices" json:"vertices"`
}

type sigRecord struct {
	SSID  string `yaml:"ssid" json:"ssid"`
	BSSID string `yaml:"bssid" json:"bssid"`
}

// ImportStoreFile loads a YAML or JSON store list.
func (i *Importer) ImportStoreFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "importer: read %s", path)
	}

	var doc storeFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(b, &doc)
	} else {
		err = yaml.Unmarshal(b, &doc)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "importer: parse %s", path)
	}

	stores := make([]*model.Store, 0, len(doc.Stores))
	for _, rec := range doc.Stores {
		st, ok := rec.toStore()
		if !ok {
			continue
		}
		stores = append(stores, st)
	}
	if len(stores) == 0 {
		return 0, nil
	}
	if err := i.sink.UpsertStores(ctx, stores); err != nil {
		return 0, err
	}
	zap.L().Info("imported store file",
		zap.String("path", path),
		zap.Int("stores", len(stores)),
	)
	return len(stores), nil
}

// toStore validates and converts one record. Unusable signatures and
// degenerate geofences are dropped with a warning rather than failing the
// whole import.
func (r storeRecord) toStore() (*model.Store, bool) {
	if r.Name == "" {
		zap.L().Warn("store record without a name, skipping")
		return nil, false
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	st := &model.Store{
		ID:         id,
		Name:       r.Name,
		Location:   model.GeoPoint{Lat: r.Lat, Lng: r.Lng},
		ChainID:    r.ChainID,
		Authorized: r.Authorized,
	}

	for _, sig := range r.Signatures {
		ns := model.NetworkSignature{SSID: sig.SSID, BSSID: sig.BSSID}
		if !ns.Usable() {
			zap.L().Warn("signature without ssid or bssid, skipping",
				zap.String("store_id", id))
			continue
		}
		st.Signatures = append(st.Signatures, ns)
	}

	if r.Geofence != nil {
		fence := r.Geofence.toFence()
		if fence.Degenerate() {
			zap.L().Warn("degenerate geofence dropped, store falls back to distance matching",
				zap.String("store_id", id),
				zap.String("kind", r.Geofence.Kind),
			)
		} else {
			st.Geofence = fence
		}
	}
	return st, true
}

func (f fenceRecord) toFence() *model.Geofence {
	fence := &model.Geofence{
		Kind:         model.GeofenceKind(f.Kind),
		RadiusMeters: f.RadiusMeters,
		Vertices:     f.Vertices,
	}
	if f.Center != nil {
		fence.Center = *f.Center
	}
	return fence
}
