package importer

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// DefaultStoreIDField is the shapefile attribute holding the store id.
const DefaultStoreIDField = "store_id"

// ImportShapefile reads polygon footprints and attaches them as geofences
// to existing stores, matched by the idField attribute. Stores themselves
// are not created here; footprints for unknown ids are ignored by the sink.
// Returns how many stores had their geofence updated.
func (i *Importer) ImportShapefile(ctx context.Context, path, idField string) (int, error) {
	fences, err := ParseShapefile(path, idField)
	if err != nil {
		return 0, err
	}
	if len(fences) == 0 {
		return 0, nil
	}

	updated, err := i.sink.UpdateGeofences(ctx, fences)
	if err != nil {
		return 0, err
	}
	zap.L().Info("imported shapefile geofences",
		zap.String("path", path),
		zap.Int("footprints", len(fences)),
		zap.Int("updated", updated),
	)
	return updated, nil
}

// ParseShapefile extracts one polygon geofence per store id. Only polygon
// shapes participate; for multi-part polygons the first ring is taken as
// the footprint boundary. Degenerate rings are skipped with a warning.
func ParseShapefile(path, idField string) (map[string]*model.Geofence, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	idIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, idField) {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, eris.Errorf("importer: shapefile %s has no %q field", path, idField)
	}

	fences := make(map[string]*model.Geofence)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		storeID := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		if storeID == "" {
			skipped++
			continue
		}

		vertices := outerRing(poly)
		fence := &model.Geofence{Kind: model.GeofencePolygon, Vertices: vertices}
		if fence.Degenerate() {
			zap.L().Warn("degenerate footprint ring, skipping",
				zap.String("store_id", storeID),
				zap.Int("vertices", len(vertices)),
			)
			skipped++
			continue
		}
		fences[storeID] = fence
	}

	if skipped > 0 {
		zap.L().Debug("skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return fences, nil
}

// outerRing returns the first ring of the polygon as geo points, dropping
// the duplicated closing vertex shapefiles carry.
func outerRing(poly *shp.Polygon) []model.GeoPoint {
	if poly == nil || len(poly.Points) == 0 {
		return nil
	}
	end := len(poly.Points)
	if poly.NumParts > 1 {
		end = int(poly.Parts[1])
	}
	pts := poly.Points[:end]
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	out := make([]model.GeoPoint, len(pts))
	for i, p := range pts {
		out[i] = model.GeoPoint{Lat: p.Y, Lng: p.X}
	}
	return out
}
