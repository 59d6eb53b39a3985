package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

// XLSX column layout, one row per visible network. Rows sharing a store id
// merge into one store with the union of their signatures:
//
//	id | name | lat | lng | chain_id | authorized | ssid | bssid
//
// The first row is a header and is skipped.
const (
	colID = iota
	colName
	colLat
	colLng
	colChainID
	colAuthorized
	colSSID
	colBSSID
	xlsxColumns
)

// ImportXLSX loads a spreadsheet export into the directory.
func (i *Importer) ImportXLSX(ctx context.Context, path string) (int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "importer: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return 0, eris.Errorf("importer: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	byID := make(map[string]*model.Store)
	var order []string
	var skipped int

	for rowIdx, row := range sheet.Rows {
		if rowIdx == 0 {
			continue // header
		}
		cells := rowToStrings(row)
		st, sig, ok := parseXLSXRow(cells)
		if !ok {
			skipped++
			continue
		}

		existing, seen := byID[st.ID]
		if !seen {
			byID[st.ID] = st
			order = append(order, st.ID)
			existing = st
		}
		if sig.Usable() {
			existing.Signatures = append(existing.Signatures, sig)
		}
	}

	if skipped > 0 {
		zap.L().Warn("skipped unparsable xlsx rows",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(order) == 0 {
		return 0, nil
	}

	stores := make([]*model.Store, 0, len(order))
	for _, id := range order {
		stores = append(stores, byID[id])
	}
	if err := i.sink.UpsertStores(ctx, stores); err != nil {
		return 0, err
	}
	zap.L().Info("imported xlsx",
		zap.String("path", path),
		zap.Int("stores", len(stores)),
	)
	return len(stores), nil
}

func parseXLSXRow(cells []string) (*model.Store, model.NetworkSignature, bool) {
	if len(cells) < xlsxColumns {
		padded := make([]string, xlsxColumns)
		copy(padded, cells)
		cells = padded
	}

	name := strings.TrimSpace(cells[colName])
	if name == "" {
		return nil, model.NetworkSignature{}, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(cells[colLat]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(cells[colLng]), 64)
	if errLat != nil || errLng != nil {
		return nil, model.NetworkSignature{}, false
	}

	id := strings.TrimSpace(cells[colID])
	if id == "" {
		id = uuid.NewString()
	}

	authorized := false
	switch strings.ToLower(strings.TrimSpace(cells[colAuthorized])) {
	case "1", "true", "yes", "y":
		authorized = true
	}

	st := &model.Store{
		ID:         id,
		Name:       name,
		Location:   model.GeoPoint{Lat: lat, Lng: lng},
		ChainID:    strings.TrimSpace(cells[colChainID]),
		Authorized: authorized,
	}
	sig := model.NetworkSignature{
		SSID:  strings.TrimSpace(cells[colSSID]),
		BSSID: strings.TrimSpace(cells[colBSSID]),
	}
	return st, sig, true
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
