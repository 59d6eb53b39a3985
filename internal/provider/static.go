package provider

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesense/internal/model"
)

// StaticPosition returns a fixed position, or ErrPositionUnavailable when
// Fix is nil. Used by tests and by CLI runs that pass --fix.
type StaticPosition struct {
	Fix *model.PositionFix
}

func (s StaticPosition) CurrentFix(context.Context) (*model.PositionFix, error) {
	if s.Fix == nil {
		return nil, ErrPositionUnavailable
	}
	fix := *s.Fix
	return &fix, nil
}

// StaticRadio returns a fixed snapshot, or ErrRadioUnavailable when
// Snapshot is nil.
type StaticRadio struct {
	Snapshot model.RadioSnapshot
}

func (s StaticRadio) CurrentSnapshot(context.Context) (model.RadioSnapshot, error) {
	if s.Snapshot == nil {
		return nil, ErrRadioUnavailable
	}
	return s.Snapshot, nil
}

// Fixture is the JSON document accepted by --scan files: an optional fix
// plus a list of visible networks.
type Fixture struct {
	Fix      *model.PositionFix  `json:"fix,omitempty"`
	Snapshot model.RadioSnapshot `json:"snapshot,omitempty"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read fixture %s", path)
	}
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, eris.Wrapf(err, "provider: parse fixture %s", path)
	}
	return &f, nil
}
