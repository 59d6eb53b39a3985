// Package provider supplies the two external signals the orchestrator
// fuses: satellite position fixes and radio scans. Implementations degrade
// by returning the sentinel errors below; the orchestrator treats both as
// recoverable and falls back to single-modality detection.
package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesense/internal/model"
)

// ErrPositionUnavailable means the fix timed out, was denied, or no
// position source exists. Recoverable: detection proceeds WiFi-only.
var ErrPositionUnavailable = eris.New("provider: position unavailable")

// ErrRadioUnavailable means no scan capability or permission. Recoverable:
// detection proceeds GPS-only.
var ErrRadioUnavailable = eris.New("provider: radio unavailable")

// Position produces the current satellite fix.
type Position interface {
	CurrentFix(ctx context.Context) (*model.PositionFix, error)
}

// Radio produces a snapshot of currently visible networks. On restricted
// platforms the snapshot may hold only the associated network; that is a
// valid, if weaker, input.
type Radio interface {
	CurrentSnapshot(ctx context.Context) (model.RadioSnapshot, error)
}
