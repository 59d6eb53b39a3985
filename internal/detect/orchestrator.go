// Package detect is the top-level detection engine: it gathers a position
// fix and a radio scan in parallel, matches nearby stores against both,
// fuses the evidence and advances the confirmation lifecycle.
package detect

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/storesense/internal/confirm"
	"github.com/sells-group/storesense/internal/directory"
	"github.com/sells-group/storesense/internal/fusion"
	"github.com/sells-group/storesense/internal/geomatch"
	"github.com/sells-group/storesense/internal/model"
	"github.com/sells-group/storesense/internal/provider"
	"github.com/sells-group/storesense/internal/wifimatch"
)

// Config tunes one orchestrator. Zero values take the defaults below.
type Config struct {
	// SearchRadiusMeters bounds the directory query around the fix.
	SearchRadiusMeters float64

	// PositionTimeout and RadioTimeout bound each provider call
	// independently. A timeout degrades the cycle to the other modality.
	PositionTimeout time.Duration
	RadioTimeout    time.Duration

	// ConfirmedFloor is passed through to the confirmation machine: the
	// minimum confidence at which a previously-confirmed store is accepted
	// silently. Zero trusts the prior confirmation unconditionally.
	ConfirmedFloor int
}

const (
	defaultSearchRadiusM   = 1000.0
	defaultProviderTimeout = 5 * time.Second

	// fringeMarginM is how close to a polygon edge a contained fix may sit
	// before its confidence is capped at the base containment grade.
	fringeMarginM = 10.0

	geofenceFringeConfidence = 95
)

func (c Config) withDefaults() Config {
	if c.SearchRadiusMeters <= 0 {
		c.SearchRadiusMeters = defaultSearchRadiusM
	}
	if c.PositionTimeout <= 0 {
		c.PositionTimeout = defaultProviderTimeout
	}
	if c.RadioTimeout <= 0 {
		c.RadioTimeout = defaultProviderTimeout
	}
	return c
}

// Orchestrator runs detection cycles. Safe for concurrent use; concurrent
// Detect calls join the in-flight cycle instead of duty-cycling the radio
// and GPS twice.
type Orchestrator struct {
	cfg      Config
	dir      directory.Directory
	position provider.Position
	radio    provider.Radio
	machine  *confirm.Machine
	fences   *geomatch.FenceCache
	flight   singleflight.Group
}

// New builds an orchestrator. position or radio may be nil when that
// modality is not configured; memory may be nil for a forgetful machine.
func New(cfg Config, dir directory.Directory, position provider.Position, radio provider.Radio, memory confirm.Memory) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:      cfg,
		dir:      dir,
		position: position,
		radio:    radio,
		machine:  confirm.NewMachine(memory, confirm.WithConfirmedFloor(cfg.ConfirmedFloor)),
		fences:   geomatch.NewFenceCache(),
	}
}

// Machine exposes the confirmation state machine so callers can accept,
// reject or replace a pending detection.
func (o *Orchestrator) Machine() *confirm.Machine {
	return o.machine
}

// Detect runs one detection cycle. Degraded inputs never fail the cycle:
// the worst case is a nil-store result. The only error returned is the
// caller's own context cancellation.
func (o *Orchestrator) Detect(ctx context.Context) (*model.DetectionResult, error) {
	v, err, shared := o.flight.Do("detect", func() (interface{}, error) {
		return o.detect(ctx)
	})
	if shared {
		zap.L().Debug("joined in-flight detection cycle")
	}
	if err != nil {
		return model.NoDetection(), err
	}
	return v.(*model.DetectionResult), nil
}

func (o *Orchestrator) detect(ctx context.Context) (*model.DetectionResult, error) {
	fix, snapshot := o.gather(ctx)
	return o.Evaluate(ctx, fix, snapshot)
}

// Evaluate runs a detection cycle over caller-supplied signals, skipping
// the providers. The HTTP surface uses it directly: the device posts its
// own fix and scan with each request.
func (o *Orchestrator) Evaluate(ctx context.Context, fix *model.PositionFix, snapshot model.RadioSnapshot) (*model.DetectionResult, error) {
	o.machine.Begin()

	if ctx.Err() != nil {
		o.machine.Cancel()
		return nil, ctx.Err()
	}
	if fix == nil && len(snapshot) == 0 {
		o.machine.Resolve(ctx, nil)
		return model.NoDetection(), nil
	}

	var point *model.GeoPoint
	if fix != nil {
		p := fix.Point
		point = &p
	}
	stores, err := o.dir.QueryNearby(ctx, point, o.cfg.SearchRadiusMeters)
	if err != nil {
		if ctx.Err() != nil {
			o.machine.Cancel()
			return nil, ctx.Err()
		}
		zap.L().Warn("directory query failed", zap.Error(err))
		o.machine.Resolve(ctx, nil)
		return model.NoDetection(), nil
	}
	if len(stores) == 0 {
		o.machine.Resolve(ctx, nil)
		return model.NoDetection(), nil
	}

	version, err := o.dir.Version(ctx)
	if err != nil {
		zap.L().Warn("directory version unavailable, fence cache cold", zap.Error(err))
	}

	gps := o.gpsCandidate(version, fix, stores)
	var wifi []model.Candidate
	if len(snapshot) > 0 {
		wifi = wifimatch.Match(snapshot, stores)
	}

	fused := fusion.Fuse(gps, wifi)
	state := o.machine.Resolve(ctx, fused)
	return model.FromCandidate(fused, state == confirm.StatePendingConfirmation), nil
}

// gather fetches the fix and the scan in parallel with independent
// timeouts. Provider failures are logged and degrade the cycle to the
// remaining modality.
func (o *Orchestrator) gather(ctx context.Context) (*model.PositionFix, model.RadioSnapshot) {
	var fix *model.PositionFix
	var snapshot model.RadioSnapshot

	g := new(errgroup.Group)
	if o.position != nil {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, o.cfg.PositionTimeout)
			defer cancel()
			f, err := o.position.CurrentFix(pctx)
			if err != nil {
				logProviderDegrade("position", err)
				return nil
			}
			fix = f
			return nil
		})
	}
	if o.radio != nil {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, o.cfg.RadioTimeout)
			defer cancel()
			s, err := o.radio.CurrentSnapshot(rctx)
			if err != nil {
				logProviderDegrade("radio", err)
				return nil
			}
			snapshot = s
			return nil
		})
	}
	_ = g.Wait()
	return fix, snapshot
}

func logProviderDegrade(name string, err error) {
	zap.L().Warn("provider unavailable, degrading to single modality",
		zap.String("provider", name),
		zap.Error(err),
	)
}

// gpsCandidate selects the geospatial candidate: among geofence-containing
// stores the one whose center is nearest the fix, else the nearest store
// overall with the distance-band confidence table.
func (o *Orchestrator) gpsCandidate(version string, fix *model.PositionFix, stores []*model.Store) *model.Candidate {
	if fix == nil || len(stores) == 0 {
		return nil
	}
	p := fix.Point

	var best *model.Candidate
	for _, st := range stores {
		if st.Geofence != nil && st.Geofence.Degenerate() {
			zap.L().Warn("degenerate geofence, falling back to distance matching",
				zap.String("store_id", st.ID))
			continue
		}
		if !o.fences.Contains(version, st, p) {
			continue
		}
		d := geomatch.Haversine(p, st.Location)
		if best == nil || d < best.DistanceMeters ||
			(d == best.DistanceMeters && st.ID < best.Store.ID) {
			best = &model.Candidate{
				Store:          st,
				Method:         model.MethodGeofence,
				DistanceMeters: d,
				InsideGeofence: true,
			}
		}
	}
	if best != nil {
		best.Confidence = geofenceConfidence(best.DistanceMeters)
		if fence := best.Store.Geofence; fence.Kind == model.GeofencePolygon {
			// A fix hugging the fence edge is containment on the fringe: GPS
			// noise could just as well have placed it outside, so it never
			// grades above the base containment confidence.
			if geomatch.DistanceToPolygonEdge(p, fence.Vertices) < fringeMarginM &&
				best.Confidence > geofenceFringeConfidence {
				best.Confidence = geofenceFringeConfidence
			}
		}
		return best
	}

	for _, st := range stores {
		d := geomatch.Haversine(p, st.Location)
		if best == nil || d < best.DistanceMeters ||
			(d == best.DistanceMeters && st.ID < best.Store.ID) {
			best = &model.Candidate{
				Store:          st,
				Method:         model.MethodDistance,
				DistanceMeters: d,
			}
		}
	}
	best.Confidence = distanceConfidence(best.DistanceMeters)
	return best
}

// geofenceConfidence grades a containment by how close the fix is to the
// store center: deep inside a fence is certainty, the fringe still beats
// any non-contained evidence.
func geofenceConfidence(distanceM float64) int {
	switch {
	case distanceM <= 25:
		return 100
	case distanceM <= 100:
		return 98
	default:
		return 95
	}
}

// distanceConfidence maps proximity without containment to confidence
// bands. Past 200 m the match is barely better than a guess.
func distanceConfidence(distanceM float64) int {
	switch {
	case distanceM <= 10:
		return 100
	case distanceM <= 25:
		return 95
	case distanceM <= 50:
		return 85
	case distanceM <= 100:
		return 70
	case distanceM <= 200:
		return 50
	default:
		return 30
	}
}
