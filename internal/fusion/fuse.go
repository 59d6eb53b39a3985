// Package fusion combines the GPS-derived candidate and the WiFi-derived
// candidates into a single decision. The rules encode a product decision:
// geofence containment is near-unimpeachable evidence, while radio matches
// are advisory unless corroborated.
package fusion

import (
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/model"
)

const (
	// agreementBonus is added when both modalities point at the same store.
	agreementBonus = 10

	// geofenceOverrideFloor is the GPS confidence at or above which a
	// geofence containment beats any disagreeing WiFi candidate outright.
	geofenceOverrideFloor = 95
)

// Best returns the highest-confidence WiFi candidate, or nil for an empty
// slice. Ties break by store id for determinism.
func Best(wifi []model.Candidate) *model.Candidate {
	var best *model.Candidate
	for i := range wifi {
		c := &wifi[i]
		if best == nil ||
			c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Store.ID < best.Store.ID) {
			best = c
		}
	}
	return best
}

// Fuse applies the cross-modal decision table:
//
//	gps=nil, wifi=nil        -> nil
//	gps=nil, wifi!=nil       -> wifi best, unchanged
//	gps!=nil, wifi=nil       -> gps, unchanged
//	same store               -> min(100, max(gps, wifi)+10), method fused
//	different, gps geofence  -> gps wins when gps.Confidence >= 95
//	different, otherwise     -> strictly higher confidence wins, ties to gps
//
// The returned candidate is a copy; inputs are not mutated.
func Fuse(gps *model.Candidate, wifi []model.Candidate) *model.Candidate {
	wifiBest := Best(wifi)

	switch {
	case gps == nil && wifiBest == nil:
		return nil
	case gps == nil:
		out := *wifiBest
		return &out
	case wifiBest == nil:
		out := *gps
		return &out
	}

	if gps.Store.ID == wifiBest.Store.ID {
		out := *gps
		out.Confidence = gps.Confidence
		if wifiBest.Confidence > out.Confidence {
			out.Confidence = wifiBest.Confidence
		}
		out.Confidence += agreementBonus
		if out.Confidence > 100 {
			out.Confidence = 100
		}
		out.Method = model.MethodFused
		return &out
	}

	// Disagreement.
	winner := resolveDisagreement(gps, wifiBest)
	zap.L().Debug("cross-modal disagreement",
		zap.String("gps_store", gps.Store.ID),
		zap.Int("gps_confidence", gps.Confidence),
		zap.String("wifi_store", wifiBest.Store.ID),
		zap.Int("wifi_confidence", wifiBest.Confidence),
		zap.String("winner", winner.Store.ID),
	)
	out := *winner
	return &out
}

// resolveDisagreement picks the winner when the two modalities name
// different stores.
func resolveDisagreement(gps, wifi *model.Candidate) *model.Candidate {
	if gps.Method == model.MethodGeofence && gps.Confidence >= geofenceOverrideFloor {
		return gps
	}
	if wifi.Confidence > gps.Confidence {
		return wifi
	}
	// Strictly-higher wins; ties favor GPS, whose geofences are curated
	// data, over name-based radio matches.
	return gps
}
