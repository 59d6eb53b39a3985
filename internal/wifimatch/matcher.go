// Package wifimatch matches a radio scan against the directory's per-store
// network signatures and assigns signal-derived confidence.
package wifimatch

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/storesense/internal/model"
)

// Confidence bands by signal strength of the matched observation.
const (
	confStrong    = 95 // stronger than -60 dBm
	confGood      = 85 // -60 to -70 dBm
	confFair      = 70 // -70 to -80 dBm
	confWeak      = 50 // weaker than -80 dBm
	bssidBonus    = 10 // exact hardware match vs name-only
	maxConfidence = 100
)

// Match scores every store with at least one signature visible in the
// snapshot. Each store contributes one candidate built from its strongest
// matching network; a signature shared by several stores yields one
// candidate per store, and disambiguation is left to fusion. Signatures and
// observations with neither SSID nor BSSID are skipped with a warning.
//
// Candidates come back ordered by confidence descending, then store id, so
// identical inputs always produce identical output.
func Match(snapshot model.RadioSnapshot, stores []*model.Store) []model.Candidate {
	if len(snapshot) == 0 || len(stores) == 0 {
		return nil
	}

	type best struct {
		store      *model.Store
		confidence int
	}
	matched := make(map[string]*best)

	for _, obs := range snapshot {
		if !obs.Signature.Usable() {
			zap.L().Warn("radio observation carries no ssid or bssid, skipping")
			continue
		}
		for _, st := range stores {
			conf, ok := bestMatch(obs, st.Signatures)
			if !ok {
				continue
			}
			if b, seen := matched[st.ID]; !seen || conf > b.confidence {
				matched[st.ID] = &best{store: st, confidence: conf}
			}
		}
	}

	if len(matched) == 0 {
		return nil
	}
	out := make([]model.Candidate, 0, len(matched))
	for _, b := range matched {
		out = append(out, model.Candidate{
			Store:      b.store,
			Confidence: b.confidence,
			Method:     model.MethodWiFi,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Store.ID < out[j].Store.ID
	})
	return out
}

// bestMatch scores one observation against a store's signatures and returns
// the highest confidence achieved, preferring BSSID over SSID-only matches.
func bestMatch(obs model.RadioObservation, sigs []model.NetworkSignature) (int, bool) {
	bestConf := 0
	found := false
	for _, sig := range sigs {
		if !sig.Usable() {
			zap.L().Warn("store signature carries no ssid or bssid, skipping")
			continue
		}
		byBSSID := sig.BSSID != "" && obs.Signature.BSSID != "" &&
			strings.EqualFold(sig.BSSID, obs.Signature.BSSID)
		bySSID := !byBSSID && sig.SSID != "" && obs.Signature.SSID != "" &&
			normalizeSSID(sig.SSID) == normalizeSSID(obs.Signature.SSID)
		if !byBSSID && !bySSID {
			continue
		}
		conf := signalConfidence(obs.SignalDbm)
		if byBSSID {
			conf += bssidBonus
			if conf > maxConfidence {
				conf = maxConfidence
			}
		}
		if conf > bestConf {
			bestConf = conf
			found = true
		}
	}
	return bestConf, found
}

// signalConfidence maps dBm to the base confidence band.
func signalConfidence(dbm float64) int {
	switch {
	case dbm > -60:
		return confStrong
	case dbm >= -70:
		return confGood
	case dbm >= -80:
		return confFair
	default:
		return confWeak
	}
}

// normalizeSSID canonicalizes an SSID for comparison. Scanners and curated
// directories disagree on Unicode composed forms, so compare NFC.
func normalizeSSID(s string) string {
	return norm.NFC.String(s)
}
