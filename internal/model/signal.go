package model

import "time"

// RadioObservation is one visible network in a radio scan.
type RadioObservation struct {
	Signature  NetworkSignature `json:"signature"`
	SignalDbm  float64          `json:"signal_dbm"`
	ObservedAt time.Time        `json:"observed_at"`
}

// RadioSnapshot is an ordered scan result. It may be empty (no visible
// networks) or a single entry on platforms that only report the currently
// associated network.
type RadioSnapshot []RadioObservation

// PositionFix is a satellite position estimate. AccuracyMeters is zero when
// the provider does not report accuracy.
type PositionFix struct {
	Point          GeoPoint  `json:"point"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}
