package model

// NetworkSignature identifies a wireless network known to be visible at or
// near a store. At least one of SSID or BSSID must be set for the signature
// to carry any matching power.
type NetworkSignature struct {
	SSID  string `json:"ssid,omitempty"`
	BSSID string `json:"bssid,omitempty"`
}

// Usable reports whether the signature can participate in matching.
func (s NetworkSignature) Usable() bool {
	return s.SSID != "" || s.BSSID != ""
}

// Store is a physical retail location as served by the directory. The
// detection engine only ever reads stores; the directory owns their
// lifecycle.
type Store struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Location   GeoPoint           `json:"location"`
	Geofence   *Geofence          `json:"geofence,omitempty"`
	Signatures []NetworkSignature `json:"signatures,omitempty"`
	Authorized bool               `json:"authorized"`
	ChainID    string             `json:"chain_id,omitempty"`
}
