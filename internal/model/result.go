package model

// DetectionMethod names the evidence behind a candidate or result.
type DetectionMethod string

const (
	MethodGeofence DetectionMethod = "geofence"
	MethodDistance DetectionMethod = "distance"
	MethodWiFi     DetectionMethod = "wifi"
	MethodFused    DetectionMethod = "fused"
	MethodNone     DetectionMethod = "none"
)

// Candidate is an intermediate per-store match produced by one matcher.
type Candidate struct {
	Store          *Store          `json:"store"`
	Confidence     int             `json:"confidence"`
	Method         DetectionMethod `json:"method"`
	DistanceMeters float64         `json:"distance_meters,omitempty"`
	InsideGeofence bool            `json:"inside_geofence"`
}

// DetectionResult is the engine's output for one detection cycle.
// Confidence is always in [0,100]; a nil Store implies confidence 0 and
// method "none".
type DetectionResult struct {
	Store                *Store          `json:"store"`
	Confidence           int             `json:"confidence"`
	Method               DetectionMethod `json:"method"`
	InsideGeofence       bool            `json:"inside_geofence"`
	DistanceMeters       float64         `json:"distance_meters,omitempty"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
}

// NoDetection is the empty result returned when nothing matched. Never an
// error: the caller is expected to offer manual selection.
func NoDetection() *DetectionResult {
	return &DetectionResult{Method: MethodNone}
}

// FromCandidate lifts a candidate into a result. A nil candidate maps to
// NoDetection.
func FromCandidate(c *Candidate, requiresConfirmation bool) *DetectionResult {
	if c == nil || c.Store == nil {
		return NoDetection()
	}
	return &DetectionResult{
		Store:                c.Store,
		Confidence:           c.Confidence,
		Method:               c.Method,
		InsideGeofence:       c.InsideGeofence,
		DistanceMeters:       c.DistanceMeters,
		RequiresConfirmation: requiresConfirmation,
	}
}
