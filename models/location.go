package models

// FixKind labels how a location acquisition concluded.
type FixKind int

const (
	// FixReal carries coordinates from the platform provider.
	FixReal FixKind = iota
	// FixUnsupported means the platform has no location capability.
	FixUnsupported
	// FixTimedOut means the timeout elapsed before the provider answered.
	FixTimedOut
	// FixDenied means the provider reported an error or permission denial.
	FixDenied
)

func (k FixKind) String() string {
	switch k {
	case FixReal:
		return "real"
	case FixUnsupported:
		return "unsupported"
	case FixTimedOut:
		return "timed_out"
	default:
		return "denied"
	}
}

// LocationFix is the uniform outcome of a location acquisition. Sentinel
// triples stand in for missing readings and are transmitted verbatim; the
// server records them as audit data.
type LocationFix struct {
	Kind FixKind
	Lat  float64
	Lng  float64
	Acc  float64
}

// RealFix wraps provider coordinates.
func RealFix(lat, lng, acc float64) LocationFix {
	return LocationFix{Kind: FixReal, Lat: lat, Lng: lng, Acc: acc}
}

// UnsupportedFix is the sentinel for a platform without a location provider.
func UnsupportedFix() LocationFix {
	return LocationFix{Kind: FixUnsupported, Lat: -99, Lng: -99, Acc: -99}
}

// TimedOutFix is the sentinel for an acquisition that outlived its timeout.
func TimedOutFix() LocationFix {
	return LocationFix{Kind: FixTimedOut, Lat: -2, Lng: -2, Acc: -2}
}

// DeniedFix is the sentinel for a provider error or permission denial.
func DeniedFix() LocationFix {
	return LocationFix{Kind: FixDenied, Lat: -1, Lng: -1, Acc: -1}
}
