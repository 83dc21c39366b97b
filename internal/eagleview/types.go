package eagleview

// Capture is a provider-supplied imagery capture. Immutable.
type Capture struct {
	URN       string
	StartDate string
	EndDate   string
	Labels    []string
}

// OrthoImageRef references a single orthophoto image derived from a
// capture, with its measured resolution and zoom ceiling.
type OrthoImageRef struct {
	URN          string
	GSDMeters    float64
	MaxZoomLevel int
}

// DiscoveryResult is the outcome of resolving a geographic point to an
// imagery handle. CaptureDate is the sentinel "unknown" when the
// orthomosaic fallback path produced the result; GSDMeters and MaxZoom
// are then placeholders, not measurements.
type DiscoveryResult struct {
	ImageURN    string
	CaptureDate string
	GSDMeters   float64
	MaxZoom     int
}

// Defaults used when the provider omits ortho metadata, and for the
// degraded orthomosaic fallback path.
const (
	DefaultGSDMeters = 0.02
	DefaultMaxZoom   = 21

	// CaptureDateUnknown marks a DiscoveryResult produced by the
	// orthomosaic fallback, where no capture date is available.
	CaptureDateUnknown = "unknown"
)
