package eagleview

import "time"

// captureDateLayout is the ISO 8601 date carried in artifact metadata
// and saved-file names.
const captureDateLayout = "2006-01-02"

// NormalizeCaptureDate reduces a provider capture timestamp to a plain
// ISO 8601 date. Full timestamps lose their time component; anything
// else passes through unchanged, and an empty value maps to
// CaptureDateUnknown.
func NormalizeCaptureDate(raw string) string {
	if raw == "" {
		return CaptureDateUnknown
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(captureDateLayout)
	}
	return raw
}
