// Package naming builds filesystem-safe names for saved composites.
package naming

import (
	"fmt"
	"math"
	"strings"
)

// SanitizeCoordinate formats a coordinate for use in filenames: N/S/E/W
// instead of a minus sign, and 'p' instead of the decimal point for
// Windows compatibility.
func SanitizeCoordinate(coord float64, isLat bool) string {
	dir := "E"
	if isLat {
		dir = "N"
		if coord < 0 {
			dir = "S"
		}
	} else if coord < 0 {
		dir = "W"
	}
	coordStr := fmt.Sprintf("%.4f", math.Abs(coord))
	coordStr = strings.Replace(coordStr, ".", "p", 1)
	return coordStr + dir
}

// CompositeFilename creates a standardized name for a saved composite.
// Format: {source}_{date}_{lat}-{lng}_z{zoom}.jpg
func CompositeFilename(source, captureDate string, lat, lng float64, zoom int) string {
	date := strings.ReplaceAll(captureDate, ":", "-")
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s-%s_z%d.jpg",
		source, date,
		SanitizeCoordinate(lat, true),
		SanitizeCoordinate(lng, false),
		zoom)
}
