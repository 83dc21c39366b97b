// Package mercator implements the standard Web Mercator slippy-tile
// scheme: point to tile-index conversion and ground resolution math.
package mercator

import (
	"fmt"
	"math"
)

const (
	MinZoom = 0
	MaxZoom = 23

	// Web Mercator latitude limits
	MinLat = -85.051129
	MaxLat = 85.051129
	MinLng = -180.0
	MaxLng = 180.0

	// TileSize is the standard tile edge in pixels (256x256)
	TileSize = 256
)

// Tile addresses a slippy-map tile by integer zoom/column/row.
type Tile struct {
	Z int
	X int
	Y int
}

// String returns the tile in z/x/y path form.
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// PointToTile returns the tile containing a WGS84 coordinate at the
// given zoom level, using the reference slippy-map formulas.
func PointToTile(lat, lng float64, zoom int) Tile {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x := int(math.Floor((lng + 180) / 360 * n))
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))
	return Tile{Z: zoom, X: x, Y: y}
}

// TileToPoint returns the WGS84 coordinate of the north-west corner of
// the tile (x, y) at the given zoom level.
func TileToPoint(x, y, zoom int) (lat, lng float64) {
	n := math.Exp2(float64(zoom))
	lng = float64(x)/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	return lat, lng
}

// MetersPerPixel returns the ground resolution of one pixel at the
// given latitude and zoom level.
func MetersPerPixel(lat float64, zoom int) float64 {
	latRad := lat * math.Pi / 180
	return 156543.03392 * math.Cos(latRad) / math.Exp2(float64(zoom))
}

// ValidatePoint checks that a coordinate is inside the Web Mercator
// projection limits.
func ValidatePoint(lat, lng float64) error {
	if lat < MinLat || lat > MaxLat {
		return fmt.Errorf("latitude %f out of range [%f, %f]", lat, MinLat, MaxLat)
	}
	if lng < MinLng || lng > MaxLng {
		return fmt.Errorf("longitude %f out of range [%f, %f]", lng, MinLng, MaxLng)
	}
	return nil
}

// ValidateZoom checks that a zoom level is inside the supported range.
func ValidateZoom(zoom int) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("zoom level %d out of range [%d, %d]", zoom, MinZoom, MaxZoom)
	}
	return nil
}

// ValidateTile checks individual tile coordinates against the zoom level.
func ValidateTile(t Tile) error {
	if err := ValidateZoom(t.Z); err != nil {
		return err
	}
	maxTile := (1 << t.Z) - 1
	if t.X < 0 || t.X > maxTile {
		return fmt.Errorf("x %d out of range [0, %d] for zoom %d", t.X, maxTile, t.Z)
	}
	if t.Y < 0 || t.Y > maxTile {
		return fmt.Errorf("y %d out of range [0, %d] for zoom %d", t.Y, maxTile, t.Z)
	}
	return nil
}
