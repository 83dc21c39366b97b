package imagery

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/rs/zerolog"

	"github.com/walkthru-earth/property-aerial/internal/mercator"
)

// solidTile encodes a uniform-color 256x256 JPEG tile.
func solidTile(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, mercator.TileSize, mercator.TileSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test tile: %v", err)
	}
	return buf.Bytes()
}

// gridOutcomes builds a full gridSize x gridSize outcome block around
// the center tile, with nil data at the listed positions (row, col).
func gridOutcomes(t *testing.T, gridSize int, center mercator.Tile, data []byte, missing ...[2]int) []TileOutcome {
	t.Helper()
	startX := center.X - (gridSize-1)/2
	startY := center.Y - (gridSize-1)/2

	skip := make(map[[2]int]bool, len(missing))
	for _, m := range missing {
		skip[m] = true
	}

	outcomes := make([]TileOutcome, 0, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			o := TileOutcome{Tile: mercator.Tile{Z: center.Z, X: startX + col, Y: startY + row}}
			if !skip[[2]int{row, col}] {
				o.Data = data
			}
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

// nearColor allows for JPEG quantization error.
func nearColor(got color.Color, want color.RGBA, tolerance int) bool {
	r, g, b, _ := got.RGBA()
	diff := func(a uint32, b uint8) int {
		d := int(a>>8) - int(b)
		if d < 0 {
			d = -d
		}
		return d
	}
	return diff(r, want.R) <= tolerance && diff(g, want.G) <= tolerance && diff(b, want.B) <= tolerance
}

func TestStitchFillsGapsWithBlack(t *testing.T) {
	center := mercator.Tile{Z: 19, X: 100, Y: 200}
	white := solidTile(t, color.White)
	outcomes := gridOutcomes(t, 3, center, white, [2]int{0, 0}, [2]int{2, 1})

	c := NewCompositor(zerolog.Nop())
	stitched, ok := c.Stitch(outcomes, 3, center)
	if !ok {
		t.Fatal("stitch with partial data must succeed")
	}
	if stitched.Width != 768 || stitched.Height != 768 {
		t.Fatalf("expected 768x768 composite, got %dx%d", stitched.Width, stitched.Height)
	}
	if stitched.Format != "jpeg" {
		t.Fatalf("expected jpeg format, got %q", stitched.Format)
	}

	img, err := jpeg.Decode(bytes.NewReader(stitched.Data))
	if err != nil {
		t.Fatalf("decode composite: %v", err)
	}

	// Sample the middle of each cell.
	at := func(row, col int) color.Color {
		return img.At(col*256+128, row*256+128)
	}
	if !nearColor(at(0, 0), color.RGBA{0, 0, 0, 255}, 8) {
		t.Errorf("gap at (0,0) should be black, got %v", at(0, 0))
	}
	if !nearColor(at(2, 1), color.RGBA{0, 0, 0, 255}, 8) {
		t.Errorf("gap at (2,1) should be black, got %v", at(2, 1))
	}
	if !nearColor(at(1, 1), color.RGBA{255, 255, 255, 255}, 8) {
		t.Errorf("center cell should be white, got %v", at(1, 1))
	}
	if !nearColor(at(0, 2), color.RGBA{255, 255, 255, 255}, 8) {
		t.Errorf("fetched cell (0,2) should be white, got %v", at(0, 2))
	}
}

func TestStitchSingleTilePassthrough(t *testing.T) {
	center := mercator.Tile{Z: 19, X: 100, Y: 200}
	tile := solidTile(t, color.RGBA{200, 50, 50, 255})
	outcomes := []TileOutcome{{Tile: center, Data: tile}}

	c := NewCompositor(zerolog.Nop())
	stitched, ok := c.Stitch(outcomes, 1, center)
	if !ok {
		t.Fatal("single tile stitch must succeed")
	}
	if !bytes.Equal(stitched.Data, tile) {
		t.Fatal("1x1 grid must pass raw tile bytes through without re-encoding")
	}
	if stitched.Width != 256 || stitched.Height != 256 {
		t.Fatalf("expected 256x256, got %dx%d", stitched.Width, stitched.Height)
	}
}

func TestStitchUndecodableTilesDegradeToCenter(t *testing.T) {
	center := mercator.Tile{Z: 19, X: 100, Y: 200}
	garbage := []byte("not a jpeg at all")
	outcomes := gridOutcomes(t, 3, center, garbage)

	c := NewCompositor(zerolog.Nop())
	stitched, ok := c.Stitch(outcomes, 3, center)
	if !ok {
		t.Fatal("expected degraded center-tile result, got ok=false")
	}
	if !bytes.Equal(stitched.Data, garbage) {
		t.Fatal("degraded result should carry the center tile's raw bytes")
	}
	if stitched.Width != 256 || stitched.Height != 256 {
		t.Fatalf("degraded result should report tile dimensions, got %dx%d", stitched.Width, stitched.Height)
	}
}

func TestStitchNothingPresent(t *testing.T) {
	center := mercator.Tile{Z: 19, X: 100, Y: 200}
	outcomes := gridOutcomes(t, 2, center, nil)

	c := NewCompositor(zerolog.Nop())
	if _, ok := c.Stitch(outcomes, 2, center); ok {
		t.Fatal("stitch with no tile data must report ok=false")
	}
}
