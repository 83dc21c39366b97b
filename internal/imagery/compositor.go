package imagery

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/rs/zerolog"

	"github.com/walkthru-earth/property-aerial/internal/mercator"
)

// compositeQuality is the JPEG quality of the stitched output.
const compositeQuality = 92

// Stitched is a composite image assembled from tile outcomes.
type Stitched struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Compositor stitches fetched tiles onto a single canvas, degrading
// gracefully on partial data.
type Compositor struct {
	logger zerolog.Logger
}

// NewCompositor creates a compositor.
func NewCompositor(logger zerolog.Logger) *Compositor {
	return &Compositor{logger: logger}
}

// Stitch places every successful tile at its grid offset on a
// gridSize*256 square canvas. Missing tiles leave the black background
// showing through. A 1x1 grid with exactly one successful tile passes
// the raw bytes through without re-encoding. When encoding fails the
// composite degrades to the center tile's raw bytes; ok is false only
// when nothing at all can be produced.
func (c *Compositor) Stitch(outcomes []TileOutcome, gridSize int, center mercator.Tile) (Stitched, bool) {
	var present []TileOutcome
	for _, o := range outcomes {
		if o.Data != nil {
			present = append(present, o)
		}
	}
	if len(present) == 0 {
		return Stitched{}, false
	}

	if gridSize == 1 && len(present) == 1 {
		return Stitched{
			Data:   present[0].Data,
			Width:  mercator.TileSize,
			Height: mercator.TileSize,
			Format: "jpeg",
		}, true
	}

	bounds := boundsOf(outcomes)

	side := gridSize * mercator.TileSize
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	drawn := 0
	for _, o := range present {
		img, err := jpeg.Decode(bytes.NewReader(o.Data))
		if err != nil {
			c.logger.Debug().Err(err).Stringer("tile", o.Tile).Msg("skipping undecodable tile")
			continue
		}

		xOffset := (o.Tile.X - bounds.MinCol) * mercator.TileSize
		yOffset := (o.Tile.Y - bounds.MinRow) * mercator.TileSize
		dest := image.Rect(xOffset, yOffset, xOffset+mercator.TileSize, yOffset+mercator.TileSize)
		draw.Draw(canvas, dest, img, image.Point{}, draw.Src)
		drawn++
	}

	var buf bytes.Buffer
	err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: compositeQuality})
	if err != nil || drawn == 0 {
		if err != nil {
			c.logger.Warn().Err(err).Msg("composite encoding failed, degrading to center tile")
		}
		for _, o := range present {
			if o.Tile == center {
				return Stitched{
					Data:   o.Data,
					Width:  mercator.TileSize,
					Height: mercator.TileSize,
					Format: "jpeg",
				}, true
			}
		}
		return Stitched{}, false
	}

	return Stitched{
		Data:   buf.Bytes(),
		Width:  side,
		Height: side,
		Format: "jpeg",
	}, true
}
