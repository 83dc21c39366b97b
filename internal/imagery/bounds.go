package imagery

// gridBounds is the min/max tile column and row across an outcome set.
type gridBounds struct {
	MinCol, MaxCol int
	MinRow, MaxRow int
}

// boundsOf computes bounds over every outcome, present or absent, so
// gaps keep their place on the canvas.
func boundsOf(outcomes []TileOutcome) gridBounds {
	b := gridBounds{
		MinCol: outcomes[0].Tile.X, MaxCol: outcomes[0].Tile.X,
		MinRow: outcomes[0].Tile.Y, MaxRow: outcomes[0].Tile.Y,
	}
	for _, o := range outcomes[1:] {
		if o.Tile.X < b.MinCol {
			b.MinCol = o.Tile.X
		}
		if o.Tile.X > b.MaxCol {
			b.MaxCol = o.Tile.X
		}
		if o.Tile.Y < b.MinRow {
			b.MinRow = o.Tile.Y
		}
		if o.Tile.Y > b.MaxRow {
			b.MaxRow = o.Tile.Y
		}
	}
	return b
}
