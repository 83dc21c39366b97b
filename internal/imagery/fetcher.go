// Package imagery downloads tile grids concurrently and stitches them
// into a single composite image, tolerating partial failures.
package imagery

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/walkthru-earth/property-aerial/internal/auth"
	"github.com/walkthru-earth/property-aerial/internal/cache"
	"github.com/walkthru-earth/property-aerial/internal/mercator"
)

// DefaultWorkers bounds concurrent tile fetches when no limit is given.
const DefaultWorkers = 16

// TileSource fetches one tile of an image.
type TileSource interface {
	FetchTile(ctx context.Context, urn string, t mercator.Tile) ([]byte, error)
}

// TileOutcome is the settled result for one requested tile. Data is
// nil when the fetch failed; absence is a normal, non-fatal outcome.
type TileOutcome struct {
	Tile mercator.Tile
	Data []byte
}

// Fetcher downloads an NxN grid of tiles around a point. All fetches
// for a grid run concurrently and the grid waits for every tile to
// settle; one tile failing never cancels its siblings.
type Fetcher struct {
	source TileSource
	tiles  *cache.TileCache
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

// NewFetcher creates a grid fetcher. The cache is optional.
func NewFetcher(source TileSource, tiles *cache.TileCache, maxWorkers int, logger zerolog.Logger) *Fetcher {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}
	return &Fetcher{
		source: source,
		tiles:  tiles,
		sem:    semaphore.NewWeighted(int64(maxWorkers)),
		logger: logger,
	}
}

// FetchGrid fetches the gridSize x gridSize block of tiles centered on
// the point at the given zoom. It returns one outcome per grid
// position and the center tile. ok is false when every tile failed.
// Authentication failures surface as an error; any other per-tile
// failure is recorded as an absent outcome.
func (f *Fetcher) FetchGrid(ctx context.Context, urn string, lat, lng float64, zoom, gridSize int) (outcomes []TileOutcome, center mercator.Tile, ok bool, err error) {
	center = mercator.PointToTile(lat, lng, zoom)

	// The grid is exactly gridSize tiles per axis, aligned to the
	// gridSize*256 canvas. An even grid places the center tile just
	// right and down of true center.
	startX := center.X - (gridSize-1)/2
	startY := center.Y - (gridSize-1)/2

	total := gridSize * gridSize
	outcomes = make([]TileOutcome, total)
	errs := make([]error, total)

	var wg sync.WaitGroup
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			idx := row*gridSize + col
			tile := mercator.Tile{Z: zoom, X: startX + col, Y: startY + row}
			outcomes[idx].Tile = tile

			wg.Add(1)
			go func(idx int, tile mercator.Tile) {
				defer wg.Done()

				if err := f.sem.Acquire(ctx, 1); err != nil {
					errs[idx] = err
					return
				}
				defer f.sem.Release(1)

				data, err := f.fetchOne(ctx, urn, tile)
				if err != nil {
					errs[idx] = err
					f.logger.Debug().Err(err).Stringer("tile", tile).Msg("tile fetch failed")
					return
				}
				outcomes[idx].Data = data
			}(idx, tile)
		}
	}
	wg.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.Data != nil {
			succeeded++
		}
	}

	// A failed credential exchange fails every tile the same way;
	// report it as the fatal condition it is.
	for _, e := range errs {
		var authErr *auth.Error
		if errors.As(e, &authErr) {
			return nil, center, false, authErr
		}
	}

	if succeeded == 0 {
		f.logger.Warn().Str("urn", urn).Int("tiles", total).Msg("all tile fetches failed")
		return nil, center, false, nil
	}

	if succeeded < total {
		f.logger.Debug().Int("succeeded", succeeded).Int("total", total).
			Msg("grid fetched with missing tiles")
	}
	return outcomes, center, true, nil
}

// fetchOne serves a tile from the cache or the source.
func (f *Fetcher) fetchOne(ctx context.Context, urn string, tile mercator.Tile) ([]byte, error) {
	var key string
	if f.tiles != nil {
		key = cache.Key(urn, tile)
		if data, ok := f.tiles.Get(key); ok {
			return data, nil
		}
	}

	data, err := f.source.FetchTile(ctx, urn, tile)
	if err != nil {
		return nil, err
	}

	if f.tiles != nil {
		f.tiles.Set(key, data)
	}
	return data, nil
}
