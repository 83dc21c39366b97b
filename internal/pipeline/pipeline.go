// Package pipeline sequences the aerial imagery acquisition: capture
// discovery, concurrent grid fetch, compositing, and metadata assembly.
package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthru-earth/property-aerial/internal/analytics"
	"github.com/walkthru-earth/property-aerial/internal/auth"
	"github.com/walkthru-earth/property-aerial/internal/eagleview"
	"github.com/walkthru-earth/property-aerial/internal/imagery"
	"github.com/walkthru-earth/property-aerial/internal/mercator"
)

// SourceTag identifies the imagery provider in the final artifact.
const SourceTag = "eagleview"

// Defaults applied when a request leaves options zero.
const (
	DefaultZoom     = 19
	DefaultGridSize = 4
)

// Discoverer resolves a point to an imagery capture handle.
type Discoverer interface {
	DiscoverOrthoImage(ctx context.Context, lat, lng float64) (eagleview.DiscoveryResult, bool, error)
}

// GridFetcher fetches a tile grid for a capture.
type GridFetcher interface {
	FetchGrid(ctx context.Context, urn string, lat, lng float64, zoom, gridSize int) ([]imagery.TileOutcome, mercator.Tile, bool, error)
}

// PropertyAerialImage is the final artifact: one in-memory composite
// per request plus derived geometry for logging and telemetry.
type PropertyAerialImage struct {
	ImageData      []byte  `json:"imageData"`
	MimeType       string  `json:"mimeType"`
	SourceTag      string  `json:"sourceTag"`
	ImageURN       string  `json:"imageUrn"`
	CaptureDate    string  `json:"captureDate"`
	GSDMeters      float64 `json:"gsdMeters"`
	ZoomLevel      int     `json:"zoomLevel"`
	TileCount      int     `json:"tileCount"`
	CoverageMeters int     `json:"coverageMeters"`
}

// Options tune one acquisition. Zero values take the service defaults.
type Options struct {
	Zoom     int
	GridSize int
}

// Service orchestrates the acquisition pipeline.
type Service struct {
	discovery   Discoverer
	fetcher     GridFetcher
	compositor  *imagery.Compositor
	tracker     *analytics.Client
	timeout     time.Duration
	defaultZoom int
	defaultGrid int
	logger      zerolog.Logger
}

// ServiceConfig carries the pipeline's dependencies.
type ServiceConfig struct {
	Discovery  Discoverer
	Fetcher    GridFetcher
	Compositor *imagery.Compositor
	Tracker    *analytics.Client
	// Timeout bounds one acquisition end to end. Zero disables the
	// deadline; the caller's context still cancels in-flight fetches.
	Timeout time.Duration
	// DefaultZoom and DefaultGridSize apply when request options are
	// zero. Zero values fall back to the package defaults.
	DefaultZoom     int
	DefaultGridSize int
	Logger          zerolog.Logger
}

// NewService creates the pipeline service.
func NewService(cfg ServiceConfig) *Service {
	defaultZoom := cfg.DefaultZoom
	if defaultZoom == 0 {
		defaultZoom = DefaultZoom
	}
	defaultGrid := cfg.DefaultGridSize
	if defaultGrid == 0 {
		defaultGrid = DefaultGridSize
	}
	return &Service{
		discovery:   cfg.Discovery,
		fetcher:     cfg.Fetcher,
		compositor:  cfg.Compositor,
		tracker:     cfg.Tracker,
		timeout:     cfg.Timeout,
		defaultZoom: defaultZoom,
		defaultGrid: defaultGrid,
		logger:      cfg.Logger,
	}
}

// GetPropertyAerialImage acquires a stitched aerial composite for the
// point. found is false for every non-fatal "no imagery" outcome:
// discovery miss, discovery or fetch transport failure, total tile
// failure, or unusable composite; the caller proceeds without imagery.
// Only authentication failures and invalid input surface as errors.
func (s *Service) GetPropertyAerialImage(ctx context.Context, lat, lng float64, opts Options) (*PropertyAerialImage, bool, error) {
	if err := mercator.ValidatePoint(lat, lng); err != nil {
		return nil, false, err
	}

	zoom := opts.Zoom
	if zoom == 0 {
		zoom = s.defaultZoom
	}
	if err := mercator.ValidateZoom(zoom); err != nil {
		return nil, false, err
	}
	gridSize := opts.GridSize
	if gridSize == 0 {
		gridSize = s.defaultGrid
	}
	if gridSize < 1 {
		gridSize = 1
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()

	d, found, err := s.discovery.DiscoverOrthoImage(ctx, lat, lng)
	if err != nil {
		if isAuthError(err) {
			return nil, false, err
		}
		// A provider outage is a "no imagery" outcome, same as a miss.
		s.logger.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).
			Msg("capture discovery failed")
		s.tracker.Track("aerial_discovery_error", map[string]any{"lat": lat, "lng": lng})
		return nil, false, nil
	}
	if !found {
		s.logger.Info().Float64("lat", lat).Float64("lng", lng).Msg("no imagery coverage at location")
		s.tracker.Track("aerial_discovery_miss", map[string]any{"lat": lat, "lng": lng})
		return nil, false, nil
	}

	effectiveZoom := zoom
	if d.MaxZoom < effectiveZoom {
		effectiveZoom = d.MaxZoom
	}

	outcomes, center, ok, err := s.fetcher.FetchGrid(ctx, d.ImageURN, lat, lng, effectiveZoom, gridSize)
	if err != nil {
		if isAuthError(err) {
			return nil, false, err
		}
		s.logger.Warn().Err(err).Str("urn", d.ImageURN).Msg("tile grid fetch failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	stitched, ok := s.compositor.Stitch(outcomes, gridSize, center)
	if !ok {
		return nil, false, nil
	}

	coverage := int(math.Round(mercator.MetersPerPixel(lat, effectiveZoom) * float64(gridSize) * mercator.TileSize))

	result := &PropertyAerialImage{
		ImageData:      stitched.Data,
		MimeType:       "image/jpeg",
		SourceTag:      SourceTag,
		ImageURN:       d.ImageURN,
		CaptureDate:    d.CaptureDate,
		GSDMeters:      d.GSDMeters,
		ZoomLevel:      effectiveZoom,
		TileCount:      gridSize * gridSize,
		CoverageMeters: coverage,
	}

	s.logger.Info().
		Str("urn", d.ImageURN).
		Int("zoom", effectiveZoom).
		Int("tiles", result.TileCount).
		Int("coverageMeters", coverage).
		Dur("elapsed", time.Since(started)).
		Msg("aerial composite produced")

	s.tracker.Track("aerial_image_generated", map[string]any{
		"zoom":            effectiveZoom,
		"grid_size":       gridSize,
		"tile_count":      result.TileCount,
		"coverage_meters": coverage,
		"capture_date":    d.CaptureDate,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	})

	return result, true, nil
}

// isAuthError reports whether the error chain carries a fatal
// credential failure.
func isAuthError(err error) bool {
	var authErr *auth.Error
	return errors.As(err, &authErr)
}
