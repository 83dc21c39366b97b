// aerialctl is a one-shot CLI for fetching a property aerial composite.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walkthru-earth/property-aerial/internal/analytics"
	"github.com/walkthru-earth/property-aerial/internal/auth"
	"github.com/walkthru-earth/property-aerial/internal/cache"
	"github.com/walkthru-earth/property-aerial/internal/config"
	"github.com/walkthru-earth/property-aerial/internal/eagleview"
	"github.com/walkthru-earth/property-aerial/internal/imagery"
	"github.com/walkthru-earth/property-aerial/internal/pipeline"
	"github.com/walkthru-earth/property-aerial/internal/ratelimit"
	"github.com/walkthru-earth/property-aerial/internal/utils/naming"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aerialctl",
		Short:         "Fetch stitched aerial imagery for a geographic point",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(fetchCmd())
	return root
}

func fetchCmd() *cobra.Command {
	var (
		lat      float64
		lng      float64
		zoom     int
		grid     int
		outPath  string
		jsonMeta bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Discover, download and stitch the aerial composite for a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.IsConfigured() {
				return fmt.Errorf("provider credentials not configured: set EAGLEVIEW_CLIENT_ID and EAGLEVIEW_CLIENT_SECRET")
			}

			svc, cleanup, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			img, found, err := svc.GetPropertyAerialImage(context.Background(), lat, lng, pipeline.Options{
				Zoom:     zoom,
				GridSize: grid,
			})
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no imagery available at %.6f, %.6f", lat, lng)
			}

			if outPath == "" {
				outPath = naming.CompositeFilename(img.SourceTag, img.CaptureDate, lat, lng, img.ZoomLevel)
			}
			if err := os.WriteFile(outPath, img.ImageData, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %d tiles, ~%dm coverage)\n",
				outPath, len(img.ImageData), img.TileCount, img.CoverageMeters)

			if jsonMeta {
				meta := *img
				meta.ImageData = nil
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the point (required)")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the point (required)")
	cmd.Flags().IntVar(&zoom, "zoom", 0, "requested zoom level (default from config)")
	cmd.Flags().IntVar(&grid, "grid", 0, "tile grid size per axis (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output JPEG path (default derived from point and date)")
	cmd.Flags().BoolVar(&jsonMeta, "json", false, "print artifact metadata as JSON on stdout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")

	return cmd
}

func buildService(cfg *config.Config, logger zerolog.Logger) (*pipeline.Service, func(), error) {
	tokens := auth.NewManager(
		cfg.ResolvedTokenURL(),
		cfg.ClientID,
		cfg.ClientSecret,
		auth.WithLogger(logger),
	)

	client := eagleview.NewClient(eagleview.ClientConfig{
		BaseURL:        cfg.ResolvedBaseURL(),
		Tokens:         tokens,
		TileFormat:     cfg.TileFormat,
		TileQuality:    cfg.TileQuality,
		TilesPerSecond: cfg.TilesPerSecond,
		RateLimits:     ratelimit.NewHandler(0, logger),
		Logger:         logger,
	})

	tiles, err := cache.New(cfg.CacheEntries)
	if err != nil {
		return nil, nil, err
	}

	tracker := analytics.New(cfg.PostHogKey, cfg.PostHogHost, logger)

	svc := pipeline.NewService(pipeline.ServiceConfig{
		Discovery:       client,
		Fetcher:         imagery.NewFetcher(client, tiles, cfg.MaxWorkers, logger),
		Compositor:      imagery.NewCompositor(logger),
		Tracker:         tracker,
		Timeout:         cfg.RequestTimeout,
		DefaultZoom:     cfg.DefaultZoom,
		DefaultGridSize: cfg.GridSize,
		Logger:          logger,
	})

	return svc, tracker.Close, nil
}
