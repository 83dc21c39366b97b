package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthru-earth/property-aerial/internal/analytics"
	"github.com/walkthru-earth/property-aerial/internal/auth"
	"github.com/walkthru-earth/property-aerial/internal/cache"
	"github.com/walkthru-earth/property-aerial/internal/config"
	"github.com/walkthru-earth/property-aerial/internal/eagleview"
	"github.com/walkthru-earth/property-aerial/internal/imagery"
	"github.com/walkthru-earth/property-aerial/internal/pipeline"
	"github.com/walkthru-earth/property-aerial/internal/ratelimit"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "property-aerial").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.IsConfigured() {
		logger.Fatal().Msg("EAGLEVIEW_CLIENT_ID and EAGLEVIEW_CLIENT_SECRET are required")
	}

	svc, cleanup, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           BuildRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * cfg.RequestTimeout,
	}

	logger.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Environment).Msg("property-aerial listening")
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// buildService wires the full acquisition pipeline from configuration.
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
