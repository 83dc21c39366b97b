package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/walkthru-earth/property-aerial/internal/auth"
	"github.com/walkthru-earth/property-aerial/internal/pipeline"
)

// BuildRouter wires the HTTP boundary: health check plus the aerial
// image endpoint, with a per-IP rate limit protecting provider quota.
func BuildRouter(svc *pipeline.Service, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(60, 1*time.Minute))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	r.Get("/v1/aerial-image", aerialImageHandler(svc, logger))

	return r
}

func aerialImageHandler(svc *pipeline.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			badRequest(w, req, "lat is required and must be a number")
			return
		}
		lng, err := strconv.ParseFloat(q.Get("lng"), 64)
		if err != nil {
			badRequest(w, req, "lng is required and must be a number")
			return
		}

		var opts pipeline.Options
		if v := q.Get("zoom"); v != "" {
			opts.Zoom, err = strconv.Atoi(v)
			if err != nil {
				badRequest(w, req, "zoom must be an integer")
				return
			}
		}
		if v := q.Get("grid"); v != "" {
			opts.GridSize, err = strconv.Atoi(v)
			if err != nil {
				badRequest(w, req, "grid must be an integer")
				return
			}
		}

		img, found, err := svc.GetPropertyAerialImage(req.Context(), lat, lng, opts)
		if err != nil {
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				logger.Error().Err(err).Msg("provider authentication failed")
				render.Status(req, http.StatusBadGateway)
				render.JSON(w, req, map[string]any{"error": "auth_failed"})
				return
			}
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "invalid_request", "detail": err.Error()})
			return
		}
		if !found {
			render.Status(req, http.StatusNotFound)
			render.JSON(w, req, map[string]any{"error": "no_imagery"})
			return
		}

		render.JSON(w, req, img)
	}
}

func badRequest(w http.ResponseWriter, req *http.Request, detail string) {
	render.Status(req, http.StatusBadRequest)
	render.JSON(w, req, map[string]any{"error": "invalid_request", "detail": detail})
}
