// Package eagleview is a client for the EagleView imagery API:
// capture discovery, the orthomosaic fallback search, and tile fetch.
package eagleview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/walkthru-earth/property-aerial/internal/mercator"
	"github.com/walkthru-earth/property-aerial/internal/ratelimit"
)

const (
	discoveryRankPath     = "/imagery/v3/discovery/rank/location"
	orthomosaicSearchPath = "/imagery/v3/discovery/orthomosaics/search"

	// maxResponseBytes guards against runaway provider payloads.
	maxResponseBytes = 8 << 20
)

// TokenSource supplies a bearer token for provider requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the EagleView imagery API.
type Client struct {
	baseURL     string
	tokens      TokenSource
	http        *retryablehttp.Client
	tileLimiter *rate.Limiter
	limits      *ratelimit.Handler
	tileFormat  string
	tileQuality int
	logger      zerolog.Logger
}

// ClientConfig carries the client's construction parameters.
type ClientConfig struct {
	BaseURL     string
	Tokens      TokenSource
	TileFormat  string // e.g. "IMAGE_FORMAT_JPEG"
	TileQuality int    // 1..100
	// TilesPerSecond bounds outgoing tile requests to protect the
	// provider quota. Zero disables the limiter.
	TilesPerSecond int
	// RateLimits optionally short-circuits requests while the
	// provider is in a throttling cooldown.
	RateLimits *ratelimit.Handler
	Logger     zerolog.Logger
}

// NewClient creates an EagleView API client.
func NewClient(cfg ClientConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 20 * time.Second
	rc.Logger = nil
	// Throttling responses must reach the cooldown handler instead of
	// being burned in immediate retries.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	var limiter *rate.Limiter
	if cfg.TilesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TilesPerSecond), cfg.TilesPerSecond)
	}

	format := cfg.TileFormat
	if format == "" {
		format = "IMAGE_FORMAT_JPEG"
	}
	quality := cfg.TileQuality
	if quality <= 0 {
		quality = 90
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		tokens:      cfg.Tokens,
		http:        rc,
		tileLimiter: limiter,
		limits:      cfg.RateLimits,
		tileFormat:  format,
		tileQuality: quality,
		logger:      cfg.Logger,
	}
}

// FetchTile downloads one tile of an image. Any non-success response
// is an error; callers treat a failed tile as absent rather than
// fatal, except for authentication failures which always propagate.
func (c *Client) FetchTile(ctx context.Context, urn string, t mercator.Tile) ([]byte, error) {
	if err := mercator.ValidateTile(t); err != nil {
		return nil, err
	}
	if c.limits != nil {
		if err := c.limits.Allow(); err != nil {
			return nil, err
		}
	}
	if c.tileLimiter != nil {
		if err := c.tileLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/imagery/v3/images/%s/tiles/%d/%d/%d?format=%s&quality=%d",
		c.baseURL, urn, t.Z, t.X, t.Y, c.tileFormat, c.tileQuality)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.limits != nil {
		c.limits.CheckResponse(resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile %s of %s returned status %d", t, urn, resp.StatusCode)
	}

	data, err := readAllLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile body: %w", err)
	}
	return data, nil
}

// postJSON sends an authenticated JSON request and decodes the
// response into a generic object for defensive field extraction.
func (c *Client) postJSON(ctx context.Context, path string, body any) (map[string]any, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := readAllLimit(resp.Body, 4096)
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	data, err := readAllLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return obj, nil
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
