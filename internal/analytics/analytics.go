// Package analytics wraps optional PostHog event tracking. A nil or
// keyless client silently drops events.
package analytics

import (
	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"
)

// Client enqueues product analytics events.
type Client struct {
	ph         posthog.Client
	distinctID string
}

// New creates an analytics client. An empty key returns a disabled
// client that is safe to call.
func New(key, host string, logger zerolog.Logger) *Client {
	if key == "" {
		return &Client{}
	}

	ph, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: host})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize analytics, events disabled")
		return &Client{}
	}

	return &Client{ph: ph, distinctID: "aerial_service"}
}

// Track sends an event with properties.
func (c *Client) Track(event string, props map[string]any) {
	if c == nil || c.ph == nil {
		return
	}
	c.ph.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events.
func (c *Client) Close() {
	if c != nil && c.ph != nil {
		c.ph.Close()
	}
}
