// Package ratelimit detects provider throttling responses and holds a
// cooldown so the client fails fast instead of hammering the quota.
package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is how long the provider is considered throttled
// after a rate-limit response.
const DefaultCooldown = 30 * time.Second

// statusBandwidthLimitExceeded is 509; net/http defines no constant
// for it.
const statusBandwidthLimitExceeded = 509

// Handler tracks the provider's rate-limit state.
type Handler struct {
	mu           sync.RWMutex
	limitedUntil time.Time
	cooldown     time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

// NewHandler creates a rate-limit handler. A zero cooldown uses the
// default.
func NewHandler(cooldown time.Duration, logger zerolog.Logger) *Handler {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Handler{
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger,
	}
}

// ErrRateLimited reports a request skipped during an active cooldown.
type ErrRateLimited struct {
	Until time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("provider rate limited until %s", e.Until.Format(time.RFC3339))
}

// Allow reports whether a request may proceed, returning the active
// cooldown error when not.
func (h *Handler) Allow() error {
	h.mu.RLock()
	until := h.limitedUntil
	h.mu.RUnlock()

	if h.now().Before(until) {
		return &ErrRateLimited{Until: until}
	}
	return nil
}

// CheckResponse inspects a response for throttling status codes and
// starts the cooldown when one is seen. Returns true when the response
// was a rate limit.
func (h *Handler) CheckResponse(resp *http.Response) bool {
	if resp.StatusCode != http.StatusTooManyRequests &&
		resp.StatusCode != statusBandwidthLimitExceeded {
		return false
	}

	until := h.now().Add(h.cooldown)
	h.mu.Lock()
	h.limitedUntil = until
	h.mu.Unlock()

	h.logger.Warn().Int("status", resp.StatusCode).Time("until", until).
		Msg("provider rate limit hit, cooling down")
	return true
}
