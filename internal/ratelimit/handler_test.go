package ratelimit

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAllowBeforeAnyLimit(t *testing.T) {
	h := NewHandler(0, zerolog.Nop())
	if err := h.Allow(); err != nil {
		t.Fatalf("fresh handler must allow: %v", err)
	}
}

func TestCooldownArmsAndExpires(t *testing.T) {
	h := NewHandler(30*time.Second, zerolog.Nop())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	h.now = func() time.Time { return current }

	if limited := h.CheckResponse(&http.Response{StatusCode: http.StatusTooManyRequests}); !limited {
		t.Fatal("429 must be recognized as a rate limit")
	}

	err := h.Allow()
	var rl *ErrRateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected *ErrRateLimited during cooldown, got %v", err)
	}
	if want := base.Add(30 * time.Second); !rl.Until.Equal(want) {
		t.Fatalf("expected cooldown until %s, got %s", want, rl.Until)
	}

	current = base.Add(31 * time.Second)
	if err := h.Allow(); err != nil {
		t.Fatalf("cooldown expired, must allow: %v", err)
	}
}

func TestBandwidthLimitAlsoArms(t *testing.T) {
	h := NewHandler(time.Minute, zerolog.Nop())
	if limited := h.CheckResponse(&http.Response{StatusCode: 509}); !limited {
		t.Fatal("509 must be recognized as a rate limit")
	}
	if err := h.Allow(); err == nil {
		t.Fatal("expected cooldown after 509")
	}
}

func TestOrdinaryStatusesIgnored(t *testing.T) {
	h := NewHandler(time.Minute, zerolog.Nop())
	for _, code := range []int{200, 404, 500, 503} {
		if limited := h.CheckResponse(&http.Response{StatusCode: code}); limited {
			t.Errorf("status %d must not arm the cooldown", code)
		}
	}
	if err := h.Allow(); err != nil {
		t.Fatalf("no rate limit seen, must allow: %v", err)
	}
}
