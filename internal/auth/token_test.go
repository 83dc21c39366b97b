package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, exchanges *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("missing or wrong basic auth: %q %q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("expected grant_type=client_credentials, got %q", got)
		}

		n := atomic.AddInt64(exchanges, 1)
		// A short delay widens the race window for the single-flight test.
		time.Sleep(20 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "imagery",
		})
	}))
}

func TestConcurrentCallersSingleExchange(t *testing.T) {
	var exchanges int64
	srv := tokenServer(t, &exchanges)
	defer srv.Close()

	m := NewManager(srv.URL, "client-id", "client-secret")

	const callers = 10
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&exchanges); got != 1 {
		t.Fatalf("expected exactly one token exchange, got %d", got)
	}
	for i, tok := range tokens {
		if tok != "token-1" {
			t.Fatalf("caller %d got %q, expected all callers to share token-1", i, tok)
		}
	}
}

func TestCachedTokenReusedUntilMargin(t *testing.T) {
	var exchanges int64
	srv := tokenServer(t, &exchanges)
	defer srv.Close()

	var mu sync.Mutex
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	m := NewManager(srv.URL, "client-id", "client-secret", WithClock(clock))

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("first token: %v", err)
	}
	if tok != "token-1" {
		t.Fatalf("expected token-1, got %q", tok)
	}

	// 3600s lifetime with a 5 minute margin: still fresh at +54m.
	advance(54 * time.Minute)
	tok, err = m.Token(context.Background())
	if err != nil {
		t.Fatalf("cached token: %v", err)
	}
	if tok != "token-1" || atomic.LoadInt64(&exchanges) != 1 {
		t.Fatalf("expected cached token-1 with one exchange, got %q after %d exchanges", tok, exchanges)
	}

	// Inside the margin at +56m: a new exchange must run.
	advance(2 * time.Minute)
	tok, err = m.Token(context.Background())
	if err != nil {
		t.Fatalf("refreshed token: %v", err)
	}
	if tok != "token-2" || atomic.LoadInt64(&exchanges) != 2 {
		t.Fatalf("expected refreshed token-2 after second exchange, got %q after %d exchanges", tok, exchanges)
	}
}

func TestExchangeFailureReturnsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewManager(srv.URL, "client-id", "wrong-secret")

	_, err := m.Token(context.Background())
	if err == nil {
		t.Fatal("expected an error from a rejected exchange")
	}
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *auth.Error, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", authErr.StatusCode)
	}
}
