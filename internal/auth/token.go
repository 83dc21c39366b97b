// Package auth manages the provider's OAuth2 client-credentials token:
// one cached token per process, replaced wholesale on refresh.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ExpiryMargin is the safety margin before the provider-reported expiry.
// A cached token within this margin of expiring is never handed out.
const ExpiryMargin = 5 * time.Minute

// Error reports a failed credential exchange. Authentication failures
// are fatal to the whole pipeline invocation and propagate to the
// caller, unlike every other failure in the imagery path.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// Token is the provider bearer credential. Replaced as a whole on
// refresh, never mutated in place.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager obtains and caches the bearer token. Concurrent callers
// racing with no cached token trigger exactly one network exchange.
type Manager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
	logger       zerolog.Logger

	mu     sync.Mutex
	cached *Token

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for the exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a token manager for the given token endpoint and
// client credentials.
func NewManager(tokenURL, clientID, clientSecret string, opts ...Option) *Manager {
	m := &Manager{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a bearer token valid for at least ExpiryMargin. A
// cached token is returned unchanged when still fresh; otherwise one
// client-credentials exchange runs and all concurrent callers receive
// its result.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if v, ok := m.freshToken(); ok {
		return v, nil
	}

	v, err, _ := m.group.Do("token", func() (any, error) {
		// A waiter queued behind the refresh may arrive after the
		// cache was already repopulated.
		if v, ok := m.freshToken(); ok {
			return v, nil
		}

		tok, err := m.exchange(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cached = tok
		m.mu.Unlock()

		m.logger.Debug().Time("expiresAt", tok.ExpiresAt).Msg("provider token refreshed")
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// freshToken returns the cached token value if it is outside the
// expiry safety margin.
func (m *Manager) freshToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return "", false
	}
	if !m.now().Before(m.cached.ExpiresAt.Add(-ExpiryMargin)) {
		return "", false
	}
	return m.cached.Value, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// exchange performs the client-credentials grant against the token
// endpoint.
func (m *Manager) exchange(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(m.clientID, m.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		m.logger.Error().Int("status", resp.StatusCode).Msg("provider rejected credential exchange")
		return nil, &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &Token{
		Value:     tr.AccessToken,
		ExpiresAt: m.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
