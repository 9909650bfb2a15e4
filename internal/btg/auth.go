// Package btg talks to the BTG reporting API: OAuth client-credentials token
// acquisition and the HTTP surface for submitting jobs, polling tickets, and
// downloading result files.
package btg

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

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultAuthURL is the shared token endpoint for all BTG categories.
const DefaultAuthURL = "https://funds.btgpactual.com/connect/token"

// refreshSkew renews the cached token this long before it actually expires.
const refreshSkew = 5 * time.Minute

// AuthError signals missing credentials or a failed token refresh. It is
// fatal for the invocation that triggered it.
type AuthError struct {
	Category string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("btg auth (%s): %v", e.Category, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Credentials identifies one client-credentials grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// AuthURL overrides the token endpoint; empty uses DefaultAuthURL or a
	// derivation from the API base URL.
	AuthURL string
}

// DeriveAuthURL builds the token endpoint from an API base URL: anything from
// "/reports" onward is stripped and "/connect/token" appended.
func DeriveAuthURL(baseURL string) string {
	if baseURL == "" {
		return DefaultAuthURL
	}
	base := strings.TrimRight(baseURL, "/")
	if i := strings.Index(base, "/reports"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimRight(base, "/") + "/connect/token"
}

// TokenProvider caches a bearer/secure token per credential scope and
// refreshes it proactively. Safe for concurrent use: refreshes are
// single-flighted so parallel invocations never race on the cached entry.
type TokenProvider struct {
	category string
	creds    Credentials
	authURL  string
	http     *http.Client
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithAuthHTTPClient sets a custom *http.Client for token requests.
func WithAuthHTTPClient(hc *http.Client) TokenOption {
	return func(p *TokenProvider) {
		p.http = hc
	}
}

// withClock overrides the time source; used in tests.
func withClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		p.now = now
	}
}

// NewTokenProvider creates a provider for one category's credentials. The
// token endpoint resolution order is: explicit creds.AuthURL, then a
// derivation from baseURL, then the shared default.
func NewTokenProvider(category string, creds Credentials, baseURL string, opts ...TokenOption) *TokenProvider {
	authURL := creds.AuthURL
	if authURL == "" {
		authURL = DeriveAuthURL(baseURL)
	}
	p := &TokenProvider{
		category: category,
		creds:    creds,
		authURL:  authURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns a valid token, refreshing when the cached one is within five
// minutes of expiry.
func (p *TokenProvider) Get(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Before(p.expiresAt.Add(-refreshSkew)) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do("token", func() (any, error) {
		// Another caller may have refreshed while we waited.
		p.mu.Lock()
		if p.token != "" && p.now().Before(p.expiresAt.Add(-refreshSkew)) {
			token := p.token
			p.mu.Unlock()
			return token, nil
		}
		p.mu.Unlock()
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token, forcing a refresh on the next Get.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
	zap.L().Info("token invalidated", zap.String("category", p.category))
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	if p.creds.ClientID == "" || p.creds.ClientSecret == "" {
		return "", &AuthError{Category: p.category, Err: eris.New("missing client_id/client_secret")}
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.creds.ClientID},
		"client_secret": {p.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Category: p.category, Err: eris.Wrap(err, "create token request")}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	zap.L().Debug("refreshing token",
		zap.String("category", p.category),
		zap.String("auth_url", p.authURL),
	)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", &AuthError{Category: p.category, Err: eris.Wrap(err, "token request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Category: p.category, Err: eris.Wrap(err, "read token response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Category: p.category, Err: eris.Errorf("token endpoint HTTP %d", resp.StatusCode)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &AuthError{Category: p.category, Err: eris.Wrap(err, "decode token response")}
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Category: p.category, Err: eris.New("no access_token in response")}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	p.mu.Lock()
	p.token = payload.AccessToken
	p.expiresAt = p.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	p.mu.Unlock()

	zap.L().Info("token refreshed",
		zap.String("category", p.category),
		zap.Int("expires_in", payload.ExpiresIn),
	)
	return payload.AccessToken, nil
}
