package btg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/btg-sync/internal/resilience"
	"github.com/sells-group/btg-sync/internal/route"
)

// APIError is returned when the API responds with an unexpected status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("btg: HTTP %d: %s", e.StatusCode, e.Body)
}

// Response is a raw API response: the poller needs status, content type, and
// body to classify the outcome itself.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client is the HTTP surface against one BTG category. The underlying
// transport is shared and safe for sequential reuse across invocations.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenProvider
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the transport retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// NewClient creates a client for the given base URL and token provider.
func NewClient(baseURL string, tokens *TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens exposes the client's token provider.
func (c *Client) Tokens() *TokenProvider {
	return c.tokens
}

// Resolve joins a path with the base URL; absolute URLs pass through.
func (c *Client) Resolve(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}
	return c.baseURL + "/" + strings.TrimLeft(pathOrURL, "/")
}

// SubmitJob issues the submission request for one invocation: POST sends the
// expanded body template as JSON, any other verb sends the expanded params
// template as query parameters. The token is fetched fresh on every call.
// Non-2xx responses return an *APIError.
func (c *Client) SubmitJob(ctx context.Context, r route.Route, body map[string]any, params map[string]any) (map[string]any, error) {
	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if r.SubmitMethod == http.MethodPost {
			buf, err := json.Marshal(body)
			if err != nil {
				return nil, eris.Wrap(err, "btg: marshal submit body")
			}
			reader = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, r.SubmitMethod, c.Resolve(r.SubmitPath), reader)
		if err != nil {
			return nil, eris.Wrap(err, "btg: create submit request")
		}
		if r.SubmitMethod != http.MethodPost && len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, fmt.Sprintf("%v", v))
			}
			req.URL.RawQuery = q.Encode()
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.authorize(ctx, req, r.SubmitAuth); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &APIError{StatusCode: resp.Status, Body: string(resp.Body)}
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, eris.Wrap(err, "btg: decode submit response")
	}
	return doc, nil
}

// PollTicket performs one poll of the ticket endpoint and returns the raw
// response. Status classification is the caller's concern; only transport
// failures surface as errors.
func (c *Client) PollTicket(ctx context.Context, r route.Route, ticketID string) (*Response, error) {
	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(r.PollPath), nil)
		if err != nil {
			return nil, eris.Wrap(err, "btg: create poll request")
		}
		q := url.Values{"ticketId": {ticketID}}
		req.URL.RawQuery = q.Encode()
		if err := c.authorize(ctx, req, r.PollAuth); err != nil {
			return nil, err
		}
		return req, nil
	})
}

// Download fetches one result file's bytes, resolving relative paths against
// the base URL. Non-2xx responses return an *APIError.
func (c *Client) Download(ctx context.Context, r route.Route, urlOrPath string) ([]byte, error) {
	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(urlOrPath), nil)
		if err != nil {
			return nil, eris.Wrap(err, "btg: create download request")
		}
		if err := c.authorize(ctx, req, r.DownloadAuth); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &APIError{StatusCode: resp.Status, Body: string(resp.Body)}
	}
	return resp.Body, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request, kind route.AuthKind) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")
	name, value := kind.Header(token)
	req.Header.Set(name, value)
	return nil
}

// do executes a request with rate limiting and transport-level retry. The
// build function runs once per attempt so request bodies are re-created.
func (c *Client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("btg", "request")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "btg: rate limiter wait")
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "btg: execute request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "btg: read response body")
		}

		out := &Response{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        data,
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("btg: HTTP %d from %s", resp.StatusCode, req.URL), resp.StatusCode)
		}
		return out, nil
	})
}
