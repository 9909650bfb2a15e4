package job

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"time"

	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/route"
)

const (
	defaultPollInitial = 5 * time.Second
	defaultPollCap     = 45 * time.Second
	defaultMaxWait     = 15 * time.Minute

	pollMultiplier = 1.5
)

// inProgress are the status sentinels the API uses while a job is still
// running. A response carrying one never terminates the poll loop.
var inProgress = map[string]bool{
	"Processando": true,
	"Processing":  true,
	"In Progress": true,
	"PROCESSING":  true,
	"PENDING":     true,
}

func isInProgress(s string) bool {
	return inProgress[s]
}

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	maxWait time.Duration
	jitter  func() time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		maxWait: defaultMaxWait,
		jitter: func() time.Duration {
			// [0, 2s) of jitter on every sleep.
			return time.Duration(rand.Float64() * float64(2*time.Second))
		},
	}
}

// WithPollInterval overrides the initial poll delay.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll delay.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithMaxWait overrides the overall polling deadline.
func WithMaxWait(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.maxWait = d
	}
}

// WithJitter overrides the per-sleep jitter source.
func WithJitter(fn func() time.Duration) PollOption {
	return func(c *pollConfig) {
		c.jitter = fn
	}
}

// Wait polls the route's ticket endpoint until the job reaches a terminal
// outcome or the deadline elapses. Delays grow 5s → 7.5s → 11.25s → …,
// capped at 45s, each with up to 2s of random jitter. Non-2xx responses,
// JSON parse failures, and in-progress sentinels are all non-terminal.
// Returns *PollTimeoutError when the deadline passes.
func Wait(ctx context.Context, client *btg.Client, r route.Route, ticket string, opts ...PollOption) (Outcome, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	deadline := time.Now().Add(cfg.maxWait)
	delay := cfg.initial

	for {
		resp, err := client.PollTicket(ctx, r, ticket)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "job: poll cancelled")
			}
			// Transport failures are non-terminal until the deadline.
			zap.L().Debug("poll attempt failed",
				zap.String("ticket", ticket),
				zap.Error(err),
			)
		} else if resp.Status == 200 {
			if out := classify(r, resp); out != nil {
				return out, nil
			}
			zap.L().Debug("still processing",
				zap.String("route", r.Name),
				zap.String("ticket", ticket),
			)
		}

		if time.Now().After(deadline) {
			return nil, &PollTimeoutError{Ticket: ticket}
		}

		timer := time.NewTimer(delay + cfg.jitter())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "job: poll cancelled")
		case <-timer.C:
		}
		delay = nextDelay(delay, cfg.cap)
	}
}

// nextDelay applies the capped-exponential schedule: delay × 1.5, capped.
func nextDelay(d, cap time.Duration) time.Duration {
	d = time.Duration(float64(d) * pollMultiplier)
	if d > cap {
		d = cap
	}
	return d
}

// classify maps one HTTP 200 poll response onto a terminal outcome, or nil
// when the job is still processing.
func classify(r route.Route, resp *btg.Response) Outcome {
	ctype := strings.ToLower(resp.ContentType)
	trimmed := bytes.TrimSpace(resp.Body)

	looksXML := len(trimmed) > 0 && trimmed[0] == '<'
	looksZip := len(resp.Body) >= 2 && resp.Body[0] == 'P' && resp.Body[1] == 'K'

	// Inline content delivered directly (XML document or ZIP container).
	if looksXML || looksZip || strings.Contains(ctype, "xml") || strings.Contains(ctype, "text/") {
		return Inline{Payload: resp.Body}
	}

	if !strings.Contains(ctype, "json") {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		// A malformed 200 body is treated as still-processing.
		return nil
	}

	if s, ok := doc["result"].(string); ok && isInProgress(s) {
		return nil
	}

	// A files list, even an empty one, means download mode: an empty list is
	// a completed job with nothing to fetch, not a still-processing signal.
	if files, ok := doc["files"].([]any); ok {
		refs := make([]FileRef, 0, len(files))
		for _, f := range files {
			if ref, ok := ParseFileRef(f); ok {
				refs = append(refs, ref)
			}
		}
		return DownloadList{Files: refs}
	}

	ready, ok := DotGet(doc, r.ReadyField)
	if !ok || ready == nil {
		return nil
	}
	if s, ok := ready.(string); ok {
		if s == "" || isInProgress(s) {
			return nil
		}
		// Some endpoints embed the XML report as a JSON string.
		if strings.HasPrefix(strings.TrimSpace(s), "<") {
			return Inline{Payload: []byte(s)}
		}
	}
	return StructuredJSON{Document: doc}
}
