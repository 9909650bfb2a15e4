// Package route defines the static job templates for the BTG reporting API:
// how to submit a report job, where to poll its ticket, and how results are
// authenticated and downloaded.
package route

import (
	"fmt"
	"strings"
)

// AuthKind selects which credential header a request carries.
type AuthKind string

const (
	// AuthBearer sends the token as an Authorization: Bearer header.
	AuthBearer AuthKind = "bearer"
	// AuthSecureToken sends the token as an X-SecureConnect-Token header.
	AuthSecureToken AuthKind = "xsecure"
)

// Header returns the header name/value pair for the given token.
func (k AuthKind) Header(token string) (string, string) {
	if k == AuthBearer {
		return "Authorization", "Bearer " + token
	}
	return "X-SecureConnect-Token", token
}

// Route is the static template for one job type. It is immutable after
// construction: the catalog builds one per (category, endpoint) pair.
type Route struct {
	Name     string
	Category string
	Endpoint string

	SubmitPath   string
	SubmitMethod string
	SubmitAuth   AuthKind
	SubmitBody   map[string]any
	SubmitParams map[string]any

	// Parameters holds the default candidate sets for the fan-out planner.
	// A scalar value is a singleton candidate set.
	Parameters map[string]any

	PollPath string
	PollAuth AuthKind

	// ReadyField is the dotted path to the payload inside a JSON poll
	// response. Empty means the whole document.
	ReadyField string

	DownloadAuth AuthKind
}

// UsesDate reports whether the route's submit templates reference a date
// placeholder, making it eligible for date-window fan-out.
func (r Route) UsesDate() bool {
	return References(r.SubmitBody, "date", "date_iso", "date_str") ||
		References(r.SubmitParams, "date", "date_iso", "date_str")
}

// defaults applied to every catalog entry.
const (
	defaultPollPath     = "/reports/Ticket"
	defaultSubmitMethod = "POST"
)

// spec is the raw catalog shape before defaults are merged. Optional fields
// left zero inherit the catalog defaults.
type spec struct {
	SubmitPath   string         `yaml:"submit_path"`
	SubmitMethod string         `yaml:"submit_method"`
	SubmitAuth   AuthKind       `yaml:"submit_auth"`
	SubmitBody   map[string]any `yaml:"submit_body"`
	SubmitParams map[string]any `yaml:"submit_params"`
	Parameters   map[string]any `yaml:"parameters"`
	PollPath     string         `yaml:"poll_path"`
	PollAuth     AuthKind       `yaml:"poll_auth"`
	ReadyField   string         `yaml:"ready_field"`
	DownloadAuth AuthKind       `yaml:"download_auth"`
}

// build resolves a spec into a concrete Route for one category, applying
// catalog defaults for anything the spec leaves unset.
func (s spec) build(category, endpoint string) Route {
	r := Route{
		Name:         fmt.Sprintf("%s_%s", category, endpoint),
		Category:     category,
		Endpoint:     endpoint,
		SubmitPath:   s.SubmitPath,
		SubmitMethod: strings.ToUpper(s.SubmitMethod),
		SubmitAuth:   s.SubmitAuth,
		SubmitBody:   s.SubmitBody,
		SubmitParams: s.SubmitParams,
		Parameters:   s.Parameters,
		PollPath:     s.PollPath,
		PollAuth:     s.PollAuth,
		ReadyField:   s.ReadyField,
		DownloadAuth: s.DownloadAuth,
	}
	if r.SubmitMethod == "" {
		r.SubmitMethod = defaultSubmitMethod
	}
	if r.SubmitAuth == "" {
		r.SubmitAuth = AuthBearer
	}
	if r.PollPath == "" {
		r.PollPath = defaultPollPath
	}
	if r.PollAuth == "" {
		r.PollAuth = AuthSecureToken
	}
	if r.DownloadAuth == "" {
		r.DownloadAuth = AuthSecureToken
	}
	return r
}

// MergeParameters overlays user-supplied endpoint parameters on top of the
// route's catalog defaults (defaults < overrides) and returns a copy of the
// route carrying the merged set.
func (r Route) MergeParameters(overrides map[string]any) Route {
	if len(overrides) == 0 {
		return r
	}
	merged := make(map[string]any, len(r.Parameters)+len(overrides))
	for k, v := range r.Parameters {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	r.Parameters = merged
	return r
}
