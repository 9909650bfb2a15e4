// Package plan expands a route's default parameters, user overrides, and an
// optional date window into the ordered sequence of concrete job invocations.
package plan

import (
	"sort"
	"time"

	"github.com/sells-group/btg-sync/internal/route"
)

// Window is an inclusive date range stepped in whole days.
type Window struct {
	Start time.Time
	End   time.Time
	// StepDays is the stride between reference dates; values below 1 are
	// treated as 1.
	StepDays int
}

// Invocation is one resolved job instance: an optional reference date plus
// one concrete parameter assignment.
type Invocation struct {
	// Date is the resolved reference date, nil for routes without a date
	// window.
	Date *time.Time
	// Params is one combination drawn from the candidate sets.
	Params map[string]any
}

// Context returns the template-expansion context for this invocation:
// date_iso (YYYY-MM-DD), date_str and date (DD/MM/YYYY) when a date is set,
// plus every parameter.
func (inv Invocation) Context() map[string]any {
	ctx := make(map[string]any, len(inv.Params)+3)
	if inv.Date != nil {
		ctx["date_iso"] = inv.Date.Format("2006-01-02")
		ctx["date_str"] = inv.Date.Format("02/01/2006")
		ctx["date"] = inv.Date.Format("02/01/2006")
	}
	for k, v := range inv.Params {
		ctx[k] = v
	}
	return ctx
}

// DateISO returns the reference date formatted as an ISO date, or "" when the
// invocation has no date.
func (inv Invocation) DateISO() string {
	if inv.Date == nil {
		return ""
	}
	return inv.Date.Format("2006-01-02")
}

// Expand produces the full invocation sequence for a route: one date entry
// per window step (a single nil-date entry when the route takes no date or no
// window is configured) crossed with every parameter combination. Ordering is
// date-major; combinations follow sorted parameter key order and each
// parameter's declared value order. Nothing is skipped or deduplicated.
func Expand(r route.Route, window *Window) []Invocation {
	dates := dateEntries(r, window)
	combos := Combinations(r.Parameters)

	if len(combos) == 0 {
		out := make([]Invocation, len(dates))
		for i, d := range dates {
			out[i] = Invocation{Date: d}
		}
		return out
	}

	out := make([]Invocation, 0, len(dates)*len(combos))
	for _, d := range dates {
		for _, params := range combos {
			out = append(out, Invocation{Date: d, Params: params})
		}
	}
	return out
}

func dateEntries(r route.Route, window *Window) []*time.Time {
	if window == nil || !r.UsesDate() {
		return []*time.Time{nil}
	}
	step := window.StepDays
	if step < 1 {
		step = 1
	}
	var dates []*time.Time
	for cur := window.Start; !cur.After(window.End); cur = cur.AddDate(0, 0, step) {
		d := cur
		dates = append(dates, &d)
	}
	if len(dates) == 0 {
		return []*time.Time{nil}
	}
	return dates
}

// Combinations takes the cartesian product across each parameter's candidate
// values. A scalar value is a singleton candidate set; an empty list yields a
// single nil candidate. An empty parameter set yields zero combinations.
func Combinations(params map[string]any) []map[string]any {
	if len(params) == 0 {
		return nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([][]any, len(keys))
	for i, k := range keys {
		switch v := params[k].(type) {
		case []any:
			if len(v) == 0 {
				sets[i] = []any{nil}
			} else {
				sets[i] = v
			}
		case []string:
			set := make([]any, len(v))
			for j, s := range v {
				set[j] = s
			}
			sets[i] = set
		default:
			sets[i] = []any{v}
		}
	}

	combos := []map[string]any{{}}
	for i, k := range keys {
		next := make([]map[string]any, 0, len(combos)*len(sets[i]))
		for _, base := range combos {
			for _, v := range sets[i] {
				combo := make(map[string]any, len(base)+1)
				for bk, bv := range base {
					combo[bk] = bv
				}
				combo[k] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}
