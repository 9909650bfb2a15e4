package job

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/route"
)

// ticketPaths are the lookup locations for a ticket id in a submission
// response, in priority order. The first present, non-empty value wins.
var ticketPaths = []string{"ticketId", "result.ticketId", "ticket.id", "id", "ticket"}

// Submit expands the route's templates against the invocation context, issues
// the submission request, and extracts the ticket id from the response.
// Returns a *SubmissionError when no ticket can be located.
func Submit(ctx context.Context, client *btg.Client, r route.Route, invCtx map[string]any) (string, error) {
	body, _ := route.Expand(r.SubmitBody, invCtx).(map[string]any)
	params, _ := route.Expand(r.SubmitParams, invCtx).(map[string]any)

	zap.L().Debug("submitting job",
		zap.String("route", r.Name),
		zap.String("method", r.SubmitMethod),
		zap.String("path", r.SubmitPath),
	)

	doc, err := client.SubmitJob(ctx, r, body, params)
	if err != nil {
		return "", err
	}

	for _, path := range ticketPaths {
		v, ok := DotGet(doc, path)
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			// A ticket is an opaque scalar; containers here are envelopes.
			continue
		}
		ticket := fmt.Sprintf("%v", v)
		if ticket != "" {
			zap.L().Debug("got ticket", zap.String("route", r.Name), zap.String("ticket", ticket))
			return ticket, nil
		}
	}
	return "", &SubmissionError{Route: r.Name, Doc: doc}
}
