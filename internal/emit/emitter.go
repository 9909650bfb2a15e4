package emit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/decode"
	"github.com/sells-group/btg-sync/internal/job"
	"github.com/sells-group/btg-sync/internal/plan"
	"github.com/sells-group/btg-sync/internal/route"
)

// Emitter runs one route's invocations against the API and emits records.
type Emitter struct {
	client   *btg.Client
	route    route.Route
	pollOpts []job.PollOption
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithPollOptions forwards options to the ticket poller.
func WithPollOptions(opts ...job.PollOption) Option {
	return func(e *Emitter) {
		e.pollOpts = opts
	}
}

// New creates an Emitter for one route.
func New(client *btg.Client, r route.Route, opts ...Option) *Emitter {
	e := &Emitter{client: client, route: r}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one invocation and returns its record stream. It never
// returns an error: auth, submission, and timeout failures for the
// invocation become a single synthetic error record, so one failing
// invocation cannot abort the others.
func (e *Emitter) Run(ctx context.Context, inv plan.Invocation) []Record {
	invCtx := inv.Context()
	refDate := inv.DateISO()

	ticket, err := job.Submit(ctx, e.client, e.route, invCtx)
	if err != nil {
		zap.L().Error("submit failed",
			zap.String("route", e.route.Name),
			zap.Error(err),
		)
		rec := e.base("error", refDate, 0)
		rec["error"] = err.Error()
		rec["_params"] = inv.Params
		return []Record{rec}
	}

	outcome, err := job.Wait(ctx, e.client, e.route, ticket, e.pollOpts...)
	if err != nil {
		zap.L().Error("poll failed",
			zap.String("route", e.route.Name),
			zap.String("ticket", ticket),
			zap.Error(err),
		)
		rec := e.base(ticket, refDate, 0)
		rec["error"] = err.Error()
		rec["_params"] = inv.Params
		return []Record{rec}
	}

	switch out := outcome.(type) {
	case job.Inline:
		return e.emitInline(ticket, refDate, out)
	case job.DownloadList:
		return e.emitDownloads(ctx, ticket, refDate, out)
	case job.StructuredJSON:
		return e.emitStructured(ticket, refDate, out)
	default:
		rec := e.base(ticket, refDate, 0)
		rec["error"] = "unknown poll outcome"
		return []Record{rec}
	}
}

func (e *Emitter) emitInline(ticket, refDate string, out job.Inline) []Record {
	rows := decode.Decode(out.Payload)
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec := e.base(ticket, refDate, i)
		for k, v := range row {
			rec[k] = v
		}
		records = append(records, rec)
	}
	return records
}

func (e *Emitter) emitDownloads(ctx context.Context, ticket, refDate string, out job.DownloadList) []Record {
	var records []Record
	idx := 0
	for _, ref := range out.Files {
		data, err := job.Fetch(ctx, e.client, e.route, ref)
		if err != nil {
			zap.L().Error("file download failed",
				zap.String("route", e.route.Name),
				zap.String("ticket", ticket),
				zap.String("url", ref.URL),
				zap.Error(err),
			)
			rec := e.base(ticket, refDate, idx)
			rec["error"] = err.Error()
			rec[FieldFileInfo] = ref.Meta
			records = append(records, rec)
			idx++
			continue
		}

		for _, row := range decode.Decode(data) {
			rec := e.base(ticket, refDate, idx)
			for k, v := range row {
				rec[k] = v
			}
			rec[FieldFileInfo] = ref.Meta
			records = append(records, rec)
			idx++
		}
	}
	return records
}

func (e *Emitter) emitStructured(ticket, refDate string, out job.StructuredJSON) []Record {
	ready, ok := job.DotGet(out.Document, e.route.ReadyField)
	if !ok || ready == nil || ready == "" {
		rec := e.base(ticket, refDate, 0)
		rec["message"] = "no processable data found in JSON response"
		rec[FieldSourceJSON] = out.Document
		return []Record{rec}
	}

	var rows []map[string]any
	switch r := ready.(type) {
	case []any:
		for _, elem := range r {
			if m, ok := elem.(map[string]any); ok {
				rows = append(rows, m)
			} else {
				rows = append(rows, map[string]any{"value": elem})
			}
		}
	case map[string]any:
		rows = []map[string]any{r}
	default:
		rows = []map[string]any{{"value": r}}
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec := e.base(ticket, refDate, i)
		for k, v := range row {
			rec[k] = v
		}
		rec[FieldSourceJSON] = out.Document
		records = append(records, rec)
	}
	return records
}

// base stamps the provenance fields shared by every record of an invocation.
func (e *Emitter) base(ticket, refDate string, row int) Record {
	var date any
	if refDate != "" {
		date = refDate
	}
	return Record{
		FieldRoute:          e.route.Name,
		FieldCategory:       e.route.Category,
		FieldEndpoint:       e.route.Endpoint,
		FieldSourceCategory: strings.ToUpper(e.route.Category),
		FieldAPIEndpoint:    e.route.SubmitPath,
		FieldTicketID:       ticket,
		FieldRowNumber:      row,
		FieldRefDate:        date,
	}
}
