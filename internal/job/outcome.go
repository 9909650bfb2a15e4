// Package job drives one report job through the BTG async lifecycle:
// submit → ticket → poll to a terminal outcome → download result files.
package job

import "fmt"

// Outcome is the terminal result of polling a ticket. Exactly one of the
// concrete types below is returned; "still processing" responses never
// surface as an outcome. Timeout and transport failures are error returns.
type Outcome interface {
	isOutcome()
}

// Inline carries a payload delivered directly in the poll response
// (raw XML, a ZIP container, or an XML string embedded in JSON).
type Inline struct {
	Payload []byte
}

// DownloadList carries file references that must be fetched individually.
type DownloadList struct {
	Files []FileRef
}

// StructuredJSON carries a ready JSON document; the route's ready-field path
// selects the payload inside it.
type StructuredJSON struct {
	Document map[string]any
}

func (Inline) isOutcome()         {}
func (DownloadList) isOutcome()   {}
func (StructuredJSON) isOutcome() {}

// FileRef is one downloadable result file: a URL (or relative path) plus any
// metadata the API attached, preserved verbatim for record provenance.
type FileRef struct {
	URL  string
	Meta map[string]any
}

// ParseFileRef interprets one element of a poll response's files list: either
// a URL string or a mapping carrying url/path/link plus arbitrary metadata.
// Returns false when no usable location is present.
func ParseFileRef(v any) (FileRef, bool) {
	switch f := v.(type) {
	case string:
		if f == "" {
			return FileRef{}, false
		}
		return FileRef{URL: f, Meta: map[string]any{"url": f}}, true
	case map[string]any:
		for _, key := range []string{"url", "path", "link"} {
			if s, ok := f[key].(string); ok && s != "" {
				return FileRef{URL: s, Meta: f}, true
			}
		}
	}
	return FileRef{}, false
}

// SubmissionError signals that a submission response carried no ticket.
type SubmissionError struct {
	Route string
	Doc   map[string]any
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job: submit %s returned no ticket: %v", e.Route, e.Doc)
}

// PollTimeoutError signals that a ticket did not reach a terminal outcome
// before the deadline.
type PollTimeoutError struct {
	Ticket string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job: timeout waiting for ticket %s", e.Ticket)
}
