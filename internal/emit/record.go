// Package emit orchestrates one job invocation end to end — submit, poll,
// fetch, decode — and turns the result into provenance-stamped records.
// Failures never propagate out of an invocation: they become error records.
package emit

// Record is one decoded data row plus provenance metadata. Payload-derived
// fields sit alongside the underscore-prefixed metadata fields.
type Record map[string]any

// Provenance and bookkeeping fields present on every emitted record.
const (
	FieldTicketID       = "_ticket_id"
	FieldRowNumber      = "_row_number"
	FieldRefDate        = "_dt_referencia"
	FieldRoute          = "_route"
	FieldCategory       = "_category"
	FieldEndpoint       = "_endpoint"
	FieldSourceCategory = "_source_category"
	FieldAPIEndpoint    = "_api_endpoint"
	FieldFileInfo       = "_file_info"
	FieldSourceJSON     = "_source_json"
)
