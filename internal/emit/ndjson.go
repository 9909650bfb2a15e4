package emit

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Writer serializes records as newline-delimited JSON.
type Writer struct {
	enc   *json.Encoder
	count int
}

// NewWriter creates an NDJSON writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write emits one record as a JSON line.
func (w *Writer) Write(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return eris.Wrap(err, "emit: encode record")
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}
