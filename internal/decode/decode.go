// Package decode sniffs a result payload's encoding (ZIP, XLSX, JSON, XML,
// delimiter-separated text, or raw text) and converts it into a flat sequence
// of key-value records. Decoding never fails: every unparseable payload
// degrades to a single best-effort raw-content record.
package decode

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode converts a payload into records. First match wins: ZIP containers
// are unwrapped (recursively, unless they are XLSX workbooks), then JSON,
// XML, delimiter-separated text, and finally raw text.
func Decode(payload []byte) (records []map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			records = []map[string]any{{
				"raw_content": toText(payload),
				"parse_error": fmt.Sprintf("%v", r),
			}}
		}
	}()

	if IsZip(payload) {
		return decodeZip(payload)
	}

	text := strings.TrimSpace(toText(payload))
	switch {
	case strings.HasPrefix(text, "{") || strings.HasPrefix(text, "["):
		return decodeJSON(text)
	case strings.HasPrefix(text, "<"):
		return decodeXML(text)
	case strings.Contains(text, "\n") && (strings.Contains(text, ",") || strings.Contains(text, ";")):
		return decodeCSV(text)
	default:
		return []map[string]any{{"raw_content": text}}
	}
}

// IsZip reports the ZIP local-file-header magic.
func IsZip(payload []byte) bool {
	return len(payload) >= 2 && payload[0] == 'P' && payload[1] == 'K'
}

// decodeZip treats ZIP as a transport wrapper: the first entry's bytes are
// fed back through Decode. A workbook (entries under xl/) is decoded as XLSX
// instead.
func decodeZip(payload []byte) []map[string]any {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return []map[string]any{{
			"raw_content": toText(payload),
			"parse_error": "open zip: " + err.Error(),
		}}
	}

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/") {
			return decodeXLSX(payload)
		}
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return []map[string]any{{
				"raw_content": toText(payload),
				"parse_error": "open zip entry: " + err.Error(),
			}}
		}
		inner, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return []map[string]any{{
				"raw_content": toText(payload),
				"parse_error": "read zip entry: " + err.Error(),
			}}
		}
		return Decode(inner)
	}

	return []map[string]any{{
		"raw_content": "",
		"parse_error": "empty zip archive",
	}}
}

// decodeJSON turns a JSON array into one record per element and a JSON object
// into a single record. Non-object elements are wrapped under "value".
func decodeJSON(text string) []map[string]any {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return []map[string]any{{
			"raw_content": text,
			"parse_error": "json: " + err.Error(),
		}}
	}
	switch d := doc.(type) {
	case []any:
		records := make([]map[string]any, 0, len(d))
		for _, elem := range d {
			records = append(records, asRecord(elem))
		}
		return records
	default:
		return []map[string]any{asRecord(doc)}
	}
}

func asRecord(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": v}
}

// decodeCSV treats the first line as a delimiter-separated header (comma when
// present, else semicolon). Data rows keep only lines whose field count
// matches the header's; nothing qualifying falls back to csv_content.
func decodeCSV(text string) []map[string]any {
	lines := strings.Split(text, "\n")
	sep := ";"
	if strings.Contains(lines[0], ",") {
		sep = ","
	}

	header := strings.Split(strings.TrimRight(lines[0], "\r"), sep)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]any
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) != len(header) {
			continue
		}
		rec := make(map[string]any, len(header))
		for i, h := range header {
			rec[h] = strings.TrimSpace(fields[i])
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return []map[string]any{{"csv_content": text}}
	}
	return records
}

// toText decodes payload bytes best-effort: valid UTF-8 passes through,
// anything else is read as ISO-8859-1 (BTG CSV exports are frequently
// Latin-1).
func toText(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}
	return string(decoded)
}
