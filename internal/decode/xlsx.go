package decode

import (
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// decodeXLSX reads the first sheet of a workbook: the first row is the
// header, each later row becomes one record. Rows shorter than the header are
// padded with empty strings; fully blank rows are dropped.
func decodeXLSX(payload []byte) []map[string]any {
	wb, err := xlsx.OpenBinary(payload)
	if err != nil || len(wb.Sheets) == 0 {
		return []map[string]any{{
			"raw_content": "",
			"parse_error": "xlsx: unreadable workbook",
		}}
	}

	sheet := wb.Sheets[0]
	if len(sheet.Rows) < 1 {
		return []map[string]any{{
			"raw_content": "",
			"parse_error": "xlsx: empty sheet",
		}}
	}

	var header []string
	for _, cell := range sheet.Rows[0].Cells {
		header = append(header, strings.TrimSpace(cell.String()))
	}
	if len(header) == 0 {
		return []map[string]any{{
			"raw_content": "",
			"parse_error": "xlsx: empty header row",
		}}
	}

	var records []map[string]any
	for _, row := range sheet.Rows[1:] {
		rec := make(map[string]any, len(header))
		blank := true
		for i, h := range header {
			var v string
			if i < len(row.Cells) {
				v = strings.TrimSpace(row.Cells[i].String())
			}
			if v != "" {
				blank = false
			}
			rec[h] = v
		}
		if !blank {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return []map[string]any{{
			"raw_content": "",
			"parse_error": "xlsx: no data rows",
		}}
	}
	return records
}
