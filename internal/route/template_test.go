package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand_String(t *testing.T) {
	ctx := map[string]any{"date_iso": "2024-03-01", "fund_name": "FUND A"}

	got := Expand("{{date_iso}}", ctx)
	assert.Equal(t, "2024-03-01", got)

	got = Expand("from {{date_iso}} for {{fund_name}}", ctx)
	assert.Equal(t, "from 2024-03-01 for FUND A", got)
}

func TestExpand_Nested(t *testing.T) {
	template := map[string]any{
		"contract": map[string]any{
			"startDate": "{{date_iso}}",
			"endDate":   "{{date_iso}}",
			"types":     []any{"{{report_type}}", "fixed"},
			"depth":     3,
		},
	}
	ctx := map[string]any{"date_iso": "2024-03-01", "report_type": 2}

	got := Expand(template, ctx).(map[string]any)
	contract := got["contract"].(map[string]any)
	assert.Equal(t, "2024-03-01", contract["startDate"])
	assert.Equal(t, "2024-03-01", contract["endDate"])
	assert.Equal(t, []any{"2", "fixed"}, contract["types"])
	assert.Equal(t, 3, contract["depth"])
}

func TestExpand_MissingKeyLeftIntact(t *testing.T) {
	got := Expand("{{unknown}}", map[string]any{"date_iso": "2024-03-01"})
	assert.Equal(t, "{{unknown}}", got)
}

func TestExpand_NilValueSkipped(t *testing.T) {
	got := Expand("{{status}}", map[string]any{"status": nil})
	assert.Equal(t, "{{status}}", got)
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	template := map[string]any{"a": "{{x}}"}
	Expand(template, map[string]any{"x": "1"})
	assert.Equal(t, "{{x}}", template["a"])
}

func TestReferences(t *testing.T) {
	template := map[string]any{
		"contract": map[string]any{"date": "{{date_iso}}"},
	}
	assert.True(t, References(template, "date_iso"))
	assert.True(t, References(template, "date", "date_iso"))
	assert.False(t, References(template, "fund_name"))
	assert.False(t, References(map[string]any{}, "date_iso"))
}
