package route

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// builtin is the shipped endpoint catalog for the BTG reporting API. Body
// templates use {{placeholder}} substitution against the invocation context.
var builtin = map[string]spec{
	"cadastro_fundos": {
		SubmitPath: "/reports/Fund",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{},
		},
	},
	"renda_fixa": {
		SubmitPath: "/reports/FixedIncome",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"date": "{{date_iso}}",
			},
		},
	},
	"extrato_cc": {
		SubmitPath: "/reports/Cash/FundAccountStatement",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"startDate": "{{date_iso}}",
				"endDate":   "{{date_iso}}",
			},
		},
	},
	"fluxo_caixa": {
		SubmitPath: "/reports/Cash/Cashflow",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"startDate": "{{date_iso}}",
				"endDate":   "{{date_iso}}",
			},
		},
	},
	"money_market": {
		SubmitPath: "/reports/Cash/MoneyMarket",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"date": "{{date_iso}}",
			},
		},
	},
	"movimentacao_passivo": {
		SubmitPath: "/reports/RTA/FundFlow",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"startDate": "{{date_iso}}",
				"endDate":   "{{date_iso}}",
			},
		},
	},
	"movimentacao_fundo_d0": {
		SubmitPath: "/reports/RTA/ConsultTrade",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"startDate":   "{{date_iso}}",
				"endDate":     "{{date_iso}}",
				"consultType": "{{consult_type}}",
				"status":      "{{status}}",
			},
		},
	},
	"carteira": {
		SubmitPath: "/reports/Portfolio",
		SubmitAuth: AuthSecureToken,
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"startDate":  "{{date_iso}}",
				"endDate":    "{{date_iso}}",
				"typeReport": "{{report_type}}",
				"fundName":   "{{fund_name}}",
			},
		},
		Parameters: map[string]any{
			"report_type": []any{1, 2, 3, 4, 5},
			"fund_name":   []any{"RIZA STATHEROS FIC FIM CP", "BTG ABSOLUTO FIC FIM"},
		},
	},
	"taxa_performance": {
		SubmitPath: "/reports/RTA/PerformanceFee",
		SubmitBody: map[string]any{
			"contract": map[string]any{
				"queryDate": "{{date_iso}}",
				"fundName":  "{{fund_name}}",
			},
		},
	},
}

// Catalog resolves endpoint names into Routes for a given category.
type Catalog struct {
	specs map[string]spec
}

// NewCatalog returns the built-in endpoint catalog.
func NewCatalog() *Catalog {
	specs := make(map[string]spec, len(builtin))
	for k, v := range builtin {
		specs[k] = v
	}
	return &Catalog{specs: specs}
}

// LoadOverlay merges route specs from a YAML file into the catalog. Entries
// replace built-in specs of the same name; new names extend the catalog.
func (c *Catalog) LoadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "catalog: read overlay")
	}
	var overlay map[string]spec
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return eris.Wrap(err, "catalog: parse overlay")
	}
	for name, s := range overlay {
		c.specs[name] = s
	}
	return nil
}

// Resolve builds the Route for one (category, endpoint) pair, returning false
// when the endpoint is not in the catalog.
func (c *Catalog) Resolve(category, endpoint string) (Route, bool) {
	s, ok := c.specs[endpoint]
	if !ok {
		return Route{}, false
	}
	return s.build(category, endpoint), true
}

// Endpoints lists the catalog's endpoint names in sorted order.
func (c *Catalog) Endpoints() []string {
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
