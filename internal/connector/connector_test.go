package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/btg-sync/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "https://funds.btgpactual.com/reports",
		Auth:    config.AuthConfig{ClientID: "id", ClientSecret: "secret"},
		Categories: map[string]config.CategoryConfig{
			"distribuidora": {Enabled: true},
			"gestora":       {Enabled: true},
		},
		Endpoints: map[string]config.EndpointConfig{
			"renda_fixa":      {Enabled: true},
			"cadastro_fundos": {Enabled: true},
			"carteira":        {Enabled: false},
			"nonexistent":     {Enabled: true},
		},
	}
}

func TestStreams(t *testing.T) {
	cfg := testConfig()
	cat, err := Catalog(cfg)
	require.NoError(t, err)

	streams := Streams(cfg, cat)
	require.Len(t, streams, 4) // 2 categories x 2 known enabled endpoints

	names := make([]string, len(streams))
	for i, s := range streams {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"distribuidora_cadastro_fundos",
		"distribuidora_renda_fixa",
		"gestora_cadastro_fundos",
		"gestora_renda_fixa",
	}, names)
}

func TestStreams_ParamOverridesMerged(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints = map[string]config.EndpointConfig{
		"carteira": {Enabled: true, Params: map[string]any{
			"fund_name": []any{"ONLY FUND"},
		}},
	}
	cat, err := Catalog(cfg)
	require.NoError(t, err)

	streams := Streams(cfg, cat)
	require.Len(t, streams, 2)
	assert.Equal(t, []any{"ONLY FUND"}, streams[0].Route.Parameters["fund_name"])
	assert.Equal(t, []any{1, 2, 3, 4, 5}, streams[0].Route.Parameters["report_type"])
}

func TestClients_OnePerCategory(t *testing.T) {
	cfg := testConfig()

	clients := Clients(cfg)
	require.Len(t, clients, 2)
	assert.Contains(t, clients, "gestora")
	assert.Contains(t, clients, "distribuidora")
	assert.NotSame(t, clients["gestora"], clients["distribuidora"])
}

func TestStreams_SharedClientPerCategory(t *testing.T) {
	cfg := testConfig()
	cat, err := Catalog(cfg)
	require.NoError(t, err)

	streams := Streams(cfg, cat)
	require.Len(t, streams, 4)
	assert.Same(t, streams[0].Client, streams[1].Client)
	assert.NotSame(t, streams[1].Client, streams[2].Client)
}

func TestCatalog_BadOverlayPath(t *testing.T) {
	cfg := testConfig()
	cfg.RoutesFile = "/does/not/exist.yaml"

	_, err := Catalog(cfg)
	assert.Error(t, err)
}
