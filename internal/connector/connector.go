// Package connector assembles the configured (category × endpoint) streams:
// one token provider and API client per category, one resolved route per
// enabled endpoint.
package connector

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/config"
	"github.com/sells-group/btg-sync/internal/resilience"
	"github.com/sells-group/btg-sync/internal/route"
)

// Stream is one runnable (category, endpoint) pairing.
type Stream struct {
	Name   string
	Route  route.Route
	Client *btg.Client
}

// Catalog builds the route catalog, applying the configured overlay file.
func Catalog(cfg *config.Config) (*route.Catalog, error) {
	cat := route.NewCatalog()
	if cfg.RoutesFile != "" {
		if err := cat.LoadOverlay(cfg.RoutesFile); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Clients builds one API client per enabled category, keyed by category name.
func Clients(cfg *config.Config) map[string]*btg.Client {
	clients := make(map[string]*btg.Client)
	for _, category := range cfg.EnabledCategories() {
		clientID, clientSecret := cfg.CategoryAuth(category)
		provider := btg.NewTokenProvider(category, btg.Credentials{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			AuthURL:      cfg.Auth.AuthURL,
		}, cfg.BaseURL)

		opts := []btg.Option{
			btg.WithTimeout(time.Duration(cfg.Technical.TimeoutSeconds) * time.Second),
			btg.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Technical.MaxRetries}),
		}
		if cfg.Technical.RateLimitRPS > 0 {
			opts = append(opts, btg.WithRateLimit(cfg.Technical.RateLimitRPS))
		}
		clients[category] = btg.NewClient(cfg.BaseURL, provider, opts...)
	}
	return clients
}

// Streams expands the configuration into runnable streams, sorted
// category-major then endpoint. Endpoints absent from the catalog are
// skipped with a warning.
func Streams(cfg *config.Config, cat *route.Catalog) []Stream {
	clients := Clients(cfg)

	endpoints := make([]string, 0, len(cfg.Endpoints))
	for name := range cfg.Endpoints {
		endpoints = append(endpoints, name)
	}
	sort.Strings(endpoints)

	var streams []Stream
	for _, category := range cfg.EnabledCategories() {
		client := clients[category]
		for _, endpoint := range endpoints {
			if !cfg.Endpoints[endpoint].Enabled {
				continue
			}
			r, ok := cat.Resolve(category, endpoint)
			if !ok {
				zap.L().Warn("endpoint not in catalog", zap.String("endpoint", endpoint))
				continue
			}
			r = r.MergeParameters(cfg.Endpoints[endpoint].Params)
			streams = append(streams, Stream{
				Name:   r.Name,
				Route:  r,
				Client: client,
			})
		}
	}

	zap.L().Info("streams assembled", zap.Int("count", len(streams)))
	return streams
}
