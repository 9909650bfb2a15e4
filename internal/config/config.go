// Package config loads the connector configuration and bootstraps logging.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full connector configuration.
type Config struct {
	BaseURL    string                    `yaml:"base_url" mapstructure:"base_url"`
	Auth       AuthConfig                `yaml:"auth" mapstructure:"auth"`
	Categories map[string]CategoryConfig `yaml:"categories" mapstructure:"categories"`
	Endpoints  map[string]EndpointConfig `yaml:"endpoints" mapstructure:"endpoints"`
	Schedule   ScheduleConfig            `yaml:"sync_schedule" mapstructure:"sync_schedule"`
	Technical  TechnicalConfig           `yaml:"technical" mapstructure:"technical"`
	State      StateConfig               `yaml:"state" mapstructure:"state"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
	// RoutesFile optionally overlays extra route specs onto the built-in
	// endpoint catalog.
	RoutesFile string `yaml:"routes_file" mapstructure:"routes_file"`
}

// AuthConfig holds the default client-credentials grant.
type AuthConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	AuthURL      string `yaml:"auth_url" mapstructure:"auth_url"`
}

// CategoryConfig enables one BTG category, optionally with its own
// credentials overriding the top-level auth block.
type CategoryConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// EndpointConfig enables one report endpoint and carries user parameter
// overrides. A parameter value may be a scalar or a list of candidates.
type EndpointConfig struct {
	Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
	Params  map[string]any `yaml:"params" mapstructure:"params"`
}

// ScheduleConfig is the optional date window for date-driven routes.
type ScheduleConfig struct {
	StartDate    string `yaml:"start_date" mapstructure:"start_date"`
	EndDate      string `yaml:"end_date" mapstructure:"end_date"`
	DateStepDays int    `yaml:"date_step_days" mapstructure:"date_step_days"`
}

// TechnicalConfig holds transport tuning.
type TechnicalConfig struct {
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxWaitSeconds int     `yaml:"max_wait_seconds" mapstructure:"max_wait_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// StateConfig configures the watermark store.
type StateConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BTG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sync_schedule.date_step_days", 1)
	v.SetDefault("technical.max_retries", 3)
	v.SetDefault("technical.timeout_seconds", 60)
	v.SetDefault("technical.max_wait_seconds", 900)
	v.SetDefault("state.driver", "sqlite")
	v.SetDefault("state.database_url", "btg-sync.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// EnabledCategories returns the enabled category names in sorted order. An
// empty categories block falls back to a single DEFAULT category inheriting
// the top-level auth.
func (c *Config) EnabledCategories() []string {
	if len(c.Categories) == 0 {
		return []string{"DEFAULT"}
	}
	var names []string
	for name, cat := range c.Categories {
		if cat.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CategoryAuth resolves the effective credentials for a category: per-category
// overrides inherit from the top-level auth block.
func (c *Config) CategoryAuth(category string) (clientID, clientSecret string) {
	clientID = c.Auth.ClientID
	clientSecret = c.Auth.ClientSecret
	if cat, ok := c.Categories[category]; ok {
		if cat.ClientID != "" {
			clientID = cat.ClientID
		}
		if cat.ClientSecret != "" {
			clientSecret = cat.ClientSecret
		}
	}
	return clientID, clientSecret
}

// DateWindow parses the configured sync window. ok is false when no window
// is configured.
func (c *Config) DateWindow() (start, end time.Time, step int, ok bool, err error) {
	if c.Schedule.StartDate == "" || c.Schedule.EndDate == "" {
		return time.Time{}, time.Time{}, 0, false, nil
	}
	start, err = time.Parse("2006-01-02", c.Schedule.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, 0, false, eris.Wrap(err, "config: parse start_date")
	}
	end, err = time.Parse("2006-01-02", c.Schedule.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, 0, false, eris.Wrap(err, "config: parse end_date")
	}
	step = c.Schedule.DateStepDays
	if step < 1 {
		step = 1
	}
	return start, end, step, true, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
