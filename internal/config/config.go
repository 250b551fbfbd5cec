package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DataManifest  string        `mapstructure:"DATA_MANIFEST"`
	DataDir       string        `mapstructure:"DATA_DIR"`
	WatchData     bool          `mapstructure:"WATCH_DATA"`
	WatchDebounce time.Duration `mapstructure:"WATCH_DEBOUNCE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	CORSOrigins    []string      `mapstructure:"-"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	MinSampleMargin      int           `mapstructure:"MIN_SAMPLE_MARGIN"`
	AnalysisWorkers      int           `mapstructure:"ANALYSIS_WORKERS"`
	ExternalFetchTimeout time.Duration `mapstructure:"EXTERNAL_FETCH_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV",
	"DATA_MANIFEST", "DATA_DIR", "WATCH_DATA", "WATCH_DEBOUNCE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"MIN_SAMPLE_MARGIN", "ANALYSIS_WORKERS", "EXTERNAL_FETCH_TIMEOUT",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("WATCH_DATA", false)
	v.SetDefault("WATCH_DEBOUNCE", "2s")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("BODY_LIMIT", "10M")
	v.SetDefault("MIN_SAMPLE_MARGIN", 2)
	v.SetDefault("ANALYSIS_WORKERS", 0)
	v.SetDefault("EXTERNAL_FETCH_TIMEOUT", "30s")

	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The env form is a comma list; split it here so stray spaces are dropped.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RegistryEnabled reports whether external sources are persisted in
// Postgres. Without DATABASE_URL they live in memory.
func (c *Config) RegistryEnabled() bool {
	return c.DatabaseURL != ""
}

// Validate rejects configurations that are unsafe or cannot work. Outside
// development a signing key of at least 32 bytes is required, since the
// dev auth shortcut grants admin to every caller.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
		}
	}
	if c.MinSampleMargin < 0 {
		return fmt.Errorf("MIN_SAMPLE_MARGIN must not be negative, got %d", c.MinSampleMargin)
	}
	if c.AnalysisWorkers < 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must not be negative, got %d", c.AnalysisWorkers)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set, got %d", c.RateLimitBurst)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ExternalFetchTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_FETCH_TIMEOUT must be positive, got %s", c.ExternalFetchTimeout)
	}
	if c.WatchData && c.WatchDebounce <= 0 {
		return fmt.Errorf("WATCH_DEBOUNCE must be positive when WATCH_DATA is set")
	}
	if c.DataManifest == "" && c.DataDir == "" {
		return fmt.Errorf("one of DATA_MANIFEST or DATA_DIR is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
