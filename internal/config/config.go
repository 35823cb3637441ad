// Package config loads application settings from config files and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Port      string `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	DBPath    string `mapstructure:"db_path"`
	JWTSecret string `mapstructure:"jwt_secret"`

	// Open-map provider
	OverpassEndpoints []string      `mapstructure:"overpass_endpoints"`
	OverpassTimeout   time.Duration `mapstructure:"overpass_timeout"`

	// Commercial places provider. Empty key disables fallback/enrichment.
	CommercialAPIKey  string `mapstructure:"commercial_api_key"`
	CommercialBaseURL string `mapstructure:"commercial_base_url"`

	EnableFallback   bool `mapstructure:"enable_fallback"`
	EnableEnrichment bool `mapstructure:"enable_enrichment"`

	// CommercialPrimary makes the commercial source the base provider
	// instead of the open map. Requires an API key.
	CommercialPrimary bool `mapstructure:"commercial_primary"`

	// Analysis snapshot lifetime in the sqlite store.
	AnalysisTTL time.Duration `mapstructure:"analysis_ttl"`

	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
}

// Load reads configuration from config.yaml (optional) and NEST_-prefixed
// environment variables, with sane defaults for local runs.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "./data/nestscore.db")
	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("overpass_endpoints", []string{})
	v.SetDefault("overpass_timeout", 60*time.Second)
	v.SetDefault("commercial_api_key", "")
	v.SetDefault("commercial_base_url", "")
	v.SetDefault("enable_fallback", true)
	v.SetDefault("enable_enrichment", true)
	v.SetDefault("commercial_primary", false)
	v.SetDefault("analysis_ttl", 24*time.Hour)
	v.SetDefault("rate_limit_per_minute", 30)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("NEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	return &cfg, nil
}
