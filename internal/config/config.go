package config

import (
	"os"
	"strconv"

	"veritas/domain/quality"
	"veritas/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Analytics AnalyticsConfig
	Data      DataConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	MetricsEnabled bool
}

// AnalyticsConfig holds statistical defaults and the CQA specification table
type AnalyticsConfig struct {
	Alpha         float64
	CpkTarget     float64
	Contamination float64
	Seed          int64
	SpecLimits    quality.SpecTable
}

// DataConfig holds mock LIMS dataset settings
type DataConfig struct {
	Samples int
	Seed    int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvOrDefault("VERITAS_PORT", "8080"),
			MetricsEnabled: getEnvBoolOrDefault("VERITAS_METRICS", true),
		},
		Analytics: AnalyticsConfig{
			Alpha:         getEnvFloatOrDefault("VERITAS_ALPHA", 0.05),
			CpkTarget:     getEnvFloatOrDefault("VERITAS_CPK_TARGET", 1.33),
			Contamination: getEnvFloatOrDefault("VERITAS_CONTAMINATION", 0.05),
			Seed:          getEnvIntOrDefault("VERITAS_SEED", 42),
			SpecLimits:    DefaultSpecLimits(),
		},
		Data: DataConfig{
			Samples: int(getEnvIntOrDefault("VERITAS_MOCK_SAMPLES", 500)),
			Seed:    getEnvIntOrDefault("VERITAS_MOCK_SEED", 42),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// DefaultSpecLimits is the release specification table for the demo product
// line. Callers may replace individual windows but every window must keep
// lsl < usl.
func DefaultSpecLimits() quality.SpecTable {
	return quality.SpecTable{
		quality.CQAPurity:       quality.Limits(95.0, 105.0),
		quality.CQAMainImpurity: quality.Limits(0.0, 1.0),
		quality.CQAAggregate:    quality.Limits(0.0, 1.0),
		quality.CQABioactivity:  quality.Limits(70.0, 130.0),
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.ConfigInvalid("VERITAS_PORT cannot be empty")
	}
	if cfg.Analytics.Alpha <= 0 || cfg.Analytics.Alpha >= 1 {
		return errors.ConfigInvalid("VERITAS_ALPHA must be in (0, 1)")
	}
	if cfg.Analytics.Contamination <= 0 || cfg.Analytics.Contamination >= 0.5 {
		return errors.ConfigInvalid("VERITAS_CONTAMINATION must be in (0, 0.5)")
	}
	if cfg.Data.Samples < 1 {
		return errors.ConfigInvalid("VERITAS_MOCK_SAMPLES must be positive")
	}
	if err := cfg.Analytics.SpecLimits.Validate(); err != nil {
		return errors.Wrap(err, "spec limit table invalid")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
