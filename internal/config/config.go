// Package config defines clawscan's configuration shape and the loader
// that reads, validates, and hot-reloads it, mirroring the teacher's
// YAML-tagged config struct plus its env-var-substitution and reload
// conventions.
package config

import (
	"time"

	"github.com/clawscan/clawscan/internal/rules"
)

// Config is the top-level clawscan configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Detection   DetectionConfig   `yaml:"detection"`
	TrustCache  TrustCacheConfig  `yaml:"trust_cache"`
	CustomRules []rules.RuleDef   `yaml:"custom_rules"`
	Watch       ConfigWatchConfig `yaml:"watch"`
}

// ServerConfig controls the live scan-progress WebSocket management
// surface (internal/watch).
type ServerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Port            int    `yaml:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins"`
	LogLevel        string `yaml:"log_level"`
}

// DetectionConfig controls the detector engine's shared scan behavior.
type DetectionConfig struct {
	// MaxWalkDepth bounds how deep a recursive scan descends. The generic
	// execution contract treats a non-recursive scan as depth 1 regardless
	// of this value.
	MaxWalkDepth int `yaml:"max_walk_depth"`

	// ConfidenceThresholds overrides DefaultConfidenceThreshold per skill
	// name; a skill absent from this map uses its own default.
	ConfidenceThresholds map[string]float64 `yaml:"confidence_thresholds"`
}

// TrustCacheConfig controls the SQLite content-hash verdict cache.
type TrustCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// ConfigWatchConfig holds the watch.enabled setting for fsnotify-driven hot
// reload of this config file. Nothing in this module reads the flag; hot
// reload runs only while a caller has started Loader.Watch.
type ConfigWatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a config with sensible defaults for zero-config
// startup.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         false,
			Port:            6790,
			AllowAllOrigins: false,
			LogLevel:        "info",
		},
		Detection: DetectionConfig{
			MaxWalkDepth:         10,
			ConfidenceThresholds: map[string]float64{},
		},
		TrustCache: TrustCacheConfig{
			Enabled: false,
			Path:    "./clawscan-trust.db",
			MaxAge:  30 * 24 * time.Hour,
		},
		Watch: ConfigWatchConfig{
			Enabled: false,
		},
	}
}
