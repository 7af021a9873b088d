package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/pluginhost/pkg/observability"
	"github.com/platinummonkey/pluginhost/pkg/plugins"
)

// Config holds all application configuration
type Config struct {
	// Plugin discovery configuration
	Plugins PluginsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PluginsConfig holds plugin discovery settings
type PluginsConfig struct {
	// Directory holding plugins.json
	ConfigDir string

	// Directory scanned for bundled plugins
	BundleDir string

	// Skip the bundle scan
	OmitBundles bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics are written to this file after plugins load (disabled when empty)
	MetricsTextfile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Plugins:       loadPluginsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadPluginsConfig loads plugin discovery configuration from environment
func loadPluginsConfig() PluginsConfig {
	return PluginsConfig{
		ConfigDir:   plugins.DefaultConfigDir(),
		BundleDir:   getEnv("INSPEC_BUNDLE_DIR", plugins.DefaultBundleDir()),
		OmitBundles: getEnvBool("INSPEC_OMIT_BUNDLES", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        parseLogLevel(getEnv("INSPEC_LOG_LEVEL", "warn")),
		MetricsTextfile: getEnv("INSPEC_METRICS_TEXTFILE", ""),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Plugins.ConfigDir == "" {
		return fmt.Errorf("plugin config directory is required")
	}
	if info, err := os.Stat(c.Plugins.ConfigDir); err == nil && !info.IsDir() {
		return fmt.Errorf("plugin config directory %s is not a directory", c.Plugins.ConfigDir)
	}

	if !c.Plugins.OmitBundles && c.Plugins.BundleDir == "" {
		return fmt.Errorf("bundle directory is required unless bundles are omitted")
	}

	if c.Observability.MetricsTextfile != "" {
		dir := filepath.Dir(c.Observability.MetricsTextfile)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("metrics textfile directory %s does not exist", dir)
		}
	}

	return nil
}

// LoaderOptions converts the plugin settings into loader options
func (c *Config) LoaderOptions() plugins.Options {
	return plugins.Options{
		ConfigDir:   c.Plugins.ConfigDir,
		BundleDir:   c.Plugins.BundleDir,
		OmitBundles: c.Plugins.OmitBundles,
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
