// Package config provides host configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Plugin discovery:
//
//	INSPEC_CONFIG_DIR="$HOME/.inspec"     # directory holding plugins.json
//	INSPEC_BUNDLE_DIR="<exe dir>/bundles"  # bundled plugin loader files
//	INSPEC_OMIT_BUNDLES="false"            # skip the bundle scan
//
// Observability:
//
//	INSPEC_LOG_LEVEL="warn"                            # debug, info, warn, error
//	INSPEC_METRICS_TEXTFILE="/var/lib/node_exporter/inspec.prom"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	loader, err := plugins.NewLoader(plugins.Default(), cfg.LoaderOptions(), logger)
//
// # Related Packages
//
//   - pkg/plugins: Consumes the plugin discovery settings
//   - pkg/observability: Logger and metrics
package config
