package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// ConfigDirEnv overrides the directory holding plugins.json
	ConfigDirEnv = "INSPEC_CONFIG_DIR"

	// ConfigFileName is the name of the plugins configuration file
	ConfigFileName = "plugins.json"

	// SupportedConfigVersion is the only plugins_config_version understood
	SupportedConfigVersion = "1.0.0"
)

// ConfigFile is the decoded form of plugins.json
type ConfigFile struct {
	PluginsConfigVersion string        `json:"plugins_config_version"`
	Plugins              []ConfigEntry `json:"plugins"`
}

// ConfigEntry describes one installed plugin in plugins.json
type ConfigEntry struct {
	Name             string `json:"name"`
	InstallationType string `json:"installation_type"`
	Version          string `json:"version,omitempty"`
	InstallationPath string `json:"installation_path,omitempty"`
}

// DefaultConfigFile returns the configuration used when plugins.json does not exist
func DefaultConfigFile() *ConfigFile {
	return &ConfigFile{
		PluginsConfigVersion: SupportedConfigVersion,
		Plugins:              []ConfigEntry{},
	}
}

// DefaultConfigDir returns $INSPEC_CONFIG_DIR, falling back to ~/.inspec
func DefaultConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}

	return filepath.Join(homeDir, ".inspec")
}

// ConfigFilePath returns the plugins.json path inside dir
func ConfigFilePath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// ReadConfigFile reads and decodes plugins.json. A missing file yields the
// default configuration; read and parse failures are *ConfigError.
func ReadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfigFile(), nil
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}

	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}

	return &cfg, nil
}

// Validate checks the schema version and every entry. path is only used in
// the returned *ConfigError.
func (c *ConfigFile) Validate(path string) error {
	if c.PluginsConfigVersion != SupportedConfigVersion {
		return &ConfigError{
			Path:    path,
			Version: c.PluginsConfigVersion,
			Err: fmt.Errorf("%w %q - currently support versions: %s",
				ErrUnsupportedConfigVersion, c.PluginsConfigVersion, SupportedConfigVersion),
		}
	}

	for i, entry := range c.Plugins {
		if entry.Name == "" {
			return &ConfigError{Path: path, Version: c.PluginsConfigVersion, Err: fmt.Errorf("plugin entry %d: name is required", i)}
		}
		if _, err := ParseInstallationType(entry.InstallationType); err != nil {
			return &ConfigError{Path: path, Version: c.PluginsConfigVersion, Err: fmt.Errorf("plugin %s: %w", entry.Name, err)}
		}
	}

	return nil
}

// Statuses converts the entries into unloaded statuses, in file order.
// The file must have passed Validate.
func (c *ConfigFile) Statuses() []*Status {
	statuses := make([]*Status, 0, len(c.Plugins))
	for _, entry := range c.Plugins {
		statuses = append(statuses, entry.Status())
	}
	return statuses
}

// Status converts a single entry. Gem plugins load by their own name;
// path plugins load from installation_path.
func (e ConfigEntry) Status() *Status {
	status := NewStatus(Name(e.Name), InstallationType(e.InstallationType))

	switch status.InstallationType {
	case InstallationTypeGem:
		status.EntryPoint = e.Name
		status.Version = e.Version
	case InstallationTypePath:
		status.EntryPoint = e.InstallationPath
	}

	return status
}
