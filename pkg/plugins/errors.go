package plugins

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrEntryPointNotFound is returned when a plugin's entry point cannot be resolved.
	ErrEntryPointNotFound = errors.New("plugin entry point not found")

	// ErrUnknownInstallationType is returned for installation types outside gem, path and bundle.
	ErrUnknownInstallationType = errors.New("unknown installation type")

	// ErrUnsupportedConfigVersion is returned when plugins.json has an unsupported version.
	ErrUnsupportedConfigVersion = errors.New("unsupported plugins.json file version")

	// ErrAnnotationInconsistency is returned when a loaded plugin is neither
	// generation 2 nor a bundle, so its capabilities cannot be inferred.
	ErrAnnotationInconsistency = errors.New("plugin annotation inconsistency")

	// ErrInvalidGemPlugin is returned when a compiled plugin does not expose a usable GemPlugin.
	ErrInvalidGemPlugin = errors.New("invalid gem plugin")

	// ErrNoStrategy is returned when no entry point loader handles an installation type.
	ErrNoStrategy = errors.New("no entry point loader for installation type")
)

// ConfigError reports a plugins.json file that could not be used.
// It is fatal to Loader construction. Version is the file's
// plugins_config_version when the file could be decoded.
type ConfigError struct {
	Path    string
	Version string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("failed to load plugins configuration from %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadError records why a single plugin failed to load. It is stored on
// Status.LoadException and never returned from LoadAll.
type LoadError struct {
	Name Name
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load plugin %s at %s: %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// AnnotationError reports a loaded plugin whose state the annotator does not handle
type AnnotationError struct {
	Name             Name
	InstallationType InstallationType
	APIGeneration    APIGeneration
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("%v: only bundle plugins can be annotated after load, plugin %s has installation type %s and API generation %s",
		ErrAnnotationInconsistency, e.Name, e.InstallationType, e.APIGeneration)
}

func (e *AnnotationError) Unwrap() error {
	return ErrAnnotationInconsistency
}
