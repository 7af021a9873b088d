package plugins

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginhost/pkg/cli"
	"github.com/platinummonkey/pluginhost/pkg/observability"
)

// Options configures a Loader
type Options struct {
	// ConfigDir holds plugins.json. Defaults to DefaultConfigDir().
	ConfigDir string

	// BundleDir is scanned for bundled plugins. Defaults to DefaultBundleDir().
	BundleDir string

	// OmitBundles skips the bundle scan.
	OmitBundles bool

	// Commands is the CLI subcommand table plugins register into and that
	// annotation consults.
	Commands *cli.Command

	// Gems resolves gem entry points. Defaults to DefaultGems().
	Gems *GemCatalog

	// Strategies overrides the entry point loader for individual installation types.
	Strategies Strategies

	// Metrics records load outcomes when set.
	Metrics *observability.PluginMetrics
}

// Loader discovers plugins into a Registry and loads them
type Loader struct {
	registry       *Registry
	options        Options
	configFilePath string
	strategies     Strategies
	log            *logrus.Logger
}

// NewLoader creates a loader and runs discovery: plugins.json entries are
// registered first, then bundled plugins, so a bundle replaces a config
// entry of the same name. A *ConfigError aborts construction before
// anything is registered.
func NewLoader(registry *Registry, opts Options, log *logrus.Logger) (*Loader, error) {
	if registry == nil {
		registry = Default()
	}
	if log == nil {
		log = logrus.New()
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir = DefaultConfigDir()
	}
	if opts.BundleDir == "" {
		opts.BundleDir = DefaultBundleDir()
	}
	if opts.Commands == nil {
		opts.Commands = cli.NewRootCommand()
	}
	if opts.Gems == nil {
		opts.Gems = DefaultGems()
	}

	strategies := DefaultStrategies(opts.Gems, opts.Commands)
	for installationType, loader := range opts.Strategies {
		strategies[installationType] = loader
	}

	l := &Loader{
		registry:       registry,
		options:        opts,
		configFilePath: ConfigFilePath(opts.ConfigDir),
		strategies:     strategies,
		log:            log,
	}

	if err := l.registerConfiguredPlugins(); err != nil {
		return nil, err
	}

	if !opts.OmitBundles {
		if err := l.registerBundledPlugins(); err != nil {
			return nil, err
		}
	}

	opts.Metrics.SetRegistered(registry.Len())

	return l, nil
}

// Registry returns the registry the loader populates
func (l *Loader) Registry() *Registry {
	return l.registry
}

// ConfigFilePath returns the plugins.json path used during discovery
func (l *Loader) ConfigFilePath() string {
	return l.configFilePath
}

// Options returns the resolved loader options
func (l *Loader) Options() Options {
	return l.options
}

// registerConfiguredPlugins reads, validates and unpacks plugins.json
func (l *Loader) registerConfiguredPlugins() error {
	cfg, err := ReadConfigFile(l.configFilePath)
	if err != nil {
		return err
	}

	if err := cfg.Validate(l.configFilePath); err != nil {
		return err
	}

	for _, status := range cfg.Statuses() {
		l.registry.Set(status.Name, status)
	}

	l.log.Debugf("Registered %d plugins from %s", len(cfg.Plugins), l.configFilePath)
	return nil
}

// registerBundledPlugins scans the bundle directory
func (l *Loader) registerBundledPlugins() error {
	statuses, err := ScanBundles(l.options.BundleDir)
	if err != nil {
		return err
	}

	for _, status := range statuses {
		l.registry.Set(status.Name, status)
	}

	l.log.Debugf("Registered %d bundled plugins from %s", len(statuses), l.options.BundleDir)
	return nil
}

// LoadAll loads every registered plugin in registry order. A plugin that
// fails to load gets a *LoadError in LoadException and is logged; the
// remaining plugins are still attempted. The returned error is either a
// context error or an *AnnotationError, which indicates a broken plugin
// contract and should be treated as fatal.
func (l *Loader) LoadAll(ctx context.Context) error {
	for name, status := range l.registry.All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		activation, err := l.loadEntryPoint(ctx, status)
		if err != nil {
			status.LoadException = &LoadError{Name: name, Path: status.EntryPoint, Err: err}
			status.Loaded = false
			l.options.Metrics.RecordLoad(string(status.InstallationType), observability.OutcomeFailure)
			l.log.WithFields(logrus.Fields{
				"plugin":            name,
				"installation_type": status.InstallationType,
				"entry_point":       status.EntryPoint,
			}).WithError(err).Errorf("Could not load plugin %s at %s", name, status.EntryPoint)
			continue
		}

		status.Loaded = true
		status.LoadException = nil
		if activation != nil && activation.APIGeneration == Generation2 {
			status.APIGeneration = Generation2
			status.PluginTypes = activation.PluginTypes
		}
		l.options.Metrics.RecordLoad(string(status.InstallationType), observability.OutcomeSuccess)

		if err := annotate(status, l.options.Commands); err != nil {
			return err
		}

		l.log.Debugf("Loaded plugin %s (type: %s, generation: %s)", name, status.InstallationType, status.APIGeneration)
	}

	return nil
}

// loadEntryPoint dispatches to the loader for the plugin's installation type.
// A panic inside plugin code is returned as an error.
func (l *Loader) loadEntryPoint(ctx context.Context, status *Status) (activation *Activation, err error) {
	loader, ok := l.strategies[status.InstallationType]
	if !ok || loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoStrategy, status.InstallationType)
	}

	defer func() {
		if r := recover(); r != nil {
			activation, err = nil, observability.MustRecover(r)
		}
	}()

	return loader.Load(ctx, status)
}
