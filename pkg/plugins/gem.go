package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/pluginhost/pkg/cli"
)

// GemPlugin is a plugin compiled into the host binary or built as a Go
// shared object. It describes its own API contract. Activate receives a
// table to add its subcommands to; nothing it adds survives a failed
// activation.
type GemPlugin interface {
	APIGeneration() APIGeneration
	PluginTypes() []PluginType
	Activate(ctx context.Context, commands *cli.Command) error
}

// GemFactory creates a GemPlugin
type GemFactory func() GemPlugin

// GemCatalog maps gem names to the factories linked into the binary
type GemCatalog struct {
	mu        sync.RWMutex
	factories map[string]GemFactory
}

// NewGemCatalog creates an empty catalog
func NewGemCatalog() *GemCatalog {
	return &GemCatalog{
		factories: make(map[string]GemFactory),
	}
}

// defaultGems holds the gems registered from init functions
var defaultGems = NewGemCatalog()

// DefaultGems returns the catalog populated by RegisterGem
func DefaultGems() *GemCatalog {
	return defaultGems
}

// RegisterGem makes a compiled-in plugin available under name. It is meant
// to be called from init and panics on nil factories or duplicate names.
func RegisterGem(name string, factory GemFactory) {
	if err := defaultGems.Register(name, factory); err != nil {
		panic(err)
	}
}

// Register adds a factory to the catalog
func (c *GemCatalog) Register(name string, factory GemFactory) error {
	if factory == nil {
		return fmt.Errorf("cannot register nil gem factory: %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("gem already registered: %s", name)
	}

	c.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name
func (c *GemCatalog) Lookup(name string) (GemFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, exists := c.factories[name]
	return factory, exists
}

// GemLoader resolves gem entry points through a GemCatalog
type GemLoader struct {
	Catalog  *GemCatalog
	Commands *cli.Command
}

// Load implements EntryPointLoader
func (l *GemLoader) Load(ctx context.Context, status *Status) (*Activation, error) {
	catalog := l.Catalog
	if catalog == nil {
		catalog = defaultGems
	}

	factory, ok := catalog.Lookup(status.EntryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: gem %s is not linked into this binary", ErrEntryPointNotFound, status.EntryPoint)
	}

	plugin := factory()
	if plugin == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrInvalidGemPlugin, status.EntryPoint)
	}

	return activateGem(ctx, plugin, l.Commands)
}

// activateGem runs a gem plugin's activation hook and reports its contract.
// Activate registers into a staging table; its subcommands are copied to
// commands only when activation succeeds.
func activateGem(ctx context.Context, plugin GemPlugin, commands *cli.Command) (*Activation, error) {
	staging := cli.NewCommand("activate", "")
	if err := plugin.Activate(ctx, staging); err != nil {
		return nil, fmt.Errorf("failed to activate plugin: %w", err)
	}

	if commands != nil {
		for _, name := range staging.SubcommandNames() {
			if cmd, ok := staging.Lookup(name); ok {
				commands.AddSubcommand(cmd)
			}
		}
	}

	return &Activation{
		APIGeneration:  plugin.APIGeneration(),
		PluginTypes:    plugin.PluginTypes(),
		Implementation: plugin,
	}, nil
}
