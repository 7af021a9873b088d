package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/platinummonkey/pluginhost/pkg/cli"
	"github.com/platinummonkey/pluginhost/pkg/plugins/script"
)

// scriptInitFile is loaded when a path installation points at a directory
const scriptInitFile = "init.lua"

// Strategies maps each installation type to the loader that resolves its entry points
type Strategies map[InstallationType]EntryPointLoader

// DefaultStrategies returns the built-in loaders. Bundles and path plugins
// register their subcommands with commands.
func DefaultStrategies(gems *GemCatalog, commands *cli.Command) Strategies {
	scripts := &ScriptLoader{Commands: commands}
	return Strategies{
		InstallationTypeGem:    &GemLoader{Catalog: gems, Commands: commands},
		InstallationTypePath:   &PathLoader{Scripts: scripts, Commands: commands},
		InstallationTypeBundle: scripts,
	}
}

// ScriptLoader runs Lua entry points
type ScriptLoader struct {
	Commands *cli.Command
}

// Load implements EntryPointLoader
func (l *ScriptLoader) Load(ctx context.Context, status *Status) (*Activation, error) {
	var registrar script.Registrar
	if l.Commands != nil {
		registrar = l.Commands
	}

	p, err := script.Run(status.EntryPoint, registrar)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, status.EntryPoint)
	}
	if err != nil {
		return nil, err
	}

	activation := &Activation{
		APIGeneration:  APIGeneration(p.APIGeneration),
		Implementation: p,
	}
	for _, t := range p.PluginTypes {
		activation.PluginTypes = append(activation.PluginTypes, PluginType(t))
	}

	return activation, nil
}

// PathLoader resolves filesystem entry points: Go shared objects (.so),
// Lua files, or directories containing init.lua.
type PathLoader struct {
	Scripts  *ScriptLoader
	Commands *cli.Command
}

// Load implements EntryPointLoader
func (l *PathLoader) Load(ctx context.Context, status *Status) (*Activation, error) {
	path := status.EntryPoint
	if path == "" {
		return nil, fmt.Errorf("%w: no installation path", ErrEntryPointNotFound)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat entry point: %w", err)
	}

	if info.IsDir() {
		path = filepath.Join(path, scriptInitFile)
	}

	switch filepath.Ext(path) {
	case ".so":
		plugin, err := openSharedObject(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open shared object %s: %w", path, err)
		}
		return activateGem(ctx, plugin, l.Commands)
	case BundleFileExt:
		scripts := l.Scripts
		if scripts == nil {
			scripts = &ScriptLoader{Commands: l.Commands}
		}
		resolved := *status
		resolved.EntryPoint = path
		return scripts.Load(ctx, &resolved)
	default:
		return nil, fmt.Errorf("unsupported entry point %s (expected .so, .lua or a directory with %s)", path, scriptInitFile)
	}
}
