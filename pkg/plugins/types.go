package plugins

import (
	"context"
	"fmt"
	"strconv"

	"github.com/platinummonkey/pluginhost/pkg/cli"
)

// Name identifies a plugin. It is the Registry key for every discovery source.
type Name string

func (n Name) String() string {
	return string(n)
}

// InstallationType defines how a plugin was obtained
type InstallationType string

const (
	InstallationTypeGem    InstallationType = "gem"    // compiled into the host binary
	InstallationTypePath   InstallationType = "path"   // explicit filesystem location
	InstallationTypeBundle InstallationType = "bundle" // shipped alongside the host binary
)

// ParseInstallationType converts a plugins.json installation_type value
func ParseInstallationType(s string) (InstallationType, error) {
	switch t := InstallationType(s); t {
	case InstallationTypeGem, InstallationTypePath, InstallationTypeBundle:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInstallationType, s)
	}
}

// APIGeneration is the version of the plugin contract a plugin implements
type APIGeneration int

const (
	GenerationUnset APIGeneration = -1
	Generation0     APIGeneration = 0
	Generation1     APIGeneration = 1
	Generation2     APIGeneration = 2
)

func (g APIGeneration) String() string {
	if g == GenerationUnset {
		return "unset"
	}
	return strconv.Itoa(int(g))
}

// PluginType is a capability tag
type PluginType string

const (
	PluginTypeCLI PluginType = "cli"
)

// Status describes one plugin's identity, provenance and load state.
//
// Discovery fills Name, EntryPoint, InstallationType and Version. LoadAll
// and annotation fill Loaded, LoadException, APIGeneration, PluginTypes and
// PluginClass.
type Status struct {
	Name             Name
	EntryPoint       string // gem name, filesystem path or bundle file
	InstallationType InstallationType
	Version          string // gem installations only
	Loaded           bool
	LoadException    error
	APIGeneration    APIGeneration
	PluginTypes      []PluginType
	PluginClass      *cli.Command // generation-0 bundles only
}

// NewStatus creates an unloaded status with an unknown API generation
func NewStatus(name Name, installationType InstallationType) *Status {
	return &Status{
		Name:             name,
		InstallationType: installationType,
		Loaded:           false,
		APIGeneration:    GenerationUnset,
	}
}

// Activation is what a loaded entry point reports about itself.
// Generation-2 plugins describe their own contract here.
type Activation struct {
	APIGeneration  APIGeneration
	PluginTypes    []PluginType
	Implementation any
}

// EntryPointLoader resolves and activates the code behind a Status.EntryPoint
type EntryPointLoader interface {
	Load(ctx context.Context, status *Status) (*Activation, error)
}

// EntryPointLoaderFunc adapts a function to EntryPointLoader
type EntryPointLoaderFunc func(ctx context.Context, status *Status) (*Activation, error)

// Load implements EntryPointLoader
func (f EntryPointLoaderFunc) Load(ctx context.Context, status *Status) (*Activation, error) {
	return f(ctx, status)
}

// SubcommandTable is the CLI table bundled plugins register into
type SubcommandTable interface {
	Lookup(name string) (*cli.Command, bool)
}
