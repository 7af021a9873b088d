package plugins

import (
	"strings"
)

// v0SubcommandPrefix is stripped from a bundle's name to find its CLI subcommand
const v0SubcommandPrefix = "inspec-"

// annotate fills in the API contract of a plugin that just loaded.
// Generation-2 plugins describe themselves and are left alone. Every other
// plugin is expected to be a generation-0 CLI bundle; anything else is an
// *AnnotationError.
func annotate(status *Status, commands SubcommandTable) error {
	if status.APIGeneration == Generation2 {
		return nil
	}

	switch status.InstallationType {
	case InstallationTypeBundle:
		annotateBundle(status, commands)
		return nil
	default:
		return &AnnotationError{
			Name:             status.Name,
			InstallationType: status.InstallationType,
			APIGeneration:    status.APIGeneration,
		}
	}
}

// annotateBundle marks a bundle as a generation-0 CLI plugin and resolves
// its implementation from the subcommand table.
func annotateBundle(status *Status, commands SubcommandTable) {
	status.APIGeneration = Generation0
	status.PluginTypes = []PluginType{PluginTypeCLI}
	status.PluginClass = nil

	if commands == nil {
		return
	}

	key := strings.TrimPrefix(string(status.Name), v0SubcommandPrefix)
	if cmd, ok := commands.Lookup(key); ok {
		status.PluginClass = cmd
	}
}
