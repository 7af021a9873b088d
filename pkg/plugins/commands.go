package plugins

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pluginhost/pkg/cli"
)

// Output formats accepted by `plugin list --format`
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// StatusView is the printable form of a Status
type StatusView struct {
	Name             string   `json:"name" yaml:"name"`
	InstallationType string   `json:"installation_type" yaml:"installation_type"`
	Version          string   `json:"version,omitempty" yaml:"version,omitempty"`
	EntryPoint       string   `json:"entry_point" yaml:"entry_point"`
	Loaded           bool     `json:"loaded" yaml:"loaded"`
	APIGeneration    string   `json:"api_generation" yaml:"api_generation"`
	PluginTypes      []string `json:"plugin_types,omitempty" yaml:"plugin_types,omitempty"`
	LoadError        string   `json:"load_error,omitempty" yaml:"load_error,omitempty"`
}

// NewStatusView converts a status for display
func NewStatusView(status *Status) StatusView {
	view := StatusView{
		Name:             string(status.Name),
		InstallationType: string(status.InstallationType),
		Version:          status.Version,
		EntryPoint:       status.EntryPoint,
		Loaded:           status.Loaded,
		APIGeneration:    status.APIGeneration.String(),
	}
	for _, t := range status.PluginTypes {
		view.PluginTypes = append(view.PluginTypes, string(t))
	}
	if status.LoadException != nil {
		view.LoadError = status.LoadException.Error()
	}
	return view
}

// NewPluginCommand creates the `plugin` command group for registry
func NewPluginCommand(registry *Registry) *cli.Command {
	cmd := cli.NewCommand("plugin", "Inspect installed plugins")
	cmd.AddSubcommand(newPluginListCommand(registry, os.Stdout))
	return cmd
}

func newPluginListCommand(registry *Registry, out io.Writer) *cli.Command {
	cmd := &cli.Command{
		Name:        "list",
		Description: "List discovered plugins and their load status",
		Flags:       flag.NewFlagSet("plugin list", flag.ContinueOnError),
	}

	format := cmd.Flags.String("format", FormatTable, "Output format: table, json or yaml")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return WriteStatuses(out, registry.Statuses(), *format)
	}

	return cmd
}

// WriteStatuses prints statuses in the requested format
func WriteStatuses(w io.Writer, statuses []*Status, format string) error {
	views := make([]StatusView, 0, len(statuses))
	for _, status := range statuses {
		views = append(views, NewStatusView(status))
	}

	switch format {
	case FormatTable, "":
		return writeStatusTable(w, views)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(views)
	default:
		return fmt.Errorf("unsupported format: %s (must be table, json, or yaml)", format)
	}
}

func writeStatusTable(w io.Writer, views []StatusView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tVERSION\tLOADED\tGENERATION\tPLUGIN TYPES")
	for _, view := range views {
		version := view.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			view.Name, view.InstallationType, version, view.Loaded,
			view.APIGeneration, strings.Join(view.PluginTypes, ","))
	}
	return tw.Flush()
}
