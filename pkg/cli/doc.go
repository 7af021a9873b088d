// Package cli provides the command table of the inspec host binary.
//
// # Overview
//
// A Command owns a table of named subcommands. The root command is created at
// startup, and bundled plugins add their subcommands to it while they load:
//
//	root := cli.NewRootCommand()
//	root.AddSubcommand(&cli.Command{
//		Name:        "habitat",
//		Description: "Create and upload Habitat artifacts",
//		Run:         runHabitat,
//	})
//
// The plugin loader later resolves a bundled plugin's implementation by
// looking its name up in the same table:
//
//	cmd, ok := root.Lookup("habitat")
//
// # Dispatch
//
// Execute takes the arguments without the program name. The first argument
// selects a subcommand; -h and --help print usage. A command with a Run
// function and no matching subcommand receives the arguments itself.
//
// # Related Packages
//
//   - pkg/plugins: Registers the `plugin` command and consults the table during annotation
//   - pkg/plugins/script: Registers subcommands declared by Lua bundles
package cli
