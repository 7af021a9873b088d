// Package script runs Lua plugin entry points.
//
// Bundled plugins and path-installed .lua plugins are executed in a
// gopher-lua state with only the base, table, string and math libraries.
// A script can register CLI subcommands and may describe itself through a
// global Plugin table:
//
//	Plugin = {
//		name = "habitat",
//		version = "0.1.0",
//		api_generation = 2,
//		plugin_types = { "cli" },
//	}
//
//	cli.subcommand("habitat", "Create Habitat artifacts", function(args)
//		print("packaging " .. (args[1] or "profile"))
//	end)
//
// A subcommand function may return a string to report a failure. Subcommands
// are handed to the Registrar only after the script and its Plugin table
// were accepted.
//
// The state stays open after Run returns because registered subcommands call
// back into it. It is not goroutine-safe; calls are serialized by the Plugin.
package script
