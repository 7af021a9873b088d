// Package plugins discovers, registers and loads InSpec plugins.
//
// # Overview
//
// Discovery fills a Registry with one Status per plugin. Loading then
// activates each plugin through the loader for its installation type and
// records the outcome on the Status.
//
// # Discovery
//
// plugins.json: Read from $INSPEC_CONFIG_DIR or ~/.inspec. A missing file means
// no configured plugins; an unsupported plugins_config_version is a *ConfigError.
// Bundles: inspec-*.lua and train-*.lua files in the bundle directory. A bundle
// replaces a configured plugin of the same name.
//
// # Installation Types
//
// gem: Compiled into the binary and registered with RegisterGem
// path: A Lua script, a directory containing init.lua, or a Go .so file
// bundle: A Lua script shipped next to the executable
//
// # Annotation
//
// Generation-2 plugins report their own API generation and plugin types.
// Every other plugin that loads must be a bundle; it is marked generation 0
// with plugin type cli, and its PluginClass is the CLI subcommand named after
// it. Anything else stops LoadAll with an *AnnotationError.
//
// # Usage Example
//
//	root := cli.NewRootCommand()
//	loader, err := plugins.NewLoader(plugins.Default(), plugins.Options{Commands: root}, log)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := loader.LoadAll(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	for name, status := range loader.Registry().All() {
//		fmt.Printf("%s loaded=%t generation=%s\n", name, status.Loaded, status.APIGeneration)
//	}
//
// # Related Packages
//
//   - pkg/plugins/script: Lua runtime for bundle and path plugins
//   - pkg/cli: Subcommand table plugins register into
//   - pkg/observability: Load metrics
package plugins
