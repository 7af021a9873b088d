package plugins

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pluginhost/pkg/cli"
	"github.com/platinummonkey/pluginhost/pkg/observability"
)

// loaderFixture holds the directories and collaborators for one loader test
type loaderFixture struct {
	configDir string
	bundleDir string
	registry  *Registry
	commands  *cli.Command
	gems      *GemCatalog
	log       *logrus.Logger
	hook      *test.Hook
}

func newLoaderFixture(t *testing.T) *loaderFixture {
	t.Helper()

	log, hook := test.NewNullLogger()
	return &loaderFixture{
		configDir: t.TempDir(),
		bundleDir: t.TempDir(),
		registry:  NewRegistry(),
		commands:  cli.NewRootCommand(),
		gems:      NewGemCatalog(),
		log:       log,
		hook:      hook,
	}
}

func (f *loaderFixture) options() Options {
	return Options{
		ConfigDir: f.configDir,
		BundleDir: f.bundleDir,
		Commands:  f.commands,
		Gems:      f.gems,
	}
}

func (f *loaderFixture) writeConfig(t *testing.T, contents string) {
	t.Helper()
	writeConfigFile(t, f.configDir, contents)
}

func (f *loaderFixture) writeBundle(t *testing.T, file, source string) string {
	t.Helper()
	path := filepath.Join(f.bundleDir, file)
	writeFile(t, path, source)
	return path
}

func (f *loaderFixture) newLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader(f.registry, f.options(), f.log)
	require.NoError(t, err)
	return loader
}

func TestNewLoader_Defaults(t *testing.T) {
	t.Setenv(ConfigDirEnv, t.TempDir())

	loader, err := NewLoader(nil, Options{OmitBundles: true}, nil)
	require.NoError(t, err)

	assert.Same(t, Default(), loader.Registry())
	assert.NotNil(t, loader.log)
	assert.Equal(t, ConfigFilePath(DefaultConfigDir()), loader.ConfigFilePath())
	assert.Equal(t, DefaultBundleDir(), loader.Options().BundleDir)
	assert.NotNil(t, loader.Options().Commands)
	assert.Same(t, DefaultGems(), loader.Options().Gems)
}

func TestNewLoader_ConfigDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	writeConfigFile(t, dir, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-from-env", "installation_type": "gem"}
	]}`)

	registry := NewRegistry()
	loader, err := NewLoader(registry, Options{OmitBundles: true}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "plugins.json"), loader.ConfigFilePath())
	_, ok := registry.Get("inspec-from-env")
	assert.True(t, ok)
}

func TestNewLoader_MissingConfigFile(t *testing.T) {
	f := newLoaderFixture(t)
	opts := f.options()
	opts.OmitBundles = true

	loader, err := NewLoader(f.registry, opts, f.log)

	require.NoError(t, err)
	assert.NotNil(t, loader)
	assert.Equal(t, 0, f.registry.Len())
}

func TestNewLoader_RegistersConfigEntries(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{
  "plugins_config_version": "1.0.0",
  "plugins": [
    {"name": "inspec-test-fixture", "installation_type": "gem", "version": "0.1.0"},
    {"name": "inspec-meaning-of-life", "installation_type": "path", "installation_path": "/opt/meaning/init.lua"}
  ]
}`)

	f.newLoader(t)

	require.Equal(t, 2, f.registry.Len())
	assert.Equal(t, []Name{"inspec-test-fixture", "inspec-meaning-of-life"}, f.registry.Names())

	gem, ok := f.registry.Get("inspec-test-fixture")
	require.True(t, ok)
	assert.Equal(t, InstallationTypeGem, gem.InstallationType)
	assert.Equal(t, "inspec-test-fixture", gem.EntryPoint)
	assert.Equal(t, "0.1.0", gem.Version)
	assert.False(t, gem.Loaded)

	path, ok := f.registry.Get("inspec-meaning-of-life")
	require.True(t, ok)
	assert.Equal(t, InstallationTypePath, path.InstallationType)
	assert.Equal(t, "/opt/meaning/init.lua", path.EntryPoint)
}

func TestNewLoader_ConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  error
		errMsg   string
	}{
		{
			name:     "unsupported version",
			contents: `{"plugins_config_version": "0.9.0", "plugins": [{"name": "a", "installation_type": "gem"}]}`,
			wantErr:  ErrUnsupportedConfigVersion,
			errMsg:   "0.9.0",
		},
		{
			name:     "missing version",
			contents: `{"plugins": [{"name": "a", "installation_type": "gem"}]}`,
			wantErr:  ErrUnsupportedConfigVersion,
		},
		{
			name:     "invalid JSON",
			contents: `{"plugins_config_version": "1.0.0",`,
			errMsg:   "failed to parse JSON",
		},
		{
			name:     "unknown installation type",
			contents: `{"plugins_config_version": "1.0.0", "plugins": [{"name": "a", "installation_type": "gem"}, {"name": "b", "installation_type": "git"}]}`,
			wantErr:  ErrUnknownInstallationType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoaderFixture(t)
			f.writeConfig(t, tt.contents)
			f.writeBundle(t, "inspec-habitat.lua", "")

			loader, err := NewLoader(f.registry, f.options(), f.log)

			assert.Nil(t, loader)
			var configErr *ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, ConfigFilePath(f.configDir), configErr.Path)
			assert.Contains(t, err.Error(), ConfigFilePath(f.configDir))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			assert.Equal(t, 0, f.registry.Len(), "nothing may be registered from a rejected file")
		})
	}
}

func TestNewLoader_RegistersBundles(t *testing.T) {
	f := newLoaderFixture(t)
	fooPath := f.writeBundle(t, "inspec-foo.lua", "")
	barPath := f.writeBundle(t, "train-bar.lua", "")

	f.newLoader(t)

	foo, ok := f.registry.Get("foo")
	require.True(t, ok)
	assert.Equal(t, InstallationTypeBundle, foo.InstallationType)
	assert.Equal(t, fooPath, foo.EntryPoint)
	assert.False(t, foo.Loaded)

	bar, ok := f.registry.Get("bar")
	require.True(t, ok)
	assert.Equal(t, InstallationTypeBundle, bar.InstallationType)
	assert.Equal(t, barPath, bar.EntryPoint)
}

func TestNewLoader_BundleOverridesConfig(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "habitat", "installation_type": "gem", "version": "1.0.0"},
		{"name": "other", "installation_type": "gem"}
	]}`)
	bundlePath := f.writeBundle(t, "inspec-habitat.lua", "")

	f.newLoader(t)

	assert.Equal(t, 2, f.registry.Len())
	status, ok := f.registry.Get("habitat")
	require.True(t, ok)
	assert.Equal(t, InstallationTypeBundle, status.InstallationType)
	assert.Equal(t, bundlePath, status.EntryPoint)
	assert.Empty(t, status.Version)
	assert.Equal(t, []Name{"habitat", "other"}, f.registry.Names())
}

func TestNewLoader_OmitBundles(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-habitat.lua", "")
	opts := f.options()
	opts.OmitBundles = true

	_, err := NewLoader(f.registry, opts, f.log)

	require.NoError(t, err)
	assert.Equal(t, 0, f.registry.Len())
}

func TestNewLoader_RecordsRegisteredMetric(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-a.lua", "")
	f.writeBundle(t, "inspec-b.lua", "")
	opts := f.options()
	opts.Metrics = observability.NewPluginMetrics(prometheus.NewRegistry())

	_, err := NewLoader(f.registry, opts, f.log)

	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(opts.Metrics.PluginsRegistered))
}

func TestLoadAll_BundlesAnnotated(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-habitat.lua", `cli.subcommand("habitat", "Habitat artifacts", function(args) end)`)
	f.writeBundle(t, "train-quiet.lua", `local loaded = true`)

	loader := f.newLoader(t)
	require.NoError(t, loader.LoadAll(context.Background()))

	habitat, _ := f.registry.Get("habitat")
	assert.True(t, habitat.Loaded)
	assert.Nil(t, habitat.LoadException)
	assert.Equal(t, Generation0, habitat.APIGeneration)
	assert.Equal(t, []PluginType{PluginTypeCLI}, habitat.PluginTypes)
	cmd, ok := f.commands.Lookup("habitat")
	require.True(t, ok)
	assert.Same(t, cmd, habitat.PluginClass)

	quiet, _ := f.registry.Get("quiet")
	assert.True(t, quiet.Loaded)
	assert.Equal(t, Generation0, quiet.APIGeneration)
	assert.Nil(t, quiet.PluginClass)
}

func TestLoadAll_FailureIsolation(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-missing-gem", "installation_type": "gem", "version": "0.1.0"},
		{"name": "inspec-missing-path", "installation_type": "path", "installation_path": "/nonexistent/init.lua"},
		{"name": "inspec-fixture", "installation_type": "gem"}
	]}`)
	require.NoError(t, f.gems.Register("inspec-fixture", func() GemPlugin {
		return &fakeGem{generation: Generation2, types: []PluginType{PluginTypeCLI}}
	}))
	f.writeBundle(t, "inspec-broken.lua", `
cli.subcommand("broken", "", function(args) end)
error("bad bundle")
`)
	f.writeBundle(t, "inspec-habitat.lua", `cli.subcommand("habitat", "", function(args) end)`)
	opts := f.options()
	opts.Metrics = observability.NewPluginMetrics(prometheus.NewRegistry())

	loader, err := NewLoader(f.registry, opts, f.log)
	require.NoError(t, err)
	require.NoError(t, loader.LoadAll(context.Background()))

	for _, name := range []Name{"inspec-missing-gem", "inspec-missing-path"} {
		status, _ := f.registry.Get(name)
		assert.False(t, status.Loaded, name)
		require.Error(t, status.LoadException, name)
		assert.ErrorIs(t, status.LoadException, ErrEntryPointNotFound, name)

		var loadErr *LoadError
		require.ErrorAs(t, status.LoadException, &loadErr)
		assert.Equal(t, name, loadErr.Name)
		assert.Equal(t, status.EntryPoint, loadErr.Path)
	}

	broken, _ := f.registry.Get("broken")
	assert.False(t, broken.Loaded)
	assert.Error(t, broken.LoadException)
	assert.Equal(t, GenerationUnset, broken.APIGeneration)

	fixture, _ := f.registry.Get("inspec-fixture")
	assert.True(t, fixture.Loaded)
	assert.Equal(t, Generation2, fixture.APIGeneration)
	assert.Equal(t, []PluginType{PluginTypeCLI}, fixture.PluginTypes)
	assert.Nil(t, fixture.PluginClass)

	habitat, _ := f.registry.Get("habitat")
	assert.True(t, habitat.Loaded)
	assert.Equal(t, Generation0, habitat.APIGeneration)

	// Failed plugins leave nothing behind in the subcommand table
	_, ok := f.commands.Lookup("broken")
	assert.False(t, ok)
	assert.Nil(t, broken.PluginClass)
	assert.Equal(t, []string{"habitat"}, f.commands.SubcommandNames())

	// One error-level entry per failed plugin
	var messages []string
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			messages = append(messages, entry.Message)
		}
	}
	assert.Equal(t, []string{
		"Could not load plugin inspec-missing-gem at inspec-missing-gem",
		"Could not load plugin inspec-missing-path at /nonexistent/init.lua",
		"Could not load plugin broken at " + filepath.Join(f.bundleDir, "inspec-broken.lua"),
	}, messages)

	expected := `
		# HELP inspec_plugin_loads_total Total number of plugin load attempts
		# TYPE inspec_plugin_loads_total counter
		inspec_plugin_loads_total{installation_type="bundle",outcome="failure"} 1
		inspec_plugin_loads_total{installation_type="bundle",outcome="success"} 1
		inspec_plugin_loads_total{installation_type="gem",outcome="failure"} 1
		inspec_plugin_loads_total{installation_type="gem",outcome="success"} 1
		inspec_plugin_loads_total{installation_type="path",outcome="failure"} 1
	`
	assert.NoError(t, testutil.CollectAndCompare(opts.Metrics.LoadsTotal, strings.NewReader(expected)))
}

func TestLoadAll_AllFail(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "a", "installation_type": "gem"},
		{"name": "b", "installation_type": "gem"}
	]}`)

	loader := f.newLoader(t)

	require.NoError(t, loader.LoadAll(context.Background()))
	for _, status := range f.registry.Statuses() {
		assert.False(t, status.Loaded)
		assert.Error(t, status.LoadException)
	}
	assert.Len(t, f.hook.AllEntries(), 2)
}

func TestLoadAll_LogFields(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-missing", "installation_type": "path", "installation_path": "/nope"}
	]}`)

	loader := f.newLoader(t)
	require.NoError(t, loader.LoadAll(context.Background()))

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, Name("inspec-missing"), entry.Data["plugin"])
	assert.Equal(t, InstallationTypePath, entry.Data["installation_type"])
	assert.Equal(t, "/nope", entry.Data["entry_point"])
	assert.Error(t, entry.Data[logrus.ErrorKey].(error))
}

func TestLoadAll_SelfDescribingBundleSkipsAnnotation(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-modern.lua", `
Plugin = { api_generation = 2, plugin_types = { "reporter" } }
cli.subcommand("modern", "", function(args) end)
`)

	loader := f.newLoader(t)
	require.NoError(t, loader.LoadAll(context.Background()))

	status, _ := f.registry.Get("modern")
	assert.True(t, status.Loaded)
	assert.Equal(t, Generation2, status.APIGeneration)
	assert.Equal(t, []PluginType{"reporter"}, status.PluginTypes)
	assert.Nil(t, status.PluginClass)
}

func TestLoadAll_AnnotationInconsistency(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-legacy", "installation_type": "gem"},
		{"name": "inspec-after", "installation_type": "gem"}
	]}`)
	require.NoError(t, f.gems.Register("inspec-legacy", func() GemPlugin {
		return &fakeGem{generation: Generation1}
	}))
	after := &fakeGem{generation: Generation2}
	require.NoError(t, f.gems.Register("inspec-after", func() GemPlugin { return after }))

	loader := f.newLoader(t)
	err := loader.LoadAll(context.Background())

	require.ErrorIs(t, err, ErrAnnotationInconsistency)
	var annotationErr *AnnotationError
	require.ErrorAs(t, err, &annotationErr)
	assert.Equal(t, Name("inspec-legacy"), annotationErr.Name)
	assert.Equal(t, InstallationTypeGem, annotationErr.InstallationType)

	legacy, _ := f.registry.Get("inspec-legacy")
	assert.True(t, legacy.Loaded)
	assert.False(t, after.activated, "loading stops at the inconsistent plugin")
}

func TestLoadAll_StrategyOverride(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-stub", "installation_type": "path", "installation_path": "/virtual"}
	]}`)

	var seen []string
	opts := f.options()
	opts.Strategies = Strategies{
		InstallationTypePath: EntryPointLoaderFunc(func(ctx context.Context, status *Status) (*Activation, error) {
			seen = append(seen, status.EntryPoint)
			return &Activation{APIGeneration: Generation2}, nil
		}),
	}

	loader, err := NewLoader(f.registry, opts, f.log)
	require.NoError(t, err)
	require.NoError(t, loader.LoadAll(context.Background()))

	assert.Equal(t, []string{"/virtual"}, seen)
	status, _ := f.registry.Get("inspec-stub")
	assert.True(t, status.Loaded)
}

func TestLoadAll_MissingStrategy(t *testing.T) {
	f := newLoaderFixture(t)
	loader := f.newLoader(t)
	f.registry.Set("odd", NewStatus("odd", InstallationType("git")))

	require.NoError(t, loader.LoadAll(context.Background()))

	status, _ := f.registry.Get("odd")
	assert.False(t, status.Loaded)
	assert.ErrorIs(t, status.LoadException, ErrNoStrategy)
}

func TestLoadAll_ContextCanceled(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-habitat.lua", "")
	loader := f.newLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loader.LoadAll(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	status, _ := f.registry.Get("habitat")
	assert.False(t, status.Loaded)
	assert.Nil(t, status.LoadException)
}

func TestLoadAll_ReloadClearsException(t *testing.T) {
	f := newLoaderFixture(t)
	path := f.writeBundle(t, "inspec-flaky.lua", `error("not yet")`)
	loader := f.newLoader(t)

	require.NoError(t, loader.LoadAll(context.Background()))
	status, _ := f.registry.Get("flaky")
	require.Error(t, status.LoadException)

	writeFile(t, path, `local ok = true`)
	require.NoError(t, loader.LoadAll(context.Background()))

	assert.True(t, status.Loaded)
	assert.Nil(t, status.LoadException)
}

func TestLoadAll_PanicContained(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeConfig(t, `{"plugins_config_version": "1.0.0", "plugins": [
		{"name": "inspec-panics", "installation_type": "gem"},
		{"name": "inspec-fine", "installation_type": "gem"}
	]}`)
	require.NoError(t, f.gems.Register("inspec-panics", func() GemPlugin { panic("bad init") }))
	require.NoError(t, f.gems.Register("inspec-fine", func() GemPlugin {
		return &fakeGem{generation: Generation2}
	}))

	loader := f.newLoader(t)
	require.NoError(t, loader.LoadAll(context.Background()))

	panics, _ := f.registry.Get("inspec-panics")
	assert.False(t, panics.Loaded)
	require.Error(t, panics.LoadException)
	assert.Contains(t, panics.LoadException.Error(), "panic: bad init")

	fine, _ := f.registry.Get("inspec-fine")
	assert.True(t, fine.Loaded)
}

func TestLoadAll_FailedBundleNotDispatchable(t *testing.T) {
	f := newLoaderFixture(t)
	f.writeBundle(t, "inspec-broken.lua", `
cli.subcommand("broken", "", function(args) end)
error("bad bundle")
`)

	loader := f.newLoader(t)
	require.NoError(t, loader.LoadAll(context.Background()))

	status, _ := f.registry.Get("broken")
	assert.False(t, status.Loaded)
	_, ok := f.commands.Lookup("broken")
	assert.False(t, ok)

	err := f.commands.Execute([]string{"broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: broken")
}
