package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// BundleFileExt is the suffix of bundled plugin loader files
	BundleFileExt = ".lua"

	// bundlePattern matches inspec-*.lua and train-*.lua
	bundlePattern = "{inspec,train}-*" + BundleFileExt
)

// bundlePrefixes are stripped from bundle file names to derive plugin names
var bundlePrefixes = []string{"inspec-", "train-"}

// DefaultBundleDir returns the bundles directory next to the running executable
func DefaultBundleDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "bundles"
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Join(filepath.Dir(exe), "bundles")
}

// ScanBundles finds bundled plugins in dir, sorted by path. A missing
// directory yields no bundles.
func ScanBundles(dir string) ([]*Status, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), bundlePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan bundle directory %s: %w", dir, err)
	}
	slices.Sort(matches)

	statuses := make([]*Status, 0, len(matches))
	for _, match := range matches {
		status := NewStatus(BundlePluginName(match), InstallationTypeBundle)
		status.EntryPoint = filepath.Join(dir, filepath.FromSlash(match))
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// BundlePluginName derives a plugin name from a bundle loader file name:
// inspec-habitat.lua becomes habitat.
func BundlePluginName(file string) Name {
	base := strings.TrimSuffix(filepath.Base(file), BundleFileExt)
	for _, prefix := range bundlePrefixes {
		if trimmed, ok := strings.CutPrefix(base, prefix); ok {
			return Name(trimmed)
		}
	}
	return Name(base)
}
