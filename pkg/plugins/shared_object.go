package plugins

import (
	"fmt"
	goplugin "plugin"
)

// sharedObjectSymbol is the symbol a Go plugin must export
const sharedObjectSymbol = "Plugin"

// openSharedObject loads a Go plugin built with -buildmode=plugin and
// returns its exported GemPlugin.
func openSharedObject(path string) (GemPlugin, error) {
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}

	symbol, err := so.Lookup(sharedObjectSymbol)
	if err != nil {
		return nil, err
	}

	return gemFromSymbol(symbol)
}

// gemFromSymbol accepts a GemPlugin value, a pointer to one, or a factory
func gemFromSymbol(symbol any) (GemPlugin, error) {
	switch p := symbol.(type) {
	case GemPlugin:
		return p, nil
	case *GemPlugin:
		if p == nil || *p == nil {
			return nil, fmt.Errorf("%w: %s symbol is nil", ErrInvalidGemPlugin, sharedObjectSymbol)
		}
		return *p, nil
	case func() GemPlugin:
		if plugin := p(); plugin != nil {
			return plugin, nil
		}
		return nil, fmt.Errorf("%w: %s factory returned nil", ErrInvalidGemPlugin, sharedObjectSymbol)
	default:
		return nil, fmt.Errorf("%w: %s symbol has type %T", ErrInvalidGemPlugin, sharedObjectSymbol, symbol)
	}
}
