package script

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/platinummonkey/pluginhost/pkg/cli"
)

// NoGeneration is reported when a script does not declare api_generation
const NoGeneration = -1

// MaxGeneration is the newest api_generation a script may declare
const MaxGeneration = 2

// ErrClosed is returned when calling into a closed script
var ErrClosed = errors.New("script state is closed")

// Registrar receives the subcommands a script declares
type Registrar interface {
	AddSubcommand(cmd *cli.Command)
}

// Plugin is an executed Lua entry point
type Plugin struct {
	Path          string
	Name          string
	Version       string
	APIGeneration int
	PluginTypes   []string
	Subcommands   []*cli.Command

	L      *lua.LState
	mu     sync.Mutex
	closed bool
}

// Run executes the script at path, registering its subcommands with commands
func Run(path string, commands Registrar) (*Plugin, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)

	p := &Plugin{
		Path:          path,
		APIGeneration: NoGeneration,
		L:             L,
	}

	mod := L.NewTable()
	L.SetField(mod, "subcommand", L.NewFunction(func(L *lua.LState) int {
		cmd := p.newSubcommand(L.CheckString(1), L.OptString(2, ""), L.CheckFunction(3))
		p.Subcommands = append(p.Subcommands, cmd)
		return 0
	}))
	L.SetGlobal("cli", mod)

	if err := p.doFile(path); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to execute %s: %w", path, err)
	}

	if err := p.readManifest(); err != nil {
		p.Close()
		return nil, fmt.Errorf("invalid Plugin table in %s: %w", path, err)
	}

	// Subcommands become visible only once the whole script succeeded
	if commands != nil {
		for _, cmd := range p.Subcommands {
			commands.AddSubcommand(cmd)
		}
	}

	return p, nil
}

// Close releases the Lua state. Subcommands registered by the script fail afterwards.
func (p *Plugin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.L.Close()
}

func (p *Plugin) doFile(path string) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return p.L.DoFile(path)
}

// newSubcommand wraps a Lua function as a CLI command
func (p *Plugin) newSubcommand(name, description string, fn *lua.LFunction) *cli.Command {
	return &cli.Command{
		Name:        name,
		Description: description,
		Run: func(args []string) error {
			return p.call(name, fn, args)
		},
	}
}

func (p *Plugin) call(name string, fn *lua.LFunction, args []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	argv := p.L.NewTable()
	for _, arg := range args {
		argv.Append(lua.LString(arg))
	}

	if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, argv); err != nil {
		return fmt.Errorf("subcommand %s failed: %w", name, err)
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)

	if msg, ok := ret.(lua.LString); ok && msg != "" {
		return fmt.Errorf("subcommand %s failed: %s", name, string(msg))
	}
	return nil
}

// readManifest reads the optional global Plugin table
func (p *Plugin) readManifest() error {
	value := p.L.GetGlobal("Plugin")
	if value == lua.LNil {
		return nil
	}

	tbl, ok := value.(*lua.LTable)
	if !ok {
		return fmt.Errorf("Plugin must be a table, got %s", value.Type())
	}

	if name := tbl.RawGetString("name"); name != lua.LNil {
		p.Name = name.String()
	}
	if version := tbl.RawGetString("version"); version != lua.LNil {
		p.Version = version.String()
	}

	if gen := tbl.RawGetString("api_generation"); gen != lua.LNil {
		n, ok := gen.(lua.LNumber)
		if !ok {
			return fmt.Errorf("api_generation must be a number, got %s", gen.Type())
		}
		f := float64(n)
		if f != math.Trunc(f) || f < 0 || f > MaxGeneration {
			return fmt.Errorf("api_generation must be a whole number between 0 and %d, got %s", MaxGeneration, gen.String())
		}
		p.APIGeneration = int(f)
	}

	if types := tbl.RawGetString("plugin_types"); types != lua.LNil {
		typesTbl, ok := types.(*lua.LTable)
		if !ok {
			return fmt.Errorf("plugin_types must be a table, got %s", types.Type())
		}
		for i := 1; i <= typesTbl.Len(); i++ {
			p.PluginTypes = append(p.PluginTypes, typesTbl.RawGetInt(i).String())
		}
	}

	return nil
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the file loading functions from base.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}
