package cli

import (
	"flag"
	"fmt"
	"sort"
	"sync"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	mu sync.RWMutex
}

// NewCommand creates a command with an empty subcommand table
func NewCommand(name, description string) *Command {
	return &Command{
		Name:        name,
		Description: description,
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet(name, flag.ContinueOnError),
	}
}

// NewRootCommand creates the root command of the host binary.
// Bundled plugins add their subcommands to it while they load.
func NewRootCommand() *Command {
	return NewCommand("inspec", "InSpec - plugin host CLI")
}

// AddSubcommand registers cmd under its name, replacing any previous entry
func (c *Command) AddSubcommand(cmd *Command) {
	if cmd == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Subcommands == nil {
		c.Subcommands = make(map[string]*Command)
	}
	c.Subcommands[cmd.Name] = cmd
}

// Lookup returns the subcommand registered under name
func (c *Command) Lookup(name string) (*Command, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cmd, ok := c.Subcommands[name]
	return cmd, ok
}

// SubcommandNames returns the registered subcommand names, sorted
func (c *Command) SubcommandNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the command against args (without the program name)
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		if c.Run != nil && len(c.Subcommands) == 0 {
			return c.Run(args)
		}
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Lookup(args[0]); ok {
		if subcmd.Run == nil {
			return subcmd.Execute(args[1:])
		}
		return subcmd.Run(args[1:])
	}

	if c.Run != nil {
		return c.Run(args)
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for _, name := range c.SubcommandNames() {
		cmd, _ := c.Lookup(name)
		fmt.Printf("  %-15s %s\n", name, cmd.Description)
	}
	return nil
}
