// Package console provides the GM console: a line-oriented command surface
// over the ledger engine, offer book, and macro manager.
package console

import (
	"fmt"
	"strings"
)

// Categories for organizing commands in help output.
const (
	CategoryLedger = "ledger"
	CategoryGrant  = "grant"
	CategorySystem = "system"
)

// Command defines a GM-invocable console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed in the command listing.
	Help string
	// Usage shows the argument form, e.g. "pay <character> <money>".
	Usage string
	// Category groups the command (ledger, grant, system).
	Category string
}

// BuiltinCommands returns all built-in console commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "pay", Aliases: []string{"p"}, Help: "deduct money from a character", Usage: "pay <character> <money>", Category: CategoryLedger},
		{Name: "credit", Aliases: []string{"cr"}, Help: "add money to a character", Usage: "credit <character> <money>", Category: CategoryLedger},
		{Name: "balance", Aliases: []string{"bal"}, Help: "show a character's holdings by region", Usage: "balance <character>", Category: CategoryLedger},
		{Name: "region", Aliases: []string{"reg"}, Help: "list regions or set the current region", Usage: "region [set <key>]", Category: CategoryLedger},
		{Name: "consolidate", Aliases: []string{"con"}, Help: "consolidate a character's holdings in a region", Usage: "consolidate <character> <region>", Category: CategoryLedger},
		{Name: "offer", Aliases: []string{"of"}, Help: "publish a claimable credit offer", Usage: "offer <claims> <money>", Category: CategoryGrant},
		{Name: "offers", Aliases: nil, Help: "list open offers", Usage: "offers", Category: CategoryGrant},
		{Name: "claim", Aliases: []string{"cl"}, Help: "claim an offer for a character", Usage: "claim <offer> <character>", Category: CategoryGrant},
		{Name: "macro", Aliases: []string{"m"}, Help: "run a loaded macro", Usage: "macro <name>", Category: CategorySystem},
		{Name: "help", Aliases: []string{"h", "?"}, Help: "show this help", Usage: "help", Category: CategorySystem},
		{Name: "quit", Aliases: []string{"q", "exit"}, Help: "close the console", Usage: "quit", Category: CategorySystem},
	}
}

// Registry maps command names and aliases to Command definitions.
type Registry struct {
	commands map[string]*Command // canonical name → command
	aliases  map[string]string   // alias → canonical name
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		if _, exists := r.aliases[cmd.Name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", cmd.Name)
		}
		r.commands[cmd.Name] = cmd

		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}

	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by name or alias.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Command, bool) {
	if cmd, ok := r.commands[input]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// CommandsByCategory returns commands grouped by category.
func (r *Registry) CommandsByCategory() map[string][]*Command {
	categories := make(map[string][]*Command)
	for _, cmd := range r.commands {
		categories[cmd.Category] = append(categories[cmd.Category], cmd)
	}
	return categories
}

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command.
	Args []string
	// RawArgs is the raw text after the command.
	RawArgs string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: Returns a ParseResult. If line is empty, Command is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexByte(line, ' ')
	if spaceIdx < 0 {
		return ParseResult{
			Command: strings.ToLower(line),
		}
	}

	cmd := strings.ToLower(line[:spaceIdx])
	rest := strings.TrimSpace(line[spaceIdx+1:])

	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}

	return ParseResult{
		Command: cmd,
		Args:    args,
		RawArgs: rest,
	}
}
