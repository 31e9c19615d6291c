// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/dispatcher.go
// Summary: Command registry and dispatch for the local shell.

package shell

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/storage"
)

// Env is everything a builtin may touch. Out is already newline-normalized
// for the terminal; builtins just print.
type Env struct {
	Out     io.Writer
	Store   *config.Store
	Power   device.Power
	Storage storage.Storage
	Clock   *clock.Clock

	// Size returns the current grid dimensions.
	Size func() (rows, cols int)

	// Connect asks the session to open a remote shell. The local shell
	// suspends until the remote side ends.
	Connect func(host, user, pass string)

	// Prompt requests one more line of input from the user. echo=false
	// suppresses echoing, for passwords. cont runs with the answer.
	Prompt func(text string, echo bool, cont func(string))

	// StartJob launches a host process on a pty and attaches it.
	StartJob func(name string, args []string) error
}

// Command is one shell builtin.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Run     func(env *Env, args []string) error
}

// Dispatcher routes input lines to builtins.
type Dispatcher struct {
	commands map[string]*Command
}

// NewDispatcher returns a dispatcher with the full builtin set registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{commands: make(map[string]*Command)}
	for _, c := range builtins() {
		d.Register(c)
	}
	d.Register(cmdHelp(d))
	return d
}

// Register adds a command, replacing any existing one with the same name.
func (d *Dispatcher) Register(c *Command) {
	d.commands[c.Name] = c
}

// Lookup returns the named command, or nil.
func (d *Dispatcher) Lookup(name string) *Command {
	return d.commands[name]
}

// Names returns all command names sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses and runs one input line. Unknown commands and builtin
// errors are reported on env.Out; Dispatch itself only fails when the
// output writer does.
func (d *Dispatcher) Dispatch(env *Env, line string) {
	args := splitArgs(line)
	if len(args) == 0 {
		return
	}
	cmd := d.commands[args[0]]
	if cmd == nil {
		fmt.Fprintf(env.Out, "%s: command not found (try 'help')\n", args[0])
		return
	}
	if err := cmd.Run(env, args[1:]); err != nil {
		fmt.Fprintf(env.Out, "%s: %v\n", cmd.Name, err)
	}
}

// splitArgs splits on whitespace, honoring double quotes.
func splitArgs(line string) []string {
	var args []string
	var cur strings.Builder
	inQuote := false
	pending := false

	flush := func() {
		if pending {
			args = append(args, cur.String())
			cur.Reset()
			pending = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			pending = true
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	flush()
	return args
}

// usageError formats a consistent bad-arguments error.
func usageError(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}
