// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/builtins.go
// Summary: The builtin command set of the local shell.

package shell

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"palmterm/config"
	"palmterm/device"
)

func builtins() []*Command {
	return []*Command{
		cmdClear(), cmdTime(), cmdFree(),
		cmdLs(), cmdCat(), cmdConfig(), cmdSSH(),
		cmdBattery(), cmdBacklight(), cmdKeyboardBacklight(),
		cmdReboot(), cmdBootsel(), cmdRun(),
	}
}

func cmdHelp(d *Dispatcher) *Command {
	return &Command{
		Name:    "help",
		Usage:   "help",
		Summary: "list available commands",
		Run: func(env *Env, args []string) error {
			for _, name := range d.Names() {
				cmd := d.Lookup(name)
				fmt.Fprintf(env.Out, "  %-10s %s\n", cmd.Name, cmd.Summary)
			}
			return nil
		},
	}
}

func cmdClear() *Command {
	return &Command{
		Name:    "cls",
		Usage:   "cls",
		Summary: "clear the screen",
		Run: func(env *Env, args []string) error {
			_, err := env.Out.Write([]byte("\x1b[2J\x1b[H"))
			return err
		},
	}
}

func cmdTime() *Command {
	return &Command{
		Name:    "time",
		Usage:   "time",
		Summary: "show the current time",
		Run: func(env *Env, args []string) error {
			tz := env.Store.GetInt(config.KeyTimezone, 0)
			t := env.Clock.Now().UTC().Add(time.Duration(tz) * time.Hour)
			fmt.Fprintln(env.Out, t.Format(time.RFC3339))
			if synced, last := env.Clock.Synced(); synced {
				fmt.Fprintf(env.Out, "synced %s ago\n", time.Since(last).Round(time.Second))
			} else {
				fmt.Fprintln(env.Out, "warning: clock not yet synced")
			}
			return nil
		},
	}
}

func cmdFree() *Command {
	return &Command{
		Name:    "free",
		Usage:   "free",
		Summary: "show memory usage",
		Run: func(env *Env, args []string) error {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			fmt.Fprintf(env.Out, "heap used:  %s\n", humanize.IBytes(m.HeapAlloc))
			fmt.Fprintf(env.Out, "heap total: %s\n", humanize.IBytes(m.HeapSys))
			fmt.Fprintf(env.Out, "system:     %s\n", humanize.IBytes(m.Sys))
			if env.Storage != nil {
				if u, err := env.Storage.Usage(); err == nil {
					fmt.Fprintf(env.Out, "card:       %s / %s\n",
						humanize.IBytes(uint64(u.Used)), humanize.IBytes(uint64(u.Total)))
				}
			}
			return nil
		},
	}
}

func cmdConfig() *Command {
	const usage = "config list | get <key> | set <key> <value> | rm <key>"
	return &Command{
		Name:    "config",
		Usage:   usage,
		Summary: "read and write persistent settings",
		Run: func(env *Env, args []string) error {
			if len(args) == 0 {
				return usageError(usage)
			}
			switch args[0] {
			case "list":
				entries, err := env.Store.List()
				if err != nil {
					return err
				}
				for _, e := range entries {
					value := e.Value
					if e.Key == config.KeySSHPass {
						value = "********"
					}
					fmt.Fprintf(env.Out, "%s = %s\n", e.Key, value)
				}
				return nil
			case "get":
				if len(args) != 2 {
					return usageError(usage)
				}
				value, err := env.Store.Get(args[1])
				if errors.Is(err, config.ErrNotFound) {
					return fmt.Errorf("%s is not set", args[1])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(env.Out, value)
				return nil
			case "set":
				if len(args) != 3 {
					return usageError(usage)
				}
				return env.Store.Set(args[1], args[2])
			case "rm":
				if len(args) != 2 {
					return usageError(usage)
				}
				return env.Store.Delete(args[1])
			default:
				return usageError(usage)
			}
		},
	}
}

func cmdSSH() *Command {
	const usage = "ssh [host[:port]]"
	return &Command{
		Name:    "ssh",
		Usage:   usage,
		Summary: "connect to a remote host",
		Run: func(env *Env, args []string) error {
			if len(args) > 1 {
				return usageError(usage)
			}
			host := env.Store.GetString(config.KeySSHHost, "")
			if len(args) == 1 {
				host = args[0]
			}
			if host == "" {
				return errors.New("no host given and ssh_host is not set")
			}

			connect := func(user, pass string) {
				env.Connect(host, user, pass)
			}

			user := env.Store.GetString(config.KeySSHUser, "")
			pass := env.Store.GetString(config.KeySSHPass, "")
			switch {
			case user != "" && pass != "":
				connect(user, pass)
			case user != "":
				env.Prompt("password: ", false, func(p string) { connect(user, p) })
			default:
				env.Prompt("login: ", true, func(u string) {
					env.Prompt("password: ", false, func(p string) { connect(u, p) })
				})
			}
			return nil
		},
	}
}

func cmdBattery() *Command {
	return &Command{
		Name:    "bat",
		Usage:   "bat",
		Summary: "show battery status",
		Run: func(env *Env, args []string) error {
			status, err := env.Power.Battery()
			if err != nil {
				return err
			}
			state := "discharging"
			if status.Charging {
				state = "charging"
			}
			fmt.Fprintf(env.Out, "battery: %d%% (%s)\n", status.Percent, state)
			return nil
		},
	}
}

func cmdBacklight() *Command {
	return backlightCommand("bl", "display backlight", config.KeyBacklight,
		func(p device.Power) (int, error) { return p.Backlight() },
		func(p device.Power, level int) error { return p.SetBacklight(level) })
}

func cmdKeyboardBacklight() *Command {
	return backlightCommand("kbl", "keyboard backlight", config.KeyKeyboardBacklight,
		func(p device.Power) (int, error) { return p.KeyboardBacklight() },
		func(p device.Power, level int) error { return p.SetKeyboardBacklight(level) })
}

func backlightCommand(name, what, key string,
	get func(device.Power) (int, error),
	set func(device.Power, int) error) *Command {
	usage := name + " [0-100]"
	return &Command{
		Name:    name,
		Usage:   usage,
		Summary: "show or set the " + what,
		Run: func(env *Env, args []string) error {
			switch len(args) {
			case 0:
				level, err := get(env.Power)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s: %d%%\n", what, level)
				return nil
			case 1:
				level, err := strconv.Atoi(args[0])
				if err != nil || level < 0 || level > 100 {
					return usageError(usage)
				}
				if err := set(env.Power, level); err != nil {
					return err
				}
				// Best effort; the light is already set.
				_ = env.Store.Set(key, strconv.Itoa(level))
				return nil
			default:
				return usageError(usage)
			}
		},
	}
}

func cmdReboot() *Command {
	return &Command{
		Name:    "reboot",
		Usage:   "reboot",
		Summary: "restart the device",
		Run: func(env *Env, args []string) error {
			fmt.Fprintln(env.Out, "rebooting...")
			return env.Power.Reboot(device.RebootNormal)
		},
	}
}

func cmdBootsel() *Command {
	return &Command{
		Name:    "bootsel",
		Usage:   "bootsel",
		Summary: "restart into the firmware bootloader",
		Run: func(env *Env, args []string) error {
			fmt.Fprintln(env.Out, "rebooting into bootloader...")
			return env.Power.Reboot(device.RebootBootloader)
		},
	}
}

func cmdRun() *Command {
	const usage = "run <command> [args...]"
	return &Command{
		Name:    "run",
		Usage:   usage,
		Summary: "run a host program on this terminal",
		Run: func(env *Env, args []string) error {
			if len(args) == 0 {
				return usageError(usage)
			}
			if env.StartJob == nil {
				return errors.New("host programs are not available here")
			}
			return env.StartJob(args[0], args[1:])
		},
	}
}
