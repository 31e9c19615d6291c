// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/files.go
// Summary: ls and cat builtins over the device file store.
// Notes: cat highlights known source formats; the language is detected from
//        the filename and contents, not guessed from the extension alone.

package shell

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/dustin/go-humanize"
	"github.com/go-enry/go-enry/v2"

	"palmterm/storage"
)

// catLimit keeps a stray huge file from flooding the terminal.
const catLimit = 256 << 10

func cmdLs() *Command {
	const usage = "ls [path]"
	return &Command{
		Name:    "ls",
		Usage:   usage,
		Summary: "list files",
		Run: func(env *Env, args []string) error {
			if env.Storage == nil {
				return errors.New("no card mounted")
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if len(args) > 1 {
				return usageError(usage)
			}

			infos, err := env.Storage.List(path)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%s: no such directory", path)
			}
			if err != nil {
				return err
			}
			for _, info := range infos {
				if info.IsDir {
					fmt.Fprintf(env.Out, "%10s  %s/\n", "", info.Name)
					continue
				}
				fmt.Fprintf(env.Out, "%10s  %s\n", humanize.IBytes(uint64(info.Size)), info.Name)
			}
			return nil
		},
	}
}

func cmdCat() *Command {
	const usage = "cat <file>"
	return &Command{
		Name:    "cat",
		Usage:   usage,
		Summary: "print a file, highlighted when possible",
		Run: func(env *Env, args []string) error {
			if env.Storage == nil {
				return errors.New("no card mounted")
			}
			if len(args) != 1 {
				return usageError(usage)
			}
			path := args[0]

			data, err := env.Storage.ReadFile(path)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%s: no such file", path)
			}
			if err != nil {
				return err
			}
			truncated := false
			if len(data) > catLimit {
				data = data[:catLimit]
				truncated = true
			}
			if bytes.IndexByte(data, 0) >= 0 {
				return fmt.Errorf("%s: binary file", path)
			}

			if err := highlight(env, path, data); err != nil {
				// Highlighting is cosmetic; fall back to plain output.
				env.Out.Write(data)
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(env.Out)
			}
			if truncated {
				fmt.Fprintln(env.Out, "[truncated]")
			}
			return nil
		},
	}
}

func highlight(env *Env, path string, data []byte) error {
	lang := enry.GetLanguage(path, data)
	if lang == "" {
		return errors.New("unknown language")
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return fmt.Errorf("no lexer for %s", lang)
	}

	iterator, err := lexer.Tokenise(nil, string(data))
	if err != nil {
		return err
	}
	formatter := formatters.Get("terminal256")
	style := styles.Get("monokai")
	return formatter.Format(env.Out, style, iterator)
}
