// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/palmterm/main.go
// Summary: Terminal entry point: wires the display, keyboard, settings
//          store, clock, and session engine together.
// Usage: Run `palmterm` in any terminal. -card mounts a directory as the
//        device file store; -log writes engine logs to a file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/render"
	"palmterm/session"
	"palmterm/shell"
	"palmterm/storage"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("palmterm", flag.ContinueOnError)
	logPath := fs.String("log", "", "Append engine logs to this file (default: discard)")
	cardDir := fs.String("card", "", "Directory to mount as the file store")
	dbPath := fs.String("db", "", "Settings database path (default: user config dir)")
	ntpServer := fs.String("ntp", "", "NTP server override")
	noJobs := fs.Bool("no-jobs", false, "Disable the run builtin")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println("palmterm", version)
		return nil
	}
	shell.Version = version

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("standard input is not a terminal")
	}

	// The screen owns the controlling terminal, so logs must go elsewhere.
	if *logPath != "" {
		logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	} else {
		log.SetOutput(io.Discard)
	}
	log.Printf("palmterm %s starting", version)

	if *dbPath == "" {
		var err error
		*dbPath, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve settings path: %w", err)
		}
	}
	store, err := config.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var card storage.Storage
	if *cardDir != "" {
		card, err = storage.NewDirStorage(*cardDir)
		if err != nil {
			return err
		}
	}

	power := device.NewSimPower()
	power.SetBacklight(store.GetInt(config.KeyBacklight, 70))
	power.SetKeyboardBacklight(store.GetInt(config.KeyKeyboardBacklight, 0))

	if *ntpServer == "" {
		*ntpServer = store.GetString(config.KeyNTPServer, "")
	}
	clk := clock.New(*ntpServer)
	clockCtx, stopClock := context.WithCancel(context.Background())
	defer stopClock()
	go clk.Run(clockCtx)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	dev := render.NewTcellDevice(screen)
	defer dev.Fini()

	eng := session.New(session.Config{
		Device:    dev,
		Store:     store,
		Power:     power,
		Storage:   card,
		Clock:     clk,
		AllowJobs: !*noJobs,
	})

	// Reboot from the shell just ends the process; whatever supervises
	// it (or the user) starts it again.
	power.OnReboot = func(device.RebootMode) { eng.Stop() }

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		eng.Stop()
	}()

	go pollEvents(screen, eng)

	eng.Run()
	log.Printf("palmterm stopped")
	return nil
}

// pollEvents translates tcell events into session input until the session
// ends.
func pollEvents(screen tcell.Screen, eng *session.Orchestrator) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			kev, ok := translateKey(ev)
			if !ok {
				continue
			}
			if !eng.PostKey(kev) {
				return
			}
		case *tcell.EventResize:
			w, h := ev.Size()
			eng.PostResize(h, w)
		}
	}
}
