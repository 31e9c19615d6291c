// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/state.go
// Summary: Session lifecycle states.

package session

import "fmt"

// Phase enumerates the session lifecycle. Transitions happen only on the
// session goroutine.
type Phase int

const (
	// PhaseIdle is the state before Run and after a fatal teardown.
	PhaseIdle Phase = iota

	// PhaseLocalShell routes keyboard input to the builtin command
	// dispatcher.
	PhaseLocalShell

	// PhaseConnecting covers the TCP dial toward a remote host.
	PhaseConnecting

	// PhaseAuthenticating covers the SSH handshake and auth exchange.
	PhaseAuthenticating

	// PhaseRemoteInteractive routes keyboard input to the remote shell.
	PhaseRemoteInteractive

	// PhaseClosing is a transient state while a remote link tears down.
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLocalShell:
		return "local-shell"
	case PhaseConnecting:
		return "connecting"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseRemoteInteractive:
		return "remote"
	case PhaseClosing:
		return "closing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the session's externally visible condition. Host is set in the
// connection phases; Err holds the failure that ended the last connection
// attempt, cleared on the next one.
type State struct {
	Phase Phase
	Host  string
	Err   error
}
