// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/keys.go
// Summary: Keyboard event types delivered by the keyboard bus.
// Usage: Produced by the platform keyboard driver, consumed by EncodeKey.
// Notes: Events are transient; they are encoded immediately and never stored.

package term

import "time"

// Key identifies a physical key. Printable keys carry their rune in
// KeyEvent.Rune with Key set to KeyRune.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
)

// Modifiers is the modifier bitset reported with a key event.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModAlt
	ModShift
	ModSym
)

// KeyEvent is one keyboard report. Release events are delivered so modifier
// tracking can live in the driver, but only presses produce bytes.
type KeyEvent struct {
	Key       Key
	Rune      rune
	Modifiers Modifiers
	Pressed   bool
	Time      time.Time
}
