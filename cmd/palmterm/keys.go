// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/palmterm/keys.go
// Summary: Translates tcell keyboard events into engine key events.

package main

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"palmterm/term"
)

var specialKeys = map[tcell.Key]term.Key{
	tcell.KeyEnter:      term.KeyEnter,
	tcell.KeyBackspace:  term.KeyBackspace,
	tcell.KeyBackspace2: term.KeyBackspace,
	tcell.KeyTab:        term.KeyTab,
	tcell.KeyEsc:        term.KeyEscape,
	tcell.KeyUp:         term.KeyUp,
	tcell.KeyDown:       term.KeyDown,
	tcell.KeyLeft:       term.KeyLeft,
	tcell.KeyRight:      term.KeyRight,
	tcell.KeyHome:       term.KeyHome,
	tcell.KeyEnd:        term.KeyEnd,
	tcell.KeyPgUp:       term.KeyPageUp,
	tcell.KeyPgDn:       term.KeyPageDown,
	tcell.KeyInsert:     term.KeyInsert,
	tcell.KeyDelete:     term.KeyDelete,
	tcell.KeyF1:         term.KeyF1,
	tcell.KeyF2:         term.KeyF2,
	tcell.KeyF3:         term.KeyF3,
	tcell.KeyF4:         term.KeyF4,
	tcell.KeyF5:         term.KeyF5,
	tcell.KeyF6:         term.KeyF6,
	tcell.KeyF7:         term.KeyF7,
	tcell.KeyF8:         term.KeyF8,
	tcell.KeyF9:         term.KeyF9,
	tcell.KeyF10:        term.KeyF10,
}

// ctrlRunes maps tcell's dedicated control-chord keys back to the rune the
// user pressed, so the engine sees Ctrl+<rune> uniformly.
var ctrlRunes = map[tcell.Key]rune{
	tcell.KeyCtrlSpace:      ' ',
	tcell.KeyCtrlLeftSq:     '[',
	tcell.KeyCtrlRightSq:    ']',
	tcell.KeyCtrlBackslash:  '\\',
	tcell.KeyCtrlCarat:      '^',
	tcell.KeyCtrlUnderscore: '_',
}

// translateKey converts one tcell key event. ok is false for events the
// engine has no representation for.
func translateKey(ev *tcell.EventKey) (term.KeyEvent, bool) {
	out := term.KeyEvent{Pressed: true, Time: time.Now()}
	mods := ev.Modifiers()
	if mods&tcell.ModAlt != 0 {
		out.Modifiers |= term.ModAlt
	}
	if mods&tcell.ModShift != 0 {
		out.Modifiers |= term.ModShift
	}
	if mods&tcell.ModCtrl != 0 {
		out.Modifiers |= term.ModCtrl
	}

	key := ev.Key()

	if key == tcell.KeyRune {
		out.Key = term.KeyRune
		out.Rune = ev.Rune()
		return out, true
	}

	if k, ok := specialKeys[key]; ok {
		out.Key = k
		return out, true
	}

	if r, ok := ctrlRunes[key]; ok {
		out.Key = term.KeyRune
		out.Rune = r
		out.Modifiers |= term.ModCtrl
		return out, true
	}

	// Ctrl+letter chords arrive as dedicated key codes 1..26.
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		out.Key = term.KeyRune
		out.Rune = rune('a' + key - tcell.KeyCtrlA)
		out.Modifiers |= term.ModCtrl
		return out, true
	}

	return term.KeyEvent{}, false
}
