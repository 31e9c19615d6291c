// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/input.go
// Summary: Encodes keyboard events into terminal byte sequences.
// Usage: Pure function of the event and the grid's keyboard-relevant modes;
//        callable from the scheduling loop without blocking.
// Notes: Unmapped modifier+key combinations encode to nothing. That is
//        policy, not an error: the byte stream simply does not carry them.

package term

import "unicode/utf8"

// EncodeKey translates one key event into the bytes a terminal would send.
// Navigation keys honor application cursor key mode (CSI vs SS3 forms).
// A nil result means the event has no encoding and is dropped.
func EncodeKey(ev KeyEvent, modes ModeFlags) []byte {
	if !ev.Pressed {
		return nil
	}

	if ev.Key == KeyRune {
		return encodeRune(ev)
	}

	var seq string
	switch ev.Key {
	case KeyEnter:
		seq = "\r"
	case KeyBackspace:
		seq = "\x7f"
	case KeyTab:
		seq = "\t"
	case KeyEscape:
		seq = "\x1b"
	case KeyUp:
		seq = cursorSeq('A', modes.AppCursorKeys)
	case KeyDown:
		seq = cursorSeq('B', modes.AppCursorKeys)
	case KeyRight:
		seq = cursorSeq('C', modes.AppCursorKeys)
	case KeyLeft:
		seq = cursorSeq('D', modes.AppCursorKeys)
	case KeyHome:
		seq = cursorSeq('H', modes.AppCursorKeys)
	case KeyEnd:
		seq = cursorSeq('F', modes.AppCursorKeys)
	case KeyPageUp:
		seq = "\x1b[5~"
	case KeyPageDown:
		seq = "\x1b[6~"
	case KeyInsert:
		seq = "\x1b[2~"
	case KeyDelete:
		seq = "\x1b[3~"
	case KeyF1:
		seq = "\x1bOP"
	case KeyF2:
		seq = "\x1bOQ"
	case KeyF3:
		seq = "\x1bOR"
	case KeyF4:
		seq = "\x1bOS"
	case KeyF5:
		seq = "\x1b[15~"
	case KeyF6:
		seq = "\x1b[17~"
	case KeyF7:
		seq = "\x1b[18~"
	case KeyF8:
		seq = "\x1b[19~"
	case KeyF9:
		seq = "\x1b[20~"
	case KeyF10:
		seq = "\x1b[21~"
	default:
		return nil
	}

	if ev.Modifiers&ModAlt != 0 {
		return append([]byte{0x1b}, seq...)
	}
	return []byte(seq)
}

func cursorSeq(final byte, application bool) string {
	if application {
		return string([]byte{0x1b, 'O', final})
	}
	return string([]byte{0x1b, '[', final})
}

func encodeRune(ev KeyEvent) []byte {
	var out []byte
	if ev.Modifiers&ModAlt != 0 {
		out = append(out, 0x1b)
	}

	if ev.Modifiers&ModCtrl != 0 {
		if c, ok := ctrlMapping(ev.Rune); ok {
			return append(out, c)
		}
		// Ctrl chords with no legacy mapping are dropped.
		return nil
	}

	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], ev.Rune)
	return append(out, buf[:n]...)
}

// ctrlMapping maps a rune to its legacy Ctrl control byte, the xterm way.
// In theory this is "uppercase then mask with 0x1f", but xterm inherits
// aliased mappings from X11 (punctuation under SHIFT in particular), so the
// table is written out.
func ctrlMapping(r rune) (byte, bool) {
	switch r {
	case '@', '`', ' ', '2':
		return 0x00, true
	case '[', '3', '{':
		return 0x1b, true
	case '\\', '4', '|':
		return 0x1c, true
	case ']', '5', '}':
		return 0x1d, true
	case '^', '6', '~':
		return 0x1e, true
	case '_', '7', '/':
		return 0x1f, true
	case '8', '?':
		return 0x7f, true // Delete
	}
	if r >= 'a' && r <= 'z' {
		return byte(r-'a') + 1, true
	}
	if r >= 'A' && r <= 'Z' {
		return byte(r-'A') + 1, true
	}
	return 0, false
}
