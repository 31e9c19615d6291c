// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/editop.go
// Summary: Structured edit operations emitted by the decoder and applied to the grid.
// Usage: The decoder is the only producer; Grid.Apply is the only consumer.
// Notes: A single tagged struct keeps the op stream allocation-free.

package term

// OpKind discriminates the EditOp variants.
type OpKind int

const (
	// OpPut writes Rune at the cursor position and advances it.
	OpPut OpKind = iota
	// OpMoveTo places the cursor absolutely. A negative Row or Col keeps
	// the current value for that axis.
	OpMoveTo
	// OpMoveBy moves the cursor relatively by DRow/DCol.
	OpMoveBy
	// OpLineFeed moves down one row, scrolling the region at the bottom margin.
	OpLineFeed
	// OpReverseIndex moves up one row, scrolling down at the top margin.
	OpReverseIndex
	// OpTab advances the cursor to the next tab stop.
	OpTab
	// OpSetAttr toggles the attribute bits in Attr according to On.
	OpSetAttr
	// OpResetStyle clears attributes and colors back to defaults.
	OpResetStyle
	// OpSetFG / OpSetBG change the active drawing colors.
	OpSetFG
	OpSetBG
	// OpScroll shifts Lines rows within the scroll region; Down selects direction.
	OpScroll
	// OpEraseLine erases within the cursor row (EraseMode semantics).
	OpEraseLine
	// OpEraseScreen erases within the whole grid (EraseMode semantics).
	OpEraseScreen
	// OpEraseChars blanks N characters starting at the cursor.
	OpEraseChars
	// OpDeleteChars removes N characters at the cursor, shifting the rest left.
	OpDeleteChars
	// OpInsertChars opens N blank characters at the cursor, shifting right.
	OpInsertChars
	// OpInsertLines opens N blank rows at the cursor within the scroll region.
	OpInsertLines
	// OpDeleteLines removes N rows at the cursor within the scroll region.
	OpDeleteLines
	// OpSetRegion sets the scroll region to rows Top..Bottom (inclusive).
	OpSetRegion
	// OpSetMode flips one of the terminal mode flags.
	OpSetMode
	// OpSaveCursor / OpRestoreCursor use the single saved-cursor slot.
	OpSaveCursor
	OpRestoreCursor
	// OpResize changes the grid dimensions in place.
	OpResize
	// OpReset returns the grid to its initial state.
	OpReset
)

// EraseMode selects the range of an erase operation relative to the cursor.
type EraseMode int

const (
	EraseToEnd   EraseMode = iota // cursor to end of line/screen
	EraseToStart                  // start of line/screen to cursor
	EraseAll                      // the whole line/screen
)

// Mode identifies a terminal mode flag carried by OpSetMode.
type Mode int

const (
	ModeAppCursorKeys Mode = iota // DECCKM: arrows send SS3 instead of CSI
	ModeAppKeypad                 // DECKPAM/DECKPNM
	ModeAutoWrap                  // DECAWM
	ModeInsert                    // IRM: insert vs replace
	ModeOrigin                    // DECOM: cursor addressing relative to region
	ModeCursorVisible             // DECTCEM
)

// EditOp is one structured edit. Which fields are meaningful depends on Kind.
type EditOp struct {
	Kind OpKind

	Rune       rune
	Row, Col   int
	DRow, DCol int
	Attr       Attribute
	On         bool
	Color      Color
	Lines      int
	Down       bool
	N          int
	Erase      EraseMode
	Top        int
	Bottom     int
	Mode       Mode
	Rows, Cols int
}
