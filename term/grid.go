// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/grid.go
// Summary: The authoritative in-memory terminal state, mutated only through edit ops.
// Usage: Owned by the session orchestrator; the renderer reads it, never writes.
// Notes: Every operation clamps to grid bounds. No operation panics.

package term

import (
	"github.com/mattn/go-runewidth"
)

// ModeFlags is the subset of grid state that affects keyboard encoding.
type ModeFlags struct {
	AppCursorKeys bool
	AppKeypad     bool
}

// Grid holds the terminal screen state: a rows*cols array of cells, the
// cursor, the scroll region, and the mode flags. It is allocated once per
// session and reused across local/remote source switches; switching resets
// it but does not reallocate.
type Grid struct {
	rows, cols int
	cells      [][]Cell

	cursorRow, cursorCol int
	cursorVisible        bool
	wrapNext             bool

	savedRow, savedCol int

	marginTop, marginBottom int

	curFG, curBG Color
	curAttr      Attribute

	tabStops map[int]bool

	appCursorKeys bool
	appKeypad     bool
	autoWrap      bool
	insertMode    bool
	originMode    bool
}

// NewGrid creates a grid of the requested size with default modes.
func NewGrid(rows, cols int) *Grid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	g := &Grid{
		rows:          rows,
		cols:          cols,
		cursorVisible: true,
		autoWrap:      true,
		marginTop:     0,
		marginBottom:  rows - 1,
	}
	g.cells = make([][]Cell, rows)
	for r := range g.cells {
		g.cells[r] = make([]Cell, cols)
	}
	g.clearAll(DefaultBG)
	g.resetTabStops()
	return g
}

// Size returns the grid dimensions.
func (g *Grid) Size() (rows, cols int) { return g.rows, g.cols }

// Cursor returns the cursor position.
func (g *Grid) Cursor() (row, col int) { return g.cursorRow, g.cursorCol }

// CursorVisible reports whether the cursor should be drawn.
func (g *Grid) CursorVisible() bool { return g.cursorVisible }

// Cell returns the cell at (row, col), or a blank cell when out of bounds.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return blank(DefaultBG)
	}
	return g.cells[row][col]
}

// Region returns the active scroll region bounds (inclusive).
func (g *Grid) Region() (top, bottom int) { return g.marginTop, g.marginBottom }

// Modes returns the mode flags relevant to keyboard encoding.
func (g *Grid) Modes() ModeFlags {
	return ModeFlags{AppCursorKeys: g.appCursorKeys, AppKeypad: g.appKeypad}
}

// Mode reports one mode flag.
func (g *Grid) Mode(m Mode) bool {
	switch m {
	case ModeAppCursorKeys:
		return g.appCursorKeys
	case ModeAppKeypad:
		return g.appKeypad
	case ModeAutoWrap:
		return g.autoWrap
	case ModeInsert:
		return g.insertMode
	case ModeOrigin:
		return g.originMode
	case ModeCursorVisible:
		return g.cursorVisible
	}
	return false
}

// ApplyAll applies a batch of edit operations in emission order.
func (g *Grid) ApplyAll(ops []EditOp) {
	for i := range ops {
		g.Apply(ops[i])
	}
}

// Apply mutates the grid with a single edit operation. Malformed parameters
// are clamped to the nearest valid value rather than rejected.
func (g *Grid) Apply(op EditOp) {
	switch op.Kind {
	case OpPut:
		g.placeRune(op.Rune)
	case OpMoveTo:
		g.moveTo(op.Row, op.Col)
	case OpMoveBy:
		g.moveBy(op.DRow, op.DCol)
	case OpLineFeed:
		g.lineFeed()
	case OpReverseIndex:
		g.reverseIndex()
	case OpTab:
		g.tab()
	case OpSetAttr:
		if op.On {
			g.curAttr |= op.Attr
		} else {
			g.curAttr &^= op.Attr
		}
	case OpResetStyle:
		g.curAttr = 0
		g.curFG = DefaultFG
		g.curBG = DefaultBG
	case OpSetFG:
		g.curFG = op.Color
	case OpSetBG:
		g.curBG = op.Color
	case OpScroll:
		n := clampInt(op.Lines, 0, g.rows)
		if op.Down {
			g.scrollDown(n)
		} else {
			g.scrollUp(n)
		}
	case OpEraseLine:
		g.eraseLine(op.Erase)
	case OpEraseScreen:
		g.eraseScreen(op.Erase)
	case OpEraseChars:
		g.eraseChars(op.N)
	case OpDeleteChars:
		g.deleteChars(op.N)
	case OpInsertChars:
		g.insertChars(op.N)
	case OpInsertLines:
		g.insertLines(op.N)
	case OpDeleteLines:
		g.deleteLines(op.N)
	case OpSetRegion:
		g.setRegion(op.Top, op.Bottom)
	case OpSetMode:
		g.setMode(op.Mode, op.On)
	case OpSaveCursor:
		g.savedRow, g.savedCol = g.cursorRow, g.cursorCol
	case OpRestoreCursor:
		g.cursorRow = clampInt(g.savedRow, 0, g.rows-1)
		g.cursorCol = clampInt(g.savedCol, 0, g.cols-1)
		g.wrapNext = false
	case OpResize:
		g.resize(op.Rows, op.Cols)
	case OpReset:
		g.Reset()
	}
}

// Reset returns the grid to power-on state without reallocating.
func (g *Grid) Reset() {
	g.clearAll(DefaultBG)
	g.cursorRow, g.cursorCol = 0, 0
	g.savedRow, g.savedCol = 0, 0
	g.cursorVisible = true
	g.wrapNext = false
	g.marginTop, g.marginBottom = 0, g.rows-1
	g.curFG, g.curBG = DefaultFG, DefaultBG
	g.curAttr = 0
	g.appCursorKeys = false
	g.appKeypad = false
	g.autoWrap = true
	g.insertMode = false
	g.originMode = false
	g.resetTabStops()
}

func (g *Grid) clearAll(bg Color) {
	for r := range g.cells {
		row := g.cells[r]
		for c := range row {
			row[c] = blank(bg)
		}
	}
}

func (g *Grid) resetTabStops() {
	g.tabStops = make(map[int]bool)
	for c := 0; c < g.cols; c += 8 {
		g.tabStops[c] = true
	}
}

func (g *Grid) placeRune(r rune) {
	width := runewidth.RuneWidth(r)
	if width <= 0 {
		// Zero-width and combining runes are absorbed; the grid has no
		// cluster support.
		return
	}

	if g.wrapNext {
		g.cursorCol = 0
		g.lineFeed()
		g.wrapNext = false
	}

	if width == 2 && g.cursorCol == g.cols-1 {
		if g.autoWrap {
			g.cursorCol = 0
			g.lineFeed()
		} else {
			// No room for a wide rune in the last column; drop to a space.
			r, width = ' ', 1
		}
	}

	if g.insertMode {
		g.insertChars(width)
	}

	row := g.cells[g.cursorRow]
	row[g.cursorCol] = Cell{Rune: r, FG: g.curFG, BG: g.curBG, Attr: g.curAttr, Wide: width == 2}
	if width == 2 && g.cursorCol+1 < g.cols {
		// Continuation cell of a wide rune; rune 0 tells the renderer to skip it.
		row[g.cursorCol+1] = Cell{Rune: 0, FG: g.curFG, BG: g.curBG, Attr: g.curAttr}
	}

	next := g.cursorCol + width
	if next >= g.cols {
		if g.autoWrap {
			g.cursorCol = g.cols - 1
			g.wrapNext = true
		} else {
			g.cursorCol = g.cols - 1
		}
	} else {
		g.cursorCol = next
	}
}

func (g *Grid) moveTo(row, col int) {
	g.wrapNext = false
	if row >= 0 {
		if g.originMode {
			row += g.marginTop
			g.cursorRow = clampInt(row, g.marginTop, g.marginBottom)
		} else {
			g.cursorRow = clampInt(row, 0, g.rows-1)
		}
	}
	if col >= 0 {
		g.cursorCol = clampInt(col, 0, g.cols-1)
	}
}

func (g *Grid) moveBy(drow, dcol int) {
	g.wrapNext = false
	if drow != 0 {
		// Vertical movement respects the scroll region when the cursor is
		// inside it, as DEC cursor movement does.
		top, bottom := 0, g.rows-1
		if g.cursorRow >= g.marginTop {
			top = g.marginTop
		}
		if g.cursorRow <= g.marginBottom {
			bottom = g.marginBottom
		}
		g.cursorRow = clampInt(g.cursorRow+drow, top, bottom)
	}
	if dcol != 0 {
		g.cursorCol = clampInt(g.cursorCol+dcol, 0, g.cols-1)
	}
}

func (g *Grid) lineFeed() {
	if g.cursorRow == g.marginBottom {
		g.scrollUp(1)
	} else if g.cursorRow < g.rows-1 {
		g.cursorRow++
	}
}

func (g *Grid) reverseIndex() {
	g.wrapNext = false
	if g.cursorRow == g.marginTop {
		g.scrollDown(1)
	} else if g.cursorRow > 0 {
		g.cursorRow--
	}
}

func (g *Grid) tab() {
	g.wrapNext = false
	for c := g.cursorCol + 1; c < g.cols; c++ {
		if g.tabStops[c] {
			g.cursorCol = c
			return
		}
	}
	g.cursorCol = g.cols - 1
}

func (g *Grid) scrollUp(n int) {
	if n <= 0 {
		return
	}
	region := g.marginBottom - g.marginTop + 1
	if n > region {
		n = region
	}
	for r := g.marginTop; r+n <= g.marginBottom; r++ {
		copy(g.cells[r], g.cells[r+n])
	}
	for r := g.marginBottom - n + 1; r <= g.marginBottom; r++ {
		g.blankRow(r)
	}
}

func (g *Grid) scrollDown(n int) {
	if n <= 0 {
		return
	}
	region := g.marginBottom - g.marginTop + 1
	if n > region {
		n = region
	}
	for r := g.marginBottom; r-n >= g.marginTop; r-- {
		copy(g.cells[r], g.cells[r-n])
	}
	for r := g.marginTop; r < g.marginTop+n; r++ {
		g.blankRow(r)
	}
}

func (g *Grid) blankRow(r int) {
	row := g.cells[r]
	for c := range row {
		row[c] = blank(g.curBG)
	}
}

func (g *Grid) eraseLine(mode EraseMode) {
	start, end := 0, g.cols-1
	switch mode {
	case EraseToEnd:
		start = g.cursorCol
	case EraseToStart:
		end = g.cursorCol
	case EraseAll:
	}
	row := g.cells[g.cursorRow]
	for c := start; c <= end && c < g.cols; c++ {
		row[c] = blank(g.curBG)
	}
}

func (g *Grid) eraseScreen(mode EraseMode) {
	switch mode {
	case EraseToEnd:
		g.eraseLine(EraseToEnd)
		for r := g.cursorRow + 1; r < g.rows; r++ {
			g.blankRow(r)
		}
	case EraseToStart:
		g.eraseLine(EraseToStart)
		for r := 0; r < g.cursorRow; r++ {
			g.blankRow(r)
		}
	case EraseAll:
		g.clearAll(g.curBG)
	}
}

func (g *Grid) eraseChars(n int) {
	if n < 1 {
		n = 1
	}
	row := g.cells[g.cursorRow]
	for i := 0; i < n && g.cursorCol+i < g.cols; i++ {
		row[g.cursorCol+i] = blank(g.curBG)
	}
}

func (g *Grid) deleteChars(n int) {
	if n < 1 {
		n = 1
	}
	if n > g.cols-g.cursorCol {
		n = g.cols - g.cursorCol
	}
	row := g.cells[g.cursorRow]
	copy(row[g.cursorCol:], row[g.cursorCol+n:])
	for c := g.cols - n; c < g.cols; c++ {
		row[c] = blank(g.curBG)
	}
}

func (g *Grid) insertChars(n int) {
	if n < 1 {
		n = 1
	}
	if n > g.cols-g.cursorCol {
		n = g.cols - g.cursorCol
	}
	row := g.cells[g.cursorRow]
	copy(row[g.cursorCol+n:], row[g.cursorCol:g.cols-n])
	for i := 0; i < n; i++ {
		row[g.cursorCol+i] = blank(g.curBG)
	}
}

// insertLines and deleteLines shift rows between the cursor and the bottom
// margin. Both are no-ops when the cursor is outside the scroll region.
func (g *Grid) insertLines(n int) {
	if g.cursorRow < g.marginTop || g.cursorRow > g.marginBottom {
		return
	}
	savedTop := g.marginTop
	g.marginTop = g.cursorRow
	g.scrollDown(n)
	g.marginTop = savedTop
	g.cursorCol = 0
	g.wrapNext = false
}

func (g *Grid) deleteLines(n int) {
	if g.cursorRow < g.marginTop || g.cursorRow > g.marginBottom {
		return
	}
	savedTop := g.marginTop
	g.marginTop = g.cursorRow
	g.scrollUp(n)
	g.marginTop = savedTop
	g.cursorCol = 0
	g.wrapNext = false
}

func (g *Grid) setRegion(top, bottom int) {
	top = clampInt(top, 0, g.rows-1)
	bottom = clampInt(bottom, 0, g.rows-1)
	if top >= bottom {
		// Invalid region; keep the current one.
		return
	}
	g.marginTop, g.marginBottom = top, bottom
	// DECSTBM homes the cursor.
	g.moveTo(0, 0)
}

func (g *Grid) setMode(m Mode, on bool) {
	switch m {
	case ModeAppCursorKeys:
		g.appCursorKeys = on
	case ModeAppKeypad:
		g.appKeypad = on
	case ModeAutoWrap:
		g.autoWrap = on
	case ModeInsert:
		g.insertMode = on
	case ModeOrigin:
		g.originMode = on
		g.moveTo(0, 0)
	case ModeCursorVisible:
		g.cursorVisible = on
	}
}

func (g *Grid) resize(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	if rows == g.rows && cols == g.cols {
		return
	}

	next := make([][]Cell, rows)
	for r := range next {
		next[r] = make([]Cell, cols)
		for c := range next[r] {
			next[r][c] = blank(DefaultBG)
		}
	}
	copyRows := g.rows
	if rows < copyRows {
		copyRows = rows
	}
	copyCols := g.cols
	if cols < copyCols {
		copyCols = cols
	}
	for r := 0; r < copyRows; r++ {
		copy(next[r][:copyCols], g.cells[r][:copyCols])
	}

	g.cells = next
	g.rows, g.cols = rows, cols
	g.cursorRow = clampInt(g.cursorRow, 0, rows-1)
	g.cursorCol = clampInt(g.cursorCol, 0, cols-1)
	g.savedRow = clampInt(g.savedRow, 0, rows-1)
	g.savedCol = clampInt(g.savedCol, 0, cols-1)
	g.marginTop = clampInt(g.marginTop, 0, rows-1)
	g.marginBottom = clampInt(g.marginBottom, 0, rows-1)
	if g.marginTop >= g.marginBottom {
		g.marginTop, g.marginBottom = 0, rows-1
	}
	g.wrapNext = false
	g.resetTabStops()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
