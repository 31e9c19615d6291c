// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/differ.go
// Summary: Computes minimal cell spans between the grid and the last
//          committed frame.
// Usage: One differ per display device. Commit is called from the session
//        loop whenever a flush is due; it is not safe for concurrent use.

package render

import "palmterm/term"

// Differ tracks the last frame handed to a device and computes the spans
// needed to bring the device up to date with the current grid.
type Differ struct {
	rows, cols int
	shadow     [][]term.Cell

	cursorRow     int
	cursorCol     int
	cursorVisible bool
	committed     bool
}

// NewDiffer returns a differ with no committed frame; the first Commit
// emits the entire grid.
func NewDiffer() *Differ {
	return &Differ{}
}

// Invalidate drops the committed frame so the next Commit repaints
// everything. Used when the device's contents can no longer be trusted,
// e.g. after the device itself was resized or reinitialized.
func (d *Differ) Invalidate() {
	d.committed = false
}

// Commit compares the grid against the last committed frame and returns the
// changed spans, then adopts the grid as the new committed frame. Rows the
// grid left untouched produce no spans.
func (d *Differ) Commit(g *term.Grid) Diff {
	rows, cols := g.Size()
	full := !d.committed || rows != d.rows || cols != d.cols
	if full {
		d.resizeShadow(rows, cols)
	}

	var diff Diff
	diff.Full = full

	for r := 0; r < rows; r++ {
		d.diffRow(g, r, full, &diff)
	}

	cr, cc := g.Cursor()
	cv := g.CursorVisible()
	if full || cr != d.cursorRow || cc != d.cursorCol || cv != d.cursorVisible {
		diff.CursorMoved = true
	}
	diff.CursorRow, diff.CursorCol, diff.CursorVisible = cr, cc, cv
	d.cursorRow, d.cursorCol, d.cursorVisible = cr, cc, cv
	d.committed = true

	return diff
}

// diffRow appends the changed spans of one row and refreshes its shadow copy.
func (d *Differ) diffRow(g *term.Grid, row int, full bool, diff *Diff) {
	shadow := d.shadow[row]
	spanStart := -1

	flush := func(end int) {
		if spanStart < 0 {
			return
		}
		cells := make([]term.Cell, end-spanStart)
		copy(cells, shadow[spanStart:end])
		diff.Spans = append(diff.Spans, Span{Row: row, Col: spanStart, Cells: cells})
		spanStart = -1
	}

	for c := 0; c < d.cols; c++ {
		cell := g.Cell(row, c)
		changed := full || cell != shadow[c]
		shadow[c] = cell
		if changed {
			if spanStart < 0 {
				spanStart = c
			}
		} else {
			flush(c)
		}
	}
	flush(d.cols)
}

func (d *Differ) resizeShadow(rows, cols int) {
	d.rows, d.cols = rows, cols
	d.shadow = make([][]term.Cell, rows)
	for r := range d.shadow {
		d.shadow[r] = make([]term.Cell, cols)
	}
}
