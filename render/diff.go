// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/diff.go
// Summary: Diff types produced by the differ and consumed by display devices.

package render

import "palmterm/term"

// Span is a contiguous run of changed cells on one row.
type Span struct {
	Row   int
	Col   int
	Cells []term.Cell
}

// Diff describes everything a device must draw to catch up with the grid.
// Spans cover exactly the cells that differ from the previous committed
// frame; CursorMoved covers cursor position or visibility changes.
type Diff struct {
	Spans []Span

	CursorRow     int
	CursorCol     int
	CursorVisible bool
	CursorMoved   bool

	// Full is set when the whole frame was emitted, e.g. after a resize
	// or on the first commit.
	Full bool
}

// Empty reports whether the diff carries no drawing work at all.
func (d Diff) Empty() bool {
	return len(d.Spans) == 0 && !d.CursorMoved
}
