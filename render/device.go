// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/device.go
// Summary: Display device abstraction consumed by the session loop.

package render

import "palmterm/term"

// Device is a character-grid display. The differ produces spans; the device
// draws them. Flush makes everything written since the last Flush visible
// at once.
type Device interface {
	// Size returns the device's current dimensions in character cells.
	Size() (rows, cols int)

	// WriteSpan draws a run of cells starting at (row, col). Cells with
	// rune 0 are wide-character continuations and must not be drawn over.
	WriteSpan(row, col int, cells []term.Cell)

	// SetCursor moves the hardware cursor, or hides it.
	SetCursor(row, col int, visible bool)

	// Flush presents all pending writes.
	Flush()
}

// Draw applies a complete diff to a device. It does not Flush; the caller
// decides when a frame is complete.
func Draw(dev Device, diff Diff) {
	for _, span := range diff.Spans {
		dev.WriteSpan(span.Row, span.Col, span.Cells)
	}
	if diff.CursorMoved || diff.Full {
		dev.SetCursor(diff.CursorRow, diff.CursorCol, diff.CursorVisible)
	}
}
