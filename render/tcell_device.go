// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/tcell_device.go
// Summary: Device implementation on top of a tcell.Screen.
// Usage: Wraps the host terminal when running on a desktop; the simulation
//        screen in tests. Init/Fini follow tcell's usual lifecycle.

package render

import (
	"github.com/gdamore/tcell/v2"

	"palmterm/term"
)

// TcellDevice adapts a tcell.Screen to the Device interface.
type TcellDevice struct {
	screen tcell.Screen
}

// NewTcellDevice wraps the provided screen. The screen must already be
// initialized.
func NewTcellDevice(screen tcell.Screen) *TcellDevice {
	return &TcellDevice{screen: screen}
}

func (d *TcellDevice) Size() (rows, cols int) {
	w, h := d.screen.Size()
	return h, w
}

func (d *TcellDevice) WriteSpan(row, col int, cells []term.Cell) {
	for i, cell := range cells {
		if cell.Rune == 0 {
			// Continuation of a wide rune; tcell fills it from the
			// preceding SetContent.
			continue
		}
		d.screen.SetContent(col+i, row, cell.Rune, nil, styleFor(cell))
	}
}

func (d *TcellDevice) SetCursor(row, col int, visible bool) {
	if visible {
		d.screen.ShowCursor(col, row)
	} else {
		d.screen.HideCursor()
	}
}

func (d *TcellDevice) Flush() {
	d.screen.Show()
}

// Fini releases the screen. After Fini the device must not be used.
func (d *TcellDevice) Fini() {
	d.screen.Fini()
}

// Underlying exposes the wrapped tcell.Screen for event polling.
func (d *TcellDevice) Underlying() tcell.Screen {
	return d.screen
}

func styleFor(cell term.Cell) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(tcellColor(cell.FG)).
		Background(tcellColor(cell.BG))
	if cell.Attr&term.AttrBold != 0 {
		style = style.Bold(true)
	}
	if cell.Attr&term.AttrUnderline != 0 {
		style = style.Underline(true)
	}
	if cell.Attr&term.AttrReverse != 0 {
		style = style.Reverse(true)
	}
	if cell.Attr&term.AttrDim != 0 {
		style = style.Dim(true)
	}
	if cell.Attr&term.AttrStrike != 0 {
		style = style.StrikeThrough(true)
	}
	return style
}

func tcellColor(c term.Color) tcell.Color {
	switch c.Mode {
	case term.ColorModeStandard, term.ColorMode256:
		return tcell.PaletteColor(int(c.Value))
	case term.ColorModeRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}
