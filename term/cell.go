// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/cell.go
// Summary: Cell, color, and attribute types for the terminal grid.
// Usage: Shared by the grid model, the escape decoder, and the renderer.
// Notes: Keeps the cell value type small; the grid holds rows*cols of these.

package term

// Attribute is a bitset of display attributes applied to a cell.
type Attribute uint16

const (
	AttrBold Attribute = 1 << iota
	AttrUnderline
	AttrReverse
	AttrDim
	AttrStrike
)

// String returns a human-readable representation of the attribute flags.
func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	if a&AttrBold != 0 {
		parts = append(parts, "bold")
	}
	if a&AttrUnderline != 0 {
		parts = append(parts, "underline")
	}
	if a&AttrReverse != 0 {
		parts = append(parts, "reverse")
	}
	if a&AttrDim != 0 {
		parts = append(parts, "dim")
	}
	if a&AttrStrike != 0 {
		parts = append(parts, "strike")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += "|" + parts[i]
	}
	return result
}

// ColorMode defines the type of color stored.
type ColorMode int

const (
	ColorModeDefault  ColorMode = iota // Default terminal color
	ColorModeStandard                  // The basic 16 ANSI colors
	ColorMode256                       // 256-color palette
	ColorModeRGB                       // 24-bit "true" color
)

// Color represents a color in potentially different modes.
type Color struct {
	Mode    ColorMode
	Value   uint8 // Holds the color code for Standard (0-15) and 256-mode (0-255)
	R, G, B uint8 // Holds the values for RGB mode
}

// Cell represents a single character cell on the screen.
// It is an immutable value type; the grid replaces cells wholesale.
type Cell struct {
	Rune rune
	FG   Color
	BG   Color
	Attr Attribute
	Wide bool // True if this cell holds a wide (2-column) character
}

// Predefined default colors for convenience.
var (
	DefaultFG = Color{Mode: ColorModeDefault}
	DefaultBG = Color{Mode: ColorModeDefault}
)

// blank returns the cell used for erased and vacated positions. Erase
// operations keep the active background color, matching what the scroller
// and line-clear paths of real terminals do.
func blank(bg Color) Cell {
	return Cell{Rune: ' ', FG: DefaultFG, BG: bg}
}
