// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/grid_test.go
// Summary: Tests for grid clamping, scrolling, and resize behavior.

package term

import (
	"math/rand"
	"testing"
)

func rowText(g *Grid, row int) string {
	_, cols := g.Size()
	runes := make([]rune, 0, cols)
	for c := 0; c < cols; c++ {
		cell := g.Cell(row, c)
		if cell.Rune != 0 {
			runes = append(runes, cell.Rune)
		}
	}
	// Trim trailing spaces for readable comparisons.
	end := len(runes)
	for end > 0 && runes[end-1] == ' ' {
		end--
	}
	return string(runes[:end])
}

func putString(g *Grid, s string) {
	for _, r := range s {
		g.Apply(EditOp{Kind: OpPut, Rune: r})
	}
}

// TestCursorNeverEscapesBounds applies a long random op sequence and checks
// the cursor invariant after every single op.
func TestCursorNeverEscapesBounds(t *testing.T) {
	g := NewGrid(8, 24)
	rng := rand.New(rand.NewSource(42))

	kinds := []OpKind{
		OpPut, OpMoveTo, OpMoveBy, OpLineFeed, OpReverseIndex, OpTab,
		OpScroll, OpEraseLine, OpEraseScreen, OpEraseChars, OpDeleteChars,
		OpInsertChars, OpInsertLines, OpDeleteLines, OpSetRegion,
		OpSaveCursor, OpRestoreCursor, OpResize, OpSetMode,
	}

	for i := 0; i < 5000; i++ {
		op := EditOp{Kind: kinds[rng.Intn(len(kinds))]}
		op.Rune = rune('a' + rng.Intn(26))
		op.Row = rng.Intn(40) - 10
		op.Col = rng.Intn(60) - 10
		op.DRow = rng.Intn(21) - 10
		op.DCol = rng.Intn(21) - 10
		op.N = rng.Intn(50) - 5
		op.Lines = rng.Intn(20) - 5
		op.Down = rng.Intn(2) == 0
		op.Erase = EraseMode(rng.Intn(3))
		op.Top = rng.Intn(20) - 5
		op.Bottom = rng.Intn(20) - 5
		op.Rows = 1 + rng.Intn(30)
		op.Cols = 1 + rng.Intn(90)
		op.Mode = Mode(rng.Intn(6))
		op.On = rng.Intn(2) == 0

		g.Apply(op)

		rows, cols := g.Size()
		r, c := g.Cursor()
		if r < 0 || r >= rows || c < 0 || c >= cols {
			t.Fatalf("op %d (kind %d): cursor (%d,%d) outside %dx%d", i, op.Kind, r, c, rows, cols)
		}
		top, bottom := g.Region()
		if top < 0 || top > bottom || bottom >= rows {
			t.Fatalf("op %d: region %d..%d invalid for %d rows", i, top, bottom, rows)
		}
	}
}

func TestAutowrap(t *testing.T) {
	g := NewGrid(3, 5)
	putString(g, "abcdefg")
	if got := rowText(g, 0); got != "abcde" {
		t.Errorf("row 0 = %q, want %q", got, "abcde")
	}
	if got := rowText(g, 1); got != "fg" {
		t.Errorf("row 1 = %q, want %q", got, "fg")
	}

	// With wrap off, output past the last column overwrites it.
	g = NewGrid(3, 5)
	g.Apply(EditOp{Kind: OpSetMode, Mode: ModeAutoWrap, On: false})
	putString(g, "abcdefg")
	if got := rowText(g, 0); got != "abcdg" {
		t.Errorf("row 0 with wrap off = %q, want %q", got, "abcdg")
	}
	if got := rowText(g, 1); got != "" {
		t.Errorf("row 1 with wrap off = %q, want empty", got)
	}
}

func TestScrollRegion(t *testing.T) {
	g := NewGrid(5, 10)
	for i, s := range []string{"one", "two", "three", "four", "five"} {
		g.Apply(EditOp{Kind: OpMoveTo, Row: i, Col: 0})
		putString(g, s)
	}

	// Region rows 1..3; scrolling up inside it must not touch rows 0 and 4.
	g.Apply(EditOp{Kind: OpSetRegion, Top: 1, Bottom: 3})
	g.Apply(EditOp{Kind: OpScroll, Lines: 1})

	want := []string{"one", "three", "four", "", "five"}
	for i, w := range want {
		if got := rowText(g, i); got != w {
			t.Errorf("row %d = %q, want %q", i, got, w)
		}
	}
}

func TestLineFeedScrollsAtRegionBottom(t *testing.T) {
	g := NewGrid(4, 8)
	g.Apply(EditOp{Kind: OpSetRegion, Top: 0, Bottom: 2})
	g.Apply(EditOp{Kind: OpMoveTo, Row: 2, Col: 0})
	putString(g, "last")
	g.Apply(EditOp{Kind: OpLineFeed})

	if got := rowText(g, 1); got != "last" {
		t.Errorf("row 1 after scroll = %q, want %q", got, "last")
	}
	if got := rowText(g, 2); got != "" {
		t.Errorf("row 2 after scroll = %q, want blank", got)
	}
	if r, _ := g.Cursor(); r != 2 {
		t.Errorf("cursor row = %d, want 2 (stays at region bottom)", r)
	}
}

func TestResizePreservesTopLeft(t *testing.T) {
	g := NewGrid(4, 10)
	putString(g, "keep me")
	g.Apply(EditOp{Kind: OpMoveTo, Row: 3, Col: 9})

	g.Apply(EditOp{Kind: OpResize, Rows: 2, Cols: 4})

	if got := rowText(g, 0); got != "keep" {
		t.Errorf("row 0 after shrink = %q, want %q", got, "keep")
	}
	r, c := g.Cursor()
	if r != 1 || c != 3 {
		t.Errorf("cursor after shrink = (%d,%d), want clamped (1,3)", r, c)
	}

	g.Apply(EditOp{Kind: OpResize, Rows: 6, Cols: 12})
	if got := rowText(g, 0); got != "keep" {
		t.Errorf("row 0 after grow = %q, want %q", got, "keep")
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	g := NewGrid(5, 10)
	g.Apply(EditOp{Kind: OpMoveTo, Row: 2, Col: 7})
	g.Apply(EditOp{Kind: OpSaveCursor})
	g.Apply(EditOp{Kind: OpMoveTo, Row: 0, Col: 0})
	g.Apply(EditOp{Kind: OpRestoreCursor})
	r, c := g.Cursor()
	if r != 2 || c != 7 {
		t.Errorf("restored cursor = (%d,%d), want (2,7)", r, c)
	}
}

func TestInsertAndDeleteChars(t *testing.T) {
	g := NewGrid(2, 10)
	putString(g, "abcdef")
	g.Apply(EditOp{Kind: OpMoveTo, Row: 0, Col: 2})
	g.Apply(EditOp{Kind: OpDeleteChars, N: 2})
	if got := rowText(g, 0); got != "abef" {
		t.Errorf("after DCH = %q, want %q", got, "abef")
	}
	g.Apply(EditOp{Kind: OpInsertChars, N: 3})
	if got := rowText(g, 0); got != "ab   ef" {
		t.Errorf("after ICH = %q, want %q", got, "ab   ef")
	}
}

func TestWideRune(t *testing.T) {
	g := NewGrid(2, 6)
	putString(g, "宽w")
	if !g.Cell(0, 0).Wide {
		t.Error("wide rune cell should be marked Wide")
	}
	if g.Cell(0, 1).Rune != 0 {
		t.Error("continuation cell should hold rune 0")
	}
	if g.Cell(0, 2).Rune != 'w' {
		t.Errorf("cell 2 = %q, want 'w'", g.Cell(0, 2).Rune)
	}
}

func TestOriginMode(t *testing.T) {
	g := NewGrid(10, 20)
	g.Apply(EditOp{Kind: OpSetRegion, Top: 2, Bottom: 7})
	g.Apply(EditOp{Kind: OpSetMode, Mode: ModeOrigin, On: true})

	// Home is now the region's top-left.
	r, c := g.Cursor()
	if r != 2 || c != 0 {
		t.Fatalf("origin home = (%d,%d), want (2,0)", r, c)
	}

	// Absolute addressing is region-relative and clamped to the region.
	g.Apply(EditOp{Kind: OpMoveTo, Row: 99, Col: 3})
	r, c = g.Cursor()
	if r != 7 || c != 3 {
		t.Fatalf("origin clamp = (%d,%d), want (7,3)", r, c)
	}
}
