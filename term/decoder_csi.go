// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/decoder_csi.go
// Summary: CSI and SGR dispatch for the escape decoder.
// Usage: Internal to the decoder; translates final bytes into edit ops.

package term

import "log"

// dispatchCSI maps a completed CSI sequence onto edit operations. Sequences
// we do not implement are consumed without emitting anything.
func (d *Decoder) dispatchCSI(final byte, params []int, private bool, intermediate byte) {
	if intermediate != 0 {
		// DECSCUSR and friends; nothing here changes the grid.
		return
	}
	if private {
		d.dispatchPrivateCSI(final, params)
		return
	}

	param := func(i, def int) int {
		if i < len(params) && params[i] != 0 {
			return params[i]
		}
		return def
	}

	switch final {
	case 'A':
		d.emit(EditOp{Kind: OpMoveBy, DRow: -param(0, 1)})
	case 'B', 'e':
		d.emit(EditOp{Kind: OpMoveBy, DRow: param(0, 1)})
	case 'C', 'a':
		d.emit(EditOp{Kind: OpMoveBy, DCol: param(0, 1)})
	case 'D':
		d.emit(EditOp{Kind: OpMoveBy, DCol: -param(0, 1)})
	case 'E':
		d.emit(EditOp{Kind: OpMoveBy, DRow: param(0, 1)})
		d.emit(EditOp{Kind: OpMoveTo, Row: -1, Col: 0})
	case 'F':
		d.emit(EditOp{Kind: OpMoveBy, DRow: -param(0, 1)})
		d.emit(EditOp{Kind: OpMoveTo, Row: -1, Col: 0})
	case 'G', '`':
		d.emit(EditOp{Kind: OpMoveTo, Row: -1, Col: param(0, 1) - 1})
	case 'H', 'f':
		d.emit(EditOp{Kind: OpMoveTo, Row: param(0, 1) - 1, Col: param(1, 1) - 1})
	case 'd':
		d.emit(EditOp{Kind: OpMoveTo, Row: param(0, 1) - 1, Col: -1})
	case 'J':
		d.emit(EditOp{Kind: OpEraseScreen, Erase: eraseModeFor(param(0, 0))})
	case 'K':
		d.emit(EditOp{Kind: OpEraseLine, Erase: eraseModeFor(param(0, 0))})
	case 'L':
		d.emit(EditOp{Kind: OpInsertLines, N: param(0, 1)})
	case 'M':
		d.emit(EditOp{Kind: OpDeleteLines, N: param(0, 1)})
	case 'P':
		d.emit(EditOp{Kind: OpDeleteChars, N: param(0, 1)})
	case '@':
		d.emit(EditOp{Kind: OpInsertChars, N: param(0, 1)})
	case 'X':
		d.emit(EditOp{Kind: OpEraseChars, N: param(0, 1)})
	case 'S':
		d.emit(EditOp{Kind: OpScroll, Lines: param(0, 1)})
	case 'T':
		d.emit(EditOp{Kind: OpScroll, Lines: param(0, 1), Down: true})
	case 'r':
		d.emit(EditOp{Kind: OpSetRegion, Top: param(0, 1) - 1, Bottom: param(1, 1<<30) - 1})
	case 's':
		d.emit(EditOp{Kind: OpSaveCursor})
	case 'u':
		d.emit(EditOp{Kind: OpRestoreCursor})
	case 'm':
		d.dispatchSGR(params)
	case 'h', 'l':
		d.dispatchANSIMode(final == 'h', params)
	case 'n', 'c', 't', 'g':
		// Status reports, device attributes, window ops, tab clears:
		// consumed, no grid effect.
	default:
		log.Printf("Decoder: unhandled CSI %q params=%v", final, params)
	}
}

func eraseModeFor(p int) EraseMode {
	switch p {
	case 1:
		return EraseToStart
	case 2, 3:
		return EraseAll
	default:
		return EraseToEnd
	}
}

func (d *Decoder) dispatchANSIMode(on bool, params []int) {
	for _, p := range params {
		if p == 4 { // IRM
			d.emit(EditOp{Kind: OpSetMode, Mode: ModeInsert, On: on})
		}
	}
}

func (d *Decoder) dispatchPrivateCSI(final byte, params []int) {
	if final != 'h' && final != 'l' {
		return
	}
	on := final == 'h'
	for _, mode := range params {
		switch mode {
		case 1: // DECCKM
			d.emit(EditOp{Kind: OpSetMode, Mode: ModeAppCursorKeys, On: on})
		case 6: // DECOM
			d.emit(EditOp{Kind: OpSetMode, Mode: ModeOrigin, On: on})
		case 7: // DECAWM
			d.emit(EditOp{Kind: OpSetMode, Mode: ModeAutoWrap, On: on})
		case 25: // DECTCEM
			d.emit(EditOp{Kind: OpSetMode, Mode: ModeCursorVisible, On: on})
		case 12, 1002, 1004, 1006, 1049, 2004, 2026:
			// Blinking cursor, mouse/focus reporting, alt screen,
			// bracketed paste, synchronized updates: ignored on this
			// display.
		default:
			log.Printf("Decoder: ignoring private mode %d (%c)", mode, final)
		}
	}
}

// dispatchSGR applies Select Graphic Rendition parameters.
func (d *Decoder) dispatchSGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	i := 0
	for i < len(params) {
		p := params[i]
		switch {
		case p == 0:
			d.emit(EditOp{Kind: OpResetStyle})
		case p == 1:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrBold, On: true})
		case p == 2:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrDim, On: true})
		case p == 4:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrUnderline, On: true})
		case p == 7:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrReverse, On: true})
		case p == 9:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrStrike, On: true})
		case p == 22:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrBold | AttrDim, On: false})
		case p == 24:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrUnderline, On: false})
		case p == 27:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrReverse, On: false})
		case p == 29:
			d.emit(EditOp{Kind: OpSetAttr, Attr: AttrStrike, On: false})
		case p >= 30 && p <= 37:
			d.emit(EditOp{Kind: OpSetFG, Color: Color{Mode: ColorModeStandard, Value: uint8(p - 30)}})
		case p == 39:
			d.emit(EditOp{Kind: OpSetFG, Color: DefaultFG})
		case p >= 40 && p <= 47:
			d.emit(EditOp{Kind: OpSetBG, Color: Color{Mode: ColorModeStandard, Value: uint8(p - 40)}})
		case p == 49:
			d.emit(EditOp{Kind: OpSetBG, Color: DefaultBG})
		case p >= 90 && p <= 97:
			d.emit(EditOp{Kind: OpSetFG, Color: Color{Mode: ColorModeStandard, Value: uint8(p - 90 + 8)}})
		case p >= 100 && p <= 107:
			d.emit(EditOp{Kind: OpSetBG, Color: Color{Mode: ColorModeStandard, Value: uint8(p - 100 + 8)}})
		case p == 38 || p == 48:
			color, consumed, ok := extendedColor(params[i:])
			if !ok {
				// Malformed extended color; skip the introducer only.
				break
			}
			kind := OpSetFG
			if p == 48 {
				kind = OpSetBG
			}
			d.emit(EditOp{Kind: kind, Color: color})
			i += consumed
		}
		i++
	}
}

// extendedColor parses 38;5;n / 38;2;r;g;b style parameter runs. It returns
// the number of parameters consumed beyond the introducer.
func extendedColor(params []int) (Color, int, bool) {
	if len(params) >= 3 && params[1] == 5 {
		return Color{Mode: ColorMode256, Value: clampColor(params[2])}, 2, true
	}
	if len(params) >= 5 && params[1] == 2 {
		return Color{
			Mode: ColorModeRGB,
			R:    clampColor(params[2]),
			G:    clampColor(params[3]),
			B:    clampColor(params[4]),
		}, 4, true
	}
	return Color{}, 0, false
}

func clampColor(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
