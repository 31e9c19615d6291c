// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: term/decoder.go
// Summary: VT byte-stream state machine that emits structured edit operations.
// Usage: Fed arbitrary chunks by the session orchestrator; continuation state
//        survives any chunk boundary, including mid-escape and mid-UTF-8.
// Notes: Unrecognized sequences are consumed without edits so an unsupported
//        sequence can never desynchronize subsequent parsing.

package term

import (
	"log"
	"unicode/utf8"
)

type decState int

const (
	stateGround decState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEscape
	stateCharset
)

// oscLimit bounds how many bytes of an OSC payload we retain. Payload past
// the limit is still consumed, just not buffered.
const oscLimit = 256

// Decoder turns a byte stream into edit operations. All continuation state
// (partial escape sequence, partial UTF-8 rune, parameter accumulation) lives
// in the struct, so feeding a stream in chunks of any size produces the same
// operations as feeding it whole.
type Decoder struct {
	state        decState
	params       []int
	currentParam int
	private      bool
	intermediate byte

	oscBuf []byte

	utf8Buf [utf8.UTFMax]byte
	utf8Len int

	ops []EditOp
}

// NewDecoder returns a decoder in the ground state.
func NewDecoder() *Decoder {
	return &Decoder{
		params: make([]int, 0, 16),
		oscBuf: make([]byte, 0, oscLimit),
		ops:    make([]EditOp, 0, 64),
	}
}

// Reset discards all continuation state. Called when the active byte source
// changes so one source's half-finished sequence cannot bleed into the next.
func (d *Decoder) Reset() {
	d.state = stateGround
	d.params = d.params[:0]
	d.currentParam = 0
	d.private = false
	d.intermediate = 0
	d.oscBuf = d.oscBuf[:0]
	d.utf8Len = 0
}

// Feed consumes a chunk and returns the edit operations it produced, in
// emission order. The returned slice is reused by the next Feed call; apply
// it before feeding again.
func (d *Decoder) Feed(chunk []byte) []EditOp {
	d.ops = d.ops[:0]
	for _, b := range chunk {
		d.step(b)
	}
	return d.ops
}

func (d *Decoder) emit(op EditOp) {
	d.ops = append(d.ops, op)
}

func (d *Decoder) step(b byte) {
	switch d.state {
	case stateGround:
		d.stepGround(b)
	case stateEscape:
		d.stepEscape(b)
	case stateCSI:
		d.stepCSI(b)
	case stateOSC:
		if b == 0x07 {
			d.oscBuf = d.oscBuf[:0]
			d.state = stateGround
		} else if b == 0x1b {
			d.state = stateOSCEscape
		} else if len(d.oscBuf) < oscLimit {
			d.oscBuf = append(d.oscBuf, b)
		}
	case stateOSCEscape:
		// Only ESC \ (ST) terminates; anything else returns to the payload.
		d.oscBuf = d.oscBuf[:0]
		if b == '\\' {
			d.state = stateGround
		} else {
			d.state = stateOSC
		}
	case stateCharset:
		// Charset designation byte; consumed without effect.
		d.state = stateGround
	}
}

func (d *Decoder) stepGround(b byte) {
	if d.utf8Len > 0 {
		d.continueUTF8(b)
		return
	}
	switch {
	case b == 0x1b:
		d.state = stateEscape
	case b == '\n', b == 0x0b, b == 0x0c:
		d.emit(EditOp{Kind: OpLineFeed})
	case b == '\r':
		d.emit(EditOp{Kind: OpMoveTo, Row: -1, Col: 0})
	case b == '\b':
		d.emit(EditOp{Kind: OpMoveBy, DCol: -1})
	case b == '\t':
		d.emit(EditOp{Kind: OpTab})
	case b < 0x20 || b == 0x7f:
		// Remaining C0 controls (BEL, NUL, ...) have no grid effect.
	case b < utf8.RuneSelf:
		d.emit(EditOp{Kind: OpPut, Rune: rune(b)})
	default:
		d.utf8Buf[0] = b
		d.utf8Len = 1
		d.flushUTF8IfComplete()
	}
}

func (d *Decoder) continueUTF8(b byte) {
	if b < 0x80 || b >= 0xc0 {
		// Not a continuation byte: the accumulated rune is malformed.
		// Drop it and reprocess this byte from scratch.
		d.utf8Len = 0
		d.stepGround(b)
		return
	}
	d.utf8Buf[d.utf8Len] = b
	d.utf8Len++
	d.flushUTF8IfComplete()
}

func (d *Decoder) flushUTF8IfComplete() {
	if !utf8.FullRune(d.utf8Buf[:d.utf8Len]) {
		if d.utf8Len >= utf8.UTFMax {
			d.utf8Len = 0
		}
		return
	}
	r, _ := utf8.DecodeRune(d.utf8Buf[:d.utf8Len])
	d.utf8Len = 0
	if r != utf8.RuneError {
		d.emit(EditOp{Kind: OpPut, Rune: r})
	}
}

func (d *Decoder) stepEscape(b byte) {
	switch b {
	case '[':
		d.state = stateCSI
		d.params = d.params[:0]
		d.currentParam = 0
		d.private = false
		d.intermediate = 0
	case ']':
		d.state = stateOSC
		d.oscBuf = d.oscBuf[:0]
	case '(', ')':
		d.state = stateCharset
	case '7':
		d.emit(EditOp{Kind: OpSaveCursor})
		d.state = stateGround
	case '8':
		d.emit(EditOp{Kind: OpRestoreCursor})
		d.state = stateGround
	case 'D': // IND
		d.emit(EditOp{Kind: OpLineFeed})
		d.state = stateGround
	case 'E': // NEL
		d.emit(EditOp{Kind: OpMoveTo, Row: -1, Col: 0})
		d.emit(EditOp{Kind: OpLineFeed})
		d.state = stateGround
	case 'M': // RI
		d.emit(EditOp{Kind: OpReverseIndex})
		d.state = stateGround
	case '=':
		d.emit(EditOp{Kind: OpSetMode, Mode: ModeAppKeypad, On: true})
		d.state = stateGround
	case '>':
		d.emit(EditOp{Kind: OpSetMode, Mode: ModeAppKeypad, On: false})
		d.state = stateGround
	case 'c': // RIS
		d.emit(EditOp{Kind: OpReset})
		d.state = stateGround
	default:
		log.Printf("Decoder: unhandled ESC %q", b)
		d.state = stateGround
	}
}

func (d *Decoder) stepCSI(b byte) {
	switch {
	case b >= '0' && b <= '9':
		d.currentParam = d.currentParam*10 + int(b-'0')
	case b == ';':
		d.params = append(d.params, d.currentParam)
		d.currentParam = 0
	case b >= '<' && b <= '?':
		d.private = true
	case b >= ' ' && b <= '/':
		d.intermediate = b
	case b >= '@' && b <= '~':
		d.params = append(d.params, d.currentParam)
		d.dispatchCSI(b, d.params, d.private, d.intermediate)
		d.state = stateGround
	default:
		// Stray control byte inside a CSI sequence; abandon the sequence.
		d.state = stateGround
	}
}
