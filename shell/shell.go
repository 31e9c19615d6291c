// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/shell.go
// Summary: The local shell as a byte endpoint.
// Usage: The session writes encoded keyboard bytes in and reads terminal
//        output back, exactly as it would with a remote channel. Line
//        editing, echo, history, and command dispatch all happen here.
// Notes: Write processes input synchronously. Output goes through a bounded
//        channel; a stalled reader eventually blocks Write, which is the
//        backpressure the session relies on.

package shell

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/storage"
)

const (
	defaultPrompt = "$ "
	outBuffer     = 256
	historyLimit  = 100
)

// Options wires the shell to the rest of the engine.
type Options struct {
	Store   *config.Store
	Power   device.Power
	Storage storage.Storage
	Clock   *clock.Clock

	// Size returns the grid dimensions; used by pty jobs.
	Size func() (rows, cols int)

	// Connect is invoked by the ssh builtin once credentials are known.
	Connect func(host, user, pass string)

	// AllowJobs enables the run builtin.
	AllowJobs bool
}

// Shell is the local command interpreter behind the session's LocalShell
// state. It satisfies the same Read/Write/Close contract as a remote
// channel.
type Shell struct {
	disp *Dispatcher
	env  *Env

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	readRest  []byte

	mu   sync.Mutex
	line []rune

	hist      []string
	histIdx   int
	histStash []rune

	// escape-sequence input state
	esc   int // 0 ground, 1 after ESC, 2 in CSI
	u8buf [utf8.UTFMax]byte
	u8len int

	promptText string
	echoInput  bool
	pending    func(string)
	suspended  bool

	job        *Job
	rows, cols int
}

// New returns a shell ready for Start.
func New(opts Options) *Shell {
	s := &Shell{
		disp:       NewDispatcher(),
		out:        make(chan []byte, outBuffer),
		done:       make(chan struct{}),
		promptText: defaultPrompt,
		echoInput:  true,
		rows:       24,
		cols:       80,
	}
	s.env = &Env{
		Out:     &emitWriter{s: s},
		Store:   opts.Store,
		Power:   opts.Power,
		Storage: opts.Storage,
		Clock:   opts.Clock,
		Size:    opts.Size,
		Prompt:  s.requestInput,
	}
	if opts.Connect != nil {
		// The session owns the screen once a connect starts; hold the
		// prompt until Notify hands control back.
		s.env.Connect = func(host, user, pass string) {
			s.suspended = true
			opts.Connect(host, user, pass)
		}
	}
	if opts.Size != nil {
		if r, c := opts.Size(); r > 0 && c > 0 {
			s.rows, s.cols = r, c
		}
	}
	if opts.AllowJobs {
		s.env.StartJob = s.startJob
	}
	return s
}

// Start prints the banner and the first prompt.
func (s *Shell) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(banner())
	s.showPrompt()
}

// Notify prints a message above a fresh prompt. Used when the session hands
// control back, e.g. after a remote connection closes.
func (s *Shell) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
	if msg != "" {
		s.emit("\n" + msg + "\n")
	}
	s.showPrompt()
}

// Resize records new grid dimensions and propagates them to a running job.
func (s *Shell) Resize(rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows > 0 && cols > 0 {
		s.rows, s.cols = rows, cols
		if s.job != nil {
			s.job.Resize(rows, cols)
		}
	}
}

// Write consumes keyboard bytes. It never fails; malformed input is dropped.
func (s *Shell) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil {
		// An attached job owns the byte stream wholesale.
		s.job.Write(p)
		return len(p), nil
	}

	for _, b := range p {
		s.feedByte(b)
	}
	return len(p), nil
}

// Read returns shell output. It blocks until output exists and returns
// io.EOF after Close once the buffer drains.
func (s *Shell) Read(p []byte) (int, error) {
	if len(s.readRest) > 0 {
		n := copy(p, s.readRest)
		s.readRest = s.readRest[n:]
		return n, nil
	}

	select {
	case chunk := <-s.out:
		n := copy(p, chunk)
		s.readRest = chunk[n:]
		return n, nil
	case <-s.done:
		select {
		case chunk := <-s.out:
			n := copy(p, chunk)
			s.readRest = chunk[n:]
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

// Close shuts the shell down, killing any attached job.
func (s *Shell) Close() error {
	s.closeOnce.Do(func() {
		// Closing done first releases any Write blocked on a full
		// output buffer, so the lock below cannot wedge.
		close(s.done)
		s.mu.Lock()
		if s.job != nil {
			s.job.Stop()
			s.job = nil
		}
		s.mu.Unlock()
	})
	return nil
}

// requestInput arms a one-line prompt for a builtin. Called with mu held,
// from inside Dispatch.
func (s *Shell) requestInput(text string, echo bool, cont func(string)) {
	s.promptText = text
	s.echoInput = echo
	s.pending = cont
}

// feedByte advances the line editor by one input byte. mu held.
func (s *Shell) feedByte(b byte) {
	switch s.esc {
	case 1:
		if b == '[' {
			s.esc = 2
		} else {
			s.esc = 0 // lone ESC chord; ignored
		}
		return
	case 2:
		if b >= 0x40 && b <= 0x7e {
			s.esc = 0
			switch b {
			case 'A':
				s.histPrev()
			case 'B':
				s.histNext()
			}
			// Left/right/home/end are not supported; editing is
			// append-and-backspace only, like the hardware keyboard.
		}
		return
	}

	if s.u8len > 0 || b >= 0x80 {
		s.feedUTF8(b)
		return
	}

	switch b {
	case 0x1b:
		s.esc = 1
	case '\r', '\n':
		s.execLine()
	case 0x7f, '\b':
		s.backspace()
	case 0x03: // Ctrl-C
		s.emit("^C\n")
		s.line = s.line[:0]
		s.cancelPending()
		s.showPrompt()
	case 0x15: // Ctrl-U
		for len(s.line) > 0 {
			s.backspace()
		}
	default:
		if b >= 0x20 {
			s.insertRune(rune(b))
		}
	}
}

func (s *Shell) feedUTF8(b byte) {
	if s.u8len >= len(s.u8buf) {
		s.u8len = 0
		return
	}
	s.u8buf[s.u8len] = b
	s.u8len++
	if utf8.FullRune(s.u8buf[:s.u8len]) {
		r, _ := utf8.DecodeRune(s.u8buf[:s.u8len])
		s.u8len = 0
		if r != utf8.RuneError {
			s.insertRune(r)
		}
	}
}

func (s *Shell) insertRune(r rune) {
	s.line = append(s.line, r)
	if s.echoInput {
		s.emit(string(r))
	}
}

func (s *Shell) backspace() {
	if len(s.line) == 0 {
		return
	}
	r := s.line[len(s.line)-1]
	s.line = s.line[:len(s.line)-1]
	if s.echoInput {
		w := runewidth.RuneWidth(r)
		if w < 1 {
			w = 1
		}
		s.emit(strings.Repeat("\b", w) + strings.Repeat(" ", w) + strings.Repeat("\b", w))
	}
}

func (s *Shell) execLine() {
	line := string(s.line)
	s.line = s.line[:0]
	s.emit("\n")

	if cont := s.pending; cont != nil {
		s.pending = nil
		s.promptText = defaultPrompt
		s.echoInput = true
		cont(line)
	} else if strings.TrimSpace(line) != "" {
		s.remember(line)
		s.disp.Dispatch(s.env, line)
	}

	// A builtin (or a prompt continuation) may have armed another prompt,
	// attached a job, or handed the screen to the session; in all those
	// cases the next prompt is not ours to print.
	if s.job == nil && !s.suspended {
		s.showPrompt()
	}
}

func (s *Shell) cancelPending() {
	s.pending = nil
	s.promptText = defaultPrompt
	s.echoInput = true
}

func (s *Shell) showPrompt() {
	s.histIdx = len(s.hist)
	s.histStash = nil
	s.emit(s.promptText)
}

func (s *Shell) remember(line string) {
	if len(s.hist) > 0 && s.hist[len(s.hist)-1] == line {
		return
	}
	s.hist = append(s.hist, line)
	if len(s.hist) > historyLimit {
		s.hist = s.hist[1:]
	}
}

func (s *Shell) histPrev() {
	if s.pending != nil || s.histIdx == 0 {
		return
	}
	if s.histIdx == len(s.hist) {
		s.histStash = append([]rune(nil), s.line...)
	}
	s.histIdx--
	s.setLine([]rune(s.hist[s.histIdx]))
}

func (s *Shell) histNext() {
	if s.pending != nil || s.histIdx >= len(s.hist) {
		return
	}
	s.histIdx++
	if s.histIdx == len(s.hist) {
		s.setLine(s.histStash)
	} else {
		s.setLine([]rune(s.hist[s.histIdx]))
	}
}

func (s *Shell) setLine(line []rune) {
	s.line = append(s.line[:0], line...)
	s.emit("\r\x1b[K" + s.promptText + string(s.line))
}

// emit queues terminal output, translating newlines to CR LF. mu held.
func (s *Shell) emit(text string) {
	if text == "" {
		return
	}
	text = strings.ReplaceAll(text, "\n", "\r\n")
	select {
	case <-s.done:
	case s.out <- []byte(text):
	}
}

// emitWriter adapts emit to io.Writer for builtins. The shell's mutex is
// already held when builtins run.
type emitWriter struct {
	s *Shell
}

func (w *emitWriter) Write(p []byte) (int, error) {
	w.s.emit(string(p))
	return len(p), nil
}

// Version is stamped by the build; the default marks development builds.
var Version = "dev"

func banner() string {
	return fmt.Sprintf("palmterm %s\ntype 'help' for commands\n\n", Version)
}
