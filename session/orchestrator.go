// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/orchestrator.go
// Summary: The session loop: one goroutine multiplexing keyboard input,
//          source output, and control events into the grid and display.
// Usage: Build with New, feed key events with PostKey, run the loop with
//        Run. Everything that mutates the grid or the state machine happens
//        on the Run goroutine; other goroutines only push into bounded
//        channels.
// Notes: Channel sends into the loop block when the loop falls behind.
//        That is the backpressure: a flood of remote output slows the
//        pump, not the UI thread, and nothing is silently reordered.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/remote"
	"palmterm/render"
	"palmterm/shell"
	"palmterm/storage"
	"palmterm/term"
)

const (
	keyBuffer     = 64
	outputBuffer  = 32
	remoteWBuffer = 128
	shellWBuffer  = 64

	// flushInterval paces screen updates when output trickles in.
	flushInterval = 50 * time.Millisecond

	// flushBudget forces a flush once this many raw bytes have been
	// decoded since the last one, so bulk output still paints promptly.
	flushBudget = 4096
)

// RemoteLink is the session's view of an established remote shell.
// *remote.Channel satisfies it.
type RemoteLink interface {
	io.ReadWriteCloser
	Resize(rows, cols int) error
}

// Config wires the orchestrator to the rest of the engine.
type Config struct {
	Device  render.Device
	Store   *config.Store
	Power   device.Power
	Storage storage.Storage
	Clock   *clock.Clock

	// AllowJobs enables the shell's run builtin.
	AllowJobs bool

	// DialTimeout bounds the TCP phase of a connect. Zero uses the
	// remote package default.
	DialTimeout time.Duration

	// OnState, when non-nil, observes every state transition. It runs on
	// the session goroutine and must not block.
	OnState func(State)
}

type ctrlKind int

const (
	ctrlDialPhase ctrlKind = iota
	ctrlDialDone
	ctrlSourceClosed
	ctrlResize
	ctrlConnect
)

type ctrlMsg struct {
	kind    ctrlKind
	phase   remote.Phase
	link    RemoteLink
	err     error
	srcID   int
	rows    int
	cols    int
	connect *connectReq
}

type sourceChunk struct {
	id   int
	data []byte
}

type connectReq struct {
	host, user, pass string
}

// shellMsg is one unit of work for the shell pump: input bytes, or a
// resize when data is nil.
type shellMsg struct {
	data       []byte
	rows, cols int
}

// Orchestrator owns a terminal session end to end.
type Orchestrator struct {
	cfg    Config
	grid   *term.Grid
	dec    *term.Decoder
	differ *render.Differ
	sh     *shell.Shell

	keys   chan term.KeyEvent
	output chan sourceChunk
	ctrl   chan ctrlMsg
	shellW chan shellMsg
	quit   chan struct{}
	done   chan struct{}

	// Everything below is touched only on the Run goroutine.
	state        State
	shellSrc     int
	activeSrc    int
	nextSrc      int
	link         RemoteLink
	linkW        chan []byte
	dialCancel   context.CancelFunc
	dirty        bool
	pendingBytes int

	dialFn func(ctx context.Context, opts remote.Options) (RemoteLink, error)
}

// New builds a session sized to the device.
func New(cfg Config) *Orchestrator {
	rows, cols := cfg.Device.Size()
	o := &Orchestrator{
		cfg:    cfg,
		grid:   term.NewGrid(rows, cols),
		dec:    term.NewDecoder(),
		differ: render.NewDiffer(),
		keys:   make(chan term.KeyEvent, keyBuffer),
		output: make(chan sourceChunk, outputBuffer),
		ctrl:   make(chan ctrlMsg, 8),
		shellW: make(chan shellMsg, shellWBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		dialFn: func(ctx context.Context, opts remote.Options) (RemoteLink, error) {
			return remote.Dial(ctx, opts)
		},
	}
	o.shellSrc = o.newSrcID()
	o.activeSrc = o.shellSrc
	o.sh = shell.New(shell.Options{
		Store:     cfg.Store,
		Power:     cfg.Power,
		Storage:   cfg.Storage,
		Clock:     cfg.Clock,
		AllowJobs: cfg.AllowJobs,
		Size:      o.grid.Size,
		Connect: func(host, user, pass string) {
			// Runs on the shell pump goroutine, inside dispatch.
			req := &connectReq{host: host, user: user, pass: pass}
			select {
			case o.ctrl <- ctrlMsg{kind: ctrlConnect, connect: req}:
			case <-o.quit:
			}
		},
	})
	return o
}

func (o *Orchestrator) newSrcID() int {
	o.nextSrc++
	return o.nextSrc
}

// PostKey hands a keyboard event to the session. It blocks when the session
// is saturated and returns false once the session has stopped.
func (o *Orchestrator) PostKey(ev term.KeyEvent) bool {
	select {
	case o.keys <- ev:
		return true
	case <-o.quit:
		return false
	}
}

// PostResize informs the session of new device dimensions.
func (o *Orchestrator) PostResize(rows, cols int) {
	select {
	case o.ctrl <- ctrlMsg{kind: ctrlResize, rows: rows, cols: cols}:
	case <-o.quit:
	}
}

// Stop ends the session. It does not wait; use Done.
func (o *Orchestrator) Stop() {
	select {
	case <-o.quit:
	default:
		close(o.quit)
	}
}

// Done is closed once Run has torn everything down.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Run executes the session loop until Stop. It blocks.
func (o *Orchestrator) Run() {
	defer close(o.done)

	o.setState(State{Phase: PhaseLocalShell})
	o.sh.Start()
	go o.readPump(o.shellSrc, o.sh)
	go o.shellPump()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	o.flush()

	for {
		select {
		case <-o.quit:
			o.teardown()
			return
		case ev := <-o.keys:
			o.handleKey(ev)
		case chunk := <-o.output:
			o.handleOutput(chunk)
		case msg := <-o.ctrl:
			o.handleCtrl(msg)
		case <-ticker.C:
			if o.dirty {
				o.flush()
			}
		}
	}
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	if s.Err != nil {
		log.Printf("Session: %s (%v)", s.Phase, s.Err)
	} else {
		log.Printf("Session: %s", s.Phase)
	}
	if o.cfg.OnState != nil {
		o.cfg.OnState(s)
	}
}

// State returns the state as of the last transition. Only meaningful from
// the OnState callback or after Done.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) handleKey(ev term.KeyEvent) {
	// Ctrl-F1 is the hardware reset chord. It works in every phase and
	// never reaches the active sink.
	if ev.Pressed && ev.Key == term.KeyF1 && ev.Modifiers&term.ModCtrl != 0 {
		if err := o.cfg.Power.Reboot(device.RebootNormal); err != nil {
			log.Printf("Session: reboot: %v", err)
		}
		return
	}

	switch o.state.Phase {
	case PhaseRemoteInteractive:
		// Ctrl-] is the local escape: it must work even when the
		// remote side has gone silent, so it never enters the link.
		if ev.Pressed && ev.Key == term.KeyRune && ev.Rune == ']' && ev.Modifiers&term.ModCtrl != 0 {
			o.closeRemote("connection to " + o.state.Host + " closed")
			return
		}
		b := term.EncodeKey(ev, o.grid.Modes())
		if len(b) > 0 {
			o.sendRemote(b)
		}

	case PhaseConnecting, PhaseAuthenticating:
		// Only Ctrl-C does anything: it abandons the attempt.
		if ev.Pressed && ev.Key == term.KeyRune && ev.Rune == 'c' && ev.Modifiers&term.ModCtrl != 0 {
			if o.dialCancel != nil {
				o.dialCancel()
			}
		}

	case PhaseLocalShell:
		b := term.EncodeKey(ev, o.grid.Modes())
		if len(b) > 0 {
			o.sendShell(shellMsg{data: b})
		}
	}
}

func (o *Orchestrator) handleOutput(chunk sourceChunk) {
	if chunk.id != o.activeSrc {
		// A stale pump drained after a source switch; its bytes no
		// longer belong on screen.
		return
	}
	o.applyBytes(chunk.data)
}

func (o *Orchestrator) applyBytes(b []byte) {
	o.grid.ApplyAll(o.dec.Feed(b))
	o.dirty = true
	o.pendingBytes += len(b)
	if o.pendingBytes >= flushBudget {
		o.flush()
	}
}

func (o *Orchestrator) handleCtrl(msg ctrlMsg) {
	switch msg.kind {
	case ctrlDialPhase:
		o.handleDialPhase(msg.phase)
	case ctrlDialDone:
		o.handleDialDone(msg.link, msg.err)
	case ctrlSourceClosed:
		if msg.srcID == o.activeSrc && o.state.Phase == PhaseRemoteInteractive {
			o.closeRemote("connection to " + o.state.Host + " closed")
		}
	case ctrlResize:
		o.handleResize(msg.rows, msg.cols)
	case ctrlConnect:
		if o.state.Phase == PhaseLocalShell {
			o.startDial(*msg.connect)
		}
	}
}

func (o *Orchestrator) handleDialPhase(p remote.Phase) {
	if o.state.Phase != PhaseConnecting && o.state.Phase != PhaseAuthenticating {
		return
	}
	if p == remote.PhaseAuthenticating {
		o.setState(State{Phase: PhaseAuthenticating, Host: o.state.Host})
		o.applyBytes([]byte("authenticating...\r\n"))
	}
}

func (o *Orchestrator) startDial(req connectReq) {
	rows, cols := o.grid.Size()
	ctx, cancel := context.WithCancel(context.Background())
	o.dialCancel = cancel

	o.setState(State{Phase: PhaseConnecting, Host: req.host})
	o.applyBytes([]byte("connecting to " + req.host + "...\r\n"))

	opts := remote.Options{
		Host:           req.host,
		User:           req.user,
		Password:       req.pass,
		Rows:           rows,
		Cols:           cols,
		ConnectTimeout: o.cfg.DialTimeout,
		Notify: func(p remote.Phase) {
			select {
			case o.ctrl <- ctrlMsg{kind: ctrlDialPhase, phase: p}:
			case <-o.quit:
			}
		},
	}
	go func() {
		link, err := o.dialFn(ctx, opts)
		select {
		case o.ctrl <- ctrlMsg{kind: ctrlDialDone, link: link, err: err}:
		case <-o.quit:
			if link != nil {
				link.Close()
			}
		}
	}()
}

func (o *Orchestrator) handleDialDone(link RemoteLink, err error) {
	if o.dialCancel != nil {
		o.dialCancel()
		o.dialCancel = nil
	}
	if o.state.Phase != PhaseConnecting && o.state.Phase != PhaseAuthenticating {
		// The attempt was abandoned; discard a late success.
		if link != nil {
			link.Close()
		}
		return
	}

	if err != nil {
		o.setState(State{Phase: PhaseLocalShell, Err: err})
		o.sh.Notify(fmt.Sprintf("ssh: %v", err))
		return
	}

	o.link = link
	o.linkW = make(chan []byte, remoteWBuffer)
	id := o.newSrcID()
	o.activeSrc = id
	o.dec.Reset()
	o.setState(State{Phase: PhaseRemoteInteractive, Host: o.state.Host})
	go o.readPump(id, link)
	go o.writePump(link, o.linkW)
}

// shellPump feeds the shell off the loop goroutine. Shell dispatch runs
// synchronously inside Write and a builtin's output can outrun the bounded
// buffers; the pump is what suspends then, while the loop keeps draining.
func (o *Orchestrator) shellPump() {
	for {
		select {
		case m := <-o.shellW:
			if m.data != nil {
				o.sh.Write(m.data)
			} else {
				o.sh.Resize(m.rows, m.cols)
			}
		case <-o.quit:
			return
		}
	}
}

func (o *Orchestrator) sendShell(m shellMsg) {
	select {
	case o.shellW <- m:
	case <-o.quit:
	default:
		// The shell is wedged in a long command with a full queue.
		// Dropping keystrokes beats wedging the loop, same as the
		// remote sink below.
		log.Printf("Session: shell queue full, dropping input")
	}
}

func (o *Orchestrator) sendRemote(b []byte) {
	select {
	case o.linkW <- b:
	case <-o.quit:
	default:
		// The link has stalled with a full queue. Dropping keystrokes
		// beats wedging the loop; Ctrl-] still gets through above.
		log.Printf("Session: remote send queue full, dropping %d bytes", len(b))
	}
}

func (o *Orchestrator) closeRemote(notice string) {
	if o.link == nil {
		return
	}
	o.setState(State{Phase: PhaseClosing, Host: o.state.Host})
	o.link.Close()
	close(o.linkW)
	o.link = nil
	o.linkW = nil

	o.activeSrc = o.shellSrc
	o.dec.Reset()
	o.setState(State{Phase: PhaseLocalShell})
	o.sh.Notify(notice)
}

func (o *Orchestrator) handleResize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	o.grid.Apply(term.EditOp{Kind: term.OpResize, Rows: rows, Cols: cols})
	// Via the pump: Resize takes the shell mutex, which a dispatch
	// blocked on output may be holding.
	o.sendShell(shellMsg{rows: rows, cols: cols})
	if o.link != nil {
		if err := o.link.Resize(rows, cols); err != nil {
			log.Printf("Session: remote resize: %v", err)
		}
	}
	o.dirty = true
	o.flush()
}

func (o *Orchestrator) flush() {
	diff := o.differ.Commit(o.grid)
	if !diff.Empty() {
		render.Draw(o.cfg.Device, diff)
		o.cfg.Device.Flush()
	}
	o.dirty = false
	o.pendingBytes = 0
}

func (o *Orchestrator) teardown() {
	if o.dialCancel != nil {
		o.dialCancel()
	}
	if o.link != nil {
		o.link.Close()
		close(o.linkW)
		o.link = nil
	}
	o.sh.Close()
	o.setState(State{Phase: PhaseIdle})
}

// readPump relays source output into the loop until the source ends.
func (o *Orchestrator) readPump(id int, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case o.output <- sourceChunk{id: id, data: chunk}:
			case <-o.quit:
				return
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, io.ErrClosedPipe) {
				log.Printf("Session: source %d read: %v", id, err)
			}
			select {
			case o.ctrl <- ctrlMsg{kind: ctrlSourceClosed, srcID: id, err: err}:
			case <-o.quit:
			}
			return
		}
	}
}

// writePump drains outgoing bytes to the remote link.
func (o *Orchestrator) writePump(link RemoteLink, ch chan []byte) {
	for b := range ch {
		if _, err := link.Write(b); err != nil {
			log.Printf("Session: remote write: %v", err)
			return
		}
	}
}
