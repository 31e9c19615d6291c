// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: session/orchestrator_test.go
// Summary: End-to-end tests of the session loop against fake devices and
//          fake remote links.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/remote"
	"palmterm/storage"
	"palmterm/term"
)

// fakeDevice records what the session draws.
type fakeDevice struct {
	mu      sync.Mutex
	rows    int
	cols    int
	cells   [][]rune
	flushes int
}

func newFakeDevice(rows, cols int) *fakeDevice {
	d := &fakeDevice{rows: rows, cols: cols}
	d.cells = make([][]rune, rows)
	for r := range d.cells {
		d.cells[r] = make([]rune, cols)
	}
	return d
}

func (d *fakeDevice) Size() (int, int) { return d.rows, d.cols }

func (d *fakeDevice) WriteSpan(row, col int, cells []term.Cell) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range cells {
		if row < d.rows && col+i < d.cols {
			d.cells[row][col+i] = c.Rune
		}
	}
}

func (d *fakeDevice) SetCursor(row, col int, visible bool) {}

func (d *fakeDevice) Flush() {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()
}

func (d *fakeDevice) text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, row := range d.cells {
		for _, r := range row {
			if r != 0 {
				b.WriteRune(r)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// fakeLink is an in-memory remote shell endpoint.
type fakeLink struct {
	outR *io.PipeReader // session reads remote output here
	outW *io.PipeWriter // test writes remote output here
	inR  *io.PipeReader // test reads keyboard bytes here
	inW  *io.PipeWriter // session writes keyboard bytes here

	mu      sync.Mutex
	resizes [][2]int

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeLink() *fakeLink {
	l := &fakeLink{closed: make(chan struct{})}
	l.outR, l.outW = io.Pipe()
	l.inR, l.inW = io.Pipe()
	return l
}

func (l *fakeLink) Read(p []byte) (int, error)  { return l.outR.Read(p) }
func (l *fakeLink) Write(p []byte) (int, error) { return l.inW.Write(p) }

func (l *fakeLink) Resize(rows, cols int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resizes = append(l.resizes, [2]int{rows, cols})
	return nil
}

func (l *fakeLink) Close() error {
	l.closeOnce.Do(func() {
		l.outR.Close()
		l.outW.Close()
		l.inR.Close()
		l.inW.Close()
		close(l.closed)
	})
	return nil
}

type harness struct {
	o      *Orchestrator
	dev    *fakeDevice
	states chan State
}

func newHarness(t *testing.T, configure func(*Config)) *harness {
	t.Helper()
	store, err := config.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("config.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		dev:    newFakeDevice(12, 60),
		states: make(chan State, 64),
	}
	cfg := Config{
		Device: h.dev,
		Store:  store,
		Power:  device.NewSimPower(),
		Clock:  clock.New(""),
		OnState: func(s State) {
			select {
			case h.states <- s:
			default:
			}
		},
	}
	if configure != nil {
		configure(&cfg)
	}
	h.o = New(cfg)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	go h.o.Run()
	t.Cleanup(func() {
		h.o.Stop()
		select {
		case <-h.o.Done():
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
	h.waitState(t, PhaseLocalShell)
}

func (h *harness) typeString(s string) {
	for _, r := range s {
		ev := term.KeyEvent{Key: term.KeyRune, Rune: r, Pressed: true}
		if r == '\r' || r == '\n' {
			ev = term.KeyEvent{Key: term.KeyEnter, Pressed: true}
		}
		h.o.PostKey(ev)
	}
}

func (h *harness) waitState(t *testing.T, want Phase) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.states:
			if s.Phase == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func (h *harness) waitScreen(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(h.dev.text(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("screen never showed %q; screen:\n%s", substr, h.dev.text())
}

func storeCreds(t *testing.T, o *Orchestrator) {
	t.Helper()
	for k, v := range map[string]string{
		config.KeySSHUser: "pi",
		config.KeySSHPass: "raspberry",
	} {
		if err := o.cfg.Store.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocalCommandRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.waitScreen(t, "palmterm")
	h.typeString("bat\r")
	h.waitScreen(t, "battery: 87% (discharging)")
}

// TestBulkBuiltinOutputKeepsLoopLive floods the shell's output buffers far
// past their capacity with a single builtin. The loop must keep draining
// while the dispatching goroutine suspends, and must still answer for
// input and shutdown afterwards.
func TestBulkBuiltinOutputKeepsLoopLive(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 400; i++ {
		name := fmt.Sprintf("file-%03d.txt", i)
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	card, err := storage.NewDirStorage(root)
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, func(cfg *Config) { cfg.Storage = card })
	h.start(t)

	h.typeString("ls\r")
	h.waitScreen(t, "file-399.txt")

	h.typeString("bat\r")
	h.waitScreen(t, "battery:")

	h.o.Stop()
	select {
	case <-h.o.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after bulk output")
	}
}

func TestRebootChordWorksInEveryPhase(t *testing.T) {
	power := device.NewSimPower()
	rebooted := make(chan device.RebootMode, 2)
	power.OnReboot = func(m device.RebootMode) { rebooted <- m }

	link := newFakeLink()
	h := newHarness(t, func(cfg *Config) { cfg.Power = power })
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	chord := term.KeyEvent{Key: term.KeyF1, Modifiers: term.ModCtrl, Pressed: true}

	h.o.PostKey(chord)
	select {
	case m := <-rebooted:
		if m != device.RebootNormal {
			t.Errorf("reboot mode = %v, want RebootNormal", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chord ignored in local shell phase")
	}

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	h.o.PostKey(chord)
	select {
	case <-rebooted:
	case <-time.After(2 * time.Second):
		t.Fatal("chord ignored in remote phase")
	}
}

func TestConnectReachesRemoteState(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(ctx context.Context, opts remote.Options) (RemoteLink, error) {
		opts.Notify(remote.PhaseConnecting)
		opts.Notify(remote.PhaseAuthenticating)
		if opts.Rows != 12 || opts.Cols != 60 {
			t.Errorf("pty sized %dx%d, want grid size 12x60", opts.Rows, opts.Cols)
		}
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseConnecting)
	h.waitState(t, PhaseAuthenticating)
	s := h.waitState(t, PhaseRemoteInteractive)
	if s.Host != "testhost" {
		t.Errorf("Host = %q, want testhost", s.Host)
	}
	h.waitScreen(t, "connecting to testhost")
}

func TestRemoteOutputReachesScreen(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	link.outW.Write([]byte("remote \x1b[1mgreeting\x1b[0m"))
	h.waitScreen(t, "remote greeting")
}

func TestEscapeChordDisconnectsSilentRemote(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh deadhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	// The remote sends nothing at all; the chord must still cut through.
	h.o.PostKey(term.KeyEvent{Key: term.KeyRune, Rune: ']', Modifiers: term.ModCtrl, Pressed: true})
	h.waitState(t, PhaseClosing)
	h.waitState(t, PhaseLocalShell)

	select {
	case <-link.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("link was not closed")
	}
	h.waitScreen(t, "connection to deadhost closed")
}

func TestRemoteEOFReturnsToShell(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	link.outW.Close() // remote shell exits
	h.waitState(t, PhaseLocalShell)
	h.waitScreen(t, "connection to testhost closed")
}

func TestDialFailureReportsAndRecovers(t *testing.T) {
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return nil, errors.New("no route to host")
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseConnecting)
	s := h.waitState(t, PhaseLocalShell)
	if s.Err == nil {
		t.Error("state after failed dial should carry the error")
	}
	h.waitScreen(t, "ssh: no route to host")

	// The shell still works afterwards.
	h.typeString("bat\r")
	h.waitScreen(t, "battery:")
}

func TestKeyEncodingFollowsRemoteModes(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	received := make(chan []byte, 16)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := link.inR.Read(buf)
			if n > 0 {
				b := make([]byte, n)
				copy(b, buf[:n])
				received <- b
			}
			if err != nil {
				return
			}
		}
	}()

	collect := func() []byte {
		var all []byte
		deadline := time.After(2 * time.Second)
		for {
			select {
			case b := <-received:
				all = append(all, b...)
				if len(all) >= 3 {
					return all
				}
			case <-deadline:
				return all
			}
		}
	}

	h.o.PostKey(term.KeyEvent{Key: term.KeyUp, Pressed: true})
	if got := collect(); !strings.Contains(string(got), "\x1b[A") {
		t.Fatalf("Up in normal mode sent %q, want ESC [ A", got)
	}

	// The remote application turns on cursor key mode; the next arrow
	// must use the SS3 form.
	link.outW.Write([]byte("\x1b[?1h"))
	h.waitSync(t)
	h.o.PostKey(term.KeyEvent{Key: term.KeyUp, Pressed: true})
	if got := collect(); !strings.Contains(string(got), "\x1bOA") {
		t.Fatalf("Up in application mode sent %q, want ESC O A", got)
	}
}

func TestResizePropagates(t *testing.T) {
	link := newFakeLink()
	h := newHarness(t, nil)
	h.o.dialFn = func(context.Context, remote.Options) (RemoteLink, error) {
		return link, nil
	}
	storeCreds(t, h.o)
	h.start(t)

	h.typeString("ssh testhost\r")
	h.waitState(t, PhaseRemoteInteractive)

	h.o.PostResize(30, 100)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		link.mu.Lock()
		n := len(link.resizes)
		link.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	if len(link.resizes) == 0 || link.resizes[0] != [2]int{30, 100} {
		t.Fatalf("remote resizes = %v, want [[30 100]]", link.resizes)
	}
}

// waitSync gives the loop a moment to absorb already-queued output. Mode
// changes leave nothing visible to poll for, so this settles on time.
func (h *harness) waitSync(t *testing.T) {
	t.Helper()
	time.Sleep(100 * time.Millisecond)
}
