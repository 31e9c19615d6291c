// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/shell_test.go
// Summary: Tests for the local shell's line editing and dispatch.

package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"palmterm/clock"
	"palmterm/config"
	"palmterm/device"
	"palmterm/storage"
)

type connectCall struct {
	host, user, pass string
}

func newTestShell(t *testing.T) (*Shell, *[]connectCall) {
	t.Helper()
	store, err := config.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("config.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var calls []connectCall
	s := New(Options{
		Store: store,
		Power: device.NewSimPower(),
		Clock: clock.New(""),
		Size:  func() (int, int) { return 24, 80 },
		Connect: func(host, user, pass string) {
			calls = append(calls, connectCall{host, user, pass})
		},
	})
	t.Cleanup(func() { s.Close() })
	return s, &calls
}

// drain empties the output buffer without blocking.
func drain(s *Shell) string {
	var b strings.Builder
	for {
		select {
		case chunk := <-s.out:
			b.Write(chunk)
		default:
			return b.String()
		}
	}
}

func typeLine(s *Shell, line string) {
	s.Write([]byte(line))
	s.Write([]byte{'\r'})
}

func TestBannerAndPrompt(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	out := drain(s)
	if !strings.Contains(out, "palmterm") {
		t.Errorf("banner missing from %q", out)
	}
	if !strings.HasSuffix(out, defaultPrompt) {
		t.Errorf("output should end with the prompt, got %q", out)
	}
}

func TestDispatchAndEcho(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	typeLine(s, "bat")
	out := drain(s)
	if !strings.Contains(out, "bat\r\n") {
		t.Errorf("input not echoed: %q", out)
	}
	if !strings.Contains(out, "battery: 87% (discharging)") {
		t.Errorf("bat output missing: %q", out)
	}
	if !strings.HasSuffix(out, defaultPrompt) {
		t.Errorf("no fresh prompt after command: %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	typeLine(s, "frobnicate")
	if out := drain(s); !strings.Contains(out, "command not found") {
		t.Errorf("expected not-found message, got %q", out)
	}
}

func TestBackspaceEditing(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	s.Write([]byte("bax"))
	s.Write([]byte{0x7f})
	s.Write([]byte("t\r"))
	out := drain(s)
	if !strings.Contains(out, "\b \b") {
		t.Errorf("backspace not echoed as erase: %q", out)
	}
	if !strings.Contains(out, "battery:") {
		t.Errorf("edited line did not run bat: %q", out)
	}
}

func TestCtrlCCancelsLine(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	s.Write([]byte("garbage"))
	s.Write([]byte{0x03})
	typeLine(s, "bat")
	out := drain(s)
	if !strings.Contains(out, "^C") {
		t.Errorf("^C not shown: %q", out)
	}
	if !strings.Contains(out, "battery:") {
		t.Errorf("command after ^C did not run: %q", out)
	}
	if strings.Contains(out, "garbage: command not found") {
		t.Errorf("canceled line was executed: %q", out)
	}
}

func TestHistoryRecall(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	typeLine(s, "bat")
	drain(s)

	// Up arrow recalls, Enter reruns.
	s.Write([]byte("\x1b[A"))
	out := drain(s)
	if !strings.Contains(out, defaultPrompt+"bat") {
		t.Errorf("history recall did not redraw the line: %q", out)
	}
	s.Write([]byte{'\r'})
	if out := drain(s); !strings.Contains(out, "battery:") {
		t.Errorf("recalled command did not run: %q", out)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s, _ := newTestShell(t)
	s.Start()
	drain(s)

	typeLine(s, "config set ssh_user pi")
	drain(s)
	typeLine(s, "config get ssh_user")
	if out := drain(s); !strings.Contains(out, "pi\r\n") {
		t.Errorf("config get = %q, want pi", out)
	}

	typeLine(s, "config set ssh_pw hunter2")
	drain(s)
	typeLine(s, "config list")
	out := drain(s)
	if strings.Contains(out, "hunter2") {
		t.Errorf("config list leaked the password: %q", out)
	}
	if !strings.Contains(out, "ssh_pw = ********") {
		t.Errorf("config list should mask the password: %q", out)
	}
}

func TestSSHPromptsForCredentials(t *testing.T) {
	s, calls := newTestShell(t)
	s.Start()
	drain(s)

	typeLine(s, "ssh example.com:2222")
	if out := drain(s); !strings.Contains(out, "login: ") {
		t.Fatalf("expected login prompt, got %q", out)
	}

	typeLine(s, "alice")
	if out := drain(s); !strings.Contains(out, "password: ") {
		t.Fatalf("expected password prompt, got %q", out)
	}

	typeLine(s, "secret")
	out := drain(s)
	if strings.Contains(out, "secret") {
		t.Errorf("password was echoed: %q", out)
	}

	if len(*calls) != 1 {
		t.Fatalf("Connect called %d times, want 1", len(*calls))
	}
	got := (*calls)[0]
	want := connectCall{"example.com:2222", "alice", "secret"}
	if got != want {
		t.Errorf("Connect = %+v, want %+v", got, want)
	}
}

func TestSSHUsesStoredCredentials(t *testing.T) {
	s, calls := newTestShell(t)
	s.env.Store.Set(config.KeySSHUser, "pi")
	s.env.Store.Set(config.KeySSHPass, "raspberry")
	s.env.Store.Set(config.KeySSHHost, "10.0.0.2")
	s.Start()
	drain(s)

	typeLine(s, "ssh")
	drain(s)
	if len(*calls) != 1 {
		t.Fatalf("Connect called %d times, want 1", len(*calls))
	}
	got := (*calls)[0]
	want := connectCall{"10.0.0.2", "pi", "raspberry"}
	if got != want {
		t.Errorf("Connect = %+v, want %+v", got, want)
	}
}

// TestOutputBackpressureSuspendsWithoutLoss runs a builtin whose output far
// exceeds the bounded buffer with nobody reading. The dispatching goroutine
// must suspend on the full buffer, and once a reader drains it every byte
// must come through, in order, with nothing overwritten.
func TestOutputBackpressureSuspendsWithoutLoss(t *testing.T) {
	s, _ := newTestShell(t)
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
	s.env.Storage = card
	s.Start()
	drain(s)

	dispatched := make(chan struct{})
	go func() {
		typeLine(s, "ls")
		close(dispatched)
	}()

	select {
	case <-dispatched:
		t.Fatal("ls returned with its output unread; the writer should suspend on the full buffer")
	case <-time.After(200 * time.Millisecond):
	}

	collected := make(chan string, 1)
	go func() {
		var b strings.Builder
		buf := make([]byte, 1024)
		for !strings.Contains(b.String(), "file-399.txt") {
			n, err := s.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		collected <- b.String()
	}()

	var out string
	select {
	case out = <-collected:
	case <-time.After(2 * time.Second):
		t.Fatal("output never drained")
	}
	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("ls did not finish once the buffer drained")
	}

	if n := strings.Count(out, "file-"); n != 400 {
		t.Errorf("drained %d entries, want all 400 without loss", n)
	}
}

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"ls", []string{"ls"}},
		{"config set k v", []string{"config", "set", "k", "v"}},
		{`cat "my file.txt"`, []string{"cat", "my file.txt"}},
		{`set k ""`, []string{"set", "k", ""}},
	}
	for _, tc := range cases {
		got := splitArgs(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("splitArgs(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitArgs(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
