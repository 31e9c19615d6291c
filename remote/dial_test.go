// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: remote/dial_test.go
// Summary: Tests for dial option handling.

package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func TestHostPort(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "example.com:22"},
		{"example.com:2222", "example.com:2222"},
		{"10.0.0.5", "10.0.0.5:22"},
		{"10.0.0.5:22", "10.0.0.5:22"},
		{"[::1]:2200", "[::1]:2200"},
	}
	for _, tc := range cases {
		if got := hostPort(tc.in); got != tc.want {
			t.Errorf("hostPort(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDialRefusedReportsConnectPhase(t *testing.T) {
	var phases []Phase
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 on loopback is essentially guaranteed closed.
	_, err := Dial(ctx, Options{
		Host:           "127.0.0.1:1",
		User:           "nobody",
		Password:       "x",
		ConnectTimeout: time.Second,
		Notify:         func(p Phase) { phases = append(phases, p) },
	})
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("Dial = %v, want ErrConnectFailed", err)
	}
	if len(phases) != 1 || phases[0] != PhaseConnecting {
		t.Errorf("phases = %v, want [connecting]", phases)
	}
}

// silentServer accepts connections and never speaks SSH, standing in for a
// stalled or hostile host.
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestDialSilentServerObservesTimeout(t *testing.T) {
	addr := silentServer(t)

	start := time.Now()
	_, err := Dial(context.Background(), Options{
		Host:           addr,
		User:           "nobody",
		Password:       "x",
		ConnectTimeout: 300 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Dial against a silent server must fail")
	}
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Dial = %v, want ErrAuthFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Dial took %v; the handshake must observe the timeout", elapsed)
	}
}

func TestDialCancelReleasesDuringHandshake(t *testing.T) {
	addr := silentServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Dial(ctx, Options{
		Host:           addr,
		User:           "nobody",
		Password:       "x",
		ConnectTimeout: 10 * time.Second,
	})
	if err == nil {
		t.Fatal("canceled Dial must fail")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Dial took %v after cancellation; the conn was not released", elapsed)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseAuthenticating.String() != "authenticating" {
		t.Errorf("unexpected phase name %q", PhaseAuthenticating)
	}
}
