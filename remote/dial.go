// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: remote/dial.go
// Summary: Establishes SSH shell channels for the session engine.
// Usage: Dial runs the TCP connect and SSH handshake phases, reporting each
//        transition through the Notify callback so the session can show
//        progress. It blocks; run it off the session loop.
// Notes: Host key checking is intentionally absent. The device has no known
//        hosts store, matching its accept-on-first-use posture.

package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Phase identifies a stage of connection establishment.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseAuthenticating
	PhaseEstablished
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseEstablished:
		return "established"
	default:
		return "unknown"
	}
}

var (
	// ErrAuthFailed is returned when the server rejects the credentials.
	ErrAuthFailed = errors.New("remote: authentication failed")

	// ErrConnectFailed is returned when the TCP connection cannot be made.
	ErrConnectFailed = errors.New("remote: connection failed")
)

// Options configures a Dial.
type Options struct {
	// Host is "host" or "host:port"; port 22 is assumed when absent.
	Host     string
	User     string
	Password string

	// Rows and Cols size the requested pty.
	Rows, Cols int

	// ConnectTimeout bounds the TCP phase. Zero means 10 seconds.
	ConnectTimeout time.Duration

	// Notify, when non-nil, is called once per phase transition.
	Notify func(Phase)
}

func (o *Options) notify(p Phase) {
	if o.Notify != nil {
		o.Notify(p)
	}
}

// hostPort appends the default SSH port when the host has none.
func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "22")
	}
	return host
}

// Dial connects to an SSH server, authenticates with a password, and starts
// an interactive shell on a pty sized to the caller's grid. The returned
// channel carries the shell's byte streams.
func Dial(ctx context.Context, opts Options) (*Channel, error) {
	addr := hostPort(opts.Host)
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts.notify(PhaseConnecting)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Printf("Remote: dial %s: %v", addr, err)
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	opts.notify(PhaseAuthenticating)
	cfg := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.Password(opts.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	// ClientConfig.Timeout only covers ssh.Dial's own TCP phase; the
	// handshake against an already-open conn is unbounded unless the conn
	// carries a deadline. A silent server must not hold us here, and a
	// canceled dial must release the conn.
	conn.SetDeadline(time.Now().Add(timeout))
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-handshakeDone:
		}
	}()
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	close(handshakeDone)
	if err != nil {
		conn.Close()
		log.Printf("Remote: handshake with %s: %v", addr, err)
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	ch, err := openShell(client, opts.Rows, opts.Cols)
	if err != nil {
		client.Close()
		return nil, err
	}

	opts.notify(PhaseEstablished)
	log.Printf("Remote: shell established on %s as %s", addr, opts.User)
	return ch, nil
}

func openShell(client *ssh.Client, rows, cols int) (*Channel, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("remote: open session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	if err := session.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("remote: request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("remote: stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("remote: stdout pipe: %w", err)
	}
	// Stderr stays nil: with a pty the remote side merges it into stdout.

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("remote: start shell: %w", err)
	}

	return newChannel(client, session, stdin, stdout), nil
}
