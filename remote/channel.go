// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: remote/channel.go
// Summary: Byte channel over an established SSH shell session.

package remote

import (
	"io"
	"log"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Channel is the byte conduit of a live remote shell. Read blocks on shell
// output; Write sends keyboard bytes; Resize propagates grid dimension
// changes. Close tears down the session and the transport.
type Channel struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newChannel(client *ssh.Client, session *ssh.Session, stdin io.WriteCloser, stdout io.Reader) *Channel {
	ch := &Channel{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		done:    make(chan struct{}),
	}
	go ch.waitExit()
	return ch
}

// waitExit observes the remote shell ending on its own, e.g. the user typed
// exit. It closes the transport so pending Reads return.
func (c *Channel) waitExit() {
	err := c.session.Wait()
	if err != nil && err != io.EOF {
		log.Printf("Remote: shell exited: %v", err)
	}
	c.Close()
}

// Read returns shell output bytes. It returns io.EOF (or a transport error)
// once the channel is closed from either side.
func (c *Channel) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Write sends bytes to the shell's stdin.
func (c *Channel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

// Resize informs the remote pty of new dimensions.
func (c *Channel) Resize(rows, cols int) error {
	return c.session.WindowChange(rows, cols)
}

// Close tears down the shell session and the underlying connection. It is
// idempotent and safe to call from any goroutine.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.session.Close()
		c.closeErr = c.client.Close()
		close(c.done)
	})
	return c.closeErr
}

// Done is closed when the channel has fully shut down, whether by Close or
// by the remote side ending the shell.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}
