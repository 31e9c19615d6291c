// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: shell/job.go
// Summary: Host processes attached to the terminal via a pty.
// Usage: The run builtin starts a job; while one is attached it owns the
//        byte stream and the line editor is bypassed.

package shell

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// Job is one host process running on a pty.
type Job struct {
	cmd      *exec.Cmd
	pty      *os.File
	stopOnce sync.Once
}

// startJob launches the process and attaches it. Called with mu held, from
// inside Dispatch.
func (s *Shell) startJob(name string, args []string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(s.rows),
		Cols: uint16(s.cols),
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	job := &Job{cmd: cmd, pty: ptmx}
	s.job = job
	go s.pumpJob(job)
	return nil
}

// pumpJob relays pty output into the shell's output stream until the
// process ends, then restores the prompt.
func (s *Shell) pumpJob(job *Job) {
	buf := make([]byte, 4096)
	for {
		n, err := job.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case <-s.done:
				job.Stop()
				go job.cmd.Wait() // reap
				return
			case s.out <- chunk:
			}
		}
		if err != nil {
			break
		}
	}

	err := job.cmd.Wait()
	job.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != job {
		return
	}
	s.job = nil
	if err != nil {
		s.emit(fmt.Sprintf("\n[%v]\n", err))
	} else {
		s.emit("\n")
	}
	s.showPrompt()
}

// Write forwards keyboard bytes to the process.
func (j *Job) Write(p []byte) {
	if _, err := j.pty.Write(p); err != nil {
		log.Printf("Shell: job write: %v", err)
	}
}

// Resize propagates grid dimensions to the pty.
func (j *Job) Resize(rows, cols int) {
	if err := pty.Setsize(j.pty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		log.Printf("Shell: job resize: %v", err)
	}
}

// Stop kills the process and releases the pty. Idempotent.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		j.pty.Close()
		if j.cmd.Process != nil {
			j.cmd.Process.Kill()
		}
	})
}
