// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: clock/clock.go
// Summary: Wall clock with background NTP correction.
// Usage: The time builtin reads Now; Run keeps the offset fresh. The device
//        has no battery-backed RTC, so after power-on the clock is wrong
//        until the first successful sync.
// Notes: The sync interval adapts: it doubles after each quiet sync and
//        drops back to the minimum when the measured offset jumps.

package clock

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const (
	// DefaultServer is queried when no ntp_server setting exists.
	DefaultServer = "pool.ntp.org"

	minInterval = time.Minute
	maxInterval = time.Hour

	// driftTolerance is the offset change that resets the interval.
	driftTolerance = 250 * time.Millisecond
)

// Clock tracks the difference between the host clock and NTP time.
type Clock struct {
	server string

	mu     sync.RWMutex
	offset time.Duration
	synced bool
	last   time.Time

	// queryFn is swappable in tests.
	queryFn func(server string) (time.Duration, error)
}

// New returns a clock syncing against server, or DefaultServer when empty.
func New(server string) *Clock {
	if server == "" {
		server = DefaultServer
	}
	return &Clock{
		server: server,
		queryFn: func(server string) (time.Duration, error) {
			resp, err := ntp.Query(server)
			if err != nil {
				return 0, err
			}
			if err := resp.Validate(); err != nil {
				return 0, err
			}
			return resp.ClockOffset, nil
		},
	}
}

// Now returns the corrected wall time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Synced reports whether at least one NTP sync has succeeded, and when.
func (c *Clock) Synced() (bool, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced, c.last
}

// SyncOnce performs a single query and applies the measured offset. It
// returns the drift from the previous offset.
func (c *Clock) SyncOnce() (time.Duration, error) {
	offset, err := c.queryFn(c.server)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	drift := offset - c.offset
	c.offset = offset
	c.synced = true
	c.last = time.Now()
	c.mu.Unlock()

	if drift < 0 {
		drift = -drift
	}
	return drift, nil
}

// Run syncs in a loop until ctx is canceled. Failures retry at the minimum
// interval; stable syncs back off toward the maximum.
func (c *Clock) Run(ctx context.Context) {
	interval := minInterval
	timer := time.NewTimer(0) // first sync immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		drift, err := c.SyncOnce()
		switch {
		case err != nil:
			log.Printf("Clock: sync against %s failed: %v", c.server, err)
			interval = minInterval
		case drift > driftTolerance:
			log.Printf("Clock: offset moved %v, resyncing soon", drift)
			interval = minInterval
		default:
			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
		}
		timer.Reset(interval)
	}
}
