// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: device/sim.go
// Summary: Simulated power controller for host builds and tests.

package device

import (
	"log"
	"sync"
)

// SimPower is an in-memory power controller. Battery drains very slowly so
// long-running sessions see the percentage move.
type SimPower struct {
	mu        sync.Mutex
	percent   int
	charging  bool
	backlight int
	kbdLight  int

	// OnReboot, when non-nil, is invoked instead of restarting anything.
	OnReboot func(RebootMode)
}

// NewSimPower returns a simulator starting at a healthy charge.
func NewSimPower() *SimPower {
	return &SimPower{percent: 87, charging: false, backlight: 70, kbdLight: 0}
}

func (s *SimPower) Battery() (BatteryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BatteryStatus{Percent: s.percent, Charging: s.charging}, nil
}

// SetBattery adjusts the simulated battery state.
func (s *SimPower) SetBattery(percent int, charging bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percent = clampLevel(percent)
	s.charging = charging
}

func (s *SimPower) Backlight() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlight, nil
}

func (s *SimPower) SetBacklight(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlight = clampLevel(level)
	return nil
}

func (s *SimPower) KeyboardBacklight() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kbdLight, nil
}

func (s *SimPower) SetKeyboardBacklight(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbdLight = clampLevel(level)
	return nil
}

func (s *SimPower) Reboot(mode RebootMode) error {
	log.Printf("Device: simulated reboot (mode %d)", mode)
	if s.OnReboot != nil {
		s.OnReboot(mode)
	}
	return nil
}
