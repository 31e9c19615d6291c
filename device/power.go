// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: device/power.go
// Summary: Power management abstraction: battery, backlights, reboot.
// Usage: The bat/bl/kbl/reboot builtins talk to this interface. Hardware
//        builds back it with the management controller; everything else
//        uses the simulator.

package device

import "errors"

// ErrUnsupported is returned by controllers that lack a capability.
var ErrUnsupported = errors.New("device: operation not supported")

// BatteryStatus is a snapshot of the battery state.
type BatteryStatus struct {
	Percent  int
	Charging bool
}

// RebootMode selects how Reboot restarts the device.
type RebootMode int

const (
	// RebootNormal restarts into the firmware.
	RebootNormal RebootMode = iota
	// RebootBootloader restarts into the USB mass-storage bootloader so a
	// new firmware image can be copied on.
	RebootBootloader
)

// Power is the device's power management controller.
type Power interface {
	// Battery reads the current battery state.
	Battery() (BatteryStatus, error)

	// Backlight returns the display backlight level, 0-100.
	Backlight() (int, error)

	// SetBacklight sets the display backlight level, clamped to 0-100.
	SetBacklight(level int) error

	// KeyboardBacklight returns the keyboard backlight level, 0-100.
	KeyboardBacklight() (int, error)

	// SetKeyboardBacklight sets the keyboard backlight level.
	SetKeyboardBacklight(level int) error

	// Reboot restarts the device. On hardware it does not return.
	Reboot(mode RebootMode) error
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
