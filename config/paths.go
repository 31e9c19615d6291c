// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Path helpers for palmterm configuration.

package config

import (
	"os"
	"path/filepath"
)

const settingsFileName = "settings.db"

func configRoot() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "palmterm"), nil
}

// DefaultPath returns the default settings database location.
func DefaultPath() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, settingsFileName), nil
}
