// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/store.go
// Summary: SQLite-backed key/value settings store.
//
// Settings survive reboots: SSH credentials, backlight level, time zone
// offset. The store is a single table; values are strings with typed
// accessors on top.

package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("config: key not found")

	// ErrBadKey is returned for keys outside [a-z0-9_.-].
	ErrBadKey = errors.New("config: invalid key")
)

// Well-known keys. The store accepts any valid key; these are the ones the
// firmware itself reads.
const (
	KeySSHUser           = "ssh_user"
	KeySSHPass           = "ssh_pw"
	KeySSHHost           = "ssh_host"
	KeyBacklight         = "backlight"
	KeyKeyboardBacklight = "kbd_backlight"
	KeyTimezone          = "tz_offset"
	KeyNTPServer         = "ntp_server"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store persists settings in a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the settings database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("config: create directory: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("config: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("config: connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("config: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	if !validKey(key) {
		return "", ErrBadKey
	}
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("config: get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	if !validKey(key) {
		return ErrBadKey
	}
	_, err := s.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("config: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if !validKey(key) {
		return ErrBadKey
	}
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("config: delete %q: %w", key, err)
	}
	return nil
}

// Entry is one stored setting.
type Entry struct {
	Key   string
	Value string
}

// List returns all stored keys and values sorted by key.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("config: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("config: list scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetInt returns the value of key parsed as an integer, or def when the key
// is missing or unparsable.
func (s *Store) GetInt(key string, def int) int {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// GetString returns the value of key, or def when the key is missing.
func (s *Store) GetString(key, def string) string {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	return v
}

func validKey(key string) bool {
	if key == "" || len(key) > 64 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}
