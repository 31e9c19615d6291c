// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: storage/storage.go
// Summary: Filesystem abstraction backing the ls/cat builtins.
// Usage: The shell sees only this interface; the engine wires in a directory
//        on the host filesystem (the device's card mount point).

package storage

import (
	"errors"
	"io/fs"
	"time"
)

var (
	// ErrNotFound is returned for paths that do not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrNotAFile is returned when a read targets a directory.
	ErrNotAFile = errors.New("storage: not a regular file")

	// ErrEscapesRoot is returned when a path climbs out of the mount.
	ErrEscapesRoot = errors.New("storage: path escapes mount")
)

// FileInfo describes one directory entry.
type FileInfo struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
}

// Usage reports mount capacity in bytes.
type Usage struct {
	Used  int64
	Total int64
}

// Storage is a read-only view of the device's file store. Paths are
// slash-separated and relative to the mount root; "" and "." mean the root.
type Storage interface {
	// List returns the entries of a directory, directories first, each
	// group sorted by name.
	List(path string) ([]FileInfo, error)

	// ReadFile returns the full contents of a regular file.
	ReadFile(path string) ([]byte, error)

	// Stat describes a single path.
	Stat(path string) (FileInfo, error)

	// Usage reports how full the mount is.
	Usage() (Usage, error)
}
