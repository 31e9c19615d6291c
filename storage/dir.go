// Copyright © 2025 Palmterm contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: storage/dir.go
// Summary: Storage implementation over a host directory.

package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DirStorage exposes one host directory as the device's file store. All
// access is confined to the root; ".." cannot escape it.
type DirStorage struct {
	root string

	// capacity is reported by Usage. The host filesystem is far larger
	// than the device card it stands in for, so the mount reports a fixed
	// total and the tree's real size as used.
	capacity int64
}

// DefaultCapacity mirrors a small SD card.
const DefaultCapacity = 256 << 20

// NewDirStorage returns storage rooted at dir, which must exist.
func NewDirStorage(dir string) (*DirStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root %s is not a directory", abs)
	}
	return &DirStorage{root: abs, capacity: DefaultCapacity}, nil
}

// resolve maps a mount-relative path onto the host, rejecting escapes.
func (d *DirStorage) resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if strings.HasPrefix(clean, "/..") {
		return "", ErrEscapesRoot
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *DirStorage) List(p string) ([]FileInfo, error) {
	host, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(host)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: list %s: %w", p, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{
			Name:    e.Name(),
			Size:    fi.Size(),
			Mode:    fi.Mode(),
			ModTime: fi.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].IsDir != infos[j].IsDir {
			return infos[i].IsDir
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (d *DirStorage) ReadFile(p string) ([]byte, error) {
	host, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(host)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: stat %s: %w", p, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotAFile
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

func (d *DirStorage) Stat(p string) (FileInfo, error) {
	host, err := d.resolve(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(host)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("storage: stat %s: %w", p, err)
	}
	return FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (d *DirStorage) Usage() (Usage, error) {
	var used int64
	err := filepath.WalkDir(d.root, func(_ string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries just don't count
		}
		if entry.Type().IsRegular() {
			if fi, err := entry.Info(); err == nil {
				used += fi.Size()
			}
		}
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("storage: usage: %w", err)
	}
	return Usage{Used: used, Total: d.capacity}, nil
}
