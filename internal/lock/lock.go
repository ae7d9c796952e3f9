// SPDX-License-Identifier: Apache-2.0

// Package lock provides exclusive advisory file locks shared between
// processes. Locks are blocking and not reentrant.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is an exclusive lock held on an open file.
type Lock struct {
	f     *os.File
	owned bool
}

// Wrap takes an exclusive lock on f, blocking until it is available.
// The caller keeps ownership of f.
func Wrap(f *os.File) (*Lock, error) {
	if err := lockFile(f); err != nil {
		return nil, fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	return &Lock{f: f}, nil
}

// Acquire opens (creating if needed) the lock file at path and takes an
// exclusive lock on it. Release with Close.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	l, err := Wrap(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// Unlock releases the lock but leaves the file open.
func (l *Lock) Unlock() error {
	return unlockFile(l.f)
}

// Close releases the lock and closes the file if Acquire opened it.
func (l *Lock) Close() error {
	err := l.Unlock()
	if l.owned {
		if cerr := l.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
