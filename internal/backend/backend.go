// SPDX-License-Identifier: Apache-2.0

// Package backend defines the interface to native secret stores.
// Implementations store opaque bytes under a target string; the storage
// adapters decide what a target means (a whole-store slot, a namespaced
// key, the symmetric key label).
package backend

import (
	stderrors "errors"
	"strings"
)

// Backend stores and retrieves raw secret bytes keyed by a target string.
type Backend interface {
	// Get returns the raw secret bytes for the given target.
	// Returns an error wrapping *ErrNotFound if the target does not exist.
	Get(target string) ([]byte, error)

	// Set stores raw secret bytes under the given target.
	// Creates the entry if it does not exist; replaces it if it does.
	Set(target string, secret []byte) error

	// Delete removes the secret for the given target.
	// Returns an error wrapping *ErrNotFound if the target does not exist.
	Delete(target string) error

	// List returns all target strings that have the given prefix.
	// Stores that cannot enumerate return ErrUnsupported.
	List(prefix string) ([]string, error)
}

// ErrNotFound is returned when a requested secret does not exist.
type ErrNotFound struct {
	Target string
}

func (e *ErrNotFound) Error() string {
	return "secret not found: " + e.Target
}

// ErrUnsupported is returned by List on stores without enumeration.
var ErrUnsupported = stderrors.New("operation not supported by this secret store")

// IsNotFound reports whether err wraps *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

// DeleteQuiet deletes target and treats a missing entry as success.
func DeleteQuiet(b Backend, target string) error {
	if err := b.Delete(target); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// FilterPrefix returns the targets in names that start with prefix.
func FilterPrefix(names []string, prefix string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
