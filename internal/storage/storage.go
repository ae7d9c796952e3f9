// SPDX-License-Identifier: Apache-2.0

// Package storage exposes the uniform key-value contract over the native
// secret stores. Three adapters implement it:
//
//   - Document keeps the whole map as one JSON object in a single slot.
//   - File keeps one AES-GCM encrypted file per key and falls back to
//     values an older release left directly in the credential store.
//   - Item keeps one native item per key, optionally encrypted.
//
// Not-found is never an error: Read reports ok=false and ContainsKey false.
package storage

import (
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/seal"
)

// Storage is the operation set every adapter provides.
type Storage interface {
	// Write stores value under key. A nil value deletes key.
	Write(key string, value *string) error
	// Read returns the value for key; ok is false when it is absent.
	Read(key string) (value string, ok bool, err error)
	// ReadAll returns every entry in the namespace with the prefix removed.
	ReadAll() (map[string]string, error)
	// Delete removes key. Deleting an absent key succeeds.
	Delete(key string) error
	// DeleteAll removes every entry in the namespace.
	DeleteAll() error
	// ContainsKey reports whether Read would find key. The File adapter
	// only checks that the entry file exists, so an entry it cannot
	// decrypt still counts as present.
	ContainsKey(key string) (bool, error)
}

// Value returns a pointer to v, for Write.
func Value(v string) *string { return &v }

func validateKey(key string) error {
	if key == "" {
		return errors.BadArgument("key is required")
	}
	return nil
}

// reserved rejects a key whose native target is the symmetric key slot.
func reserved(key, target string, keys *seal.KeyManager) error {
	if keys != nil && target == keys.Label() {
		return errors.BadArgument("key %q collides with the symmetric key slot", key)
	}
	return nil
}
