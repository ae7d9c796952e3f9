// SPDX-License-Identifier: Apache-2.0

// Package keychain is a backend.Backend over 99designs/keyring, which can
// enumerate its items. On macOS it opens the login keychain; elsewhere it
// uses the first keyring implementation available.
package keychain

import (
	stderrors "errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

// Store keeps one keyring item per target.
type Store struct {
	ring  keyring.Keyring
	label string
}

// Open opens the keyring for service. allowed restricts the implementations
// tried; empty means any.
func Open(service string, allowed ...keyring.BackendType) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    service,
		AllowedBackends:                allowed,
		KeychainTrustApplication:       true,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindUnavailable, "open keychain", map[string]any{"service": service}, err)
	}
	return New(ring, service), nil
}

// New wraps an opened keyring. label is recorded on stored items.
func New(ring keyring.Keyring, label string) *Store {
	return &Store{ring: ring, label: label}
}

func (s *Store) Get(target string) ([]byte, error) {
	item, err := s.ring.Get(target)
	if err != nil {
		return nil, mapError("get", target, err)
	}
	return item.Data, nil
}

func (s *Store) Set(target string, secret []byte) error {
	err := s.ring.Set(keyring.Item{
		Key:   target,
		Data:  secret,
		Label: s.label,
	})
	if err != nil {
		return mapError("set", target, err)
	}
	return nil
}

// Delete removes target. Some keyring implementations ignore missing keys,
// so existence is checked first.
func (s *Store) Delete(target string) error {
	if _, err := s.ring.Get(target); err != nil {
		return mapError("get", target, err)
	}
	if err := s.ring.Remove(target); err != nil {
		return mapError("remove", target, err)
	}
	return nil
}

func (s *Store) List(prefix string) ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, mapError("list", prefix, err)
	}
	return backend.FilterPrefix(keys, prefix), nil
}

func mapError(op, target string, err error) error {
	if stderrors.Is(err, keyring.ErrKeyNotFound) {
		return &backend.ErrNotFound{Target: target}
	}
	return errors.Wrap(errors.KindUnavailable, fmt.Sprintf("keychain %s %q", op, target), nil, err)
}
