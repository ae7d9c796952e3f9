// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process backend.Backend used by tests and by the
// "memory" backend setting.
package memory

import (
	"slices"
	"sync"

	"github.com/akihiro/secure-storage/internal/backend"
)

// Store keeps secrets in a map. Values are copied on the way in and out.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(target string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[target]
	if !ok {
		return nil, &backend.ErrNotFound{Target: target}
	}
	return slices.Clone(v), nil
}

func (s *Store) Set(target string, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[target] = append([]byte{}, secret...)
	return nil
}

func (s *Store) Delete(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[target]; !ok {
		return &backend.ErrNotFound{Target: target}
	}
	delete(s.data, target)
	return nil
}

func (s *Store) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for k := range s.data {
		names = append(names, k)
	}
	slices.Sort(names)
	return backend.FilterPrefix(names, prefix), nil
}

// Len returns the number of stored targets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
