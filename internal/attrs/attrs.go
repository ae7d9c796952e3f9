// SPDX-License-Identifier: Apache-2.0

// Package attrs holds the ordered attribute sets used to scope lookups in
// schema-based secret stores.
package attrs

import "maps"

// Set is an ordered mapping of attribute name to value. Insertion order is
// preserved; replacing an existing name keeps its original position.
// The zero value is an empty set ready to use.
type Set struct {
	names  []string
	values map[string]string
}

// New builds a Set from name/value pairs. A trailing unpaired name is
// ignored.
func New(pairs ...string) Set {
	var s Set
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Insert(pairs[i], pairs[i+1])
	}
	return s
}

// Insert adds or replaces name.
func (s *Set) Insert(name, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = value
}

// Get returns the value for name.
func (s Set) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of attributes.
func (s Set) Len() int { return len(s.names) }

// Map returns a copy of the set as a plain map, the shape D-Bus expects.
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	maps.Copy(out, s.values)
	return out
}

// With returns a copy of s with name set to value. s is not modified.
func (s Set) With(name, value string) Set {
	c := s.Clone()
	c.Insert(name, value)
	return c
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	c := Set{names: make([]string, len(s.names)), values: make(map[string]string, len(s.values))}
	copy(c.names, s.names)
	maps.Copy(c.values, s.values)
	return c
}

// Matches reports whether have contains every name/value pair in want.
// An empty want matches everything.
func Matches(have map[string]string, want Set) bool {
	for _, name := range want.names {
		if v, ok := have[name]; !ok || v != want.values[name] {
			return false
		}
	}
	return true
}
