// SPDX-License-Identifier: Apache-2.0

// Package keyring is a backend.Backend over the OS keyring as exposed by
// zalando/go-keyring: Secret Service on Linux, Keychain on macOS and
// Credential Manager on Windows. It addresses single slots and cannot
// enumerate, so it suits the whole-document strategy and the symmetric key.
package keyring

import (
	"encoding/base64"
	stderrors "errors"
	"strings"
	"unicode/utf8"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

// binaryPrefix marks values that were base64-encoded because they were not
// valid UTF-8 text.
const binaryPrefix = "securekv-base64:"

// Store keeps each target as the account of one keyring entry under a
// fixed service name.
type Store struct {
	service string
}

// New returns a Store for service.
func New(service string) *Store {
	return &Store{service: service}
}

func (s *Store) Get(target string) ([]byte, error) {
	v, err := gokeyring.Get(s.service, target)
	if err != nil {
		return nil, s.mapError("get", target, err)
	}
	if enc, ok := strings.CutPrefix(v, binaryPrefix); ok {
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, errors.Wrap(errors.KindCorrupt, "decode keyring value", map[string]any{"target": target}, err)
		}
		return raw, nil
	}
	return []byte(v), nil
}

func (s *Store) Set(target string, secret []byte) error {
	v := string(secret)
	if !utf8.Valid(secret) || strings.HasPrefix(v, binaryPrefix) || strings.ContainsRune(v, 0) {
		v = binaryPrefix + base64.StdEncoding.EncodeToString(secret)
	}
	if err := gokeyring.Set(s.service, target, v); err != nil {
		return s.mapError("set", target, err)
	}
	return nil
}

func (s *Store) Delete(target string) error {
	if err := gokeyring.Delete(s.service, target); err != nil {
		return s.mapError("delete", target, err)
	}
	return nil
}

// List is not supported by go-keyring.
func (s *Store) List(string) ([]string, error) {
	return nil, backend.ErrUnsupported
}

func (s *Store) mapError(op, target string, err error) error {
	switch {
	case stderrors.Is(err, gokeyring.ErrNotFound):
		return &backend.ErrNotFound{Target: target}
	case stderrors.Is(err, gokeyring.ErrSetDataTooBig):
		return errors.Wrap(errors.KindBadArgument, "value too large for the OS keyring", map[string]any{"target": target}, err)
	}
	return errors.Wrap(errors.KindUnavailable, "keyring "+op, map[string]any{"service": s.service, "target": target}, err)
}
