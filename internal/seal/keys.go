// SPDX-License-Identifier: Apache-2.0

package seal

import (
	"fmt"
	"log/slog"

	"github.com/awnumar/memguard"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/log"
)

// KeyLabelPrefix is prepended to the namespace prefix to name the key slot.
const KeyLabelPrefix = "key_"

// KeyManager loads the symmetric key from a native credential store,
// creating or replacing it as needed. The key is never cached; every
// Acquire reads the store again and hands back a locked buffer the caller
// must Destroy.
type KeyManager struct {
	store backend.Backend
	label string
	log   *slog.Logger
}

// NewKeyManager returns a KeyManager keeping its key in store under
// KeyLabelPrefix+prefix.
func NewKeyManager(store backend.Backend, prefix string, logger *slog.Logger) *KeyManager {
	return &KeyManager{store: store, label: KeyLabelPrefix + prefix, log: log.OrDiscard(logger)}
}

// Label returns the credential target holding the key.
func (m *KeyManager) Label() string { return m.label }

// Acquire returns the current key, generating and persisting a new one when
// none is stored or the stored one has the wrong size.
func (m *KeyManager) Acquire() (*memguard.LockedBuffer, error) {
	raw, err := m.store.Get(m.label)
	switch {
	case err == nil && len(raw) == KeySize:
		return memguard.NewBufferFromBytes(raw), nil
	case err == nil:
		memguard.WipeBytes(raw)
		m.log.Warn("stored key has wrong size, regenerating", "label", m.label, "size", len(raw))
		if err := backend.DeleteQuiet(m.store, m.label); err != nil {
			return nil, keyStoreError("delete invalid key", err)
		}
	case !backend.IsNotFound(err):
		return nil, keyStoreError("read key", err)
	}

	key := memguard.NewBufferRandom(KeySize)
	if err := m.store.Set(m.label, key.Bytes()); err != nil {
		key.Destroy()
		return nil, keyStoreError("store key", err)
	}
	m.log.Debug("generated new key", "label", m.label)
	return key, nil
}

// Seal encrypts plaintext with the current key.
func (m *KeyManager) Seal(plaintext []byte) ([]byte, error) {
	key, err := m.Acquire()
	if err != nil {
		return nil, err
	}
	defer key.Destroy()
	return Seal(key.Bytes(), plaintext)
}

// Decode decrypts data with the current key and reports its layout.
func (m *KeyManager) Decode(data []byte) ([]byte, Format, error) {
	key, err := m.Acquire()
	if err != nil {
		return nil, FormatV1, err
	}
	defer key.Destroy()
	return Decode(key.Bytes(), data)
}

func keyStoreError(op string, err error) error {
	if e, ok := errors.As(err); ok {
		return errors.Wrap(e.Kind, fmt.Sprintf("%s %s", op, "symmetric key"), nil, err).WithCode(e.Code)
	}
	return errors.Wrap(errors.KindUnavailable, op+" symmetric key", nil, err)
}
