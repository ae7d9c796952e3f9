// SPDX-License-Identifier: Apache-2.0

// Package seal encrypts per-entry values with a 16-byte local key.
//
// New envelopes are AES-128-GCM:
//
//	"SKV" 0x01 | nonce (12) | tag (16) | ciphertext
//
// Envelopes written by older releases have no header. Their kind is inferred
// from length alone: nonce|tag|ciphertext for GCM, or IV (16) | CBC
// ciphertext with PKCS#7 padding for the unauthenticated legacy mode. Legacy
// plaintexts may carry a trailing NUL terminator, which is removed.
package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	stderrors "errors"
	"fmt"

	"github.com/akihiro/secure-storage/internal/errors"
)

const (
	// KeySize is the symmetric key length (AES-128).
	KeySize = 16
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// version1 prefixes every envelope Seal produces.
var version1 = []byte{'S', 'K', 'V', 0x01}

var (
	// ErrUnreadable means the envelope could not be authenticated or
	// decrypted with the current key. Callers treat the entry as absent.
	ErrUnreadable = errors.New(errors.KindCrypto, "value unreadable", nil)

	// ErrTooShort means the envelope is smaller than the smallest valid
	// layout.
	ErrTooShort = errors.New(errors.KindCorrupt, "encrypted value too short", nil)
)

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.New(errors.KindInternal, fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)), nil)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "generate nonce", nil, err)
	}

	// Go appends the tag after the ciphertext; the envelope stores it first.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - aead.Overhead()

	out := make([]byte, 0, len(version1)+len(nonce)+len(sealed))
	out = append(out, version1...)
	out = append(out, nonce...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)
	return out, nil
}

// Format identifies the layout an envelope was decoded from.
type Format int

const (
	// FormatV1 is the headered layout Seal writes.
	FormatV1 Format = iota
	// FormatLegacyGCM is headerless nonce|tag|ciphertext.
	FormatLegacyGCM
	// FormatLegacyCBC is IV|ciphertext without authentication.
	FormatLegacyCBC
)

func (f Format) String() string {
	switch f {
	case FormatV1:
		return "v1"
	case FormatLegacyGCM:
		return "legacy-gcm"
	case FormatLegacyCBC:
		return "legacy-cbc"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Open decrypts an envelope produced by Seal or by an older release.
// It returns ErrTooShort for truncated data and ErrUnreadable when no layout
// authenticates or decrypts under key.
func Open(key, data []byte) ([]byte, error) {
	pt, _, err := Decode(key, data)
	return pt, err
}

// Decode is Open that also reports which layout matched. Values decoded
// from a legacy layout should be written back with Seal.
func Decode(key, data []byte) ([]byte, Format, error) {
	if len(key) != KeySize {
		return nil, FormatV1, errors.New(errors.KindInternal, fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)), nil)
	}
	if len(data) <= NonceSize+TagSize {
		return nil, FormatV1, ErrTooShort
	}

	if bytes.HasPrefix(data, version1) && len(data) >= len(version1)+NonceSize+TagSize {
		if pt, err := openGCM(key, data[len(version1):]); err == nil {
			return pt, FormatV1, nil
		}
		// A legacy nonce may start with the header bytes. Headered data
		// is only retried as headerless GCM, never as CBC.
		if pt, err := openGCM(key, data); err == nil {
			return trimTerminator(pt), FormatLegacyGCM, nil
		}
		return nil, FormatV1, ErrUnreadable
	}

	if pt, err := openGCM(key, data); err == nil {
		return trimTerminator(pt), FormatLegacyGCM, nil
	}
	if cbcShaped(data) {
		if pt, err := openCBC(key, data); err == nil {
			return trimTerminator(pt), FormatLegacyCBC, nil
		}
	}
	return nil, FormatLegacyGCM, ErrUnreadable
}

// IsUnreadable reports whether err means the value could not be decrypted.
func IsUnreadable(err error) bool {
	return stderrors.Is(err, ErrUnreadable)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "init cipher", nil, err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "init gcm", nil, err)
	}
	return aead, nil
}

// openGCM decrypts nonce|tag|ciphertext.
func openGCM(key, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns, ts := aead.NonceSize(), aead.Overhead()
	if len(data) < ns+ts {
		return nil, ErrTooShort
	}
	nonce := data[:ns]
	tag := data[ns : ns+ts]
	ct := data[ns+ts:]

	buf := make([]byte, 0, len(ct)+len(tag))
	buf = append(buf, ct...)
	buf = append(buf, tag...)
	pt, err := aead.Open(nil, nonce, buf, nil)
	if err != nil {
		return nil, ErrUnreadable
	}
	if pt == nil {
		pt = []byte{}
	}
	return pt, nil
}

// cbcShaped reports whether data can be an IV followed by whole CBC blocks.
func cbcShaped(data []byte) bool {
	return len(data) >= 2*aes.BlockSize && len(data)%aes.BlockSize == 0
}

// trimTerminator drops the single NUL older writers appended to plaintexts.
func trimTerminator(pt []byte) []byte {
	if n := len(pt); n > 0 && pt[n-1] == 0 {
		return pt[:n-1]
	}
	return pt
}
