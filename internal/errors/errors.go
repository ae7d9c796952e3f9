// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error values returned across the storage
// boundary. Every failure carries a Kind, the native error code reported by
// the underlying secret store (when there is one) and a human message.
// Not-found is never an error; adapters report it as an absent value.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure. Values are stable; new kinds are only appended.
type Kind string

const (
	// KindBadArgument is a caller mistake detected before any native call.
	KindBadArgument Kind = "BAD_ARGUMENT"
	// KindUnavailable means the native store or the filesystem could not be
	// reached, including a failed warmup.
	KindUnavailable Kind = "UNAVAILABLE"
	// KindCorrupt means persisted data exists but cannot be parsed.
	KindCorrupt Kind = "CORRUPT"
	// KindCrypto is an authentication or decryption failure. Adapters turn
	// it into an absent value; it only escapes from the seal package.
	KindCrypto Kind = "CRYPTO"
	// KindInternal covers everything else.
	KindInternal Kind = "INTERNAL"
)

// Error is a structured failure that crosses package boundaries by value.
type Error struct {
	Kind    Kind           `json:"kind" yaml:"kind"`
	Code    string         `json:"code,omitempty" yaml:"code,omitempty"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := string(e.Kind)
	if e.Code != "" {
		s += " (" + e.Code + ")"
	}
	s += ": " + e.Message
	if e.cause != nil {
		s = fmt.Sprintf("%s: %v", s, e.cause)
	}
	return s
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error of the same kind, so callers can test with
// stderrors.Is(err, &Error{Kind: KindCorrupt}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// New returns an Error without a cause.
func New(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap returns an Error that records cause.
func Wrap(kind Kind, message string, details map[string]any, cause error) *Error {
	return &Error{Kind: kind, Message: message, Details: details, cause: cause}
}

// WithCode sets the native error code and returns e.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsOrWrap returns err as an *Error, wrapping it as KindInternal when it is
// not one already.
func AsOrWrap(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(KindInternal, err.Error(), nil, err)
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// BadArgument is shorthand for New(KindBadArgument, ...).
func BadArgument(format string, args ...any) *Error {
	return New(KindBadArgument, fmt.Sprintf(format, args...), nil)
}
