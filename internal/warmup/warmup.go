// SPDX-License-Identifier: Apache-2.0

// Package warmup guards the one-time unlock call a cold secret service needs
// before it answers schema-scoped lookups reliably.
package warmup

import (
	"sync"

	"github.com/akihiro/secure-storage/internal/errors"
)

// Func performs the unscoped call that wakes the native store. A nil error,
// including a not-found result, means the store is awake.
type Func func() error

// Gate runs a Func until it first succeeds and then never again. Each
// backend instance owns its own Gate.
type Gate struct {
	mu   sync.Mutex
	cold bool
	fn   Func
}

// New returns a cold Gate around fn.
func New(fn Func) *Gate {
	return &Gate{cold: true, fn: fn}
}

// Ensure runs the warmup if it has not succeeded yet. A failure leaves the
// gate cold so the next call retries.
func (g *Gate) Ensure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cold {
		return nil
	}
	if err := g.fn(); err != nil {
		if e, ok := errors.As(err); ok && e.Kind == errors.KindUnavailable {
			return errors.Wrap(errors.KindUnavailable, "failed to unlock store", nil, err).WithCode(e.Code)
		}
		return errors.Wrap(errors.KindUnavailable, "failed to unlock store", nil, err)
	}
	g.cold = false
	return nil
}
