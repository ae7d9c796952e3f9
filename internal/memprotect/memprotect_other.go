// SPDX-License-Identifier: Apache-2.0

//go:build !linux

// Package memprotect keeps key material out of core dumps and swap where
// the platform allows it.
package memprotect

import (
	"log/slog"

	"github.com/akihiro/secure-storage/internal/log"
)

// HardenProcess is a no-op on this platform. Key buffers are still locked
// and wiped individually by memguard.
func HardenProcess(logger *slog.Logger) error {
	log.OrDiscard(logger).Debug("process hardening not available on this platform")
	return nil
}
