// SPDX-License-Identifier: Apache-2.0

//go:build linux

// Package memprotect keeps key material out of core dumps, swap and the
// reach of same-user debuggers.
package memprotect

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/log"
)

// HardenProcess should run before any key is loaded.
//
// PR_SET_DUMPABLE=0 disables core dumps, hides /proc/<pid>/mem from
// non-root peers and blocks unprivileged ptrace. Its failure is returned.
//
// mlockall(MCL_CURRENT|MCL_FUTURE) keeps pages out of swap. It commonly
// fails in containers or under a small RLIMIT_MEMLOCK, so failure is only
// logged.
func HardenProcess(logger *slog.Logger) error {
	logger = log.OrDiscard(logger)
	if err := disableDumps(); err != nil {
		return err
	}
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		logger.Warn("mlockall failed, key material may reach swap", "err", err)
		return nil
	}
	logger.Debug("process hardened")
	return nil
}

func disableDumps() error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return errors.Wrap(errors.KindInternal, "prctl PR_SET_DUMPABLE=0", nil, err)
	}
	return nil
}

func dumpable() (bool, error) {
	v, err := unix.PrctlRetInt(unix.PR_GET_DUMPABLE, 0, 0, 0, 0)
	return v != 0, err
}
