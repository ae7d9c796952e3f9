// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package storage

import (
	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

func openNativeWincred(string) (backend.Backend, error) {
	return nil, errors.New(errors.KindUnavailable, "the wincred backend needs Windows; use wincred-helper from WSL", nil)
}
