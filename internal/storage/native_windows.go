// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/backend/wincred"
)

func openNativeWincred(userName string) (backend.Backend, error) {
	return wincred.NewNative(userName), nil
}
