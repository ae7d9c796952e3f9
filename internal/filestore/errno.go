// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	stderrors "errors"
	"io/fs"
)

// errnoName gives a stable code for the common filesystem failures.
func errnoName(err error) string {
	switch {
	case stderrors.Is(err, fs.ErrPermission):
		return "EACCES"
	case stderrors.Is(err, fs.ErrNotExist):
		return "ENOENT"
	case stderrors.Is(err, fs.ErrExist):
		return "EEXIST"
	}
	return ""
}
