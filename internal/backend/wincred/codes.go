// SPDX-License-Identifier: Apache-2.0

package wincred

import "fmt"

// MaxBlobSize is the largest CredentialBlob Credential Manager accepts for
// generic credentials (CRED_MAX_CREDENTIAL_BLOB_SIZE).
const MaxBlobSize = 5 * 512

// Win32 error numbers the credential APIs report.
const (
	errorFileNotFound       = 2
	errorPathNotFound       = 3
	errorAccessDenied       = 5
	errorInvalidParameter   = 87
	errorInvalidFlags       = 1004
	errorNotFound           = 1168
	errorNoSuchLogonSession = 1312
	errorBadUsername        = 2202
)

var codeNames = map[uint32]string{
	errorFileNotFound:       "ERROR_FILE_NOT_FOUND",
	errorPathNotFound:       "ERROR_PATH_NOT_FOUND",
	errorAccessDenied:       "ERROR_ACCESS_DENIED",
	errorInvalidParameter:   "ERROR_INVALID_PARAMETER",
	errorInvalidFlags:       "ERROR_INVALID_FLAGS",
	errorNotFound:           "ERROR_NOT_FOUND",
	errorNoSuchLogonSession: "ERROR_NO_SUCH_LOGON_SESSION",
	errorBadUsername:        "ERROR_BAD_USERNAME",
}

// CodeName returns the symbolic name of a Win32 error number.
func CodeName(errno uint32) string {
	if name, ok := codeNames[errno]; ok {
		return name
	}
	return fmt.Sprintf("WIN32_%d", errno)
}

// notFoundCode reports whether a native code means "no such credential".
func notFoundCode(code string) bool {
	switch code {
	case "ERROR_NOT_FOUND", "ERROR_FILE_NOT_FOUND", "ERROR_PATH_NOT_FOUND":
		return true
	}
	return false
}
