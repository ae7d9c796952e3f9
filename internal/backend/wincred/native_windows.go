// SPDX-License-Identifier: Apache-2.0

//go:build windows

package wincred

import (
	stderrors "errors"
	"fmt"
	"syscall"

	"github.com/danieljoos/wincred"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

// Native implements backend.Backend on top of the Credential Manager API.
type Native struct {
	userName string
}

// NewNative returns a Native backend. userName is recorded on every
// credential it writes.
func NewNative(userName string) *Native {
	return &Native{userName: userName}
}

func (n *Native) Get(target string) ([]byte, error) {
	cred, err := wincred.GetGenericCredential(target)
	if err != nil {
		return nil, nativeError("read", target, err)
	}
	return cred.CredentialBlob, nil
}

func (n *Native) Set(target string, secret []byte) error {
	if len(secret) > MaxBlobSize {
		return errors.New(errors.KindBadArgument,
			fmt.Sprintf("secret too large for Windows Credential Manager (max %d bytes, got %d)", MaxBlobSize, len(secret)), nil)
	}
	cred := wincred.NewGenericCredential(target)
	cred.CredentialBlob = secret
	cred.UserName = n.userName
	cred.Persist = wincred.PersistLocalMachine
	if err := cred.Write(); err != nil {
		return nativeError("write", target, err)
	}
	return nil
}

func (n *Native) Delete(target string) error {
	cred, err := wincred.GetGenericCredential(target)
	if err != nil {
		return nativeError("read", target, err)
	}
	if err := cred.Delete(); err != nil {
		return nativeError("delete", target, err)
	}
	return nil
}

func (n *Native) List(prefix string) ([]string, error) {
	creds, err := wincred.FilteredList(prefix + "*")
	if err != nil {
		if stderrors.Is(err, wincred.ErrElementNotFound) {
			return nil, nil
		}
		return nil, nativeError("enumerate", prefix, err)
	}
	targets := make([]string, 0, len(creds))
	for _, c := range creds {
		targets = append(targets, c.TargetName)
	}
	return backend.FilterPrefix(targets, prefix), nil
}

// nativeError maps a credential API failure onto the error taxonomy.
func nativeError(op, target string, err error) error {
	if stderrors.Is(err, wincred.ErrElementNotFound) {
		return &backend.ErrNotFound{Target: target}
	}
	code := ""
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		code = CodeName(uint32(errno))
	}
	return errors.Wrap(errors.KindUnavailable,
		fmt.Sprintf("credential %s %q", op, target), nil, err).WithCode(code)
}
