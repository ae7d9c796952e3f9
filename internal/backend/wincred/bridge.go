// SPDX-License-Identifier: Apache-2.0

// Package wincred provides backends that store secrets in the Windows
// Credential Manager. Bridge reaches it from WSL2 by invoking a companion
// wincred-helper.exe through interop, speaking newline-delimited JSON over
// stdin/stdout. On Windows itself, Native calls the credential API directly.
package wincred

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/ipc"
)

const helperName = "wincred-helper.exe"

// Bridge implements backend.Backend by calling wincred-helper.exe.
type Bridge struct {
	helperPath string
}

// New creates a Bridge that uses the helper at helperPath.
// If helperPath is empty, the helper is discovered automatically (see findHelper).
func New(helperPath string) (*Bridge, error) {
	if helperPath == "" {
		discovered, err := findHelper()
		if err != nil {
			return nil, errors.Wrap(errors.KindUnavailable, "wincred-helper not found", nil, err)
		}
		helperPath = discovered
	}
	return &Bridge{helperPath: helperPath}, nil
}

// findHelper searches for wincred-helper.exe in standard locations.
func findHelper() (string, error) {
	var candidates []string

	// 1. Same directory as the running binary.
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), helperName))
	}

	// 2. $XDG_DATA_HOME/securekv/wincred-helper.exe
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		candidates = append(candidates, filepath.Join(xdgData, "securekv", helperName))
	}

	// 3. ~/.local/share/securekv/wincred-helper.exe
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "share", "securekv", helperName))
	}

	// 4. PATH (includes Windows paths via WSL2 interop).
	if path, err := exec.LookPath(helperName); err == nil {
		candidates = append(candidates, path)
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", stderrors.New(helperName + " not found; " +
		"place it alongside securekv or in ~/.local/share/securekv/")
}

// call invokes the helper with the given request and returns the response.
func (b *Bridge) call(req ipc.Request) (*ipc.Response, error) {
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	reqData = append(reqData, '\n')

	cmd := exec.Command(b.helperPath)
	cmd.Stdin = bytes.NewReader(reqData)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.New(errors.KindUnavailable,
				fmt.Sprintf("wincred-helper exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr))), nil)
		}
		return nil, errors.Wrap(errors.KindUnavailable, "run wincred-helper", map[string]any{"path": b.helperPath}, err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "decode helper response", nil, err)
	}
	return &resp, nil
}

// Get returns the raw secret bytes for the given target.
func (b *Bridge) Get(target string) ([]byte, error) {
	resp, err := b.call(ipc.Request{Action: ipc.ActionGet, Target: target})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		if isNotFound(resp) {
			return nil, &backend.ErrNotFound{Target: target}
		}
		return nil, helperError("get", target, resp)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Secret)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "decode secret", nil, err)
	}
	return decoded, nil
}

// Set stores raw secret bytes under the given target.
func (b *Bridge) Set(target string, secret []byte) error {
	if len(secret) > MaxBlobSize {
		return errors.New(errors.KindBadArgument,
			fmt.Sprintf("secret too large for Windows Credential Manager (max %d bytes, got %d)", MaxBlobSize, len(secret)), nil)
	}
	encoded := base64.StdEncoding.EncodeToString(secret)
	resp, err := b.call(ipc.Request{Action: ipc.ActionSet, Target: target, Secret: encoded})
	if err != nil {
		return err
	}
	if !resp.OK {
		return helperError("set", target, resp)
	}
	return nil
}

// Delete removes the secret for the given target.
func (b *Bridge) Delete(target string) error {
	resp, err := b.call(ipc.Request{Action: ipc.ActionDelete, Target: target})
	if err != nil {
		return err
	}
	if !resp.OK {
		if isNotFound(resp) {
			return &backend.ErrNotFound{Target: target}
		}
		return helperError("delete", target, resp)
	}
	return nil
}

// List returns all target strings that have the given prefix.
func (b *Bridge) List(prefix string) ([]string, error) {
	resp, err := b.call(ipc.Request{Action: ipc.ActionList, Filter: prefix})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, helperError("list", prefix, resp)
	}
	return backend.FilterPrefix(resp.Targets, prefix), nil
}

func helperError(action, target string, resp *ipc.Response) error {
	return errors.New(errors.KindUnavailable,
		fmt.Sprintf("wincred %s %q: %s", action, target, resp.Error), nil).WithCode(resp.Code)
}

// isNotFound reports whether a helper response indicates a missing credential.
// Older helpers send no code, so the message is checked as well.
func isNotFound(resp *ipc.Response) bool {
	if resp.Code != "" {
		return notFoundCode(resp.Code)
	}
	lower := strings.ToLower(resp.Error)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no such")
}
