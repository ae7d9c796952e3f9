// SPDX-License-Identifier: Apache-2.0

//go:build windows

// wincred-helper is a Windows-side companion executable for securekv.
// It is cross-compiled (GOOS=windows) and called from WSL2 via interop
// whenever the Linux side needs the Windows Credential Manager.
//
// Protocol: reads one JSON request line from stdin, writes one JSON response
// line to stdout, then exits. Exit code 0 means the response was written
// (including error responses where ok=false). Non-zero exit means a fatal error
// before a response could be written.
//
// Request fields:
//
//	action  string  "get" | "set" | "delete" | "list"
//	target  string  Windows Credential Manager TargetName
//	secret  string  base64-encoded CredentialBlob (only for "set")
//	filter  string  TargetName prefix for "list"
//
// Response fields:
//
//	ok      bool
//	secret  string    base64-encoded CredentialBlob (only for "get")
//	targets []string  matched TargetNames (only for "list")
//	code    string    Win32 error name, e.g. ERROR_NOT_FOUND (only when ok=false)
//	error   string    human-readable error (only when ok=false)
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/backend/wincred"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/ipc"
)

func main() {
	var req ipc.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(ipc.Fail("", fmt.Sprintf("decode request: %v", err)))
		os.Exit(1)
	}

	store := wincred.NewNative("securekv")
	switch req.Action {
	case ipc.ActionGet:
		handleGet(store, req.Target)
	case ipc.ActionSet:
		handleSet(store, req.Target, req.Secret)
	case ipc.ActionDelete:
		handleDelete(store, req.Target)
	case ipc.ActionList:
		handleList(store, req.Filter)
	default:
		writeResponse(ipc.Fail("ERROR_INVALID_PARAMETER", fmt.Sprintf("unknown action: %q", req.Action)))
		os.Exit(1)
	}
}

func handleGet(store *wincred.Native, target string) {
	blob, err := store.Get(target)
	if err != nil {
		writeError(err)
		return
	}
	writeResponse(ipc.Response{OK: true, Secret: base64.StdEncoding.EncodeToString(blob)})
}

func handleSet(store *wincred.Native, target, secretB64 string) {
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		writeResponse(ipc.Fail("ERROR_INVALID_PARAMETER", fmt.Sprintf("decode base64 secret: %v", err)))
		return
	}
	if err := store.Set(target, secret); err != nil {
		writeError(err)
		return
	}
	writeResponse(ipc.Response{OK: true})
}

func handleDelete(store *wincred.Native, target string) {
	if err := store.Delete(target); err != nil {
		writeError(err)
		return
	}
	writeResponse(ipc.Response{OK: true})
}

func handleList(store *wincred.Native, filter string) {
	targets, err := store.List(filter)
	if err != nil {
		writeError(err)
		return
	}
	if targets == nil {
		targets = []string{}
	}
	writeResponse(ipc.Response{OK: true, Targets: targets})
}

// writeError reports err with the Win32 error name the bridge keys on.
func writeError(err error) {
	if backend.IsNotFound(err) {
		writeResponse(ipc.Fail(ipc.CodeNotFound, err.Error()))
		return
	}
	code := ""
	if e, ok := errors.As(err); ok {
		code = e.Code
	}
	writeResponse(ipc.Fail(code, err.Error()))
}

func writeResponse(r ipc.Response) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
}
