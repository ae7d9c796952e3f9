// SPDX-License-Identifier: Apache-2.0

//go:build !windows

// mock-wincred-helper is a Unix stand-in for wincred-helper.exe used during
// development and testing outside WSL2. It stores secrets as a JSON map in a
// file specified by the MOCK_WINCRED_STORE environment variable
// (default: $TMPDIR/mock-wincred-store.json).
//
// Protocol: identical to wincred-helper.exe. It reads one JSON request line
// from stdin, writes one JSON response line to stdout, then exits.
//
// Usage:
//
//	MOCK_WINCRED_STORE=/path/to/store.json securekv \
//	    --backend wincred-helper --helper-path ./bin/mock-wincred-helper read-all
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akihiro/secure-storage/internal/ipc"
	"github.com/akihiro/secure-storage/internal/lock"
)

func storePath() string {
	if p := os.Getenv("MOCK_WINCRED_STORE"); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "mock-wincred-store.json")
}

func loadStore(f *os.File) (map[string]string, error) {
	store := make(map[string]string)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return store, nil
	}
	if err := json.NewDecoder(f).Decode(&store); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return store, nil
}

func saveStore(f *os.File, store map[string]string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return json.NewEncoder(f).Encode(store)
}

func notFound() ipc.Response {
	return ipc.Fail(ipc.CodeNotFound, "Element not found.")
}

func handle(store map[string]string, req ipc.Request) (resp ipc.Response, mutated bool) {
	switch req.Action {
	case ipc.ActionGet:
		v, ok := store[req.Target]
		if !ok {
			return notFound(), false
		}
		return ipc.Response{OK: true, Secret: v}, false
	case ipc.ActionSet:
		store[req.Target] = req.Secret
		return ipc.Response{OK: true}, true
	case ipc.ActionDelete:
		if _, ok := store[req.Target]; !ok {
			return notFound(), false
		}
		delete(store, req.Target)
		return ipc.Response{OK: true}, true
	case ipc.ActionList:
		targets := []string{}
		for k := range store {
			if strings.HasPrefix(k, req.Filter) {
				targets = append(targets, k)
			}
		}
		sort.Strings(targets)
		return ipc.Response{OK: true, Targets: targets}, false
	}
	return ipc.Fail("ERROR_INVALID_PARAMETER", fmt.Sprintf("unknown action: %q", req.Action)), false
}

func writeResponse(r ipc.Response) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
}

func fatal(format string, args ...any) {
	writeResponse(ipc.Fail("", fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func main() {
	var req ipc.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fatal("decode request: %v", err)
	}

	f, err := os.OpenFile(storePath(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer f.Close()

	l, err := lock.Wrap(f)
	if err != nil {
		fatal("lock store: %v", err)
	}
	defer l.Unlock() //nolint:errcheck

	store, err := loadStore(f)
	if err != nil {
		fatal("load store: %v", err)
	}

	resp, mutated := handle(store, req)
	if mutated && resp.OK {
		if err := saveStore(f, store); err != nil {
			fatal("save store: %v", err)
		}
	}
	writeResponse(resp)
}
