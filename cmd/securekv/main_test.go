// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/akihiro/secure-storage/internal/backend/memory"
	"github.com/akihiro/secure-storage/internal/config"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/storage"
)

func noEnv(string) (string, bool) { return "", false }

// memoryConfigFile writes a config selecting the in-process backend.
func memoryConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "securekv.yaml")
	body := "app_id: cli.test\nstrategy: document\nbackend: memory\nlegacy_backend: \"\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// sharedCLI returns a cli whose storage survives across invocations.
func sharedCLI(t *testing.T, store *memory.Store, stdin string) (*cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newCLI(noEnv, strings.NewReader(stdin), &out, &errOut)
	a.open = func(cfg config.Config, l *slog.Logger) (*storage.Handle, error) {
		return &storage.Handle{
			Storage:  storage.NewDocument(store, storage.DocumentOptions{Slot: cfg.Slot(), Logger: l}),
			Strategy: cfg.Strategy,
			Backend:  cfg.Backend,
			Location: cfg.Slot(),
		}, nil
	}
	return a, &out, &errOut
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, b *bytes.Buffer) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(b.Bytes(), &env); err != nil {
		t.Fatalf("invalid json %q: %v", b.String(), err)
	}
	b.Reset()
	return env
}

func TestCommandsRoundTrip(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	store := memory.New()
	exec := func(stdin string, args ...string) (int, *bytes.Buffer) {
		a, out, _ := sharedCLI(t, store, stdin)
		code := a.run(append([]string{"--config", cfgPath, "--format", "json"}, args...))
		return code, out
	}

	if code, _ := exec("", "write", "token", "abc"); code != 0 {
		t.Fatalf("write exit %d", code)
	}
	if code, _ := exec("from stdin\n", "write", "piped", "--stdin"); code != 0 {
		t.Fatalf("write --stdin exit %d", code)
	}

	code, out := exec("", "read", "token")
	env := decode(t, out)
	if code != 0 || !env.OK || string(env.Data) != `{"key":"token","found":true,"value":"abc"}` {
		t.Fatalf("read: code=%d data=%s", code, env.Data)
	}

	_, out = exec("", "read", "missing")
	if env = decode(t, out); string(env.Data) != `{"key":"missing","found":false}` {
		t.Fatalf("read missing: %s", env.Data)
	}

	_, out = exec("", "read-all")
	if env = decode(t, out); string(env.Data) != `{"piped":"from stdin","token":"abc"}` {
		t.Fatalf("read-all: %s", env.Data)
	}

	_, out = exec("", "contains", "piped")
	if env = decode(t, out); string(env.Data) != `{"key":"piped","found":true}` {
		t.Fatalf("contains: %s", env.Data)
	}

	exec("", "delete", "piped")
	_, out = exec("", "contains", "piped")
	if env = decode(t, out); string(env.Data) != `{"key":"piped","found":false}` {
		t.Fatalf("contains after delete: %s", env.Data)
	}

	exec("", "delete-all")
	_, out = exec("", "read-all")
	if env = decode(t, out); len(env.Data) != 0 && string(env.Data) != "{}" {
		t.Fatalf("read-all after delete-all: %s", env.Data)
	}
}

func TestTextFormat(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	store := memory.New()
	a, _, _ := sharedCLI(t, store, "")
	a.run([]string{"--config", cfgPath, "write", "k", "v"})

	a, out, _ := sharedCLI(t, store, "")
	if code := a.run([]string{"--config", cfgPath, "-f", "text", "read", "k"}); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if out.String() != "v\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestInfo(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	a, out, _ := sharedCLI(t, memory.New(), "")
	if code := a.run([]string{"--config", cfgPath, "-f", "json", "info"}); code != 0 {
		t.Fatalf("exit %d", code)
	}
	env := decode(t, out)
	var got info
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Strategy != "document" || got.Backend != "memory" || got.Location != "cli.test.secureStorage" || got.ConfigPath != cfgPath {
		t.Fatalf("info = %+v", got)
	}
}

func TestExitCodes(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	cases := []struct {
		name string
		args []string
		want errors.ExitCode
		kind errors.Kind
	}{
		{"ok", []string{"write", "k", "v"}, errors.ExitOK, ""},
		{"missing argument", []string{"read"}, errors.ExitBadArgument, errors.KindBadArgument},
		{"value and stdin", []string{"write", "k", "v", "--stdin"}, errors.ExitBadArgument, errors.KindBadArgument},
		{"empty key", []string{"read", ""}, errors.ExitBadArgument, errors.KindBadArgument},
		{"bad format", []string{"--format", "csv", "info"}, errors.ExitBadArgument, errors.KindBadArgument},
		{"bad strategy", []string{"--strategy", "cloud", "info"}, errors.ExitBadArgument, errors.KindBadArgument},
		{"bad log level", []string{"--log-level", "loud", "info"}, errors.ExitBadArgument, errors.KindBadArgument},
		{"unknown flag", []string{"info", "--nope"}, errors.ExitBadArgument, errors.KindBadArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			args := append([]string{"--config", cfgPath}, tc.args...)
			code := run(args, noEnv, strings.NewReader(""), &out, &errOut)
			if code != int(tc.want) {
				t.Fatalf("exit %d, want %d (stdout %q)", code, tc.want, out.String())
			}
			if tc.kind == "" {
				return
			}
			env := decode(t, &out)
			if env.OK || env.Error == nil || env.Error.Kind != string(tc.kind) {
				t.Fatalf("envelope = %+v", env)
			}
		})
	}
}

func TestCorruptDocumentExitCode(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	store := memory.New()
	if err := store.Set("cli.test.secureStorage", []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	a, out, _ := sharedCLI(t, store, "")
	if code := a.run([]string{"--config", cfgPath, "-f", "json", "read-all"}); code != int(errors.ExitCorrupt) {
		t.Fatalf("exit %d", code)
	}
	if env := decode(t, out); env.Error == nil || env.Error.Kind != string(errors.KindCorrupt) {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestNativeWincredUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("native Credential Manager is available")
	}
	cfgPath := memoryConfigFile(t)
	var out bytes.Buffer
	code := run([]string{"--config", cfgPath, "--backend", "wincred", "-f", "json", "read", "k"}, noEnv, strings.NewReader(""), &out, &bytes.Buffer{})
	if code != int(errors.ExitUnavailable) {
		t.Fatalf("exit %d (%s)", code, out.String())
	}
}

func TestEnvOverride(t *testing.T) {
	cfgPath := memoryConfigFile(t)
	env := func(k string) (string, bool) {
		if k == "SECUREKV_APP_ID" {
			return "from.env", true
		}
		return "", false
	}
	var out bytes.Buffer
	if code := run([]string{"--config", cfgPath, "-f", "json", "info"}, env, strings.NewReader(""), &out, &bytes.Buffer{}); code != 0 {
		t.Fatalf("exit %d", code)
	}
	var got info
	if err := json.Unmarshal(decode(t, &out).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Location != "from.env.secureStorage" {
		t.Fatalf("location = %q", got.Location)
	}
}
