// SPDX-License-Identifier: Apache-2.0

package wincred

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/ipc"
)

// buildMockHelper compiles cmd/mock-wincred-helper for this test run and
// points it at a fresh store file. It returns the path to the binary.
func buildMockHelper(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock helper test only runs on Unix (it mocks the Windows side)")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}

	dir := t.TempDir()
	binPath := filepath.Join(dir, "mock-wincred-helper")
	cmd := exec.Command(goBin, "build", "-o", binPath, "github.com/akihiro/secure-storage/cmd/mock-wincred-helper")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build mock helper: %v\n%s", err, out)
	}
	t.Setenv("MOCK_WINCRED_STORE", filepath.Join(dir, "store.json"))
	return binPath
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := New(buildMockHelper(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestSetGetDelete(t *testing.T) {
	b := newTestBridge(t)

	secret := []byte("hello, world! \x00\xff\xfe")
	if err := b.Set("p_token", secret); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := b.Get("p_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(secret) {
		t.Errorf("got %q, want %q", got, secret)
	}

	if err := b.Delete("p_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get("p_token"); !backend.IsNotFound(err) {
		t.Errorf("Get after delete = %v, want not found", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	b := newTestBridge(t)
	_, err := b.Get("p_nonexistent")
	if !backend.IsNotFound(err) {
		t.Fatalf("expected *backend.ErrNotFound, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	b := newTestBridge(t)
	if err := b.Delete("p_gone"); !backend.IsNotFound(err) {
		t.Fatalf("expected not found deleting a missing target, got %v", err)
	}
}

func TestSet_TooLarge(t *testing.T) {
	b := &Bridge{helperPath: "/nonexistent"}
	err := b.Set("p_big", make([]byte, MaxBlobSize+1))
	if errors.KindOf(err) != errors.KindBadArgument {
		t.Fatalf("expected bad argument for oversized secret, got %v", err)
	}
}

func TestList(t *testing.T) {
	b := newTestBridge(t)
	for _, target := range []string{"p_a", "p_b", "key_p_"} {
		if err := b.Set(target, []byte("x")); err != nil {
			t.Fatalf("Set %s: %v", target, err)
		}
	}
	targets, err := b.List("p_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(targets)
	if !slices.Equal(targets, []string{"p_a", "p_b"}) {
		t.Errorf("List = %v", targets)
	}
}

func TestHelperMissing(t *testing.T) {
	b := &Bridge{helperPath: filepath.Join(t.TempDir(), "missing")}
	_, err := b.Get("p_x")
	if errors.KindOf(err) != errors.KindUnavailable {
		t.Fatalf("kind = %s, want UNAVAILABLE (%v)", errors.KindOf(err), err)
	}
}

func TestFindHelper_NotFound(t *testing.T) {
	t.Setenv("PATH", "")
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	if _, err := findHelper(); err == nil {
		t.Fatal("expected error when wincred-helper.exe is not in any standard location")
	}
}

func TestFindHelper_XDGData(t *testing.T) {
	data := t.TempDir()
	t.Setenv("PATH", "")
	t.Setenv("XDG_DATA_HOME", data)
	want := filepath.Join(data, "securekv", helperName)
	if err := os.MkdirAll(filepath.Dir(want), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(want, nil, 0o700); err != nil {
		t.Fatal(err)
	}

	got, err := findHelper()
	if err != nil {
		t.Fatalf("findHelper: %v", err)
	}
	if got != want {
		t.Errorf("findHelper = %q, want %q", got, want)
	}
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		resp ipc.Response
		want bool
	}{
		{ipc.Fail(ipc.CodeNotFound, "Element not found."), true},
		{ipc.Fail("ERROR_NO_SUCH_LOGON_SESSION", "not found anywhere"), false},
		{ipc.Response{Error: "element not found"}, true},
		{ipc.Response{Error: "access denied"}, false},
	}
	for _, tc := range cases {
		if got := isNotFound(&tc.resp); got != tc.want {
			t.Errorf("isNotFound(%+v) = %v, want %v", tc.resp, got, tc.want)
		}
	}
}

func TestCodeName(t *testing.T) {
	if got := CodeName(1168); got != "ERROR_NOT_FOUND" {
		t.Errorf("CodeName(1168) = %q", got)
	}
	if got := CodeName(1312); got != "ERROR_NO_SUCH_LOGON_SESSION" {
		t.Errorf("CodeName(1312) = %q", got)
	}
	if got := CodeName(424242); got != "WIN32_424242" {
		t.Errorf("CodeName(unknown) = %q", got)
	}
}

func TestHelperErrorCarriesCode(t *testing.T) {
	err := helperError("get", "p_x", &ipc.Response{Code: "ERROR_ACCESS_DENIED", Error: "Access is denied."})
	e, ok := errors.As(err)
	if !ok {
		t.Fatal("expected *errors.Error")
	}
	if e.Kind != errors.KindUnavailable || e.Code != "ERROR_ACCESS_DENIED" {
		t.Errorf("got kind=%s code=%s", e.Kind, e.Code)
	}
}
