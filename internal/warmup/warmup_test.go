// SPDX-License-Identifier: Apache-2.0

package warmup

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/akihiro/secure-storage/internal/errors"
)

func TestEnsureRunsOnce(t *testing.T) {
	calls := 0
	g := New(func() error { calls++; return nil })

	if !g.cold {
		t.Fatal("new gate should be cold")
	}
	for range 5 {
		if err := g.Ensure(); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("warmup ran %d times, want 1", calls)
	}
	if g.cold {
		t.Error("gate should be warm after success")
	}
}

func TestEnsureFailureIsUnavailableAndRetried(t *testing.T) {
	calls := 0
	fail := true
	g := New(func() error {
		calls++
		if fail {
			return stderrors.New("prompt dismissed")
		}
		return nil
	})

	err := g.Ensure()
	if err == nil {
		t.Fatal("expected failure")
	}
	if errors.KindOf(err) != errors.KindUnavailable {
		t.Errorf("kind = %s, want UNAVAILABLE", errors.KindOf(err))
	}
	if e, _ := errors.As(err); e.Message != "failed to unlock store" {
		t.Errorf("message = %q", e.Message)
	}
	if !g.cold {
		t.Error("gate must stay cold after a failure")
	}

	fail = false
	if err := g.Ensure(); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestEnsureKeepsNativeCode(t *testing.T) {
	g := New(func() error {
		return errors.New(errors.KindUnavailable, "no reply", nil).WithCode("org.freedesktop.DBus.Error.NoReply")
	})
	e, ok := errors.As(g.Ensure())
	if !ok {
		t.Fatal("expected *errors.Error")
	}
	if e.Code != "org.freedesktop.DBus.Error.NoReply" {
		t.Errorf("code = %q", e.Code)
	}
}

func TestEnsureConcurrent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	g := New(func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Ensure()
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("warmup ran %d times under concurrency", calls)
	}
}
