// SPDX-License-Identifier: Apache-2.0

package secretservice

import (
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/akihiro/secure-storage/internal/attrs"
	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
)

type fakeItem struct {
	label  string
	attrs  map[string]string
	secret []byte
	locked bool
}

// fakeService is an in-memory Secret Service with one collection.
type fakeService struct {
	items    map[dbus.ObjectPath]*fakeItem
	next     int
	sessions int
	calls    []string

	// failCreate makes CreateItem fail while set.
	failCreate error
	// lockNew marks newly created items as locked.
	lockNew bool
	// loose makes SearchItems ignore the query.
	loose bool
}

func newFakeService() *fakeService {
	return &fakeService{items: make(map[dbus.ObjectPath]*fakeItem)}
}

func (f *fakeService) OpenSession() (dbus.ObjectPath, error) {
	f.sessions++
	f.calls = append(f.calls, "OpenSession")
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/secrets/session/%d", f.sessions)), nil
}

func (f *fakeService) SearchItems(query map[string]string) (unlocked, locked []dbus.ObjectPath, err error) {
	f.calls = append(f.calls, "SearchItems")
	for _, p := range f.sortedPaths() {
		it := f.items[p]
		if !f.loose && !attrs.Matches(it.attrs, attrsOf(query)) {
			continue
		}
		if it.locked {
			locked = append(locked, p)
		} else {
			unlocked = append(unlocked, p)
		}
	}
	return unlocked, locked, nil
}

func (f *fakeService) Unlock(paths []dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	f.calls = append(f.calls, "Unlock")
	for _, p := range paths {
		if it, ok := f.items[p]; ok {
			it.locked = false
		}
	}
	return paths, nil
}

func (f *fakeService) GetSecret(item, session dbus.ObjectPath) ([]byte, error) {
	f.calls = append(f.calls, "GetSecret")
	it, ok := f.items[item]
	if !ok {
		return nil, errors.New(errors.KindUnavailable, "no such item", nil).WithCode(errNoSuchObject)
	}
	if it.locked {
		return nil, errors.New(errors.KindUnavailable, "locked", nil).WithCode(errIsLocked)
	}
	return append([]byte{}, it.secret...), nil
}

func (f *fakeService) Attributes(item dbus.ObjectPath) (map[string]string, error) {
	it, ok := f.items[item]
	if !ok {
		return nil, errors.New(errors.KindUnavailable, "no such item", nil).WithCode(errNoSuchObject)
	}
	return maps.Clone(it.attrs), nil
}

func (f *fakeService) CreateItem(session dbus.ObjectPath, label string, a map[string]string, secret []byte) error {
	f.calls = append(f.calls, "CreateItem")
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, it := range f.items {
		if maps.Equal(it.attrs, a) {
			it.secret = append([]byte{}, secret...)
			it.label = label
			return nil
		}
	}
	f.next++
	p := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/secrets/collection/login/%d", f.next))
	f.items[p] = &fakeItem{label: label, attrs: maps.Clone(a), secret: append([]byte{}, secret...), locked: f.lockNew}
	return nil
}

func (f *fakeService) Delete(item dbus.ObjectPath) error {
	f.calls = append(f.calls, "Delete")
	if _, ok := f.items[item]; !ok {
		return errors.New(errors.KindUnavailable, "no such item", nil).WithCode(errNoSuchObject)
	}
	delete(f.items, item)
	return nil
}

func (f *fakeService) Close() error { return nil }

func (f *fakeService) sortedPaths() []dbus.ObjectPath {
	paths := make([]dbus.ObjectPath, 0, len(f.items))
	for p := range f.items {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (f *fakeService) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func attrsOf(m map[string]string) attrs.Set {
	var s attrs.Set
	for _, k := range slices.Sorted(maps.Keys(m)) {
		s.Insert(k, m[k])
	}
	return s
}

func newTestBackend(t *testing.T) (*Backend, *fakeService) {
	t.Helper()
	f := newFakeService()
	b := newBackend(f, Options{Schema: "com.example.app/SecureStorage"})
	return b, f
}

func TestSetGetDelete(t *testing.T) {
	b, _ := newTestBackend(t)

	if err := b.Set("com.example.app.secureStorage", []byte(`{"a":"1"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := b.Get("com.example.app.secureStorage")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":"1"}` {
		t.Errorf("Get = %q", got)
	}

	if err := b.Set("com.example.app.secureStorage", []byte(`{}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = b.Get("com.example.app.secureStorage")
	if string(got) != `{}` {
		t.Errorf("Get after overwrite = %q", got)
	}

	if err := b.Delete("com.example.app.secureStorage"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get("com.example.app.secureStorage"); !backend.IsNotFound(err) {
		t.Errorf("Get after delete = %v", err)
	}
	if err := b.Delete("com.example.app.secureStorage"); !backend.IsNotFound(err) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestItemsAreSchemaScoped(t *testing.T) {
	b, f := newTestBackend(t)
	if err := b.Set("slot", []byte("v")); err != nil {
		t.Fatal(err)
	}

	var stored *fakeItem
	for _, it := range f.items {
		if _, ok := it.attrs[ExplanationAttr]; !ok {
			stored = it
		}
	}
	if stored == nil {
		t.Fatal("scoped item not stored")
	}
	if stored.attrs[SchemaAttr] != "com.example.app/SecureStorage" {
		t.Errorf("schema attr = %q", stored.attrs[SchemaAttr])
	}
	if stored.attrs[AccountAttr] != "slot" {
		t.Errorf("account attr = %q", stored.attrs[AccountAttr])
	}
	if stored.label != "com.example.app/SecureStorage" {
		t.Errorf("label = %q", stored.label)
	}

	other := newBackend(f, Options{Schema: "org.other/SecureStorage"})
	if _, err := other.Get("slot"); !backend.IsNotFound(err) {
		t.Errorf("another schema saw the item: %v", err)
	}
}

func TestBaseAttributesApplied(t *testing.T) {
	f := newFakeService()
	b := newBackend(f, Options{Schema: "s", Attributes: attrs.New("application", "demo")})
	if err := b.Set("t", []byte("v")); err != nil {
		t.Fatal(err)
	}
	plain := newBackend(f, Options{Schema: "s"})
	if _, err := plain.Get("t"); err != nil {
		t.Errorf("broader query should match: %v", err)
	}
	narrow := newBackend(f, Options{Schema: "s", Attributes: attrs.New("application", "other")})
	if _, err := narrow.Get("t"); !backend.IsNotFound(err) {
		t.Errorf("different base attribute matched: %v", err)
	}
}

func TestWarmupRunsOnceBeforeFirstLookup(t *testing.T) {
	b, f := newTestBackend(t)

	if _, err := b.Get("missing"); !backend.IsNotFound(err) {
		t.Fatalf("Get: %v", err)
	}
	if len(f.calls) < 3 || f.calls[1] != "CreateItem" || f.calls[2] != "SearchItems" {
		t.Errorf("warmup store must precede the first search, calls = %v", f.calls)
	}

	_ = b.Set("a", []byte("1"))
	_, _ = b.Get("a")
	_, _ = b.List("")
	_ = b.Delete("a")

	controls := 0
	for _, it := range f.items {
		if _, ok := it.attrs[ExplanationAttr]; ok {
			controls++
			if _, scoped := it.attrs[SchemaAttr]; scoped {
				t.Error("control item must not carry the schema attribute")
			}
		}
	}
	if controls != 1 {
		t.Errorf("control items = %d, want 1", controls)
	}
	// One warmup CreateItem plus the Set.
	if n := f.count("CreateItem"); n != 2 {
		t.Errorf("CreateItem calls = %d, want 2", n)
	}
	if f.sessions != 1 {
		t.Errorf("sessions opened = %d, want 1", f.sessions)
	}
}

func TestWarmupFailureIsFatalAndRetried(t *testing.T) {
	b, f := newTestBackend(t)
	f.failCreate = errors.New(errors.KindUnavailable, "prompt dismissed", nil).WithCode("PromptDismissed")

	_, err := b.Get("a")
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindUnavailable || e.Message != "failed to unlock store" {
		t.Fatalf("Get with failing warmup = %v", err)
	}
	if e.Code != "PromptDismissed" {
		t.Errorf("code = %q", e.Code)
	}
	if f.count("SearchItems") != 0 {
		t.Error("scoped lookup ran after failed warmup")
	}

	f.failCreate = nil
	if _, err := b.Get("a"); !backend.IsNotFound(err) {
		t.Fatalf("Get after recovery = %v", err)
	}
}

func TestLockedItemsAreUnlocked(t *testing.T) {
	b, f := newTestBackend(t)
	f.lockNew = true
	if err := b.Set("slot", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := b.Get("slot")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q", got)
	}
	if f.count("Unlock") == 0 {
		t.Error("expected Unlock for a locked item")
	}
}

func TestList(t *testing.T) {
	b, _ := newTestBackend(t)
	for _, target := range []string{"p_b", "p_a", "key_p_"} {
		if err := b.Set(target, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	got, err := b.List("p_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{"p_a", "p_b"}) {
		t.Errorf("List = %v", got)
	}
	all, _ := b.List("")
	if len(all) != 3 {
		t.Errorf("List(\"\") = %v; the control item must not be listed", all)
	}
}

func TestDbusName(t *testing.T) {
	err := fmt.Errorf("call: %w", dbus.Error{Name: errNoSuchObject})
	if got := dbusName(err); got != errNoSuchObject {
		t.Errorf("dbusName = %q", got)
	}
	wrapped := callError("GetSecret", dbus.Error{Name: errIsLocked})
	if !isLocked(dbus.Error{Name: errIsLocked}) {
		t.Error("isLocked should match the IsLocked error name")
	}
	if codeOf(wrapped) != errIsLocked {
		t.Errorf("codeOf = %q", codeOf(wrapped))
	}
	if errors.KindOf(wrapped) != errors.KindUnavailable {
		t.Errorf("kind = %s", errors.KindOf(wrapped))
	}
}

func TestListKeepsExactScope(t *testing.T) {
	f := newFakeService()
	mine := newBackend(f, Options{Schema: "s", Attributes: attrs.New("application", "demo")})
	other := newBackend(f, Options{Schema: "s", Attributes: attrs.New("application", "other")})
	if err := mine.Set("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := other.Set("b", []byte("2")); err != nil {
		t.Fatal(err)
	}

	f.loose = true
	got, err := mine.List("")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"a"}) {
		t.Errorf("List = %v, want only this scope", got)
	}
}
