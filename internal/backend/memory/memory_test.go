// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"reflect"
	"testing"

	"github.com/akihiro/secure-storage/internal/backend"
)

func TestCRUD(t *testing.T) {
	s := New()

	if _, err := s.Get("a"); !backend.IsNotFound(err) {
		t.Fatalf("Get on empty store: %v", err)
	}
	if err := s.Set("a", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("a")
	if err != nil || string(got) != "1" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a"); !backend.IsNotFound(err) {
		t.Errorf("second Delete = %v, want not found", err)
	}
	if err := backend.DeleteQuiet(s, "a"); err != nil {
		t.Errorf("DeleteQuiet = %v", err)
	}
}

func TestValuesAreCopied(t *testing.T) {
	s := New()
	in := []byte("secret")
	_ = s.Set("k", in)
	in[0] = 'X'

	out, _ := s.Get("k")
	if string(out) != "secret" {
		t.Errorf("stored value aliased caller slice: %q", out)
	}
	out[0] = 'Y'
	again, _ := s.Get("k")
	if string(again) != "secret" {
		t.Errorf("returned value aliased store: %q", again)
	}
}

func TestListPrefix(t *testing.T) {
	s := New()
	for _, k := range []string{"p_b", "p_a", "other", "key_p_"} {
		_ = s.Set(k, nil)
	}
	got, err := s.List("p_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"p_a", "p_b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
	if s.Len() != 4 {
		t.Errorf("Len = %d", s.Len())
	}
}
