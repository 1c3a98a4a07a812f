package ident

import (
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d (%q)", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
}

func TestNewUsesPrefix(t *testing.T) {
	id := New(EventPrefix)
	if !strings.HasPrefix(id, "evt_") {
		t.Errorf("expected evt_ prefix, got %q", id)
	}
	if New(EventPrefix) == id {
		t.Error("expected distinct IDs")
	}
}

func TestSequence(t *testing.T) {
	gen := Prefixed("x", Sequence())
	want := []string{"x1", "x2", "x3"}
	for _, w := range want {
		if got := gen(); got != w {
			t.Errorf("expected %s, got %s", w, got)
		}
	}
}
