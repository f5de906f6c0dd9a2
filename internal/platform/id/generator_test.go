package id

import (
	"strings"
	"testing"
)

func TestUUIDGenerator_Prefix(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator(" run ")
	a, err := gen.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	b, err := gen.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}

	if !strings.HasPrefix(a, "run_") {
		t.Fatalf("expected run_ prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids, got %q twice", a)
	}
	if got := len(strings.TrimPrefix(a, "run_")); got != 36 {
		t.Fatalf("unexpected uuid length %d in %q", got, a)
	}
}
