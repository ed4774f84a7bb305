package cqlerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatchesSpecificError(t *testing.T) {
	err := New(Corrupt, "Filter", "CRC mismatch at chunk %d", 3)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatal("expected errors.Is to match the Corrupt sentinel")
	}
	if errors.Is(err, ErrTruncated) {
		t.Fatal("should not match a different kind")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk exploded")
	err := Wrap(Io, "Data", cause, "reading chunk")
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach cause")
	}
}

func TestWithOffsetAddsContextWithoutMutatingOriginal(t *testing.T) {
	base := New(Truncated, "Index", "expected %d bytes", 16)
	located := base.WithOffset("Index.db", 128)
	if base.File != "" {
		t.Fatal("WithOffset must not mutate the receiver")
	}
	if located.File != "Index.db" || located.Offset != 128 {
		t.Fatalf("got %+v", located)
	}
}
