package vint

import (
	"bytes"
	"math"
	"sort"
	"testing"
)

func TestEncodeIntOrdering(t *testing.T) {
	values := []int32{math.MinInt32, -1, 0, 1, math.MaxInt32}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeInt32(v)
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("ordering violated at %d: %v !< %v", i, encoded[i-1], encoded[i])
		}
	}
}

func TestEncodeInt64Ordering(t *testing.T) {
	values := []int64{-1 << 40, -1, 0, 1, 1 << 40}
	for i := 1; i < len(values); i++ {
		a, b := EncodeInt64(values[i-1]), EncodeInt64(values[i])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("ordering violated: %v !< %v", a, b)
		}
	}
}

func TestEncodeFloatOrdering(t *testing.T) {
	values := []float64{-100.5, -1.0, -0.0, 0.0, 1.0, 100.5}
	for i := 1; i < len(values); i++ {
		a, b := EncodeFloat64(values[i-1]), EncodeFloat64(values[i])
		if bytes.Compare(a, b) > 0 {
			t.Fatalf("ordering violated: %v(%v) !<= %v(%v)", a, values[i-1], b, values[i])
		}
	}
}

func TestEncodeTextOrderingAndRoundTrip(t *testing.T) {
	values := []string{"", "a", "aa", "ab", "b", "b\x00c"}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)

	encoded := make([][]byte, len(sorted))
	for i, s := range sorted {
		encoded[i] = EncodeText(s)
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("text ordering violated at %d between %q and %q", i, sorted[i-1], sorted[i])
		}
	}

	for _, s := range values {
		enc := EncodeText(s)
		got, n, err := DecodeText(enc)
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		if got != s || n != len(enc) {
			t.Fatalf("round trip %q -> %q (%d/%d)", s, got, n, len(enc))
		}
	}
}

func TestComplementReversesOrder(t *testing.T) {
	a := EncodeInt32(1)
	b := EncodeInt32(2)
	if bytes.Compare(a, b) >= 0 {
		t.Fatal("precondition failed")
	}
	ra, rb := Complement(a), Complement(b)
	if bytes.Compare(ra, rb) <= 0 {
		t.Fatal("complement should reverse ordering")
	}
}
