package sstfile

import "testing"

func TestCompareTokenOrderMatchesTokens(t *testing.T) {
	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma"), []byte("user-000042")}
	for _, a := range keys {
		for _, b := range keys {
			got := CompareTokenOrder(a, b)
			ta, tb := Murmur3Token(a), Murmur3Token(b)
			switch {
			case ta < tb:
				if got >= 0 {
					t.Errorf("CompareTokenOrder(%q, %q) = %d, want < 0 (tokens %d < %d)", a, b, got, ta, tb)
				}
			case ta > tb:
				if got <= 0 {
					t.Errorf("CompareTokenOrder(%q, %q) = %d, want > 0 (tokens %d > %d)", a, b, got, ta, tb)
				}
			default:
				if string(a) == string(b) && got != 0 {
					t.Errorf("CompareTokenOrder(%q, %q) = %d, want 0", a, b, got)
				}
			}
		}
	}
}
