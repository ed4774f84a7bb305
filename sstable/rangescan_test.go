package sstable

import (
	"sort"
	"testing"

	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/sstfile"
)

// tokenOrderedKeys returns the given raw keys sorted the way a scan
// yields partitions: Murmur3 token order, key bytes as tiebreaker.
func tokenOrderedKeys(raw []string) [][]byte {
	keys := make([][]byte, len(raw))
	for i, s := range raw {
		keys[i] = []byte(s)
	}
	sort.Slice(keys, func(i, j int) bool {
		return sstfile.CompareTokenOrder(keys[i], keys[j]) < 0
	})
	return keys
}

func fakeScan(keys [][]byte) func(yield func(*bigformat.Partition, error) bool) {
	return func(yield func(*bigformat.Partition, error) bool) {
		for _, k := range keys {
			if !yield(&bigformat.Partition{Key: k}, nil) {
				return
			}
		}
	}
}

func collectKeys(t *testing.T, scan func(yield func(*bigformat.Partition, error) bool)) []string {
	t.Helper()
	var got []string
	for p, err := range scan {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, string(p.Key))
	}
	return got
}

func TestRangeScanBounds(t *testing.T) {
	keys := tokenOrderedKeys([]string{"user-1", "user-2", "user-3", "user-4", "user-5"})

	// Start inclusive, End exclusive: exactly the middle three survive.
	got := collectKeys(t, rangeScan(fakeScan(keys), Range{Start: keys[1], End: keys[4]}))
	want := []string{string(keys[1]), string(keys[2]), string(keys[3])}
	if len(got) != len(want) {
		t.Fatalf("got %d partitions %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("partition %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRangeScanOpenBounds(t *testing.T) {
	keys := tokenOrderedKeys([]string{"a", "b", "c"})

	if got := collectKeys(t, rangeScan(fakeScan(keys), Range{})); len(got) != 3 {
		t.Fatalf("unbounded range yielded %d partitions, want 3", len(got))
	}
	if got := collectKeys(t, rangeScan(fakeScan(keys), Range{Start: keys[2]})); len(got) != 1 || got[0] != string(keys[2]) {
		t.Fatalf("open-ended range from last key yielded %v", got)
	}
	if got := collectKeys(t, rangeScan(fakeScan(keys), Range{End: keys[0]})); len(got) != 0 {
		t.Fatalf("range ending before the first key yielded %v", got)
	}
}
