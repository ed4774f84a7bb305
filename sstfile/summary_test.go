package sstfile

import (
	"bytes"
	"sort"
	"testing"

	"github.com/cqlite/cqlite/vint"
)

func buildSummaryBytes(entries []SummaryEntry) []byte {
	var buf bytes.Buffer
	vint.WriteVInt(&buf, uint64(len(entries)))
	for _, e := range entries {
		vint.WriteVInt(&buf, uint64(len(e.RawKey)))
		buf.Write(e.RawKey)
		vint.WriteVInt(&buf, e.IndexOffset)
	}
	return buf.Bytes()
}

// sortByToken orders the fixture entries the way a real Summary.db
// would already be sorted on disk: by token, the order ReadSummary's
// sorted slice (and Exact's and Window's sort.Search) assumes.
func sortByToken(entries []SummaryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return Murmur3Token(entries[i].RawKey) < Murmur3Token(entries[j].RawKey)
	})
}

func TestSummaryExactAndWindow(t *testing.T) {
	entries := []SummaryEntry{
		{RawKey: []byte("apple"), IndexOffset: 0},
		{RawKey: []byte("mango"), IndexOffset: 1000},
		{RawKey: []byte("zebra"), IndexOffset: 2000},
	}
	sortByToken(entries)
	for i, e := range entries {
		entries[i].IndexOffset = uint64(i * 1000)
	}
	raw := buildSummaryBytes(entries)

	s, err := ReadSummary(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("got len %d", s.Len())
	}

	for _, e := range entries {
		if off, ok := s.Exact(e.RawKey); !ok || off != e.IndexOffset {
			t.Fatalf("exact %s: got %d %v, want %d", e.RawKey, off, ok, e.IndexOffset)
		}
	}
	if _, ok := s.Exact([]byte("missing-key-not-sampled")); ok {
		// Exact compares token and raw key bytes together, so a key
		// that was never sampled cannot match, even on a token collision.
		t.Fatal("Exact matched a key that was never sampled")
	}

	start, _, hasEnd := s.Window(entries[0].RawKey)
	if start != entries[0].IndexOffset || !hasEnd {
		t.Fatalf("window(first) = %d %v", start, hasEnd)
	}

	start, _, hasEnd = s.Window(entries[2].RawKey)
	if start != entries[2].IndexOffset || hasEnd {
		t.Fatalf("window(last) = %d %v", start, hasEnd)
	}
}
