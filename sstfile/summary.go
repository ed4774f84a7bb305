package sstfile

import (
	"io"
	"sort"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// SummaryEntry is one sampled (partition key, Index.db offset) pair
// from Summary.db.
type SummaryEntry struct {
	RawKey      []byte
	IndexOffset uint64
}

// Summary is the in-memory, binary-searchable seek structure
// Summary.db persists: an ascending tokenOrderKey snapshot (Go's
// native string comparison is already lexicographic byte comparison,
// so storing each entry under its tokenOrderKey — token, then raw key,
// byte-comparable encoded — reproduces Index.db's "sorted by token
// then partition key" order directly). Summary.db is read once at
// Handle open and never mutated afterward, so a sorted slice searched
// with sort.Search gives both Exact and the floor query Window needs
// without a dynamic structure's insert/delete overhead.
type Summary struct {
	entries []SummaryEntry // ascending tokenOrderKey order
	keys    []string       // parallel tokenOrderKey for each entries[i]
}

// ReadSummary parses Summary.db: a count, then that many (key, offset)
// entries.
func ReadSummary(r io.Reader) (*Summary, error) {
	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading summary entry count")
	}

	entries := make([]SummaryEntry, 0, count)
	keys := make([]string, 0, count)

	for i := uint64(0); i < count; i++ {
		key, err := readVIntBytes(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading summary entry %d key", i)
		}
		offset, _, err := vint.ReadVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading summary entry %d offset", i)
		}
		entries = append(entries, SummaryEntry{RawKey: key, IndexOffset: offset})
		keys = append(keys, tokenOrderKey(key))
	}

	return &Summary{entries: entries, keys: keys}, nil
}

// Exact returns the Index.db offset sampled for rawKey, if Summary.db
// happened to sample that exact key. Most lookups instead use Window,
// since the summary only samples a subset of partitions.
func (s *Summary) Exact(rawKey []byte) (uint64, bool) {
	target := tokenOrderKey(rawKey)
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= target })
	if i < len(s.keys) && s.keys[i] == target {
		return s.entries[i].IndexOffset, true
	}
	return 0, false
}

// Window returns the half-open [start, end) byte range of Index.db a
// lookup for rawKey must linear-scan: start is the sampled offset of
// the nearest entry whose (token, key) is <= rawKey's, end is the next
// sampled entry's offset, or hasEnd=false when rawKey falls in the
// final window (scan to EOF).
func (s *Summary) Window(rawKey []byte) (start uint64, end uint64, hasEnd bool) {
	target := tokenOrderKey(rawKey)
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] > target })
	if i == 0 {
		return 0, s.entryOffsetOrZero(0), len(s.entries) > 0
	}
	start = s.entries[i-1].IndexOffset
	if i < len(s.entries) {
		return start, s.entries[i].IndexOffset, true
	}
	return start, 0, false
}

func (s *Summary) entryOffsetOrZero(i int) uint64 {
	if i >= len(s.entries) {
		return 0
	}
	return s.entries[i].IndexOffset
}

func (s *Summary) Len() int { return len(s.entries) }
