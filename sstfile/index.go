package sstfile

import (
	"bufio"
	"io"
	"iter"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// PromotedIndexBlock maps one clustering range within a partition to a
// Data.db byte range, letting a row lookup skip directly past
// uninteresting rows instead of scanning the whole partition.
type PromotedIndexBlock struct {
	StartClustering []byte
	EndClustering   []byte
	Offset          uint64
	Width           uint64
}

// IndexEntry is one partition's record in Index.db.
type IndexEntry struct {
	PartitionKey  []byte
	Position      uint64
	PromotedIndex []PromotedIndexBlock
}

// ReadIndex returns a lazy pull iterator over Index.db's entry stream,
// in the same EOF-terminates-cleanly, error-yields-once-then-stops
// shape as wal.Reader.Iter: a clean end of stream simply stops the
// sequence, while a truncated entry mid-read yields one (zero,err) pair
// and stops.
func ReadIndex(r io.Reader) iter.Seq2[IndexEntry, error] {
	br := bufio.NewReader(r)
	return func(yield func(IndexEntry, error) bool) {
		for {
			if _, err := br.Peek(1); err != nil {
				return // clean EOF: no more entries
			}
			entry, err := readIndexEntry(br)
			if err != nil {
				yield(IndexEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func readIndexEntry(r io.Reader) (IndexEntry, error) {
	key, err := readVIntBytes(r)
	if err != nil {
		return IndexEntry{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading index entry key")
	}
	position, _, err := vint.ReadVInt(r)
	if err != nil {
		return IndexEntry{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading index entry position")
	}
	promoted, err := readPromotedIndex(r)
	if err != nil {
		return IndexEntry{}, err
	}
	return IndexEntry{PartitionKey: key, Position: position, PromotedIndex: promoted}, nil
}

func readPromotedIndex(r io.Reader) ([]PromotedIndexBlock, error) {
	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading promoted index block count")
	}
	if count == 0 {
		return nil, nil
	}
	if err := checkCount(count, "promoted index block"); err != nil {
		return nil, err
	}
	blocks := make([]PromotedIndexBlock, count)
	for i := range blocks {
		start, err := readVIntBytes(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading promoted index %d start", i)
		}
		end, err := readVIntBytes(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading promoted index %d end", i)
		}
		offset, _, err := vint.ReadVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading promoted index %d offset", i)
		}
		width, _, err := vint.ReadVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading promoted index %d width", i)
		}
		blocks[i] = PromotedIndexBlock{StartClustering: start, EndClustering: end, Offset: offset, Width: width}
	}
	return blocks, nil
}
