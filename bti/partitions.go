package bti

import (
	"bytes"
	"iter"

	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// PartitionPayload is what a Partitions.db trie leaf resolves to.
type PartitionPayload struct {
	DataOffset    uint64
	HasRowTrie    bool
	RowTrieOffset uint64 // valid iff HasRowTrie; an offset into Rows.db
}

// PartitionIndex resolves partition keys against a fully-loaded
// Partitions.db byte image. Partitions.db is small relative to
// Data.db, so the sstable facade maps or reads it whole rather than
// streaming it the way bigformat streams Data.db.
type PartitionIndex struct {
	buf  []byte
	root uint64
}

// NewPartitionIndex wraps buf (Partitions.db's full contents) rooted
// at rootOffset (the trie root, conventionally the last node written,
// recovered from the file's own footer by the sstable facade).
func NewPartitionIndex(buf []byte, rootOffset uint64) *PartitionIndex {
	return &PartitionIndex{buf: buf, root: rootOffset}
}

// Get resolves rawKey to its Data.db position, reporting found=false
// rather than an error when no partition with that exact key exists.
func (idx *PartitionIndex) Get(rawKey []byte) (PartitionPayload, bool, error) {
	payloadStart, found, err := lookup(idx.buf, idx.root, rawKey)
	if err != nil || !found {
		return PartitionPayload{}, false, err
	}
	return decodePartitionPayload(idx.buf, payloadStart)
}

// OpenPartition resolves rawKey through the trie and decodes its
// partition header straight out of data, reusing bigformat's
// partition/row decoder rather than duplicating it — the BTI format
// only changes how a Data.db offset is located, not what lives there.
func (idx *PartitionIndex) OpenPartition(rawKey []byte, data *bigformat.Reader) (*bigformat.Partition, bool, error) {
	payload, found, err := idx.Get(rawKey)
	if err != nil || !found {
		return nil, false, err
	}
	p, err := data.OpenAt(payload.DataOffset)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Scan returns every partition payload in ascending key order, for a
// full-table scan over a BTI-format generation.
func (idx *PartitionIndex) Scan() iter.Seq2[PartitionPayload, error] {
	return func(yield func(PartitionPayload, error) bool) {
		_, err := walk(idx.buf, idx.root, func(payloadStart uint64) bool {
			p, _, err := decodePartitionPayload(idx.buf, payloadStart)
			if err != nil {
				yield(PartitionPayload{}, err)
				return false
			}
			return yield(p, nil)
		})
		if err != nil {
			yield(PartitionPayload{}, err)
		}
	}
}

// decodePartitionPayload reads a Partitions.db leaf payload: the
// partition's Data.db offset, and an optional pointer to its Rows.db
// mini-trie when one was built for it.
func decodePartitionPayload(buf []byte, offset uint64) (PartitionPayload, bool, error) {
	r := bytes.NewReader(buf[offset:])
	dataOffset, _, err := vint.ReadVInt(r)
	if err != nil {
		return PartitionPayload{}, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition payload data offset")
	}
	hasRowTrie, err := vint.ReadU8BE(r)
	if err != nil {
		return PartitionPayload{}, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition payload row-trie flag")
	}
	p := PartitionPayload{DataOffset: dataOffset}
	if hasRowTrie != 0 {
		off, _, err := vint.ReadVInt(r)
		if err != nil {
			return PartitionPayload{}, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition payload row-trie offset")
		}
		p.HasRowTrie = true
		p.RowTrieOffset = off
	}
	return p, true, nil
}
