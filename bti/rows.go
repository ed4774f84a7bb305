package bti

import (
	"bytes"
	"iter"

	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/vint"
)

// defaultRowBlockGranularity is the row-block size Cassandra targets
// when splitting a wide partition's row stream for Rows.db indexing.
const defaultRowBlockGranularity = 16 * 1024

// RowBlock is a Rows.db leaf payload: the Data.db offset a run of rows
// starts at, and how many bytes that run spans.
type RowBlock struct {
	DataOffset uint64
	Length     uint64
}

// RowIndex resolves a byte-comparable clustering prefix to the row
// block it falls in, for one partition's mini-trie within Rows.db.
type RowIndex struct {
	buf  []byte
	root uint64
}

// NewRowIndex wraps buf (Rows.db's full contents, mmap'd by the
// sstable facade) rooted at the offset a PartitionPayload.RowTrieOffset
// names.
func NewRowIndex(buf []byte, rootOffset uint64) *RowIndex {
	return &RowIndex{buf: buf, root: rootOffset}
}

// Lookup resolves a byte-comparable clustering key (built with
// EncodeClusteringKey) to the row block covering it.
func (idx *RowIndex) Lookup(clusteringKey []byte) (RowBlock, bool, error) {
	payloadStart, found, err := lookup(idx.buf, idx.root, clusteringKey)
	if err != nil || !found {
		return RowBlock{}, false, err
	}
	return decodeRowBlockPayload(idx.buf, payloadStart)
}

// Blocks returns every row block this partition's mini-trie indexes,
// in clustering order.
func (idx *RowIndex) Blocks() iter.Seq2[RowBlock, error] {
	return func(yield func(RowBlock, error) bool) {
		_, err := walk(idx.buf, idx.root, func(payloadStart uint64) bool {
			b, _, err := decodeRowBlockPayload(idx.buf, payloadStart)
			if err != nil {
				yield(RowBlock{}, err)
				return false
			}
			return yield(b, nil)
		})
		if err != nil {
			yield(RowBlock{}, err)
		}
	}
}

// Rows decodes a row block straight out of data, resuming bigformat's
// row decoder at the block's Data.db offset rather than rescanning
// from the partition header.
func (b RowBlock) Rows(data *bigformat.Reader, partitionDeletion *bigformat.Deletion) iter.Seq2[*bigformat.Row, error] {
	return data.RowsFrom(b.DataOffset, partitionDeletion)
}

func decodeRowBlockPayload(buf []byte, offset uint64) (RowBlock, bool, error) {
	r := bytes.NewReader(buf[offset:])
	dataOffset, _, err := vint.ReadVInt(r)
	if err != nil {
		return RowBlock{}, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row block data offset")
	}
	length, _, err := vint.ReadVInt(r)
	if err != nil {
		return RowBlock{}, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row block length")
	}
	return RowBlock{DataOffset: dataOffset, Length: length}, true, nil
}

// EncodeClusteringKey builds the byte-comparable trie key for a
// (possibly partial) clustering value prefix, honoring each column's
// sort order: a DESC column's encoding is bitwise-complemented so
// ascending byte order still matches descending CQL order. Each
// component is prefixed with a one-byte presence marker (0x00 = null,
// 0x01 = present) so a null component sorts before any encoded value
// regardless of type, matching cqlvalue.Compare's null-first rule.
func EncodeClusteringKey(values []cqlvalue.Value, cols []schema.ClusteringColumn) ([]byte, error) {
	var out []byte
	for i, v := range values {
		if i >= len(cols) {
			return nil, cqlerr.New(cqlerr.SchemaMismatch, component, "clustering value %d has no matching column", i)
		}
		var enc []byte
		if !v.Null {
			e, err := encodeComponent(v, cols[i].Type)
			if err != nil {
				return nil, err
			}
			if cols[i].Order == schema.Desc {
				e = vint.Complement(e)
			}
			enc = append([]byte{0x01}, e...)
		} else {
			enc = []byte{0x00}
		}
		out = append(out, enc...)
	}
	return out, nil
}

func encodeComponent(v cqlvalue.Value, t *schema.Type) ([]byte, error) {
	switch t.Kind {
	case schema.Tinyint:
		return vint.EncodeInt8(v.Int8), nil
	case schema.Smallint:
		return vint.EncodeInt16(v.Int16), nil
	case schema.Int:
		return vint.EncodeInt32(v.Int32), nil
	case schema.Bigint, schema.Counter, schema.Time:
		return vint.EncodeInt64(v.Int64), nil
	case schema.Date:
		// Date's wire encoding is already an unbiased-to-unsigned,
		// big-endian day count (cqlvalue.Encode), which is already
		// byte-comparable — no separate derivation needed here.
		return cqlvalue.Encode(nil, v)
	case schema.Float:
		return vint.EncodeFloat32(v.Float32), nil
	case schema.Double:
		return vint.EncodeFloat64(v.Float64), nil
	case schema.Ascii, schema.Text:
		return vint.EncodeText(v.Text), nil
	case schema.Blob:
		return vint.EncodeText(string(v.Bytes)), nil
	case schema.UUID:
		return vint.EncodeUUIDBytes([16]byte(v.UUID)), nil
	case schema.TimeUUID:
		return vint.EncodeTimeUUID([16]byte(v.UUID)), nil
	default:
		return nil, cqlerr.New(cqlerr.Unsupported, component, "type %s has no byte-comparable clustering encoding", t)
	}
}
