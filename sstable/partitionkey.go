package sstable

import (
	"encoding/binary"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
)

// EncodePartitionKey builds the raw partition key bytes Handle.Get
// expects, from fully-bound column values in partition-key declaration
// order. A single-component key is just that component's plain (not
// byte-comparable) serialization; a composite key concatenates each
// component as Cassandra's CompositeType does: a big-endian uint16
// length, the component bytes, then a single end-of-component marker
// byte (0x00 for every component here — this reader never needs the
// "not equal to the last component" static/collection markers real
// Cassandra composite columns use, since partition keys carry no
// collection tail).
func EncodePartitionKey(values []cqlvalue.Value, pk []schema.PartitionKeyColumn) ([]byte, error) {
	if len(values) != len(pk) {
		return nil, cqlerr.New(cqlerr.TypeMismatch, "sstable", "partition key has %d components, got %d values", len(pk), len(values))
	}
	if len(pk) == 1 {
		return cqlvalue.Encode(nil, values[0])
	}

	var out []byte
	for i, v := range values {
		enc, err := cqlvalue.Encode(nil, v)
		if err != nil {
			return nil, err
		}
		if len(enc) > 0xFFFF {
			return nil, cqlerr.New(cqlerr.TypeMismatch, "sstable", "partition key component %s too long for composite encoding", pk[i].Name)
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(enc)))
		out = append(out, lenBuf[:]...)
		out = append(out, enc...)
		out = append(out, 0x00)
	}
	return out, nil
}

// DecodePartitionKey reverses EncodePartitionKey: given a partition's
// raw key bytes (as carried by bigformat.Partition.Key) and the
// table's partition key columns, it recovers each component's typed
// value. Needed wherever a projection includes a partition-key column
// or a post-filter restricts one: those columns have no Cell of their
// own in the row stream, only the raw key the row belongs to.
func DecodePartitionKey(raw []byte, pk []schema.PartitionKeyColumn) ([]cqlvalue.Value, error) {
	if len(pk) == 1 {
		v, err := cqlvalue.Decode(cqlvalue.NewCursor(raw), pk[0].Type)
		if err != nil {
			return nil, err
		}
		return []cqlvalue.Value{v}, nil
	}

	out := make([]cqlvalue.Value, 0, len(pk))
	c := cqlvalue.NewCursor(raw)
	for _, col := range pk {
		lenBuf, err := c.Bytes(2)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, "sstable", err, "reading partition key component %s length", col.Name)
		}
		n := int(binary.BigEndian.Uint16(lenBuf))
		sub, err := c.Sub(n)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, "sstable", err, "reading partition key component %s", col.Name)
		}
		v, err := cqlvalue.Decode(sub, col.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if _, err := c.Byte(); err != nil { // end-of-component marker
			return nil, cqlerr.Wrap(cqlerr.Truncated, "sstable", err, "reading partition key component %s terminator", col.Name)
		}
	}
	return out, nil
}
