package bigformat

import (
	"bytes"
	"testing"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/vint"
)

func testTable() *schema.Table {
	return &schema.Table{
		Keyspace:     "ks",
		Name:         "t",
		PartitionKey: []schema.PartitionKeyColumn{{Name: "id", Type: schema.Primitive(schema.Int), Position: 0}},
		ClusteringKey: []schema.ClusteringColumn{
			{Name: "ck", Type: schema.Primitive(schema.Int), Position: 0, Order: schema.Asc},
		},
		Columns: []schema.Column{
			{Name: "name", Type: schema.Primitive(schema.Text), Kind: schema.Regular},
			{Name: "tags", Type: schema.NewList(schema.Primitive(schema.Text)), Kind: schema.Regular},
		},
	}
}

func mustEncode(t *testing.T, v cqlvalue.Value) []byte {
	t.Helper()
	b, err := cqlvalue.Encode(nil, v)
	if err != nil {
		t.Fatalf("encoding fixture value: %v", err)
	}
	return b
}

func writeSVIntBytes(buf *bytes.Buffer, b []byte) {
	vint.WriteSVInt(buf, int64(len(b)))
	buf.Write(b)
}

// buildSimplePartition encodes one partition ("k1") with no partition
// deletion, no static row, and a single regular row carrying a simple
// text cell and a complex (non-frozen list) cell.
func buildSimplePartition(t *testing.T, rawKey []byte, rowTimestampDelta int64) []byte {
	t.Helper()
	var buf bytes.Buffer

	vint.WriteVInt(&buf, uint64(len(rawKey)))
	buf.Write(rawKey)
	vint.WriteU8BE(&buf, 0) // partition flags: no deletion, no static row

	vint.WriteU8BE(&buf, markerRow)
	vint.WriteVInt(&buf, 1) // one clustering component
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewInt(7)))

	vint.WriteU8BE(&buf, rowFlagHasTimestamp)
	vint.WriteSVInt(&buf, rowTimestampDelta)

	vint.WriteVInt(&buf, 2) // two cells present

	vint.WriteVInt(&buf, 0) // column index 0: name
	vint.WriteU8BE(&buf, 0)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewText("alice")))

	vint.WriteVInt(&buf, 1) // column index 1: tags
	vint.WriteU8BE(&buf, cellFlagIsComplex)
	vint.WriteU8BE(&buf, 0) // no collection-level deletion
	vint.WriteVInt(&buf, 2)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewText("a")))
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewText("b")))

	vint.WriteU8BE(&buf, markerEndPartition)
	return buf.Bytes()
}

func TestPartitionRoundTrip(t *testing.T) {
	table := testTable()
	raw := buildSimplePartition(t, []byte("k1"), 1000)

	r := NewReader(NewRawSource(bytes.NewReader(raw)), uint64(len(raw)), table, Options{MinTimestamp: 500})
	p, err := r.openPartitionAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Key) != "k1" {
		t.Fatalf("key = %q", p.Key)
	}
	if p.Deletion != nil || p.Static != nil {
		t.Fatalf("expected no partition deletion or static row, got %+v / %+v", p.Deletion, p.Static)
	}

	var rows []*Row
	for row, err := range p.Rows() {
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if len(row.Clustering) != 1 || row.Clustering[0].Int32 != 7 {
		t.Fatalf("clustering = %+v", row.Clustering)
	}
	if !row.HasTimestamp || row.Timestamp != 1500 {
		t.Fatalf("timestamp = %d (has=%v)", row.Timestamp, row.HasTimestamp)
	}

	name, ok := row.Get("name")
	if !ok || name.Value.Text != "alice" {
		t.Fatalf("name cell = %+v, ok=%v", name, ok)
	}

	tags, ok := row.Get("tags")
	if !ok {
		t.Fatal("tags cell missing")
	}
	if len(tags.Value.Elems) != 2 || tags.Value.Elems[0].Text != "a" || tags.Value.Elems[1].Text != "b" {
		t.Fatalf("tags = %+v", tags.Value.Elems)
	}
}

func TestPartitionDeletionSuppressesRow(t *testing.T) {
	table := testTable()
	var buf bytes.Buffer
	rawKey := []byte("k2")

	vint.WriteVInt(&buf, uint64(len(rawKey)))
	buf.Write(rawKey)
	vint.WriteU8BE(&buf, partitionFlagHasDeletion)
	vint.WriteI64BE(&buf, 2000) // marked-for-delete-at
	vint.WriteI32BE(&buf, 111)  // local deletion time

	vint.WriteU8BE(&buf, markerRow)
	vint.WriteVInt(&buf, 1)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewInt(1)))
	vint.WriteU8BE(&buf, rowFlagHasTimestamp)
	vint.WriteSVInt(&buf, 1000) // row timestamp 500+1000=1500, covered by the 2000 deletion
	vint.WriteVInt(&buf, 1)
	vint.WriteVInt(&buf, 0)
	vint.WriteU8BE(&buf, 0)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewText("ghost")))

	vint.WriteU8BE(&buf, markerEndPartition)

	raw := buf.Bytes()
	r := NewReader(NewRawSource(bytes.NewReader(raw)), uint64(len(raw)), table, Options{MinTimestamp: 500})
	p, err := r.openPartitionAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Deletion == nil || p.Deletion.MarkedForDeleteAt != 2000 {
		t.Fatalf("partition deletion = %+v", p.Deletion)
	}

	var rows []*Row
	for row, err := range p.Rows() {
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 0 {
		t.Fatalf("expected the partition deletion to suppress the only row, got %d rows", len(rows))
	}
}

func TestReaderGetLocatesPartitionByIndex(t *testing.T) {
	table := testTable()
	rawKey := []byte("k1")
	data := buildSimplePartition(t, rawKey, 1000)

	var idx bytes.Buffer
	vint.WriteVInt(&idx, uint64(len(rawKey)))
	idx.Write(rawKey)
	vint.WriteVInt(&idx, 0) // Data.db position
	vint.WriteVInt(&idx, 0) // no promoted index blocks

	r := NewReader(NewRawSource(bytes.NewReader(data)), uint64(len(data)), table, Options{MinTimestamp: 500})
	p, found, err := r.Get(bytes.NewReader(idx.Bytes()), rawKey)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected to find partition k1")
	}
	if string(p.Key) != "k1" {
		t.Fatalf("key = %q", p.Key)
	}

	_, found, err = r.Get(bytes.NewReader(idx.Bytes()), []byte("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match for a key absent from the index")
	}
}

func TestRangeTombstoneSuppressesCoveredRow(t *testing.T) {
	table := testTable()
	var buf bytes.Buffer
	rawKey := []byte("k3")

	vint.WriteVInt(&buf, uint64(len(rawKey)))
	buf.Write(rawKey)
	vint.WriteU8BE(&buf, 0)

	// Open an inclusive range covering clustering >= 5 at timestamp 2000.
	vint.WriteU8BE(&buf, markerRangeTombstone)
	vint.WriteU8BE(&buf, byte(InclusiveStart))
	vint.WriteVInt(&buf, 1)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewInt(5)))
	vint.WriteI64BE(&buf, 2000)
	vint.WriteI32BE(&buf, 222)

	// A row at clustering=7, timestamp 1500, falls inside the open range.
	vint.WriteU8BE(&buf, markerRow)
	vint.WriteVInt(&buf, 1)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewInt(7)))
	vint.WriteU8BE(&buf, rowFlagHasTimestamp)
	vint.WriteSVInt(&buf, 1000)
	vint.WriteVInt(&buf, 1)
	vint.WriteVInt(&buf, 0)
	vint.WriteU8BE(&buf, 0)
	writeSVIntBytes(&buf, mustEncode(t, cqlvalue.NewText("covered")))

	vint.WriteU8BE(&buf, markerEndPartition)

	raw := buf.Bytes()
	r := NewReader(NewRawSource(bytes.NewReader(raw)), uint64(len(raw)), table, Options{MinTimestamp: 500})
	p, err := r.openPartitionAt(0)
	if err != nil {
		t.Fatal(err)
	}

	var rows []*Row
	for row, err := range p.Rows() {
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 0 {
		t.Fatalf("expected the open range tombstone to suppress the row, got %d rows", len(rows))
	}
}
