package bti

import (
	"testing"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/vint"
)

// buildPartitionTrie encodes a tiny two-key Partitions.db trie:
//
//	root (SPARSE, transitions 'a','b') -> child "a" (PAYLOAD_ONLY, dataOffset=10)
//	                                    -> child "b" (PAYLOAD_ONLY, dataOffset=20, has row-trie at 99)
//
// Keys are single bytes here purely to keep the fixture small; real
// partition keys are multi-byte and walk multiple trie levels.
func buildPartitionTrie(t *testing.T) (buf []byte, root uint64) {
	t.Helper()

	// Leaf for 'a': PAYLOAD_ONLY, has-payload, pointer width code 0 (unused, no children).
	leafA := []byte{byte(payloadOnlyNode)<<4 | nodePayloadFlag}
	leafA = append(leafA, encodeVInt(10)...) // dataOffset
	leafA = append(leafA, 0)                 // hasRowTrie = false

	leafB := []byte{byte(payloadOnlyNode)<<4 | nodePayloadFlag}
	leafB = append(leafB, encodeVInt(20)...)
	leafB = append(leafB, 1)                 // hasRowTrie = true
	leafB = append(leafB, encodeVInt(99)...) // rowTrieOffset

	leafAOffset := uint64(0)
	buf = append(buf, leafA...)
	leafBOffset := uint64(len(buf))
	buf = append(buf, leafB...)

	rootOffset := uint64(len(buf))
	// SPARSE root, pointer width code 0 (1-byte pointers), no payload.
	header := byte(sparseNode)<<4 | 0 // pointerWidthCode=0, hasPayload=false
	node := []byte{header}
	node = append(node, encodeVInt(2)...) // count
	node = append(node, 'a', 'b')         // sorted transitions

	ptrA := int64(leafAOffset) - int64(rootOffset)
	ptrB := int64(leafBOffset) - int64(rootOffset)
	node = append(node, byte(int8(ptrA)))
	node = append(node, byte(int8(ptrB)))

	buf = append(buf, node...)
	return buf, rootOffset
}

func encodeVInt(v uint64) []byte {
	var buf []byte
	w := &sliceWriter{&buf}
	vint.WriteVInt(w, v)
	return buf
}

type sliceWriter struct{ buf *[]byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func TestPartitionIndexGet(t *testing.T) {
	buf, root := buildPartitionTrie(t)
	idx := NewPartitionIndex(buf, root)

	p, found, err := idx.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || p.DataOffset != 10 || p.HasRowTrie {
		t.Fatalf("key a -> %+v, found=%v", p, found)
	}

	p, found, err = idx.Get([]byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || p.DataOffset != 20 || !p.HasRowTrie || p.RowTrieOffset != 99 {
		t.Fatalf("key b -> %+v, found=%v", p, found)
	}

	_, found, err = idx.Get([]byte("z"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no match for an absent key")
	}
}

func TestPartitionIndexScanOrder(t *testing.T) {
	buf, root := buildPartitionTrie(t)
	idx := NewPartitionIndex(buf, root)

	var offsets []uint64
	for p, err := range idx.Scan() {
		if err != nil {
			t.Fatal(err)
		}
		offsets = append(offsets, p.DataOffset)
	}
	if len(offsets) != 2 || offsets[0] != 10 || offsets[1] != 20 {
		t.Fatalf("scan order = %v, want [10 20]", offsets)
	}
}

func TestEncodeClusteringKeyOrdersLikeInt(t *testing.T) {
	cols := []schema.ClusteringColumn{{Name: "ck", Type: schema.Primitive(schema.Int), Position: 0, Order: schema.Asc}}

	small, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.NewInt(-5)}, cols)
	if err != nil {
		t.Fatal(err)
	}
	big, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.NewInt(5)}, cols)
	if err != nil {
		t.Fatal(err)
	}
	if compareBytes(small, big) >= 0 {
		t.Fatalf("expected encode(-5) < encode(5), got %x vs %x", small, big)
	}
}

func TestEncodeClusteringKeyDescComplements(t *testing.T) {
	cols := []schema.ClusteringColumn{{Name: "ck", Type: schema.Primitive(schema.Int), Position: 0, Order: schema.Desc}}

	small, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.NewInt(-5)}, cols)
	if err != nil {
		t.Fatal(err)
	}
	big, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.NewInt(5)}, cols)
	if err != nil {
		t.Fatal(err)
	}
	// DESC: the larger CQL value must sort first (encode smaller byte string).
	if compareBytes(big, small) >= 0 {
		t.Fatalf("expected encode(5) < encode(-5) under DESC, got %x vs %x", big, small)
	}
}

func TestEncodeClusteringKeyNullSortsFirst(t *testing.T) {
	cols := []schema.ClusteringColumn{{Name: "ck", Type: schema.Primitive(schema.Int), Position: 0, Order: schema.Asc}}

	null, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.Null(schema.Primitive(schema.Int))}, cols)
	if err != nil {
		t.Fatal(err)
	}
	present, err := EncodeClusteringKey([]cqlvalue.Value{cqlvalue.NewInt(-1000)}, cols)
	if err != nil {
		t.Fatal(err)
	}
	if compareBytes(null, present) >= 0 {
		t.Fatalf("expected null to sort before any present value, got %x vs %x", null, present)
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
