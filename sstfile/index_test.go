package sstfile

import (
	"bytes"
	"testing"

	"github.com/cqlite/cqlite/vint"
)

func writeIndexEntry(buf *bytes.Buffer, key []byte, position uint64, promoted []PromotedIndexBlock) {
	vint.WriteVInt(buf, uint64(len(key)))
	buf.Write(key)
	vint.WriteVInt(buf, position)
	vint.WriteVInt(buf, uint64(len(promoted)))
	for _, p := range promoted {
		vint.WriteVInt(buf, uint64(len(p.StartClustering)))
		buf.Write(p.StartClustering)
		vint.WriteVInt(buf, uint64(len(p.EndClustering)))
		buf.Write(p.EndClustering)
		vint.WriteVInt(buf, p.Offset)
		vint.WriteVInt(buf, p.Width)
	}
}

func TestReadIndexMultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	writeIndexEntry(&buf, []byte("key1"), 0, nil)
	writeIndexEntry(&buf, []byte("key2"), 128, []PromotedIndexBlock{
		{StartClustering: []byte{0x01}, EndClustering: []byte{0x02}, Offset: 200, Width: 50},
	})

	var got []IndexEntry
	for entry, err := range ReadIndex(bytes.NewReader(buf.Bytes())) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, entry)
	}

	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if string(got[0].PartitionKey) != "key1" || got[0].Position != 0 || len(got[0].PromotedIndex) != 0 {
		t.Fatalf("entry 0: %+v", got[0])
	}
	if string(got[1].PartitionKey) != "key2" || got[1].Position != 128 {
		t.Fatalf("entry 1: %+v", got[1])
	}
	if len(got[1].PromotedIndex) != 1 || got[1].PromotedIndex[0].Offset != 200 {
		t.Fatalf("entry 1 promoted: %+v", got[1].PromotedIndex)
	}
}

func TestReadIndexEmptyStreamYieldsNothing(t *testing.T) {
	count := 0
	for _, err := range ReadIndex(bytes.NewReader(nil)) {
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 0 {
		t.Fatalf("expected no entries, got %d", count)
	}
}

func TestReadIndexHugePromotedCountRejected(t *testing.T) {
	var buf bytes.Buffer
	vint.WriteVInt(&buf, 4) // key length
	buf.WriteString("key1")
	vint.WriteVInt(&buf, 0)     // position
	vint.WriteVInt(&buf, 1<<40) // absurd promoted-index block count
	saw := false
	for _, err := range ReadIndex(bytes.NewReader(buf.Bytes())) {
		if err != nil {
			saw = true
			break
		}
	}
	if !saw {
		t.Fatal("expected an error for an oversized promoted index block count")
	}
}

func TestReadIndexTruncatedEntryYieldsError(t *testing.T) {
	var buf bytes.Buffer
	vint.WriteVInt(&buf, 10) // claims a 10-byte key but provides none
	saw := false
	for _, err := range ReadIndex(bytes.NewReader(buf.Bytes())) {
		if err != nil {
			saw = true
			break
		}
	}
	if !saw {
		t.Fatal("expected a truncation error")
	}
}
