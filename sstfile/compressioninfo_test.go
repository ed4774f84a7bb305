package sstfile

import (
	"bytes"
	"testing"

	"github.com/cqlite/cqlite/compression"
	"github.com/cqlite/cqlite/vint"
)

func TestReadCompressionInfo(t *testing.T) {
	var buf bytes.Buffer
	name := "org.apache.cassandra.io.compress.LZ4Compressor"
	vint.WriteVInt(&buf, uint64(len(name)))
	buf.WriteString(name)
	vint.WriteU32BE(&buf, 16*1024) // chunk length
	vint.WriteU64BE(&buf, 100000)  // data length
	vint.WriteU32BE(&buf, 2)       // chunk count
	vint.WriteU64BE(&buf, 0)       // chunk 0 offset
	vint.WriteU32BE(&buf, 500)     // chunk 0 compressed length
	vint.WriteU32BE(&buf, 0xAAAA)  // chunk 0 crc
	vint.WriteU64BE(&buf, 508)     // chunk 1 offset
	vint.WriteU32BE(&buf, 300)     // chunk 1 compressed length
	vint.WriteU32BE(&buf, 0xBBBB)  // chunk 1 crc

	info, err := ReadCompressionInfo(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if info.Algorithm != compression.AlgorithmLZ4 {
		t.Fatalf("got algorithm %v", info.Algorithm)
	}
	if info.ChunkLength != 16*1024 || info.DataLength != 100000 {
		t.Fatalf("got %+v", info)
	}
	if len(info.Chunks) != 2 || info.Chunks[1].Offset != 508 || info.Chunks[1].CompressedLength != 300 {
		t.Fatalf("got chunks %+v", info.Chunks)
	}

	// file size = last offset(508) + 4 (uncompressed len prefix) + 300 (payload) + 4 (crc) = 816
	if err := ValidateChunkTable(info, 816); err != nil {
		t.Fatalf("expected chunk table to validate: %v", err)
	}
	if err := ValidateChunkTable(info, 900); err == nil {
		t.Fatal("expected mismatch error for wrong file size")
	}
}

func TestReadCompressionInfoNoneAlgorithm(t *testing.T) {
	var buf bytes.Buffer
	vint.WriteVInt(&buf, 0) // empty class name -> AlgorithmNone
	vint.WriteU32BE(&buf, 4096)
	vint.WriteU64BE(&buf, 0)
	vint.WriteU32BE(&buf, 0)

	info, err := ReadCompressionInfo(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if info.Algorithm != compression.AlgorithmNone {
		t.Fatalf("got %v", info.Algorithm)
	}
	if len(info.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(info.Chunks))
	}
}
