package compression

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// fakeFile is an io.ReaderAt over an in-memory buffer, standing in for a
// memory-mapped or buffered Data.db region.
type fakeFile []byte

func (f fakeFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f)) {
		return 0, io.EOF
	}
	n := copy(p, f[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func buildChunk(t *testing.T, alg Algorithm, plain []byte) ([]byte, ChunkRecord) {
	t.Helper()

	var compressed []byte
	switch alg {
	case AlgorithmNone:
		compressed = plain
	case AlgorithmLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(plain)))
		var c lz4.Compressor
		n, err := c.CompressBlock(plain, dst)
		if err != nil {
			t.Fatal(err)
		}
		compressed = dst[:n]
	case AlgorithmSnappy:
		compressed = snappy.Encode(nil, plain)
	}

	crc := crc32.ChecksumIEEE(compressed)

	var buf bytes.Buffer
	var lenBuf [4]byte
	putU32(lenBuf[:], uint32(len(plain)))
	buf.Write(lenBuf[:])
	buf.Write(compressed)
	var crcBuf [4]byte
	putU32(crcBuf[:], crc)
	buf.Write(crcBuf[:])

	return buf.Bytes(), ChunkRecord{CompressedLength: uint32(len(compressed)), CRC32: crc}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestReaderRoundTripNone(t *testing.T) {
	plain := []byte("hello cqlite compression chunk")
	raw, rec := buildChunk(t, AlgorithmNone, plain)

	info := &Info{Algorithm: AlgorithmNone, ChunkLength: uint32(len(plain)), DataLength: uint64(len(plain)), Chunks: []ChunkRecord{rec}}
	r := NewReader(fakeFile(raw), info)

	got, err := r.ReadAt(0, len(plain))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q want %q", got, plain)
	}
}

func TestReaderRoundTripLZ4(t *testing.T) {
	plain := bytes.Repeat([]byte("abcdefgh"), 100)
	raw, rec := buildChunk(t, AlgorithmLZ4, plain)

	info := &Info{Algorithm: AlgorithmLZ4, ChunkLength: uint32(len(plain)), DataLength: uint64(len(plain)), Chunks: []ChunkRecord{rec}}
	r := NewReader(fakeFile(raw), info)

	got, err := r.ReadAt(10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain[10:30]) {
		t.Fatalf("got %q want %q", got, plain[10:30])
	}
}

func TestReaderRoundTripSnappy(t *testing.T) {
	plain := bytes.Repeat([]byte("xyz123"), 50)
	raw, rec := buildChunk(t, AlgorithmSnappy, plain)

	info := &Info{Algorithm: AlgorithmSnappy, ChunkLength: uint32(len(plain)), DataLength: uint64(len(plain)), Chunks: []ChunkRecord{rec}}
	r := NewReader(fakeFile(raw), info)

	got, err := r.ReadAt(0, len(plain))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("mismatch")
	}
}

func TestReaderCrossChunkStitch(t *testing.T) {
	a := bytes.Repeat([]byte("A"), 16)
	b := bytes.Repeat([]byte("B"), 16)

	rawA, recA := buildChunk(t, AlgorithmNone, a)
	rawB, recB := buildChunk(t, AlgorithmNone, b)
	recA.Offset = 0
	recB.Offset = uint64(len(rawA))

	combined := append(append([]byte{}, rawA...), rawB...)

	info := &Info{Algorithm: AlgorithmNone, ChunkLength: 16, DataLength: 32, Chunks: []ChunkRecord{recA, recB}}
	r := NewReader(fakeFile(combined), info)

	got, err := r.ReadAt(8, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, a[8:]...), b[:8]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReaderDetectsCorruption(t *testing.T) {
	plain := []byte("corrupt me please")
	raw, rec := buildChunk(t, AlgorithmNone, plain)
	raw[len(raw)-1] ^= 0xFF // flip a byte in the trailing CRC

	info := &Info{Algorithm: AlgorithmNone, ChunkLength: uint32(len(plain)), DataLength: uint64(len(plain)), Chunks: []ChunkRecord{rec}}
	r := NewReader(fakeFile(raw), info)

	_, err := r.ReadAt(0, len(plain))
	if err == nil {
		t.Fatal("expected corruption error")
	}
}

func TestParseAlgorithm(t *testing.T) {
	cases := map[string]Algorithm{
		"org.apache.cassandra.io.compress.LZ4Compressor":     AlgorithmLZ4,
		"org.apache.cassandra.io.compress.SnappyCompressor":  AlgorithmSnappy,
		"org.apache.cassandra.io.compress.DeflateCompressor": AlgorithmDeflate,
		"": AlgorithmNone,
	}
	for name, want := range cases {
		got, err := ParseAlgorithm(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", name, got, want)
		}
	}

	if _, err := ParseAlgorithm("com.example.BogusCompressor"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

// TestOptionOrderComposes asserts WithShardCount and WithCacheChunks
// compose regardless of the order they're passed in: a shard rebuilt
// by WithShardCount must still honor whatever per-shard cache size was
// requested, not silently fall back to the package default.
func TestOptionOrderComposes(t *testing.T) {
	info := &Info{Algorithm: AlgorithmNone, ChunkLength: 16, DataLength: 16}

	r := NewReader(fakeFile(nil), info, WithCacheChunks(2), WithShardCount(1))
	if len(r.shards) != 1 {
		t.Fatalf("got %d shards, want 1", len(r.shards))
	}
	cache := r.shards[0].cache
	for i := 0; i < 5; i++ {
		cache.Add(i, []byte{byte(i)})
	}
	if n := cache.Len(); n != 2 {
		t.Fatalf("cache held %d entries after WithCacheChunks(2), WithShardCount(1); want 2", n)
	}
}
