package sstfile

import (
	"bytes"
	"testing"

	"github.com/spaolacci/murmur3"

	"github.com/cqlite/cqlite/vint"
)

// buildFilterBytes constructs a Filter.db image for the given keys by
// computing the exact bit positions MayContain will later recompute,
// so the round trip exercises the real MurmurHash3 indexing path.
func buildFilterBytes(t *testing.T, bitCount uint64, hashCount uint32, seed uint32, keys [][]byte) []byte {
	t.Helper()
	bits := make([]byte, (bitCount+7)/8)
	setBit := func(i uint64) {
		bits[i/8] |= 1 << uint(7-i%8)
	}
	for _, k := range keys {
		h1, h2 := murmur3.Sum128WithSeed(k, seed)
		for i := uint32(0); i < hashCount; i++ {
			idx := (h1 + uint64(i)*h2) % bitCount
			setBit(idx)
		}
	}

	var buf bytes.Buffer
	vint.WriteVInt(&buf, bitCount)
	vint.WriteVInt(&buf, uint64(hashCount))
	vint.WriteU32BE(&buf, seed)
	buf.Write(bits)
	return buf.Bytes()
}

func TestBloomFilterMayContainPresentKeys(t *testing.T) {
	keys := [][]byte{[]byte("alice"), []byte("bob"), []byte("carol")}
	raw := buildFilterBytes(t, 1024, 3, 7, keys)

	f, err := ReadFilter(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if f.BitCount() != 1024 || f.HashCount() != 3 {
		t.Fatalf("got bitCount=%d hashCount=%d", f.BitCount(), f.HashCount())
	}
	for _, k := range keys {
		if !f.MayContain(k) {
			t.Fatalf("expected MayContain(%s) to be true", k)
		}
	}
}

func TestBloomFilterEmptyFilterAlwaysMaybePresent(t *testing.T) {
	raw := buildFilterBytes(t, 0, 0, 0, nil)
	f, err := ReadFilter(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !f.MayContain([]byte("anything")) {
		t.Fatal("zero-bit filter must not reject any key")
	}
}
