package sstfile

import (
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/spaolacci/murmur3"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// BloomFilter answers "definitely absent" / "maybe present" for a
// partition key against Filter.db's recorded bit array, reproducing
// Cassandra's exact `(h1 + i*h2) mod bit_count` MurmurHash3 indexing
// scheme rather than a library-chosen hash family.
type BloomFilter struct {
	bitCount  uint64
	hashCount uint32
	seed      uint32
	bits      *bitset.BitSet
}

// ReadFilter parses Filter.db: bit-vector length, hash count, seed,
// then the packed bit array.
func ReadFilter(r io.Reader) (*BloomFilter, error) {
	bitCount, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading filter bit count")
	}
	hashCount, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading filter hash count")
	}
	seed, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading filter seed")
	}

	byteLen := (bitCount + 7) / 8
	raw := make([]byte, byteLen)
	if _, err := readFull(r, raw); err != nil {
		return nil, err
	}

	bits := bitset.New(uint(bitCount))
	for i := uint64(0); i < bitCount; i++ {
		byteIdx := i / 8
		bitIdx := uint(7 - i%8) // big-endian bit order within each byte
		if raw[byteIdx]&(1<<bitIdx) != 0 {
			bits.Set(uint(i))
		}
	}

	return &BloomFilter{
		bitCount:  bitCount,
		hashCount: uint32(hashCount),
		seed:      seed,
		bits:      bits,
	}, nil
}

// MayContain reports whether key might be present: true means "maybe
// present", false means "definitely absent".
func (f *BloomFilter) MayContain(key []byte) bool {
	if f.bitCount == 0 {
		return true
	}
	h1, h2 := murmur3.Sum128WithSeed(key, f.seed)
	for i := uint32(0); i < f.hashCount; i++ {
		idx := (h1 + uint64(i)*h2) % f.bitCount
		if !f.bits.Test(uint(idx)) {
			return false
		}
	}
	return true
}

func (f *BloomFilter) BitCount() uint64  { return f.bitCount }
func (f *BloomFilter) HashCount() uint32 { return f.hashCount }
