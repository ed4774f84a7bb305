package sstfile

import (
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/cqlite/cqlite/vint"
)

// Murmur3Token computes a partition key's token under Murmur3Partitioner,
// the only partitioner CQLite supports (spec.md §5): the first 64-bit
// half of the 128-bit MurmurHash3 of the key, seeded with 0, taken as a
// signed value.
func Murmur3Token(key []byte) int64 {
	h1, _ := murmur3.Sum128WithSeed(key, 0)
	return int64(h1)
}

// tokenOrderKey builds the string Summary.db/Index.db ordering actually
// follows: entries are sorted by token, then by partition key bytes to
// break token collisions (spec.md §4.E/§4.F). Encoding the token as a
// sign-flipped big-endian int64 and appending the raw key (escaped the
// same way byte-comparable text components are) means plain Go string
// comparison reproduces that exact order, so the sorted slice backing
// Summary needs no custom comparator.
func tokenOrderKey(rawKey []byte) string {
	tok := Murmur3Token(rawKey)
	return string(vint.EncodeInt64(tok)) + string(vint.EncodeText(string(rawKey)))
}

// CompareTokenOrder orders two raw partition keys the way Index.db and
// a partition scan order them: by Murmur3 token, then by key bytes to
// break token collisions.
func CompareTokenOrder(a, b []byte) int {
	return strings.Compare(tokenOrderKey(a), tokenOrderKey(b))
}
