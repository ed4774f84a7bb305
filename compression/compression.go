// Package compression decodes the frame-level compressed blocks of a
// Cassandra 5 Data.db file as described by its CompressionInfo.db
// sidecar: fixed-length logical chunks, each independently compressed
// and CRC32-checked, fetched through a per-handle sharded LRU of
// decompressed chunks.
//
//	Overview
//
//	   1 │+----------------------------------------------------------+
//	   2 │| CompressionInfo.db                                       |
//	   3 │|  algorithm name | chunk length | data length | chunk count|
//	   4 │|  chunk[0]: compressed offset, compressed length, CRC32    |
//	   5 │|  chunk[1]: ...                                            |
//	   6 │+----------------------------------------------------------+
//	   7 │| Data.db (compressed)                                     |
//	   8 │|  [uncompressed_len u32 BE][compressed payload][CRC32]     |  <- one chunk
//	   9 │|  ...                                                      |
//	  10 │+----------------------------------------------------------+
package compression

import (
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"

	"compress/flate"
	"bytes"
)

// Algorithm identifies the per-chunk compressor.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmDeflate
)

// ParseAlgorithm maps a CompressionInfo.db class name to an Algorithm.
// Cassandra records the fully-qualified compressor class, e.g.
// "org.apache.cassandra.io.compress.LZ4Compressor".
func ParseAlgorithm(className string) (Algorithm, error) {
	switch {
	case hasSuffixFold(className, "LZ4Compressor"):
		return AlgorithmLZ4, nil
	case hasSuffixFold(className, "SnappyCompressor"):
		return AlgorithmSnappy, nil
	case hasSuffixFold(className, "DeflateCompressor"):
		return AlgorithmDeflate, nil
	case className == "":
		return AlgorithmNone, nil
	default:
		return 0, fmt.Errorf("compression: %w: %q", ErrUnknownAlgorithm, className)
	}
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		a, b := tail[i], suffix[i]
		if a == b {
			continue
		}
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

var (
	ErrUnknownAlgorithm = fmt.Errorf("unknown compression algorithm")
	ErrCorrupt          = fmt.Errorf("corrupt compressed chunk")
	ErrTruncated        = fmt.Errorf("truncated compressed chunk")
)

// ChunkRecord is one entry of CompressionInfo.db's chunk table.
type ChunkRecord struct {
	Offset           uint64 // offset of this chunk in the compressed Data.db
	CompressedLength uint32 // length of the compressed payload, excluding the trailing CRC32
	CRC32            uint32
}

// Info is the parsed contents of CompressionInfo.db.
type Info struct {
	Algorithm   Algorithm
	ClassName   string
	ChunkLength uint32 // fixed logical chunk size, e.g. 16KiB or 64KiB
	DataLength  uint64 // total uncompressed length
	Chunks      []ChunkRecord
}

func (info *Info) chunkIndex(logicalOffset uint64) int {
	return int(logicalOffset / uint64(info.ChunkLength))
}

// decompress inflates one chunk's compressed payload using the configured
// algorithm, given the expected uncompressed length.
func decompress(alg Algorithm, compressed []byte, uncompressedLen uint32) ([]byte, error) {
	switch alg {
	case AlgorithmNone:
		if uint32(len(compressed)) != uncompressedLen {
			return nil, ErrCorrupt
		}
		return compressed, nil
	case AlgorithmLZ4:
		out := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(compressed, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out[:n], nil
	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	case AlgorithmDeflate:
		fr := flate.NewReader(bytes.NewReader(compressed))
		defer fr.Close()
		out := make([]byte, uncompressedLen)
		if _, err := io.ReadFull(fr, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, ErrUnknownAlgorithm
	}
}

// shard is one independently-locked slice of the chunk cache.
type shard struct {
	mu    sync.Mutex
	cache *lru.Cache[int, []byte]
}

const defaultShardCount = 4
const defaultCacheChunks = 8

// Reader serves uncompressed byte ranges of a Data.db file backed by an
// io.ReaderAt over the raw (compressed) file contents.
type Reader struct {
	src    io.ReaderAt
	info   *Info
	shards []*shard

	// cacheChunks is the per-shard cache size most recently requested
	// by WithCacheChunks (or the default). WithShardCount rebuilds
	// shards sized against this value rather than a hardcoded default,
	// so the two options compose regardless of the order a caller
	// passes them in.
	cacheChunks int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats reports the running count of chunk cache hits and misses
// across every shard, surfaced through query.ResultSet's cache_hits/
// cache_misses fields (spec.md §6).
func (r *Reader) CacheStats() (hits, misses uint64) {
	return r.hits.Load(), r.misses.Load()
}

// Option configures a Reader.
type Option func(*Reader)

// WithCacheChunks sets how many decompressed chunks are kept per shard
// (default 8, so a 4-shard Reader holds up to 32 chunks total).
func WithCacheChunks(n int) Option {
	return func(r *Reader) {
		r.cacheChunks = n
		for i := range r.shards {
			c, _ := lru.New[int, []byte](n)
			r.shards[i].cache = c
		}
	}
}

// WithShardCount overrides the default shard count (4). Composes with
// WithCacheChunks regardless of option order: the new shards are sized
// against whatever per-shard cache size is currently set on the
// Reader, not a hardcoded default.
func WithShardCount(n int) Option {
	return func(r *Reader) {
		r.shards = make([]*shard, n)
		for i := range r.shards {
			c, _ := lru.New[int, []byte](r.cacheChunks)
			r.shards[i] = &shard{cache: c}
		}
	}
}

// NewReader builds a chunk-decompressing Reader over src, described by info.
func NewReader(src io.ReaderAt, info *Info, opts ...Option) *Reader {
	r := &Reader{src: src, info: info, cacheChunks: defaultCacheChunks}
	r.shards = make([]*shard, defaultShardCount)
	for i := range r.shards {
		c, _ := lru.New[int, []byte](defaultCacheChunks)
		r.shards[i] = &shard{cache: c}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) shardFor(chunkIdx int) *shard {
	return r.shards[chunkIdx%len(r.shards)]
}

// chunk returns the decompressed bytes for chunk index idx, using the cache
// when present.
func (r *Reader) chunk(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(r.info.Chunks) {
		return nil, fmt.Errorf("compression: chunk %d out of range (have %d)", idx, len(r.info.Chunks))
	}

	sh := r.shardFor(idx)

	sh.mu.Lock()
	if cached, ok := sh.cache.Get(idx); ok {
		sh.mu.Unlock()
		r.hits.Add(1)
		return cached, nil
	}
	sh.mu.Unlock()
	r.misses.Add(1)

	rec := r.info.Chunks[idx]

	// Each on-disk chunk is: uncompressed_len(u32 BE) + compressed payload + CRC32(u32 BE) of the compressed bytes.
	raw := make([]byte, rec.CompressedLength+4+4)
	if _, err := r.src.ReadAt(raw, int64(rec.Offset)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	uncompressedLen := beU32(raw[0:4])
	compressedPayload := raw[4 : 4+rec.CompressedLength]
	storedCRC := beU32(raw[4+rec.CompressedLength : 4+rec.CompressedLength+4])

	if crc32.ChecksumIEEE(compressedPayload) != storedCRC {
		return nil, fmt.Errorf("%w: chunk %d at offset %d", ErrCorrupt, idx, rec.Offset)
	}
	if rec.CRC32 != 0 && storedCRC != rec.CRC32 {
		return nil, fmt.Errorf("%w: chunk %d CRC mismatch with CompressionInfo", ErrCorrupt, idx)
	}

	decoded, err := decompress(r.info.Algorithm, compressedPayload, uncompressedLen)
	if err != nil {
		return nil, fmt.Errorf("compression: chunk %d: %w", idx, err)
	}

	sh.mu.Lock()
	sh.cache.Add(idx, decoded)
	sh.mu.Unlock()

	return decoded, nil
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ReadAt serves length bytes of the uncompressed logical stream starting at
// logicalOffset, stitching chunks as needed. It always returns a single
// contiguous copy.
func (r *Reader) ReadAt(logicalOffset uint64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	out := make([]byte, 0, length)
	remainingOffset := logicalOffset
	remaining := length

	for remaining > 0 {
		idx := r.info.chunkIndex(remainingOffset)
		chunk, err := r.chunk(idx)
		if err != nil {
			return nil, err
		}

		inChunk := int(remainingOffset % uint64(r.info.ChunkLength))
		if inChunk > len(chunk) {
			return nil, ErrTruncated
		}

		avail := len(chunk) - inChunk
		take := remaining
		if take > avail {
			take = avail
		}
		out = append(out, chunk[inChunk:inChunk+take]...)

		remaining -= take
		remainingOffset += uint64(take)

		if take == 0 {
			return nil, ErrTruncated
		}
	}

	return out, nil
}

// Info returns the CompressionInfo this Reader was built from.
func (r *Reader) Info() *Info { return r.info }
