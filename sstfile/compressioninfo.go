package sstfile

import (
	"io"

	"github.com/cqlite/cqlite/compression"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// ReadCompressionInfo parses CompressionInfo.db into a compression.Info
// ready to back a compression.Reader: algorithm class name, chunk
// length, total uncompressed length, and the per-chunk offset/length/
// CRC table.
func ReadCompressionInfo(r io.Reader) (*compression.Info, error) {
	className, err := readVIntString(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading compression class name")
	}
	alg, err := compression.ParseAlgorithm(className)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.UnsupportedFormat, component, err, "parsing compression algorithm")
	}

	chunkLength, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading chunk length")
	}
	dataLength, err := vint.ReadU64BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading data length")
	}
	chunkCount, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading chunk count")
	}

	if err := checkCount(uint64(chunkCount), "compression chunk"); err != nil {
		return nil, err
	}
	chunks := make([]compression.ChunkRecord, chunkCount)
	for i := range chunks {
		offset, err := vint.ReadU64BE(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading chunk %d offset", i)
		}
		compressedLen, err := vint.ReadU32BE(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading chunk %d compressed length", i)
		}
		crc, err := vint.ReadU32BE(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading chunk %d crc", i)
		}
		chunks[i] = compression.ChunkRecord{Offset: offset, CompressedLength: compressedLen, CRC32: crc}
	}

	return &compression.Info{
		Algorithm:   alg,
		ClassName:   className,
		ChunkLength: chunkLength,
		DataLength:  dataLength,
		Chunks:      chunks,
	}, nil
}

// ValidateChunkTable checks that the last chunk record's offset, plus
// its 4-byte uncompressed-length prefix, its compressed length, and its
// trailing CRC32, exactly reaches the end of the compressed Data.db
// file, per spec.md §4.E.
func ValidateChunkTable(info *compression.Info, compressedFileSize int64) error {
	if len(info.Chunks) == 0 {
		return nil
	}
	last := info.Chunks[len(info.Chunks)-1]
	const crc32Len = 4
	const uncompressedLenPrefix = 4
	end := int64(last.Offset) + uncompressedLenPrefix + int64(last.CompressedLength) + crc32Len
	if end != compressedFileSize {
		return cqlerr.New(cqlerr.Corrupt, component, "last chunk ends at %d, file size is %d", end, compressedFileSize)
	}
	return nil
}
