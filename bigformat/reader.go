package bigformat

import (
	"bytes"
	"io"
	"iter"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstfile"
)

const component = "bigformat"

// byteSource serves bounded byte ranges of a Data.db file's logical
// (uncompressed) byte stream. *compression.Reader already satisfies
// this directly; rawSource adapts a plain io.ReaderAt for the
// uncompressed case.
type byteSource interface {
	ReadAt(logicalOffset uint64, length int) ([]byte, error)
}

type rawSource struct{ ra io.ReaderAt }

func (s rawSource) ReadAt(offset uint64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.ra.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, cqlerr.Wrap(cqlerr.Io, component, err, "reading %d bytes at offset %d", length, offset)
	}
	return buf[:n], nil
}

// NewRawSource wraps an io.ReaderAt (typically an mmap.MMap or *os.File
// over an uncompressed Data.db) as a byteSource.
func NewRawSource(ra io.ReaderAt) byteSource { return rawSource{ra: ra} }

const streamChunkSize = 8192

// streamReader is a lazy, bounded io.Reader pulling from a byteSource,
// the shape decodeRowBody/decodePartitionHeader need to run ordinary VInt/fixed-
// width reads (vint.Read*, cqlvalue.Decode) directly against Data.db
// without materializing an entire partition up front.
type streamReader struct {
	src      byteSource
	pos      uint64
	limit    uint64
	buf      []byte
	bufStart uint64
}

func newStreamReader(src byteSource, offset, limit uint64) *streamReader {
	return &streamReader{src: src, pos: offset, limit: limit}
}

func (s *streamReader) Read(p []byte) (int, error) {
	if s.bufStart+uint64(len(s.buf)) <= s.pos || len(s.buf) == 0 {
		if s.pos >= s.limit {
			return 0, io.EOF
		}
		want := streamChunkSize
		if remaining := s.limit - s.pos; uint64(want) > remaining {
			want = int(remaining)
		}
		chunk, err := s.src.ReadAt(s.pos, want)
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		s.buf = chunk
		s.bufStart = s.pos
	}

	avail := s.buf[s.pos-s.bufStart:]
	n := copy(p, avail)
	s.pos += uint64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Reader decodes partitions out of one SSTable generation's logical
// Data.db byte stream and a table schema to interpret cell bytes.
// Narrowing a lookup to an Index.db section (via Summary.db) is the
// sstable facade's job — it composes sstfile's component readers with
// this Reader rather than this Reader owning them, since a BTI table
// resolves the same lookup through the bti package instead. The Reader
// itself applies the optional Filter.db negative check (Options.Filter)
// and scans the Index.db section Get is handed.
type Reader struct {
	data   byteSource
	size   uint64
	table  *schema.Table
	filter *sstfile.BloomFilter // optional

	minTimestamp int64
	lookup       udtLookupFor
}

type udtLookupFor = func(keyspace, name string) (*schema.UDTDef, bool)

// Options configures a Reader beyond its mandatory data/table pair.
type Options struct {
	Filter       *sstfile.BloomFilter
	MinTimestamp int64 // Statistics.db's global min timestamp, the delta-encoding baseline
}

// NewReader builds a Reader over a Data.db logical byte stream of the
// given logical size, using table to interpret row/cell bytes.
func NewReader(data byteSource, size uint64, table *schema.Table, opts Options) *Reader {
	r := &Reader{
		data:         data,
		size:         size,
		table:        table,
		filter:       opts.Filter,
		minTimestamp: opts.MinTimestamp,
	}
	if reg := table.Registry(); reg != nil {
		r.lookup = reg.LookupUDT
	} else {
		r.lookup = func(string, string) (*schema.UDTDef, bool) { return nil, false }
	}
	return r
}

// Get locates rawKey's partition, scanning the Index.db window Summary
// narrows lookup to, and returns its decoded partition (nil, false, nil
// when no partition with that exact key exists). Index.db entries are
// ordered by token then key; a token collision means more than one raw
// key can share a window position, so Get confirms an exact byte match
// rather than trusting the first token match.
func (r *Reader) Get(indexSection io.Reader, rawKey []byte) (*Partition, bool, error) {
	if r.filter != nil && !r.filter.MayContain(rawKey) {
		return nil, false, nil
	}

	target := sstfile.Murmur3Token(rawKey)
	for entry, err := range sstfile.ReadIndex(indexSection) {
		if err != nil {
			return nil, false, err
		}
		tok := sstfile.Murmur3Token(entry.PartitionKey)
		if tok > target {
			return nil, false, nil // surpassed: not present
		}
		if tok == target && bytes.Equal(entry.PartitionKey, rawKey) {
			p, err := r.openPartitionAt(entry.Position)
			if err != nil {
				return nil, false, err
			}
			return p, true, nil
		}
	}
	return nil, false, nil
}

// Scan returns a lazy iterator over every partition in Index.db order,
// for a full-table or range scan.
func (r *Reader) Scan(indexAll io.Reader) iter.Seq2[*Partition, error] {
	return func(yield func(*Partition, error) bool) {
		for entry, err := range sstfile.ReadIndex(indexAll) {
			if err != nil {
				yield(nil, err)
				return
			}
			p, err := r.openPartitionAt(entry.Position)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (r *Reader) openPartitionAt(offset uint64) (*Partition, error) {
	sr := newStreamReader(r.data, offset, r.size)
	return decodePartitionHeader(sr, r.table, r.minTimestamp, r.lookup)
}

// OpenAt decodes the partition whose header starts at the given
// logical Data.db offset. Exported for the bti package, whose
// Partitions.db trie payload resolves straight to a Data.db position
// without an Index.db entry to go through.
func (r *Reader) OpenAt(offset uint64) (*Partition, error) {
	return r.openPartitionAt(offset)
}

// RowsFrom resumes row decoding at a Data.db offset that already lands
// on a row or range-tombstone marker — the position a Rows.db block
// payload (bti package) points at — rather than a partition header.
// partitionDeletion carries whatever partition-level deletion the
// caller already knows applies, since the block boundary skips past
// the header byte that would otherwise convey it.
func (r *Reader) RowsFrom(offset uint64, partitionDeletion *Deletion) iter.Seq2[*Row, error] {
	sr := newStreamReader(r.data, offset, r.size)
	dec := &partitionDecoder{sr: sr, table: r.table, minTimestamp: r.minTimestamp, lookup: r.lookup, partitionDeletion: partitionDeletion}
	return func(yield func(*Row, error) bool) {
		for {
			row, stop, err := dec.next()
			if err != nil {
				yield(nil, err)
				return
			}
			if stop {
				return
			}
			if row == nil {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
