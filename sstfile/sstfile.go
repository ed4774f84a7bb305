// Package sstfile parses the individual on-disk components of a
// Cassandra 5 SSTable generation: TOC.txt, the Data.db header and
// footer, Statistics.db, Filter.db, Summary.db, Index.db, and
// CompressionInfo.db. It does not interpret partition/row bytes
// (that's bigformat/bti) and does not decide which files belong to a
// generation (that's sstable) — it only turns one component's raw
// bytes into a typed Go value.
package sstfile

import (
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

const component = "sstfile"

// maxReasonableCount bounds any single length or element-count field
// read from a component file. These files are parsed straight from an
// io.Reader, so unlike cqlvalue's in-memory Cursor there's no
// remaining-bytes figure to cap an allocation against; a corrupt or
// adversarial VInt (e.g. encoding 2^62) would otherwise drive a
// many-gigabyte make() before the next read has a chance to fail on
// truncation. No real Statistics.db/Index.db/Summary.db field —
// column counts, promoted index blocks, key bytes — comes anywhere
// near this.
const maxReasonableCount = 1 << 24

func checkCount(n uint64, what string) error {
	if n > maxReasonableCount {
		return cqlerr.New(cqlerr.Corrupt, component, "%s count %d exceeds sane limit", what, n)
	}
	return nil
}

// OpenMapped memory-maps path read-only. The caller owns both return
// values and must close the file after unmapping.
func OpenMapped(path string) (mmap.MMap, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, cqlerr.Wrap(cqlerr.Io, component, err, "opening %s", path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, cqlerr.Wrap(cqlerr.Io, component, err, "mapping %s", path)
	}
	return m, f, nil
}

// readVIntBytes reads a `len: VInt` followed by len raw bytes, the
// length-prefix convention most string/blob fields in these components
// use.
func readVIntBytes(r io.Reader) ([]byte, error) {
	n, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading length prefix")
	}
	if err := checkCount(n, "length prefix"); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readVIntString(r io.Reader) (string, error) {
	b, err := readVIntBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readFull(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return n, cqlerr.Wrap(cqlerr.Truncated, component, err, "need %d bytes, got %d", len(buf), n)
	}
	return n, nil
}
