package sstable

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/c2h5oh/datasize"

	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/bti"
	"github.com/cqlite/cqlite/compression"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstfile"
)

// mappedFile is one component file's memory-mapped contents plus the
// descriptor that owns it, closed together on Handle.Close.
type mappedFile struct {
	f *os.File
	m mmap.MMap
}

func openMappedComponent(g Generation, name string) (*mappedFile, bool, error) {
	path, ok := g.Components[name]
	if !ok {
		return nil, false, nil
	}
	m, f, err := sstfile.OpenMapped(path)
	if err != nil {
		return nil, false, err
	}
	return &mappedFile{f: f, m: m}, true, nil
}

func (mf *mappedFile) close() error {
	if mf == nil {
		return nil
	}
	var err error
	if uerr := mf.m.Unmap(); uerr != nil {
		err = uerr
	}
	if cerr := mf.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Stats summarizes a generation the way the CLI's "info" subcommand and
// ResultSet diagnostics surface it (spec.md §6).
type Stats struct {
	PartitionCount uint64
	RowCount       uint64
	DataSize       datasize.ByteSize
	HasCompression bool
	HasFilter      bool
	Format         sstfile.Format
}

// Handle is one open SSTable generation: bound component files, the
// resolved schema, and the format-specific (Big or BTI) partition
// lookup path. Safe for concurrent Get/Scan from multiple goroutines
// (spec.md §5) — nothing mutates after Open beyond the internally
// synchronized compression chunk cache.
type Handle struct {
	gen    Generation
	opts   Options
	format sstfile.Format

	data       *mappedFile
	statistics *sstfile.Statistics
	table      *schema.Table
	filter     *sstfile.BloomFilter

	filterFile *mappedFile
	statsFile  *mappedFile
	compFile   *mappedFile

	reader *bigformat.Reader
	comp   *compression.Reader // nil when the generation's Data.db is uncompressed

	// Big-format-only.
	summary   *sstfile.Summary
	indexFile *mappedFile
	summaryFile *mappedFile

	// BTI-only.
	partIndex      *bti.PartitionIndex
	partitionsFile *mappedFile
	rowsFile       *mappedFile

	closeOnce sync.Once
	closeErr  error
}

// Open binds the single generation found at path. Use OpenAll for a
// table directory holding more than one generation.
func Open(path string, opts ...Option) (*Handle, error) {
	gens, err := Discover(path)
	if err != nil {
		return nil, err
	}
	if len(gens) != 1 {
		return nil, cqlerr.New(cqlerr.UnsupportedFormat, component, "%s resolves to %d generations; use OpenAll", path, len(gens))
	}
	return OpenGeneration(gens[0], opts...)
}

// OpenAll binds every generation Discover finds at path, in ascending
// generation order.
func OpenAll(path string, opts ...Option) ([]*Handle, error) {
	gens, err := Discover(path)
	if err != nil {
		return nil, err
	}
	handles := make([]*Handle, 0, len(gens))
	for _, g := range gens {
		h, err := OpenGeneration(g, opts...)
		if err != nil {
			for _, opened := range handles {
				opened.Close()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// OpenGeneration binds one already-discovered generation's component
// files, verifying headers/footers/TOC consistency and resolving its
// schema.
func OpenGeneration(g Generation, opts ...Option) (h *Handle, err error) {
	if verr := g.validate(); verr != nil {
		return nil, verr
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	h = &Handle{gen: g, opts: o}
	defer func() {
		if err != nil {
			h.Close()
		}
	}()

	if err = h.bindTOC(); err != nil {
		return nil, err
	}
	if err = h.bindData(); err != nil {
		return nil, err
	}
	if err = h.bindStatistics(); err != nil {
		return nil, err
	}
	if h.table, err = resolveSchema(h.statistics.SerializationHeader, h.opts); err != nil {
		return nil, err
	}
	if o.EnableBloom {
		if err = h.bindFilter(); err != nil {
			return nil, err
		}
	}
	if err = h.bindReader(); err != nil {
		return nil, err
	}
	switch h.format {
	case sstfile.FormatBig:
		if err = h.bindBigIndex(); err != nil {
			return nil, err
		}
	case sstfile.FormatBTI:
		if err = h.bindBTIIndex(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Handle) bindTOC() error {
	path, ok := h.gen.Components["TOC"]
	if !ok {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cqlerr.Wrap(cqlerr.Io, component, err, "opening TOC.txt")
	}
	defer f.Close()
	names, err := sstfile.ReadTOC(f)
	if err != nil {
		return err
	}
	for _, required := range []string{"Data.db", "Statistics.db"} {
		if !sstfile.HasComponent(names, required) {
			return cqlerr.New(cqlerr.UnsupportedFormat, component, "TOC.txt does not list required component %s", required)
		}
	}
	return nil
}

func (h *Handle) bindData() error {
	mf, ok, err := openMappedComponent(h.gen, "Data")
	if err != nil {
		return err
	}
	if !ok {
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "generation %s-%s has no Data.db", h.gen.Prefix, h.gen.Number)
	}
	h.data = mf

	header, err := sstfile.ReadDataHeader(bytes.NewReader(mf.m))
	if err != nil {
		return err
	}
	footer, err := sstfile.ReadDataFooter(bytes.NewReader(mf.m), int64(len(mf.m)))
	if err != nil {
		return err
	}
	if err := sstfile.VerifyFooter(header, footer); err != nil {
		return err
	}
	h.format = header.Format()
	if h.format == sstfile.FormatUnknown {
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "unrecognized Data.db magic")
	}

	if header.HasCompression() {
		ci, ok, err := openMappedComponent(h.gen, "CompressionInfo")
		if err != nil {
			return err
		}
		if !ok {
			return cqlerr.New(cqlerr.UnsupportedFormat, component, "Data.db header declares compression but CompressionInfo.db is missing")
		}
		h.compFile = ci
	}
	return nil
}

func (h *Handle) bindStatistics() error {
	mf, ok, err := openMappedComponent(h.gen, "Statistics")
	if err != nil {
		return err
	}
	if !ok {
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "generation %s-%s has no Statistics.db", h.gen.Prefix, h.gen.Number)
	}
	h.statsFile = mf
	h.statistics, err = sstfile.ReadStatistics(bytes.NewReader(mf.m))
	return err
}

func (h *Handle) bindFilter() error {
	mf, ok, err := openMappedComponent(h.gen, "Filter")
	if err != nil {
		return err
	}
	if !ok {
		return nil // Filter.db is optional (spec.md §3)
	}
	h.filterFile = mf
	h.filter, err = sstfile.ReadFilter(bytes.NewReader(mf.m))
	return err
}

// dataRegion returns the io.ReaderAt bounding Data.db's partition-data
// region between the fixed header and footer, and its byte length.
func (h *Handle) dataRegion() (io.ReaderAt, int64) {
	n := int64(len(h.data.m)) - sstfile.DataHeaderLength - sstfile.DataFooterLength
	return io.NewSectionReader(bytes.NewReader(h.data.m), sstfile.DataHeaderLength, n), n
}

func (h *Handle) bindReader() error {
	region, regionLen := h.dataRegion()

	var src interface {
		ReadAt(logicalOffset uint64, length int) ([]byte, error)
	}
	var logicalSize uint64

	if h.compFile != nil {
		info, err := sstfile.ReadCompressionInfo(bytes.NewReader(h.compFile.m))
		if err != nil {
			return err
		}
		if err := sstfile.ValidateChunkTable(info, regionLen); err != nil {
			return err
		}
		cr := compression.NewReader(region, info, compression.WithCacheChunks(h.opts.CompressionCacheChunks))
		h.comp = cr
		src = cr
		logicalSize = info.DataLength
	} else {
		src = bigformat.NewRawSource(region)
		logicalSize = uint64(regionLen)
	}

	h.reader = bigformat.NewReader(src, logicalSize, h.table, bigformat.Options{
		Filter:       h.filter,
		MinTimestamp: h.statistics.Global.MinTimestamp,
	})
	return nil
}

func (h *Handle) bindBigIndex() error {
	idx, ok, err := openMappedComponent(h.gen, "Index")
	if err != nil {
		return err
	}
	if !ok {
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "Big-format generation %s-%s has no Index.db", h.gen.Prefix, h.gen.Number)
	}
	h.indexFile = idx

	if sm, ok, err := openMappedComponent(h.gen, "Summary"); err != nil {
		return err
	} else if ok {
		h.summaryFile = sm
		h.summary, err = sstfile.ReadSummary(bytes.NewReader(sm.m))
		if err != nil {
			return err
		}
	}
	return nil
}

// trieFooterLen is the fixed 8-byte big-endian root-node offset this
// implementation appends to Partitions.db/Rows.db (spec.md doesn't pin
// a concrete trie-file footer, see DESIGN.md).
const trieFooterLen = 8

func readTrieRoot(buf []byte) (uint64, error) {
	if len(buf) < trieFooterLen {
		return 0, cqlerr.New(cqlerr.Truncated, component, "trie file too small for root-offset footer: %d bytes", len(buf))
	}
	return binary.BigEndian.Uint64(buf[len(buf)-trieFooterLen:]), nil
}

func (h *Handle) bindBTIIndex() error {
	pf, ok, err := openMappedComponent(h.gen, "Partitions")
	if err != nil {
		return err
	}
	if !ok {
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "BTI-format generation %s-%s has no Partitions.db", h.gen.Prefix, h.gen.Number)
	}
	h.partitionsFile = pf

	root, err := readTrieRoot(pf.m)
	if err != nil {
		return err
	}
	h.partIndex = bti.NewPartitionIndex([]byte(pf.m), root)

	if rf, ok, err := openMappedComponent(h.gen, "Rows"); err != nil {
		return err
	} else if ok {
		h.rowsFile = rf
	}
	return nil
}

// Schema returns the table description rows are decoded against.
func (h *Handle) Schema() *schema.Table { return h.table }

// Stats summarizes the generation's bound components.
func (h *Handle) Stats() Stats {
	return Stats{
		PartitionCount: h.statistics.Global.PartitionCount,
		RowCount:       h.statistics.Global.RowCount,
		DataSize:       datasize.ByteSize(len(h.data.m)),
		HasCompression: h.compFile != nil,
		HasFilter:      h.filter != nil,
		Format:         h.format,
	}
}

// CacheStats reports the Data.db chunk cache's running hit/miss count.
// Both are always 0 for an uncompressed generation.
func (h *Handle) CacheStats() (hits, misses uint64) {
	if h.comp == nil {
		return 0, 0
	}
	return h.comp.CacheStats()
}

// Get resolves rawKey to its partition, or found=false when no
// partition with that exact key exists in this generation.
func (h *Handle) Get(rawKey []byte) (*bigformat.Partition, bool, error) {
	switch h.format {
	case sstfile.FormatBig:
		start, end, hasEnd := uint64(0), uint64(0), false
		if h.summary != nil {
			start, end, hasEnd = h.summary.Window(rawKey)
		}
		section := h.indexSection(start, end, hasEnd)
		return h.reader.Get(section, rawKey)
	case sstfile.FormatBTI:
		if h.filter != nil && !h.filter.MayContain(rawKey) {
			return nil, false, nil
		}
		return h.partIndex.OpenPartition(rawKey, h.reader)
	default:
		return nil, false, cqlerr.New(cqlerr.UnsupportedFormat, component, "generation has no bound index")
	}
}

func (h *Handle) indexSection(start, end uint64, hasEnd bool) io.Reader {
	n := int64(len(h.indexFile.m)) - int64(start)
	if hasEnd {
		n = int64(end - start)
	}
	return io.NewSectionReader(bytes.NewReader(h.indexFile.m), int64(start), n)
}

// Scan returns a lazy iterator over every partition in the generation's
// native order (token order for Big, trie order for BTI).
func (h *Handle) Scan() func(yield func(*bigformat.Partition, error) bool) {
	switch h.format {
	case sstfile.FormatBig:
		full := bytes.NewReader(h.indexFile.m)
		return h.reader.Scan(full)
	case sstfile.FormatBTI:
		return func(yield func(*bigformat.Partition, error) bool) {
			for payload, err := range h.partIndex.Scan() {
				if err != nil {
					yield(nil, err)
					return
				}
				p, err := h.reader.OpenAt(payload.DataOffset)
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
	default:
		return func(yield func(*bigformat.Partition, error) bool) {}
	}
}

// Range bounds a scan by raw partition key in token order: Start is
// inclusive, End exclusive, and a nil bound leaves that side open.
type Range struct {
	Start, End []byte
}

// ScanRange is Scan restricted to r. Partitions stream in the same
// native order; a Big generation with a Summary seeks to Start's index
// window instead of walking Index.db from the top.
func (h *Handle) ScanRange(r Range) func(yield func(*bigformat.Partition, error) bool) {
	scan := h.Scan()
	if h.format == sstfile.FormatBig && r.Start != nil && h.summary != nil {
		start, _, _ := h.summary.Window(r.Start)
		scan = h.reader.Scan(h.indexSection(start, 0, false))
	}
	return rangeScan(scan, r)
}

// rangeScan filters a token-ordered partition stream down to r,
// stopping outright at the first partition at or past End.
func rangeScan(scan func(yield func(*bigformat.Partition, error) bool), r Range) func(yield func(*bigformat.Partition, error) bool) {
	return func(yield func(*bigformat.Partition, error) bool) {
		for p, err := range scan {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if r.Start != nil && sstfile.CompareTokenOrder(p.Key, r.Start) < 0 {
				continue
			}
			if r.End != nil && sstfile.CompareTokenOrder(p.Key, r.End) >= 0 {
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Close releases every mapped component file. Idempotent.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		for _, mf := range []*mappedFile{
			h.data, h.statsFile, h.filterFile, h.compFile,
			h.indexFile, h.summaryFile, h.partitionsFile, h.rowsFile,
		} {
			if cerr := mf.close(); cerr != nil && h.closeErr == nil {
				h.closeErr = cerr
			}
		}
	})
	return h.closeErr
}
