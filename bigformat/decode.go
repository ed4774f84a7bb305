package bigformat

import (
	"io"
	"iter"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/vint"
)

// Partition framing markers. Neither spec nor the real "oa" format
// names these exactly this way on disk; this is the concrete byte
// convention this decoder commits to for the Start -> ReadHeader ->
// [ReadStatic?] -> LoopRow -> (EndPartition | RangeMarker -> LoopRow)
// state machine, recorded as a grounding/design decision rather than
// left ambiguous.
const (
	markerEndPartition      = 0
	markerRow               = 1
	markerRangeTombstone    = 2
)

const (
	partitionFlagHasDeletion  = 1 << 0
	partitionFlagHasStaticRow = 1 << 1
)

const (
	rowFlagHasTimestamp  = 1 << 0
	rowFlagHasTTL        = 1 << 1
	rowFlagHasDeletion   = 1 << 2
	rowFlagHasAllColumns = 1 << 3
)

const (
	cellFlagHasTimestamp     = 1 << 0
	cellFlagHasTTL           = 1 << 1
	cellFlagHasLocalDeletion = 1 << 2
	cellFlagIsComplex        = 1 << 3
)

// partitionDecoder carries the state decodePartitionHeader hands off to
// Partition.Rows for the lazy remainder of the partition's row stream.
type partitionDecoder struct {
	sr           *streamReader
	table        *schema.Table
	minTimestamp int64
	lookup       udtLookupFor

	partitionDeletion *Deletion
	activeRange       *Deletion // the range tombstone currently in force, if any
	done              bool
}

func decodePartitionHeader(sr *streamReader, table *schema.Table, minTimestamp int64, lookup udtLookupFor) (*Partition, error) {
	keyLen, _, err := vint.ReadVInt(sr)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition key length")
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(sr, key); err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition key")
	}

	flags, err := vint.ReadU8BE(sr)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition flags")
	}

	p := &Partition{Key: key}
	dec := &partitionDecoder{sr: sr, table: table, minTimestamp: minTimestamp, lookup: lookup}

	if flags&partitionFlagHasDeletion != 0 {
		d, err := readDeletion(sr)
		if err != nil {
			return nil, err
		}
		p.Deletion = &d
		dec.partitionDeletion = &d
	}

	if flags&partitionFlagHasStaticRow != 0 {
		row, err := decodeRowBody(sr, table, minTimestamp, lookup, true)
		if err != nil {
			return nil, err
		}
		p.Static = row
	}

	p.dec = dec
	return p, nil
}

func readDeletion(r io.Reader) (Deletion, error) {
	ts, err := vint.ReadI64BE(r)
	if err != nil {
		return Deletion{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading deletion timestamp")
	}
	ldt, err := vint.ReadI32BE(r)
	if err != nil {
		return Deletion{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading deletion local time")
	}
	return Deletion{MarkedForDeleteAt: ts, LocalDeletionTime: ldt}, nil
}

// Rows lazily decodes the partition's regular row stream, yielding each
// row already past partition/row/range tombstone suppression: a row
// left with no cells is skipped entirely, unless it carries its own row
// deletion, in which case it is yielded with Deletion set and no cells.
func (p *Partition) Rows() iter.Seq2[*Row, error] {
	dec := p.dec
	return func(yield func(*Row, error) bool) {
		if dec == nil || dec.done {
			return
		}
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
				continue // suppressed row or a range marker with nothing to yield
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// next decodes markers until it produces a row to yield, hits
// EndPartition, or errors. row==nil, stop==false means "keep looping"
// (a range marker was consumed, or a row was entirely tombstoned).
func (d *partitionDecoder) next() (row *Row, stop bool, err error) {
	for {
		marker, err := vint.ReadU8BE(d.sr)
		if err != nil {
			d.done = true
			return nil, true, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row marker")
		}

		switch marker {
		case markerEndPartition:
			d.done = true
			return nil, true, nil

		case markerRangeTombstone:
			m, err := decodeRangeMarker(d.sr, d.table)
			if err != nil {
				d.done = true
				return nil, true, err
			}
			d.applyRangeMarker(m)
			continue

		case markerRow:
			clustering, err := decodeClustering(d.sr, d.table.ClusteringKey)
			if err != nil {
				d.done = true
				return nil, true, err
			}
			r, err := decodeRowBody(d.sr, d.table, d.minTimestamp, d.lookup, false)
			if err != nil {
				d.done = true
				return nil, true, err
			}
			r.Clustering = clustering
			d.filterRow(r)
			if len(r.Cells) == 0 && r.Deletion == nil {
				continue // fully suppressed
			}
			return r, false, nil

		default:
			d.done = true
			return nil, true, cqlerr.New(cqlerr.Corrupt, component, "unknown row marker %d", marker)
		}
	}
}

// applyRangeMarker updates the in-force range deletion. Boundary
// markers close the previous range and open the next at the same
// clustering point in one step.
func (d *partitionDecoder) applyRangeMarker(m RangeTombstoneMarker) {
	switch m.Kind {
	case InclusiveStart, ExclusiveStart, Boundary:
		del := m.Deletion
		d.activeRange = &del
	case InclusiveEnd, ExclusiveEnd:
		d.activeRange = nil
	}
}

// filterRow suppresses cells covered by the partition deletion, the
// row's own deletion, or the currently active range tombstone, and
// clears the whole row's cell set if the row itself is entirely
// covered.
func (d *partitionDecoder) filterRow(r *Row) {
	covering := activeCoveringDeletion(d.partitionDeletion, d.activeRange, r.Deletion)
	if covering != nil && r.HasTimestamp && covering.covers(r.Timestamp) {
		r.Cells = nil
		return
	}
	if covering == nil {
		return
	}
	for name, c := range r.Cells {
		if covering.covers(c.Timestamp) {
			delete(r.Cells, name)
		}
	}
}

func activeCoveringDeletion(partition, rang, row *Deletion) *Deletion {
	best := partition
	if rang != nil && (best == nil || rang.MarkedForDeleteAt > best.MarkedForDeleteAt) {
		best = rang
	}
	if row != nil && (best == nil || row.MarkedForDeleteAt > best.MarkedForDeleteAt) {
		best = row
	}
	return best
}

func decodeRangeMarker(r io.Reader, table *schema.Table) (RangeTombstoneMarker, error) {
	kindByte, err := vint.ReadU8BE(r)
	if err != nil {
		return RangeTombstoneMarker{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading range marker kind")
	}
	clustering, err := decodeClustering(r, table.ClusteringKey)
	if err != nil {
		return RangeTombstoneMarker{}, err
	}
	del, err := readDeletion(r)
	if err != nil {
		return RangeTombstoneMarker{}, err
	}
	return RangeTombstoneMarker{Kind: BoundKind(kindByte), Clustering: clustering, Deletion: del}, nil
}

func decodeClustering(r io.Reader, cols []schema.ClusteringColumn) ([]cqlvalue.Value, error) {
	n, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading clustering component count")
	}
	values := make([]cqlvalue.Value, n)
	for i := uint64(0); i < n; i++ {
		length, _, err := vint.ReadSVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading clustering component %d length", i)
		}
		var t *schema.Type
		if int(i) < len(cols) {
			t = cols[i].Type
		}
		if length < 0 {
			values[i] = cqlvalue.Null(t)
			continue
		}
		if t == nil {
			return nil, cqlerr.New(cqlerr.SchemaMismatch, component, "clustering component %d has no matching schema column", i)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading clustering component %d", i)
		}
		v, err := cqlvalue.Decode(cqlvalue.NewCursor(buf), t)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func decodeRowBody(r io.Reader, table *schema.Table, minTimestamp int64, lookup udtLookupFor, isStatic bool) (*Row, error) {
	flags, err := vint.ReadU8BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row flags")
	}

	row := &Row{IsStatic: isStatic, Cells: make(map[string]Cell)}

	if flags&rowFlagHasTimestamp != 0 {
		delta, _, err := vint.ReadSVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row timestamp delta")
		}
		row.Timestamp = minTimestamp + delta
		row.HasTimestamp = true
	}
	if flags&rowFlagHasTTL != 0 {
		ttl, _, err := vint.ReadVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row ttl")
		}
		row.TTL = int32(ttl)
		row.HasTTL = true
	}
	if flags&rowFlagHasDeletion != 0 {
		d, err := readDeletion(r)
		if err != nil {
			return nil, err
		}
		row.Deletion = &d
	}

	cols := regularColumns(table, isStatic)

	if flags&rowFlagHasAllColumns != 0 {
		for _, col := range cols {
			cell, err := decodeCell(r, col, row, minTimestamp, lookup)
			if err != nil {
				return nil, err
			}
			row.Cells[col.Name] = cell
		}
		return row, nil
	}

	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell count")
	}
	for i := uint64(0); i < count; i++ {
		idx, _, err := vint.ReadVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell %d column index", i)
		}
		if int(idx) >= len(cols) {
			return nil, cqlerr.New(cqlerr.Corrupt, component, "cell column index %d out of range (have %d)", idx, len(cols))
		}
		col := cols[idx]
		cell, err := decodeCell(r, col, row, minTimestamp, lookup)
		if err != nil {
			return nil, err
		}
		row.Cells[col.Name] = cell
	}
	return row, nil
}

func regularColumns(table *schema.Table, static bool) []schema.Column {
	want := schema.Regular
	if static {
		want = schema.Static
	}
	var out []schema.Column
	for _, c := range table.Columns {
		if c.Kind == want {
			out = append(out, c)
		}
	}
	return out
}

func decodeCell(r io.Reader, col schema.Column, row *Row, minTimestamp int64, lookup udtLookupFor) (Cell, error) {
	flags, err := vint.ReadU8BE(r)
	if err != nil {
		return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell flags for %s", col.Name)
	}

	cell := Cell{Column: col.Name, Timestamp: row.Timestamp, HasTTL: row.HasTTL, TTL: row.TTL}

	if flags&cellFlagHasTimestamp != 0 {
		delta, _, err := vint.ReadSVInt(r)
		if err != nil {
			return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell timestamp delta for %s", col.Name)
		}
		cell.Timestamp = minTimestamp + delta
	}
	if flags&cellFlagHasTTL != 0 {
		ttl, _, err := vint.ReadVInt(r)
		if err != nil {
			return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell ttl for %s", col.Name)
		}
		cell.TTL = int32(ttl)
		cell.HasTTL = true
	}
	if flags&cellFlagHasLocalDeletion != 0 {
		ldt, err := vint.ReadI32BE(r)
		if err != nil {
			return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell local deletion time for %s", col.Name)
		}
		cell.LocalDeletionTime = ldt
		cell.IsTombstone = true
		cell.Value = cqlvalue.Null(col.Type)
		return cell, nil
	}

	if flags&cellFlagIsComplex != 0 {
		v, err := decodeComplexCellValue(r, col.Type, lookup)
		if err != nil {
			return Cell{}, err
		}
		cell.Value = v
		return cell, nil
	}

	length, _, err := vint.ReadSVInt(r)
	if err != nil {
		return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell value length for %s", col.Name)
	}
	if length < 0 {
		cell.Value = cqlvalue.Null(col.Type)
		return cell, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Cell{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading cell value for %s", col.Name)
	}
	v, err := cqlvalue.DecodeWithRegistry(cqlvalue.NewCursor(buf), col.Type, lookup)
	if err != nil {
		return Cell{}, err
	}
	cell.Value = v
	return cell, nil
}

// decodeComplexCellValue reads a non-frozen collection's complex-cell
// framing — a leading (optional) collection-level deletion, an element
// count, then per-element length-prefixed entries — and re-assembles it
// into the "simple" wire form cqlvalue.DecodeWithRegistry already knows
// how to read, rather than duplicating list/set/map decode logic here.
func decodeComplexCellValue(r io.Reader, t *schema.Type, lookup udtLookupFor) (cqlvalue.Value, error) {
	inner := t
	if inner.Kind == schema.Frozen {
		inner = inner.Elem
	}

	hasCollectionDeletion, err := vint.ReadU8BE(r)
	if err != nil {
		return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading complex cell deletion presence")
	}
	if hasCollectionDeletion != 0 {
		if _, err := readDeletion(r); err != nil {
			return cqlvalue.Value{}, err
		}
	}

	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading complex cell element count")
	}

	switch inner.Kind {
	case schema.List, schema.Set:
		buf := appendI32(nil, int32(count))
		for i := uint64(0); i < count; i++ {
			elemBuf, present, err := readComplexElement(r)
			if err != nil {
				return cqlvalue.Value{}, err
			}
			buf = appendLenPrefixed(buf, elemBuf, present)
		}
		return cqlvalue.DecodeWithRegistry(cqlvalue.NewCursor(buf), inner, lookup)

	case schema.Map:
		buf := appendI32(nil, int32(count))
		for i := uint64(0); i < count; i++ {
			kBuf, kPresent, err := readComplexElement(r)
			if err != nil {
				return cqlvalue.Value{}, err
			}
			vBuf, vPresent, err := readComplexElement(r)
			if err != nil {
				return cqlvalue.Value{}, err
			}
			buf = appendLenPrefixed(buf, kBuf, kPresent)
			buf = appendLenPrefixed(buf, vBuf, vPresent)
		}
		return cqlvalue.DecodeWithRegistry(cqlvalue.NewCursor(buf), inner, lookup)

	default:
		return cqlvalue.Value{}, cqlerr.New(cqlerr.Corrupt, component, "type %s cannot use complex cell framing", inner)
	}
}

// readComplexElement reads one `(len: SVInt, bytes)` complex-cell
// element, SVInt -1 meaning absent (present=false) rather than a
// zero-length value.
func readComplexElement(r io.Reader) (data []byte, present bool, err error) {
	n, _, err := vint.ReadSVInt(r)
	if err != nil {
		return nil, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading complex cell element length")
	}
	if n < 0 {
		return nil, false, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, false, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading complex cell element")
	}
	return buf, true, nil
}

func appendLenPrefixed(buf []byte, data []byte, present bool) []byte {
	if !present {
		return appendI32(buf, -1)
	}
	buf = appendI32(buf, int32(len(data)))
	return append(buf, data...)
}

func appendI32(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
