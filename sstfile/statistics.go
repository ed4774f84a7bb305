package sstfile

import (
	"io"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

const statisticsMagic = 0x53544154 // "STAT"

// GlobalStats are the whole-generation numbers carried by Statistics.db
// ahead of the per-column section.
type GlobalStats struct {
	PartitionCount          uint64
	RowCount                uint64
	MinTimestamp            int64
	MaxTimestamp            int64
	MinLocalDeletionTime    int32
	MaxLocalDeletionTime    int32
	CompressionRatio        float64
	EstimatedPartitionCount uint64
	EstimatedKeySize        uint64
	EstimatedValueSize      uint64
}

// TokenRange is one (min, max) token pair of the token-range coverage
// table; tokens are signed under the Murmur3 partitioner.
type TokenRange struct {
	Min int64
	Max int64
}

// KeyRange is the generation's minimum and maximum partition key, in
// byte-comparable encoding.
type KeyRange struct {
	MinKey []byte
	MaxKey []byte
}

// ColumnStats is one column's per-column statistics entry.
type ColumnStats struct {
	Name     string
	MinValue []byte
	MaxValue []byte
	HasNulls bool
}

// DeletionPresence records which kinds of tombstone the generation
// contains, letting a scan skip tombstone-handling machinery entirely
// when none apply.
type DeletionPresence struct {
	HasPartitionDeletions bool
	HasRowDeletions       bool
	HasRangeTombstones    bool
	HasCellTombstones     bool
}

// ColumnSpec names one column's Cassandra marshaller class string, as
// carried by the embedded serialization header.
type ColumnSpec struct {
	Name      string
	ClassName string
}

// SerializationHeader is the sub-section of Statistics.db that encodes
// every column's type as a Cassandra marshaller class name, the
// counterpart schema.ParseMarshallerClassName unifies against a
// CREATE TABLE-derived schema (spec.md §4.C).
type SerializationHeader struct {
	PartitionKeyTypes  []string
	ClusteringKeyTypes []string
	StaticColumns      []ColumnSpec
	RegularColumns     []ColumnSpec
}

// Statistics is the fully parsed contents of Statistics.db.
type Statistics struct {
	Global              GlobalStats
	TokenRanges         []TokenRange
	KeyRange            KeyRange
	Columns             []ColumnStats
	Deletion            DeletionPresence
	SerializationHeader SerializationHeader
}

const (
	deletionHasPartition = 1 << iota
	deletionHasRow
	deletionHasRange
	deletionHasCell
)

// ReadStatistics parses Statistics.db: header, global stats, token-range
// coverage, key range, per-column stats, deletion presence flags, and
// the embedded serialization header.
//
// The component names spec.md §4.E lists are exact; the precise byte
// layout within each is not pinned by the spec beyond "VInt counts,
// length-prefixed strings, big-endian fixed fields" and is reconstructed
// here following that same convention field-by-field (see DESIGN.md).
func ReadStatistics(r io.Reader) (*Statistics, error) {
	magic, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading statistics magic")
	}
	if magic != statisticsMagic {
		return nil, cqlerr.New(cqlerr.UnsupportedFormat, component, "unrecognized Statistics.db magic %#08x", magic)
	}
	if _, err := vint.ReadU16BE(r); err != nil { // version, not yet branched on
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading statistics version")
	}

	global, err := readGlobalStats(r)
	if err != nil {
		return nil, err
	}

	tokenRanges, err := readTokenRanges(r)
	if err != nil {
		return nil, err
	}

	keyRange, err := readKeyRange(r)
	if err != nil {
		return nil, err
	}

	columns, err := readColumnStats(r)
	if err != nil {
		return nil, err
	}

	deletionByte, err := vint.ReadU8BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading deletion presence")
	}
	deletion := DeletionPresence{
		HasPartitionDeletions: deletionByte&deletionHasPartition != 0,
		HasRowDeletions:       deletionByte&deletionHasRow != 0,
		HasRangeTombstones:    deletionByte&deletionHasRange != 0,
		HasCellTombstones:     deletionByte&deletionHasCell != 0,
	}

	header, err := readSerializationHeader(r)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Global:              global,
		TokenRanges:         tokenRanges,
		KeyRange:            keyRange,
		Columns:             columns,
		Deletion:            deletion,
		SerializationHeader: header,
	}, nil
}

func readGlobalStats(r io.Reader) (GlobalStats, error) {
	var g GlobalStats
	var err error

	if g.PartitionCount, _, err = vint.ReadVInt(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition count")
	}
	if g.RowCount, err = vint.ReadU64BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading row count")
	}
	if g.MinTimestamp, err = vint.ReadI64BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading min timestamp")
	}
	if g.MaxTimestamp, err = vint.ReadI64BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading max timestamp")
	}
	if g.MinLocalDeletionTime, err = vint.ReadI32BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading min deletion time")
	}
	if g.MaxLocalDeletionTime, err = vint.ReadI32BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading max deletion time")
	}
	if g.CompressionRatio, err = vint.ReadF64BE(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading compression ratio")
	}
	if g.EstimatedPartitionCount, _, err = vint.ReadVInt(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading estimated partition count")
	}
	if g.EstimatedKeySize, _, err = vint.ReadVInt(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading estimated key size")
	}
	if g.EstimatedValueSize, _, err = vint.ReadVInt(r); err != nil {
		return g, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading estimated value size")
	}
	return g, nil
}

func readTokenRanges(r io.Reader) ([]TokenRange, error) {
	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading token range count")
	}
	if err := checkCount(count, "token range"); err != nil {
		return nil, err
	}
	ranges := make([]TokenRange, count)
	for i := range ranges {
		min, _, err := vint.ReadSVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading token range %d min", i)
		}
		max, _, err := vint.ReadSVInt(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading token range %d max", i)
		}
		ranges[i] = TokenRange{Min: min, Max: max}
	}
	return ranges, nil
}

func readKeyRange(r io.Reader) (KeyRange, error) {
	minKey, err := readVIntBytes(r)
	if err != nil {
		return KeyRange{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading min key")
	}
	maxKey, err := readVIntBytes(r)
	if err != nil {
		return KeyRange{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading max key")
	}
	return KeyRange{MinKey: minKey, MaxKey: maxKey}, nil
}

func readColumnStats(r io.Reader) ([]ColumnStats, error) {
	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column stats count")
	}
	if err := checkCount(count, "column stats"); err != nil {
		return nil, err
	}
	cols := make([]ColumnStats, count)
	for i := range cols {
		name, err := readVIntString(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column %d name", i)
		}
		minVal, err := readVIntBytes(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column %d min value", i)
		}
		maxVal, err := readVIntBytes(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column %d max value", i)
		}
		hasNulls, err := vint.ReadU8BE(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column %d has-nulls", i)
		}
		cols[i] = ColumnStats{Name: name, MinValue: minVal, MaxValue: maxVal, HasNulls: hasNulls != 0}
	}
	return cols, nil
}

func readSerializationHeader(r io.Reader) (SerializationHeader, error) {
	var h SerializationHeader

	pkCount, _, err := vint.ReadVInt(r)
	if err != nil {
		return h, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading serialization header partition key count")
	}
	if err := checkCount(pkCount, "partition key type"); err != nil {
		return h, err
	}
	h.PartitionKeyTypes = make([]string, pkCount)
	for i := range h.PartitionKeyTypes {
		s, err := readVIntString(r)
		if err != nil {
			return h, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading partition key type %d", i)
		}
		h.PartitionKeyTypes[i] = s
	}

	ckCount, _, err := vint.ReadVInt(r)
	if err != nil {
		return h, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading serialization header clustering key count")
	}
	if err := checkCount(ckCount, "clustering key type"); err != nil {
		return h, err
	}
	h.ClusteringKeyTypes = make([]string, ckCount)
	for i := range h.ClusteringKeyTypes {
		s, err := readVIntString(r)
		if err != nil {
			return h, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading clustering key type %d", i)
		}
		h.ClusteringKeyTypes[i] = s
	}

	staticCols, err := readColumnSpecs(r)
	if err != nil {
		return h, err
	}
	h.StaticColumns = staticCols

	regularCols, err := readColumnSpecs(r)
	if err != nil {
		return h, err
	}
	h.RegularColumns = regularCols

	return h, nil
}

func readColumnSpecs(r io.Reader) ([]ColumnSpec, error) {
	count, _, err := vint.ReadVInt(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column spec count")
	}
	if err := checkCount(count, "column spec"); err != nil {
		return nil, err
	}
	specs := make([]ColumnSpec, count)
	for i := range specs {
		name, err := readVIntString(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column spec %d name", i)
		}
		class, err := readVIntString(r)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading column spec %d class", i)
		}
		specs[i] = ColumnSpec{Name: name, ClassName: class}
	}
	return specs, nil
}
