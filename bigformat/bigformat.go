// Package bigformat reads the Cassandra 5 "oa" BigFormat partition and
// row stream: partition lookup through Summary.db/Index.db, lazy
// per-partition row iteration, row/cell framing with delta-encoded
// timestamps (TTLs are read as plain VInts, not delta-encoded), and
// tombstone application (row, cell, and range deletions).
package bigformat

import (
	"github.com/cqlite/cqlite/cqlvalue"
)

// BoundKind classifies one endpoint of a range tombstone marker.
type BoundKind int

const (
	InclusiveStart BoundKind = iota
	ExclusiveStart
	InclusiveEnd
	ExclusiveEnd
	Boundary // close of one range and open of the next, at the same clustering value
)

// Deletion is a point-in-time tombstone: everything it covers with a
// write timestamp <= MarkedForDeleteAt is suppressed.
type Deletion struct {
	MarkedForDeleteAt int64
	LocalDeletionTime int32
}

// covers reports whether a cell/row timestamp is masked by this deletion.
func (d *Deletion) covers(timestamp int64) bool {
	return d != nil && timestamp <= d.MarkedForDeleteAt
}

// RangeTombstoneMarker is one open or close boundary of a range
// tombstone within a partition's clustering order.
type RangeTombstoneMarker struct {
	Kind       BoundKind
	Clustering []cqlvalue.Value
	Deletion   Deletion
}

// Cell is one column's materialized value within a row, already past
// tombstone suppression.
type Cell struct {
	Column            string
	Value             cqlvalue.Value
	Timestamp         int64
	HasTTL            bool
	TTL               int32 // meaningful only when HasTTL
	LocalDeletionTime int32 // meaningful only when IsTombstone
	IsTombstone       bool
}

// Row is one clustering row of a partition, with cells already filtered
// through any covering row/cell/range tombstone.
type Row struct {
	Clustering   []cqlvalue.Value
	IsStatic     bool
	Deletion     *Deletion // row-level deletion, if any
	Timestamp    int64
	HasTimestamp bool
	TTL          int32
	HasTTL       bool
	Cells        map[string]Cell
}

// Get fetches col's cell, reporting whether the (sparse) row has it at
// all.
func (r *Row) Get(col string) (Cell, bool) {
	c, ok := r.Cells[col]
	return c, ok
}

// Partition is a lazy view over one partition's region of Data.db: its
// key, optional partition-level deletion, optional static row, and its
// clustering row stream.
type Partition struct {
	Key      []byte
	Deletion *Deletion
	Static   *Row

	dec *partitionDecoder
}
