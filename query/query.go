// Package query implements the SELECT parser, planner, and streaming
// executor of spec.md §4.I: a small SQL subset compiled against one
// sstable.Handle's schema, planned into partition/clustering-key
// pushdown where the predicates allow it, and executed as a pull
// iterator so both execute (materialized ResultSet) and
// execute_stream (Iterator<Row>) share one streaming core.
package query

import (
	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/schema"
)

const component = "query"

// Source is the subset of *sstable.Handle the query layer depends on,
// accepted as an interface so the planner/executor can be exercised
// against a fake in tests without real mmap-backed component files.
type Source interface {
	Schema() *schema.Table
	Get(rawKey []byte) (*bigformat.Partition, bool, error)
	Scan() func(yield func(*bigformat.Partition, error) bool)
	CacheStats() (hits, misses uint64)
}
