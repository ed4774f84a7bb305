package query

import (
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"github.com/cqlite/cqlite/bigformat"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstable"
)

// Row is one projected result row: exactly the columns the statement's
// projection named, by column name.
type Row struct {
	Values map[string]cqlvalue.Value
}

// ResultSet is execute's materialized result, per spec.md §6.
type ResultSet struct {
	Columns         []string
	Rows            []Row
	RowCount        int
	ExecutionTimeUs int64
	CacheHits       uint64
	CacheMisses     uint64
}

// CancelToken is the cooperative cancellation handle spec.md §5
// describes: checked at partition and row boundaries, never preempted
// mid-row.
type CancelToken struct {
	cancelled atomic.Bool
}

func NewCancelToken() *CancelToken { return &CancelToken{} }

func (c *CancelToken) Cancel() { c.cancelled.Store(true) }

func (c *CancelToken) Cancelled() bool { return c != nil && c.cancelled.Load() }

// ExecOptions configures one execute/execute_stream call. The
// functional-option shape matches sstable.Options, per SPEC_FULL.md's
// ambient-stack section.
type ExecOptions struct {
	Cancel             *CancelToken
	Deadline           time.Time // zero means no deadline
	MaxSortBufferBytes int64
}

// interrupted reports whether the call should stop at the next
// partition/row boundary, and why.
func (o *ExecOptions) interrupted() (bool, string) {
	if o.Cancel.Cancelled() {
		return true, "query cancelled"
	}
	if !o.Deadline.IsZero() && time.Now().After(o.Deadline) {
		return true, "query deadline exceeded"
	}
	return false, ""
}

type ExecOption func(*ExecOptions)

func defaultExecOptions() ExecOptions {
	return ExecOptions{MaxSortBufferBytes: 64 << 20}
}

// WithCancelToken supplies a token the executor polls at partition and
// row boundaries.
func WithCancelToken(t *CancelToken) ExecOption {
	return func(o *ExecOptions) { o.Cancel = t }
}

// WithDeadline sets the point past which the executor stops with
// Cancelled, checked at the same partition/row boundaries as the
// cancel token (spec.md §5).
func WithDeadline(t time.Time) ExecOption {
	return func(o *ExecOptions) { o.Deadline = t }
}

// WithMaxSortBuffer overrides the default 64MiB bound on the
// in-memory ORDER BY buffer rule 4 of spec.md §4.I describes.
func WithMaxSortBuffer(n int64) ExecOption {
	return func(o *ExecOptions) { o.MaxSortBufferBytes = n }
}

// Execute parses, plans, and runs sql against src, materializing every
// matching row. This is spec.md §6's execute(handle, select_sql).
func Execute(src Source, sql string, opts ...ExecOption) (*ResultSet, error) {
	o := defaultExecOptions()
	for _, opt := range opts {
		opt(&o)
	}

	started := time.Now()

	stmt, err := Parse(sql)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Unsupported, component, err, "parsing SELECT")
	}
	p, err := buildPlan(src, stmt)
	if err != nil {
		return nil, err
	}

	startHits, startMisses := src.CacheStats()

	rs := &ResultSet{Columns: resultColumns(p)}
	for row, err := range runPlan(src, p, o) {
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
	rs.RowCount = len(rs.Rows)

	endHits, endMisses := src.CacheStats()
	rs.CacheHits = endHits - startHits
	rs.CacheMisses = endMisses - startMisses
	rs.ExecutionTimeUs = time.Since(started).Microseconds()

	return rs, nil
}

// ExecuteStream parses, plans, and runs sql against src, yielding rows
// lazily. This is spec.md §6's execute_stream(handle, select_sql).
func ExecuteStream(src Source, sql string, opts ...ExecOption) (iter.Seq2[Row, error], error) {
	o := defaultExecOptions()
	for _, opt := range opts {
		opt(&o)
	}
	stmt, err := Parse(sql)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Unsupported, component, err, "parsing SELECT")
	}
	p, err := buildPlan(src, stmt)
	if err != nil {
		return nil, err
	}
	return runPlan(src, p, o), nil
}

func resultColumns(p *plan) []string {
	if len(p.projections) == 1 && p.projections[0].Star {
		return p.table.AllColumnNames()
	}
	var cols []string
	for _, proj := range p.projections {
		cols = append(cols, projectionLabel(proj))
	}
	return cols
}

func projectionLabel(proj Projection) string {
	switch proj.Agg {
	case AggNone:
		if len(proj.Path) > 0 {
			return proj.Column + "." + strings.Join(proj.Path, ".")
		}
		return proj.Column
	case AggCount:
		if proj.Star {
			return "count"
		}
		return "count(" + proj.Column + ")"
	case AggMin:
		return "min(" + proj.Column + ")"
	case AggMax:
		return "max(" + proj.Column + ")"
	case AggSum:
		return "sum(" + proj.Column + ")"
	case AggAvg:
		return "avg(" + proj.Column + ")"
	default:
		return proj.Column
	}
}

// boundRow is one candidate row carrying enough context (its
// partition's decoded key) to evaluate partition-key post-filters and
// projections without redecoding the key per row.
type boundRow struct {
	partitionKey      []cqlvalue.Value
	partitionDeletion *bigformat.Deletion
	static            *bigformat.Row // the partition's static row, if any
	row               *bigformat.Row
}

// runPlan is the one streaming core both Execute and ExecuteStream
// wrap: partition access path, clustering pushdown, post-filtering,
// aggregation/sort, and LIMIT, all cooperatively cancellable.
func runPlan(src Source, p *plan, o ExecOptions) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		rows := matchingRows(src, p, &o)

		switch {
		case p.isAggregate:
			runAggregate(p, rows, yield)
		case p.needsMemorySort:
			runSortedScan(p, rows, o, yield)
		default:
			runDirectScan(p, rows, yield)
		}
	}
}

func runDirectScan(p *plan, rows iter.Seq2[*boundRow, error], yield func(Row, error) bool) {
	n := 0
	for br, err := range rows {
		if err != nil {
			yield(Row{}, err)
			return
		}
		if p.hasLimit && n >= p.limit {
			return
		}
		row, err := projectRow(p, br)
		if err != nil {
			yield(Row{}, err)
			return
		}
		n++
		if !yield(row, nil) {
			return
		}
	}
}

// sortItem implements btree.Item (via Less) for the bounded in-memory
// ORDER BY buffer rule 4 requires when ORDER BY doesn't follow
// clustering order.
type sortItem struct {
	key  []cqlvalue.Value
	desc []bool
	row  Row
	seq  int64 // tie-breaker, preserves scan order for equal keys
}

func (a *sortItem) Less(than btree.Item) bool {
	b := than.(*sortItem)
	for i := range a.key {
		c, err := cqlvalue.Compare(a.key[i], b.key[i])
		if err != nil {
			continue
		}
		if a.desc[i] {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return a.seq < b.seq
}

func runSortedScan(p *plan, rows iter.Seq2[*boundRow, error], o ExecOptions, yield func(Row, error) bool) {
	tr := btree.New(32)
	var approxBytes int64
	var seq int64

	// A failed sorted scan drops its buffered rows before surfacing
	// the error (spec.md §5's deadline contract).
	fail := func(err error) {
		tr.Clear(false)
		yield(Row{}, err)
	}

	for br, err := range rows {
		if err != nil {
			fail(err)
			return
		}
		row, err := projectRow(p, br)
		if err != nil {
			fail(err)
			return
		}
		key, desc, err := sortKey(p, br, row)
		if err != nil {
			fail(err)
			return
		}
		approxBytes += rowApproxSize(row)
		if approxBytes > o.MaxSortBufferBytes {
			fail(cqlerr.New(cqlerr.ResourceExceeded, component, "ORDER BY buffer exceeded %d bytes", o.MaxSortBufferBytes))
			return
		}
		tr.ReplaceOrInsert(&sortItem{key: key, desc: desc, row: row, seq: seq})
		seq++
	}

	n := 0
	tr.Ascend(func(it btree.Item) bool {
		if p.hasLimit && n >= p.limit {
			return false
		}
		n++
		return yield(it.(*sortItem).row, nil)
	})
}

func sortKey(p *plan, br *boundRow, row Row) ([]cqlvalue.Value, []bool, error) {
	var key []cqlvalue.Value
	var desc []bool
	for _, term := range p.orderBy {
		v, ok := row.Values[term.Column]
		if !ok {
			return nil, nil, cqlerr.New(cqlerr.Unsupported, component, "ORDER BY column %s is not in the projection", term.Column)
		}
		key = append(key, v)
		desc = append(desc, term.Desc)
	}
	return key, desc, nil
}

func rowApproxSize(row Row) int64 {
	var n int64
	for _, v := range row.Values {
		n += approxValueSize(v)
	}
	return n
}

func approxValueSize(v cqlvalue.Value) int64 {
	n := int64(len(v.Text) + len(v.Bytes) + 32)
	for _, e := range v.Elems {
		n += approxValueSize(e)
	}
	for _, pr := range v.Pairs {
		n += approxValueSize(pr.Key) + approxValueSize(pr.Value)
	}
	for _, f := range v.Flds {
		n += approxValueSize(f)
	}
	return n
}

// matchingRows streams every row the partition-key and clustering-key
// pushdown selects, already past post-filter evaluation.
func matchingRows(src Source, p *plan, o *ExecOptions) iter.Seq2[*boundRow, error] {
	return func(yield func(*boundRow, error) bool) {
		visit := func(part *bigformat.Partition) bool {
			if stop, why := o.interrupted(); stop {
				yield(nil, cqlerr.New(cqlerr.Cancelled, component, why))
				return false
			}
			pkVals, err := sstable.DecodePartitionKey(part.Key, p.table.PartitionKey)
			if err != nil {
				return yield(nil, err)
			}
			rowsIter := part.Rows()
			ordered, rowsErr := orderedRows(rowsIter, p.reverse)
			for _, row := range ordered {
				if stop, why := o.interrupted(); stop {
					return yield(nil, cqlerr.New(cqlerr.Cancelled, component, why))
				}
				stop, err := clusteringBound(p, row)
				if err != nil {
					return yield(nil, err)
				}
				if stop {
					break
				}
				if !clusteringMatches(p, row) {
					continue
				}
				br := &boundRow{partitionKey: pkVals, partitionDeletion: part.Deletion, static: part.Static, row: row}
				ok, err := passesPostFilters(p, br)
				if err != nil {
					return yield(nil, err)
				}
				if !ok {
					continue
				}
				if !yield(br, nil) {
					return false
				}
			}
			if rowsErr != nil {
				return yield(nil, rowsErr)
			}
			return true
		}

		if len(p.pointKeys) > 0 {
			for _, key := range p.pointKeys {
				part, found, err := src.Get(key)
				if err != nil {
					yield(nil, err)
					return
				}
				if !found {
					continue
				}
				if !visit(part) {
					return
				}
			}
			return
		}

		for part, err := range iterSeq2(src.Scan()) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !visit(part) {
				return
			}
		}
	}
}

// iterSeq2 adapts Handle.Scan's bare function-literal iterator shape
// to iter.Seq2 so it composes with range-over-func the same way the
// rest of the package's iterators do.
func iterSeq2(scan func(yield func(*bigformat.Partition, error) bool)) iter.Seq2[*bigformat.Partition, error] {
	return scan
}

// orderedRows materializes a partition's row stream so it can be
// walked in reverse when the plan asked for descending clustering
// order; bigformat only ever decodes forward. Rows already yielded
// before a mid-stream error are still returned, alongside that error,
// so the caller can surface them before aborting (spec.md §7: "prior
// rows already yielded to the caller are not rolled back").
func orderedRows(rows iter.Seq2[*bigformat.Row, error], reverse bool) ([]*bigformat.Row, error) {
	var out []*bigformat.Row
	var firstErr error
	for row, err := range rows {
		if err != nil {
			firstErr = err
			break
		}
		out = append(out, row)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, firstErr
}

// clusteringBound reports whether the current row has passed beyond
// the planned clustering range, letting the caller stop scanning the
// rest of the partition early.
func clusteringBound(p *plan, row *bigformat.Row) (bool, error) {
	for i, restriction := range p.clustering {
		if i >= len(row.Clustering) {
			return false, nil
		}
		if restriction.eq != nil {
			if c, err := cqlvalue.Compare(row.Clustering[i], *restriction.eq); err != nil || c != 0 {
				return false, nil
			}
			continue
		}
		// A DESC column read forward (or an ASC one read in reverse)
		// arrives in descending order and leaves the range at its low bound.
		bound, incl, sign := restriction.rangeHigh, restriction.highIncl, 1
		if (p.table.ClusteringKey[i].Order == schema.Desc) != p.reverse {
			bound, incl, sign = restriction.rangeLow, restriction.lowIncl, -1
		}
		if bound == nil {
			continue
		}
		c, err := cqlvalue.Compare(row.Clustering[i], *bound)
		if err != nil {
			return false, err
		}
		if sign*c > 0 || (c == 0 && !incl) {
			return true, nil
		}
	}
	return false, nil
}

func clusteringMatches(p *plan, row *bigformat.Row) bool {
	for i, restriction := range p.clustering {
		if i >= len(row.Clustering) {
			return false
		}
		v := row.Clustering[i]
		if restriction.eq != nil {
			c, err := cqlvalue.Compare(v, *restriction.eq)
			if err != nil || c != 0 {
				return false
			}
			continue
		}
		if restriction.rangeLow != nil {
			c, err := cqlvalue.Compare(v, *restriction.rangeLow)
			if err != nil {
				return false
			}
			if c < 0 || (c == 0 && !restriction.lowIncl) {
				return false
			}
		}
		if restriction.rangeHigh != nil {
			c, err := cqlvalue.Compare(v, *restriction.rangeHigh)
			if err != nil {
				return false
			}
			if c > 0 || (c == 0 && !restriction.highIncl) {
				return false
			}
		}
	}
	return true
}

func passesPostFilters(p *plan, br *boundRow) (bool, error) {
	for _, pred := range p.postFilters {
		ok, err := evalPredicate(p.table, pred, br)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// columnValue resolves col against a bound row: partition key
// components come from the decoded key, clustering components from
// the row's Clustering slice, everything else from its Cells map.
func columnValue(table *schema.Table, col string, br *boundRow) (cqlvalue.Value, bool) {
	for i, pk := range table.PartitionKey {
		if pk.Name == col {
			return br.partitionKey[i], true
		}
	}
	for i, ck := range table.ClusteringKey {
		if ck.Name == col && i < len(br.row.Clustering) {
			return br.row.Clustering[i], true
		}
	}
	if cell, ok := br.row.Get(col); ok {
		if cell.IsTombstone {
			return cqlvalue.Value{}, false
		}
		return cell.Value, true
	}
	if br.static != nil {
		if cell, ok := br.static.Get(col); ok && !cell.IsTombstone {
			return cell.Value, true
		}
	}
	return cqlvalue.Value{}, false
}

func evalPredicate(table *schema.Table, pred Predicate, br *boundRow) (bool, error) {
	switch pred.Kind {
	case PredIsNull:
		_, ok := columnValue(table, pred.Column, br)
		if pred.IsNot {
			return ok, nil
		}
		return !ok, nil
	}

	v, ok := columnValue(table, pred.Column, br)
	if !ok {
		return false, nil
	}
	t, _ := table.TypeOf(pred.Column)

	switch pred.Kind {
	case PredEq:
		target, err := bindLiteral(pred.Value, t)
		if err != nil {
			return false, err
		}
		c, err := cqlvalue.Compare(v, target)
		return err == nil && c == 0, err

	case PredRange:
		target, err := bindLiteral(pred.Value, t)
		if err != nil {
			return false, err
		}
		c, err := cqlvalue.Compare(v, target)
		if err != nil {
			return false, err
		}
		switch pred.Op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		case OpGe:
			return c >= 0, nil
		case OpNe:
			return c != 0, nil
		}
		return false, nil

	case PredIn:
		for _, lit := range pred.Values {
			target, err := bindLiteral(lit, t)
			if err != nil {
				return false, err
			}
			c, err := cqlvalue.Compare(v, target)
			if err == nil && c == 0 {
				return true, nil
			}
		}
		return false, nil

	case PredBetween:
		low, err := bindLiteral(pred.Low, t)
		if err != nil {
			return false, err
		}
		high, err := bindLiteral(pred.High, t)
		if err != nil {
			return false, err
		}
		cl, err := cqlvalue.Compare(v, low)
		if err != nil {
			return false, err
		}
		ch, err := cqlvalue.Compare(v, high)
		if err != nil {
			return false, err
		}
		return cl >= 0 && ch <= 0, nil

	case PredLike:
		return evalLike(v, pred.Value.Str)

	case PredContains:
		target, err := bindLiteral(pred.Value, elementType(t))
		if err != nil {
			return false, err
		}
		for _, e := range v.Elems {
			if c, err := cqlvalue.Compare(e, target); err == nil && c == 0 {
				return true, nil
			}
		}
		for _, pr := range v.Pairs {
			if c, err := cqlvalue.Compare(pr.Value, target); err == nil && c == 0 {
				return true, nil
			}
		}
		return false, nil

	case PredContainsKey:
		if t == nil || t.Kind != schema.Map {
			return false, cqlerr.New(cqlerr.TypeMismatch, component, "CONTAINS KEY requires a map column")
		}
		target, err := bindLiteral(pred.Value, t.Key)
		if err != nil {
			return false, err
		}
		for _, pr := range v.Pairs {
			if c, err := cqlvalue.Compare(pr.Key, target); err == nil && c == 0 {
				return true, nil
			}
		}
		return false, nil

	case PredMapSubscript:
		if t == nil || t.Kind != schema.Map {
			return false, cqlerr.New(cqlerr.TypeMismatch, component, "map subscript requires a map column")
		}
		key, err := bindLiteral(pred.Key, t.Key)
		if err != nil {
			return false, err
		}
		target, err := bindLiteral(pred.Value, t.Value)
		if err != nil {
			return false, err
		}
		for _, pr := range v.Pairs {
			if c, err := cqlvalue.Compare(pr.Key, key); err == nil && c == 0 {
				c2, err := cqlvalue.Compare(pr.Value, target)
				return err == nil && c2 == 0, err
			}
		}
		return false, nil

	default:
		return false, cqlerr.New(cqlerr.Unsupported, component, "predicate kind not implemented")
	}
}

func elementType(t *schema.Type) *schema.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case schema.List, schema.Set:
		return t.Elem
	case schema.Map:
		return t.Value
	default:
		return t
	}
}

// evalLike implements the subset of LIKE spec.md §4.I calls for:
// prefix ("foo%"), suffix ("%foo"), and contains ("%foo%") matching.
// All three run here as a row-level post-filter; the planner does not
// currently push the prefix form down into a range scan. Any pattern
// with a '%' anywhere else falls back to a literal equality, since a
// general glob engine is outside this parser's accepted grammar.
func evalLike(v cqlvalue.Value, pattern string) (bool, error) {
	if v.Type.Kind != schema.Text && v.Type.Kind != schema.Ascii {
		return false, cqlerr.New(cqlerr.TypeMismatch, component, "LIKE requires a text/ascii column")
	}
	switch strings.Count(pattern, "%") {
	case 0:
		return v.Text == pattern, nil
	case 1:
		switch {
		case strings.HasSuffix(pattern, "%"):
			return strings.HasPrefix(v.Text, pattern[:len(pattern)-1]), nil
		case strings.HasPrefix(pattern, "%"):
			return strings.HasSuffix(v.Text, pattern[1:]), nil
		}
	case 2:
		if strings.HasPrefix(pattern, "%") && strings.HasSuffix(pattern, "%") {
			return strings.Contains(v.Text, pattern[1:len(pattern)-1]), nil
		}
	}
	return v.Text == pattern, nil
}

func projectRow(p *plan, br *boundRow) (Row, error) {
	out := Row{Values: map[string]cqlvalue.Value{}}

	names := p.projections
	if len(names) == 1 && names[0].Star {
		for _, name := range p.table.AllColumnNames() {
			if v, ok := columnValue(p.table, name, br); ok {
				out.Values[name] = v
			}
		}
		return out, nil
	}

	for _, proj := range names {
		if proj.Agg != AggNone {
			continue // aggregates are computed by runAggregate, not per-row projection
		}
		v, ok := columnValue(p.table, proj.Column, br)
		if ok && len(proj.Path) > 0 {
			v, ok = fieldPathValue(v, proj.Path)
		}
		if ok {
			out.Values[projectionLabel(proj)] = v
		}
	}
	return out, nil
}

// fieldPathValue descends a decoded UDT value field by field. A null
// value, a non-UDT value, or an unknown field name ends the descent
// with ok=false, surfacing as an absent result column rather than an
// error (matching how a null column projects).
func fieldPathValue(v cqlvalue.Value, path []string) (cqlvalue.Value, bool) {
	for _, name := range path {
		if v.Null || v.Flds == nil {
			return cqlvalue.Value{}, false
		}
		f, ok := v.Flds[name]
		if !ok {
			return cqlvalue.Value{}, false
		}
		v = f
	}
	return v, true
}
