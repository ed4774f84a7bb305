package query

import (
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstable"
)

// clusteringRestriction is one clustering-key component's pushed-down
// restriction: a prefix equality, or (on the first unrestricted
// component) a single range.
type clusteringRestriction struct {
	eq                  *cqlvalue.Value
	rangeLow, rangeHigh *cqlvalue.Value
	lowIncl, highIncl   bool
}

// plan is the bound, ready-to-execute form of a SelectStatement: every
// literal has been converted against the table's schema, and the
// partition/clustering-key pushdown decisions of spec.md §4.I's
// planner rules have already been made.
type plan struct {
	stmt  *SelectStatement
	table *schema.Table

	// Partition-key access path. Exactly one of pointKeys (len>=1, from
	// equality or IN) or fullScan is used.
	pointKeys [][]byte
	fullScan  bool

	clustering []clusteringRestriction // by clustering column position, trailing entries absent

	reverse bool // read each partition's rows in reverse clustering order

	postFilters []Predicate // WHERE terms that aren't partition/clustering pushdown

	needsMemorySort bool // ORDER BY outside clustering order: buffer + sort
	orderBy         []OrderTerm

	limit    int
	hasLimit bool

	projections []Projection
	isAggregate bool
}

// buildPlan applies spec.md §4.I's six planner rules against stmt and
// src's bound schema, producing an executable plan or a planning
// error (Unsupported or TypeMismatch).
func buildPlan(src Source, stmt *SelectStatement) (*plan, error) {
	table := src.Schema()
	if table == nil {
		return nil, cqlerr.New(cqlerr.Unsupported, component, "table schema is unknown")
	}

	p := &plan{stmt: stmt, table: table, projections: stmt.Projections, orderBy: stmt.OrderBy}
	for _, proj := range stmt.Projections {
		if proj.Agg != AggNone {
			p.isAggregate = true
		}
	}

	consumed := make([]bool, len(stmt.Where))

	if err := p.planPartitionKey(table, stmt, consumed); err != nil {
		return nil, err
	}
	if p.fullScan && !stmt.AllowFiltering {
		if !singlePartitionHint(src) {
			return nil, cqlerr.New(cqlerr.Unsupported, component, "query does not restrict the partition key; add ALLOW FILTERING or restrict it by equality/IN")
		}
	}

	if err := p.planClusteringKey(table, stmt, consumed); err != nil {
		return nil, err
	}

	for i, pred := range stmt.Where {
		if !consumed[i] {
			p.postFilters = append(p.postFilters, pred)
		}
	}
	if len(p.postFilters) > 0 && !stmt.AllowFiltering {
		return nil, cqlerr.New(cqlerr.Unsupported, component, "query has a non-pushdown WHERE restriction; add ALLOW FILTERING")
	}

	if err := p.planSort(table, stmt); err != nil {
		return nil, err
	}

	if stmt.HasLimit {
		p.limit = stmt.Limit
		p.hasLimit = true
	}

	return p, nil
}

// singlePartitionHint is a best-effort check; a Source without a
// cheap partition count (the test fake, e.g.) is conservatively
// treated as multi-partition, forcing ALLOW FILTERING.
func singlePartitionHint(src Source) bool {
	type statsSource interface {
		Stats() sstable.Stats
	}
	ss, ok := src.(statsSource)
	if !ok {
		return false
	}
	return ss.Stats().PartitionCount <= 1
}

// planPartitionKey implements rule 2: equality/IN coverage of every
// partition-key component yields point lookups; anything else is a
// full scan, gated by rule 2's ALLOW FILTERING / single-partition
// escape hatch (checked by the caller).
func (p *plan) planPartitionKey(table *schema.Table, stmt *SelectStatement, consumed []bool) error {
	pk := table.PartitionKey
	if len(pk) == 0 {
		p.fullScan = true
		return nil
	}

	// Single-component equality/IN is the common case and the only one
	// multi-component composite keys also reduce to once every
	// component is covered.
	perColumn := make([][]Literal, len(pk))
	perColumnIdx := make([][]int, len(pk))
	for i, col := range pk {
		for wi, pred := range stmt.Where {
			if pred.Column != col.Name || consumed[wi] {
				continue
			}
			switch pred.Kind {
			case PredEq:
				perColumn[i] = []Literal{pred.Value}
				perColumnIdx[i] = []int{wi}
			case PredIn:
				perColumn[i] = pred.Values
				perColumnIdx[i] = []int{wi}
			}
		}
	}

	for i := range pk {
		if perColumn[i] == nil {
			p.fullScan = true
			return nil
		}
	}

	// Cartesian product of each component's candidate value set (IN on
	// more than one partition-key component is legal CQL but rare;
	// spec.md only requires "If all are IN, issue N point lookups" for
	// the common single-IN-column case, which this generalizes to).
	combos := [][]cqlvalue.Value{{}}
	for i, col := range pk {
		var next [][]cqlvalue.Value
		for _, combo := range combos {
			for _, lit := range perColumn[i] {
				v, err := bindLiteral(lit, col.Type)
				if err != nil {
					return err
				}
				next = append(next, append(append([]cqlvalue.Value{}, combo...), v))
			}
		}
		combos = next
	}

	for _, combo := range combos {
		key, err := sstable.EncodePartitionKey(combo, pk)
		if err != nil {
			return err
		}
		p.pointKeys = append(p.pointKeys, key)
	}
	for _, idxs := range perColumnIdx {
		for _, wi := range idxs {
			consumed[wi] = true
		}
	}
	return nil
}

// planClusteringKey implements rule 3: a consecutive prefix of
// equality-restricted clustering columns, optionally followed by one
// range restriction on the next component. Everything past that point
// (or predicates against a column out of clustering order) falls
// through to post-filtering.
func (p *plan) planClusteringKey(table *schema.Table, stmt *SelectStatement, consumed []bool) error {
	ck := table.ClusteringKey
	rangeSeen := false

	for _, col := range ck {
		var eqIdx = -1
		var rangeIdx = -1
		var betweenIdx = -1
		for wi, pred := range stmt.Where {
			if pred.Column != col.Name || consumed[wi] {
				continue
			}
			switch pred.Kind {
			case PredEq:
				eqIdx = wi
			case PredRange:
				if pred.Op != OpNe {
					rangeIdx = wi
				}
			case PredBetween:
				betweenIdx = wi
			}
		}

		if eqIdx >= 0 && !rangeSeen {
			v, err := bindLiteral(stmt.Where[eqIdx].Value, col.Type)
			if err != nil {
				return err
			}
			p.clustering = append(p.clustering, clusteringRestriction{eq: &v})
			consumed[eqIdx] = true
			continue
		}

		if !rangeSeen && betweenIdx >= 0 {
			low, err := bindLiteral(stmt.Where[betweenIdx].Low, col.Type)
			if err != nil {
				return err
			}
			high, err := bindLiteral(stmt.Where[betweenIdx].High, col.Type)
			if err != nil {
				return err
			}
			p.clustering = append(p.clustering, clusteringRestriction{
				rangeLow: &low, lowIncl: true,
				rangeHigh: &high, highIncl: true,
			})
			consumed[betweenIdx] = true
			rangeSeen = true
			break
		}

		if !rangeSeen && rangeIdx >= 0 {
			v, err := bindLiteral(stmt.Where[rangeIdx].Value, col.Type)
			if err != nil {
				return err
			}
			r := clusteringRestriction{}
			switch stmt.Where[rangeIdx].Op {
			case OpLt:
				r.rangeHigh, r.highIncl = &v, false
			case OpLe:
				r.rangeHigh, r.highIncl = &v, true
			case OpGt:
				r.rangeLow, r.lowIncl = &v, false
			case OpGe:
				r.rangeLow, r.lowIncl = &v, true
			}
			p.clustering = append(p.clustering, r)
			consumed[rangeIdx] = true
			rangeSeen = true
			break
		}

		break // no restriction on this component: stop, rest is post-filter
	}
	return nil
}

// planSort implements rule 4: ORDER BY is only pushed down when it
// exactly matches the clustering order (forward) or its exact reverse;
// anything else demands ALLOW FILTERING and an in-memory sort.
func (p *plan) planSort(table *schema.Table, stmt *SelectStatement) error {
	if len(stmt.OrderBy) == 0 {
		return nil
	}
	ck := table.ClusteringKey
	if len(stmt.OrderBy) > len(ck) {
		return p.requireFilteringSort(stmt)
	}

	forward, backward := true, true
	for i, term := range stmt.OrderBy {
		if term.Column != ck[i].Name {
			forward, backward = false, false
			break
		}
		wantDesc := ck[i].Order == schema.Desc
		if term.Desc != wantDesc {
			forward = false
		}
		if term.Desc == wantDesc {
			backward = false
		}
	}

	switch {
	case forward:
		p.reverse = false
		return nil
	case backward:
		p.reverse = true
		return nil
	default:
		return p.requireFilteringSort(stmt)
	}
}

func (p *plan) requireFilteringSort(stmt *SelectStatement) error {
	if !stmt.AllowFiltering {
		return cqlerr.New(cqlerr.Unsupported, component, "ORDER BY does not follow clustering order; add ALLOW FILTERING")
	}
	p.needsMemorySort = true
	return nil
}
