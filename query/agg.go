package query

import (
	"iter"
	"math/big"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
)

// aggAccumulator is one projection's streaming accumulator, matching
// rule 6 of spec.md §4.I: COUNT is a counter, MIN/MAX keep the
// first/last value seen under cqlvalue.Compare's total order, SUM/AVG
// widen into a big.Int/big.Float pair that never overflows.
type aggAccumulator struct {
	proj Projection

	count int64

	haveExtreme bool
	extreme     cqlvalue.Value

	sumInt   *big.Int
	sumFloat *big.Float
	isFloat  bool
}

func newAccumulator(proj Projection) *aggAccumulator {
	return &aggAccumulator{proj: proj, sumInt: new(big.Int), sumFloat: new(big.Float)}
}

func (a *aggAccumulator) add(v cqlvalue.Value, present bool) error {
	switch a.proj.Agg {
	case AggCount:
		if a.proj.Star || present {
			a.count++
		}
		return nil
	}
	if !present {
		return nil
	}
	switch a.proj.Agg {
	case AggMin:
		if !a.haveExtreme {
			a.extreme, a.haveExtreme = v, true
			return nil
		}
		c, err := cqlvalue.Compare(v, a.extreme)
		if err != nil {
			return err
		}
		if c < 0 {
			a.extreme = v
		}
	case AggMax:
		if !a.haveExtreme {
			a.extreme, a.haveExtreme = v, true
			return nil
		}
		c, err := cqlvalue.Compare(v, a.extreme)
		if err != nil {
			return err
		}
		if c > 0 {
			a.extreme = v
		}
	case AggSum, AggAvg:
		a.count++
		switch v.Type.Kind {
		case schema.Float, schema.Double:
			a.isFloat = true
			var f float64
			if v.Type.Kind == schema.Float {
				f = float64(v.Float32)
			} else {
				f = v.Float64
			}
			a.sumFloat.Add(a.sumFloat, big.NewFloat(f))
		case schema.Varint:
			a.sumInt.Add(a.sumInt, v.Varint)
		default:
			a.sumInt.Add(a.sumInt, big.NewInt(scalarInt64(v)))
		}
	}
	return nil
}

func scalarInt64(v cqlvalue.Value) int64 {
	switch v.Type.Kind {
	case schema.Tinyint:
		return int64(v.Int8)
	case schema.Smallint:
		return int64(v.Int16)
	case schema.Int:
		return int64(v.Int32)
	default:
		return v.Int64
	}
}

func (a *aggAccumulator) result() cqlvalue.Value {
	switch a.proj.Agg {
	case AggCount:
		return cqlvalue.NewBigint(a.count)
	case AggMin, AggMax:
		if !a.haveExtreme {
			return cqlvalue.Null(schema.Primitive(schema.Bigint))
		}
		return a.extreme
	case AggSum:
		if a.isFloat {
			f, _ := a.sumFloat.Float64()
			return cqlvalue.NewDouble(f)
		}
		return cqlvalue.NewVarint(new(big.Int).Set(a.sumInt))
	case AggAvg:
		if a.count == 0 {
			return cqlvalue.NewDouble(0)
		}
		if a.isFloat {
			f, _ := a.sumFloat.Float64()
			return cqlvalue.NewDouble(f / float64(a.count))
		}
		avg := new(big.Rat).SetFrac(a.sumInt, big.NewInt(a.count))
		f, _ := avg.Float64()
		return cqlvalue.NewDouble(f)
	default:
		return cqlvalue.Value{}
	}
}

// runAggregate fully drains rows (aggregates force a full scan of the
// restricted range per rule 5/6) and yields exactly one result row.
func runAggregate(p *plan, rows iter.Seq2[*boundRow, error], yield func(Row, error) bool) {
	accs := make([]*aggAccumulator, len(p.projections))
	for i, proj := range p.projections {
		accs[i] = newAccumulator(proj)
	}

	for br, err := range rows {
		if err != nil {
			yield(Row{}, err)
			return
		}
		for i, proj := range p.projections {
			if proj.Agg == AggNone {
				continue
			}
			if proj.Star {
				if err := accs[i].add(cqlvalue.Value{}, true); err != nil {
					yield(Row{}, err)
					return
				}
				continue
			}
			v, ok := columnValue(p.table, proj.Column, br)
			if err := accs[i].add(v, ok); err != nil {
				yield(Row{}, err)
				return
			}
		}
	}

	out := Row{Values: map[string]cqlvalue.Value{}}
	for i, proj := range p.projections {
		out.Values[projectionLabel(proj)] = accs[i].result()
	}
	yield(out, nil)
}
