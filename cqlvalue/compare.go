package cqlvalue

import (
	"bytes"
	"math/big"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
)

// Compare orders two values of the same primitive type under CQL's
// typed comparison (not byte-comparable encoding — this is the
// ordering clustering-key comparisons and ORDER BY use directly on
// materialized values). Null sorts before every non-null value, per
// Cassandra convention. Composite types (collections, tuples, UDTs)
// are not totally ordered by this function and return TypeMismatch;
// callers that need to order by a composite clustering column are
// outside the supported surface.
func Compare(a, b Value) (int, error) {
	if a.Null || b.Null {
		switch {
		case a.Null && b.Null:
			return 0, nil
		case a.Null:
			return -1, nil
		default:
			return 1, nil
		}
	}

	switch a.Type.Kind {
	case schema.Boolean:
		return compareBool(a.Bool, b.Bool), nil
	case schema.Tinyint:
		return compareInt64(int64(a.Int8), int64(b.Int8)), nil
	case schema.Smallint:
		return compareInt64(int64(a.Int16), int64(b.Int16)), nil
	case schema.Int:
		return compareInt64(int64(a.Int32), int64(b.Int32)), nil
	case schema.Bigint, schema.Counter, schema.Time:
		return compareInt64(a.Int64, b.Int64), nil
	case schema.Date:
		return a.Time.Compare(b.Time), nil
	case schema.Varint:
		return a.Varint.Cmp(b.Varint), nil
	case schema.Float:
		return compareFloat64(float64(a.Float32), float64(b.Float32)), nil
	case schema.Double:
		return compareFloat64(a.Float64, b.Float64), nil
	case schema.Decimal:
		return compareDecimal(a.Decimal, b.Decimal), nil
	case schema.Ascii, schema.Text:
		return compareString(a.Text, b.Text), nil
	case schema.Blob:
		return bytes.Compare(a.Bytes, b.Bytes), nil
	case schema.Timestamp:
		return a.Time.Compare(b.Time), nil
	case schema.UUID, schema.TimeUUID:
		return bytes.Compare(a.UUID[:], b.UUID[:]), nil
	case schema.Inet:
		return bytes.Compare(a.IP, b.IP), nil
	default:
		return 0, cqlerr.New(cqlerr.TypeMismatch, "cqlvalue", "type %s has no total order for clustering/sort comparison", a.Type)
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareDecimal compares unscaled*10^-scale values by bringing both
// to a common scale before comparing magnitudes.
func compareDecimal(a, b Decimal) int {
	if a.Scale == b.Scale {
		return a.Unscaled.Cmp(b.Unscaled)
	}
	aUnscaled, bUnscaled := a.Unscaled, b.Unscaled
	if a.Scale < b.Scale {
		aUnscaled = scaleUp(a.Unscaled, b.Scale-a.Scale)
	} else {
		bUnscaled = scaleUp(b.Unscaled, a.Scale-b.Scale)
	}
	return aUnscaled.Cmp(bUnscaled)
}

func scaleUp(v *big.Int, places int32) *big.Int {
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	return new(big.Int).Mul(v, factor)
}
