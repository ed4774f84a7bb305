package query

import (
	"encoding/hex"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
)

// bindLiteral converts a parsed SQL literal to a cqlvalue.Value typed
// against t, the way a CQL driver coerces bind parameters against a
// column's declared type. Only scalar column types are supported as
// predicate/ORDER-BY/bound operands; a literal against a collection or
// UDT column is Unsupported (spec.md §4.I's predicate grammar never
// targets those directly except via CONTAINS/subscript, handled by the
// caller before reaching a scalar element type).
func bindLiteral(lit Literal, t *schema.Type) (cqlvalue.Value, error) {
	if lit.Kind == LitNull {
		return cqlvalue.Null(t), nil
	}

	switch t.Kind {
	case schema.Boolean:
		if lit.Kind != LitBool {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		return cqlvalue.NewBoolean(lit.Bool), nil

	case schema.Tinyint:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewTinyint(int8(n)), nil
	case schema.Smallint:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewSmallint(int16(n)), nil
	case schema.Int:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewInt(int32(n)), nil
	case schema.Bigint:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewBigint(n), nil
	case schema.Counter:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewCounter(n), nil
	case schema.Varint:
		n, err := literalInt(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewVarint(big.NewInt(n)), nil

	case schema.Float:
		f, err := literalFloat(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewFloat(float32(f)), nil
	case schema.Double:
		f, err := literalFloat(lit, t)
		if err != nil {
			return cqlvalue.Value{}, err
		}
		return cqlvalue.NewDouble(f), nil

	case schema.Ascii:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		return cqlvalue.NewAscii(lit.Str), nil
	case schema.Text:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		return cqlvalue.NewText(lit.Str), nil

	case schema.Blob:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		b, err := hex.DecodeString(strings.TrimPrefix(lit.Str, "0x"))
		if err != nil {
			return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.TypeMismatch, component, err, "blob literal %q is not hex", lit.Str)
		}
		return cqlvalue.NewBlob(b), nil

	case schema.Timestamp:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		ts, err := parseTimestamp(lit.Str)
		if err != nil {
			return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.TypeMismatch, component, err, "invalid timestamp literal %q", lit.Str)
		}
		return cqlvalue.NewTimestamp(ts), nil
	case schema.Date:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		d, err := time.Parse("2006-01-02", lit.Str)
		if err != nil {
			return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.TypeMismatch, component, err, "invalid date literal %q", lit.Str)
		}
		return cqlvalue.NewDate(d), nil

	case schema.UUID:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		u, err := uuid.Parse(lit.Str)
		if err != nil {
			return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.TypeMismatch, component, err, "invalid uuid literal %q", lit.Str)
		}
		return cqlvalue.NewUUID(u), nil
	case schema.TimeUUID:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		u, err := uuid.Parse(lit.Str)
		if err != nil {
			return cqlvalue.Value{}, cqlerr.Wrap(cqlerr.TypeMismatch, component, err, "invalid timeuuid literal %q", lit.Str)
		}
		return cqlvalue.NewTimeUUID(u), nil

	case schema.Inet:
		if lit.Kind != LitString {
			return cqlvalue.Value{}, litMismatch(lit, t)
		}
		ip := net.ParseIP(lit.Str)
		if ip == nil {
			return cqlvalue.Value{}, cqlerr.New(cqlerr.TypeMismatch, component, "invalid inet literal %q", lit.Str)
		}
		return cqlvalue.NewInet(ip), nil

	default:
		return cqlvalue.Value{}, cqlerr.New(cqlerr.Unsupported, component, "literal predicates against %s columns are not supported", t)
	}
}

func literalInt(lit Literal, t *schema.Type) (int64, error) {
	switch lit.Kind {
	case LitInt:
		return lit.Int, nil
	case LitFloat:
		return int64(lit.Flt), nil
	default:
		return 0, litMismatch(lit, t)
	}
}

func literalFloat(lit Literal, t *schema.Type) (float64, error) {
	switch lit.Kind {
	case LitFloat:
		return lit.Flt, nil
	case LitInt:
		return float64(lit.Int), nil
	default:
		return 0, litMismatch(lit, t)
	}
}

func litMismatch(lit Literal, t *schema.Type) error {
	return cqlerr.New(cqlerr.TypeMismatch, component, "literal does not match column type %s", t)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
