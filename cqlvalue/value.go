package cqlvalue

import (
	"math/big"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
)

// CqlDuration is the preferred Go type for CQL duration: three signed
// VInt components (months, days, nanoseconds), following the same
// preferred-type convention datacodec documents for its own CqlDuration.
type CqlDuration struct {
	Months      int32
	Days        int32
	Nanoseconds int64
}

// Value is the recursive CqlValue sum type of spec.md §3, mirroring
// schema.Type's shape plus a Null inhabitant. Exactly one of the typed
// fields is meaningful, selected by Type.Kind; Null true means the
// field is a CQL NULL regardless of Type.
type Value struct {
	Type *schema.Type
	Null bool

	Bool     bool
	Int8     int8
	Int16    int16
	Int32    int32
	Int64    int64
	Varint   *big.Int
	Float32  float32
	Float64  float64
	Decimal  Decimal
	Text     string
	Bytes    []byte
	Time     time.Time
	Duration CqlDuration
	UUID     uuid.UUID
	IP       net.IP

	Elems []Value         // list, set, tuple
	Pairs []Pair          // map
	Flds  map[string]Value // udt, keyed by field name
}

// Decimal is the preferred Go type for CQL decimal: an arbitrary
// precision unscaled value plus a base-10 scale, unscaled * 10^-scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// Pair is one (key, value) entry of a decoded map, kept in on-disk
// order (which must already be byte-comparable order per spec.md §4.D).
type Pair struct {
	Key   Value
	Value Value
}

func Null(t *schema.Type) Value { return Value{Type: t, Null: true} }

func NewBoolean(v bool) Value { return Value{Type: schema.Primitive(schema.Boolean), Bool: v} }
func NewTinyint(v int8) Value { return Value{Type: schema.Primitive(schema.Tinyint), Int8: v} }
func NewSmallint(v int16) Value {
	return Value{Type: schema.Primitive(schema.Smallint), Int16: v}
}
func NewInt(v int32) Value    { return Value{Type: schema.Primitive(schema.Int), Int32: v} }
func NewBigint(v int64) Value { return Value{Type: schema.Primitive(schema.Bigint), Int64: v} }
func NewCounter(v int64) Value { return Value{Type: schema.Primitive(schema.Counter), Int64: v} }
func NewVarint(v *big.Int) Value {
	return Value{Type: schema.Primitive(schema.Varint), Varint: v}
}
func NewFloat(v float32) Value  { return Value{Type: schema.Primitive(schema.Float), Float32: v} }
func NewDouble(v float64) Value { return Value{Type: schema.Primitive(schema.Double), Float64: v} }
func NewDecimal(d Decimal) Value {
	return Value{Type: schema.Primitive(schema.Decimal), Decimal: d}
}
func NewAscii(v string) Value { return Value{Type: schema.Primitive(schema.Ascii), Text: v} }
func NewText(v string) Value  { return Value{Type: schema.Primitive(schema.Text), Text: v} }
func NewBlob(v []byte) Value  { return Value{Type: schema.Primitive(schema.Blob), Bytes: v} }
func NewTimestamp(v time.Time) Value {
	return Value{Type: schema.Primitive(schema.Timestamp), Time: v}
}
func NewDate(v time.Time) Value { return Value{Type: schema.Primitive(schema.Date), Time: v} }
func NewTime(v time.Duration) Value {
	return Value{Type: schema.Primitive(schema.Time), Int64: int64(v)}
}
func NewUUID(v uuid.UUID) Value { return Value{Type: schema.Primitive(schema.UUID), UUID: v} }
func NewTimeUUID(v uuid.UUID) Value {
	return Value{Type: schema.Primitive(schema.TimeUUID), UUID: v}
}
func NewInet(v net.IP) Value { return Value{Type: schema.Primitive(schema.Inet), IP: v} }
func NewDurationValue(v CqlDuration) Value {
	return Value{Type: schema.Primitive(schema.Duration), Duration: v}
}

// TypeMismatch builds the standard error for a value that doesn't fit
// its declared column type.
func TypeMismatch(col string, t *schema.Type, reason string) error {
	return cqlerr.New(cqlerr.TypeMismatch, "cqlvalue", "column %q (%s): %s", col, t, reason)
}
