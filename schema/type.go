// Package schema models CQL types and tables, parses a "CREATE TABLE"
// (and "CREATE TYPE") subset of Cassandra 5's grammar, and unifies that
// with the serialization header Cassandra marshaller class names
// embedded in Statistics.db.
package schema

import "fmt"

// Kind enumerates every CqlType variant spec.md §3 names.
type Kind int

const (
	Boolean Kind = iota
	Tinyint
	Smallint
	Int
	Bigint
	Varint
	Float
	Double
	Decimal
	Ascii
	Text
	Blob
	Timestamp
	Date
	Time
	UUID
	TimeUUID
	Inet
	Duration
	Counter
	List
	Set
	Map
	Tuple
	UDT
	Frozen
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Tinyint:
		return "tinyint"
	case Smallint:
		return "smallint"
	case Int:
		return "int"
	case Bigint:
		return "bigint"
	case Varint:
		return "varint"
	case Float:
		return "float"
	case Double:
		return "double"
	case Decimal:
		return "decimal"
	case Ascii:
		return "ascii"
	case Text:
		return "text"
	case Blob:
		return "blob"
	case Timestamp:
		return "timestamp"
	case Date:
		return "date"
	case Time:
		return "time"
	case UUID:
		return "uuid"
	case TimeUUID:
		return "timeuuid"
	case Inet:
		return "inet"
	case Duration:
		return "duration"
	case Counter:
		return "counter"
	case List:
		return "list"
	case Set:
		return "set"
	case Map:
		return "map"
	case Tuple:
		return "tuple"
	case UDT:
		return "udt"
	case Frozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Type is the recursive CqlType sum type. Only the fields relevant to
// Kind are populated; e.g. a primitive Type has none of Elem/Key/Value/
// Fields/UDTName set.
type Type struct {
	Kind Kind

	Elem  *Type // list<T>, set<T>, frozen<T>
	Key   *Type // map<K,V>
	Value *Type // map<K,V>
	Elems []*Type // tuple<T...>

	UDTKeyspace string // udt: keyspace the referenced type lives in
	UDTName     string // udt: type name
}

func Primitive(k Kind) *Type { return &Type{Kind: k} }

func NewList(elem *Type) *Type { return &Type{Kind: List, Elem: elem} }
func NewSet(elem *Type) *Type  { return &Type{Kind: Set, Elem: elem} }
func NewMap(key, value *Type) *Type {
	return &Type{Kind: Map, Key: key, Value: value}
}
func NewTuple(elems ...*Type) *Type { return &Type{Kind: Tuple, Elems: elems} }
func NewFrozen(inner *Type) *Type   { return &Type{Kind: Frozen, Elem: inner} }
func NewUDTRef(keyspace, name string) *Type {
	return &Type{Kind: UDT, UDTKeyspace: keyspace, UDTName: name}
}

// IsComposite reports whether t is a non-primitive type: a collection,
// tuple, UDT, or frozen wrapper. A frozen or tuple value still occupies a
// single cell, so this does not by itself decide simple-vs-complex cell
// framing (§4.D).
func (t *Type) IsComposite() bool {
	switch t.Kind {
	case List, Set, Map, Tuple, UDT:
		return true
	case Frozen:
		return true
	default:
		return false
	}
}

// String renders the CQL-source spelling of the type, e.g.
// "frozen<map<text, int>>".
func (t *Type) String() string {
	switch t.Kind {
	case List:
		return fmt.Sprintf("list<%s>", t.Elem)
	case Set:
		return fmt.Sprintf("set<%s>", t.Elem)
	case Map:
		return fmt.Sprintf("map<%s, %s>", t.Key, t.Value)
	case Tuple:
		s := "tuple<"
		for i, e := range t.Elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ">"
	case Frozen:
		return fmt.Sprintf("frozen<%s>", t.Elem)
	case UDT:
		if t.UDTKeyspace != "" {
			return t.UDTKeyspace + "." + t.UDTName
		}
		return t.UDTName
	default:
		return t.Kind.String()
	}
}

// Equal compares two types structurally, resolving UDT references by name
// only (not by full field-for-field expansion — the registry guarantees
// uniqueness of (keyspace,name) pairs).
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case List, Set, Frozen:
		return t.Elem.Equal(o.Elem)
	case Map:
		return t.Key.Equal(o.Key) && t.Value.Equal(o.Value)
	case Tuple:
		if len(t.Elems) != len(o.Elems) {
			return false
		}
		for i := range t.Elems {
			if !t.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case UDT:
		return t.UDTKeyspace == o.UDTKeyspace && t.UDTName == o.UDTName
	default:
		return true
	}
}
