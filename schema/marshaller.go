package schema

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseMarshallerClassName parses one of Cassandra's fully-qualified
// "org.apache.cassandra.db.marshal.*" type strings embedded in
// Statistics.db's serialization header, e.g.
//
//	org.apache.cassandra.db.marshal.Int32Type
//	org.apache.cassandra.db.marshal.ListType(org.apache.cassandra.db.marshal.UTF8Type)
//	org.apache.cassandra.db.marshal.ReversedType(org.apache.cassandra.db.marshal.TimestampType)
//	org.apache.cassandra.db.marshal.UserType(ks,74797065,6669656c64:org.apache.cassandra.db.marshal.UTF8Type)
//
// It reuses the same recursive-descent shape as ParseCreateTable, over a
// different token set (dotted class names, commas, parens, and hex-named
// UserType fields) rather than the CQL lexer/token pair.
func ParseMarshallerClassName(class string) (*Type, bool, error) {
	m := &marshallerParser{s: class}
	t, reversed, err := m.parseClass()
	if err != nil {
		return nil, false, err
	}
	m.skipSpace()
	if m.pos != len(m.s) {
		return nil, false, fmt.Errorf("schema: trailing input in marshaller class %q", class)
	}
	return t, reversed, nil
}

type marshallerParser struct {
	s   string
	pos int
}

func (m *marshallerParser) skipSpace() {
	for m.pos < len(m.s) && m.s[m.pos] == ' ' {
		m.pos++
	}
}

func (m *marshallerParser) peek() byte {
	if m.pos >= len(m.s) {
		return 0
	}
	return m.s[m.pos]
}

// parseClass parses one marshaller reference, returning whether it was
// wrapped in ReversedType (clustering-order reversal, §4.A Complement).
func (m *marshallerParser) parseClass() (*Type, bool, error) {
	m.skipSpace()
	name, err := m.readDottedName()
	if err != nil {
		return nil, false, err
	}
	short := lastSegment(name)

	if m.peek() != '(' {
		t, err := marshallerPrimitive(short)
		return t, false, err
	}
	m.pos++ // consume '('

	switch short {
	case "ReversedType":
		inner, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return inner, true, nil
	case "ListType":
		elem, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return NewList(elem), false, nil
	case "SetType":
		elem, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return NewSet(elem), false, nil
	case "MapType":
		key, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(','); err != nil {
			return nil, false, err
		}
		val, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return NewMap(key, val), false, nil
	case "TupleType":
		var elems []*Type
		for {
			e, _, err := m.parseClass()
			if err != nil {
				return nil, false, err
			}
			elems = append(elems, e)
			if m.peek() == ',' {
				m.pos++
				continue
			}
			break
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return NewTuple(elems...), false, nil
	case "FrozenType":
		inner, _, err := m.parseClass()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return NewFrozen(inner), false, nil
	case "UserType":
		t, err := m.parseUserTypeBody()
		if err != nil {
			return nil, false, err
		}
		if err := m.expectByte(')'); err != nil {
			return nil, false, err
		}
		return t, false, nil
	default:
		return nil, false, fmt.Errorf("schema: unsupported marshaller %q", name)
	}
}

// parseUserTypeBody parses "ks,74797065,field1hex:Type1,field2hex:Type2..."
// — Cassandra hex-encodes the UTF-8 type name and each field name.
func (m *marshallerParser) parseUserTypeBody() (*Type, error) {
	keyspace, err := m.readUntilAny(",)")
	if err != nil {
		return nil, err
	}
	if err := m.expectByte(','); err != nil {
		return nil, err
	}
	nameHex, err := m.readUntilAny(",)")
	if err != nil {
		return nil, err
	}
	nameBytes, err := hex.DecodeString(nameHex)
	if err != nil {
		return nil, fmt.Errorf("schema: UserType name %q: %w", nameHex, err)
	}

	// Field list isn't needed to build the reference type (the registry's
	// own CREATE TYPE definition is authoritative for fields); consume it.
	for m.peek() == ',' {
		m.pos++
		if _, err := m.readUntilAny(":"); err != nil {
			return nil, err
		}
		if err := m.expectByte(':'); err != nil {
			return nil, err
		}
		if _, _, err := m.parseClass(); err != nil {
			return nil, err
		}
	}

	return NewUDTRef(keyspace, string(nameBytes)), nil
}

func (m *marshallerParser) readUntilAny(stop string) (string, error) {
	start := m.pos
	for m.pos < len(m.s) && !strings.ContainsRune(stop, rune(m.s[m.pos])) {
		m.pos++
	}
	if m.pos == start {
		return "", fmt.Errorf("schema: expected token before %q in %q", stop, m.s)
	}
	return m.s[start:m.pos], nil
}

func (m *marshallerParser) readDottedName() (string, error) {
	start := m.pos
	for m.pos < len(m.s) {
		c := m.s[m.pos]
		if c == '(' || c == ')' || c == ',' {
			break
		}
		m.pos++
	}
	if m.pos == start {
		return "", fmt.Errorf("schema: expected class name at position %d in %q", start, m.s)
	}
	return m.s[start:m.pos], nil
}

func (m *marshallerParser) expectByte(b byte) error {
	if m.peek() != b {
		return fmt.Errorf("schema: expected %q at position %d in %q", b, m.pos, m.s)
	}
	m.pos++
	return nil
}

func lastSegment(dotted string) string {
	i := strings.LastIndexByte(dotted, '.')
	if i < 0 {
		return dotted
	}
	return dotted[i+1:]
}

func marshallerPrimitive(short string) (*Type, error) {
	switch short {
	case "BooleanType":
		return Primitive(Boolean), nil
	case "ByteType":
		return Primitive(Tinyint), nil
	case "ShortType":
		return Primitive(Smallint), nil
	case "Int32Type":
		return Primitive(Int), nil
	case "LongType":
		return Primitive(Bigint), nil
	case "IntegerType":
		return Primitive(Varint), nil
	case "FloatType":
		return Primitive(Float), nil
	case "DoubleType":
		return Primitive(Double), nil
	case "DecimalType":
		return Primitive(Decimal), nil
	case "AsciiType":
		return Primitive(Ascii), nil
	case "UTF8Type":
		return Primitive(Text), nil
	case "BytesType":
		return Primitive(Blob), nil
	case "TimestampType", "DateType":
		return Primitive(Timestamp), nil
	case "SimpleDateType":
		return Primitive(Date), nil
	case "TimeType":
		return Primitive(Time), nil
	case "UUIDType":
		return Primitive(UUID), nil
	case "TimeUUIDType":
		return Primitive(TimeUUID), nil
	case "InetAddressType":
		return Primitive(Inet), nil
	case "DurationType":
		return Primitive(Duration), nil
	case "CounterColumnType":
		return Primitive(Counter), nil
	case "EmptyType":
		return Primitive(Blob), nil
	default:
		return nil, fmt.Errorf("schema: unknown primitive marshaller %q", short)
	}
}

// Unify reconciles a CQL-sourced type with the type recovered from the
// serialization header's marshaller class name, returning ErrSchemaMismatch
// if they disagree in kind or structure.
func Unify(cqlType, headerType *Type) (*Type, error) {
	if cqlType.Equal(headerType) {
		return cqlType, nil
	}
	return nil, fmt.Errorf("%w: CQL %s vs header %s", ErrSchemaMismatch, cqlType, headerType)
}
