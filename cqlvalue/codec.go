package cqlvalue

import (
	"bytes"
	"math"
	"math/big"
	"net"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/vint"
)

// epochDay2031 is 2^31, the offset date adds to days-since-epoch per
// spec.md §4.D's "date" row.
const epochDay2031 = 1 << 31

// Decode reads one value of type t from c, per spec.md §4.D's wire
// table. c must be bounded to exactly this value's bytes: varint,
// decimal, ascii, text, blob, inet, and duration consume everything
// remaining in c; the other primitives have a fixed width.
func Decode(c *Cursor, t *schema.Type) (Value, error) {
	switch t.Kind {
	case schema.Boolean:
		b, err := c.Byte()
		if err != nil {
			return Value{}, err
		}
		return NewBoolean(b != 0), nil

	case schema.Tinyint:
		b, err := c.Byte()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Int8: int8(b)}, nil

	case schema.Smallint:
		b, err := c.Bytes(2)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Int16: int16(uint16(b[0])<<8 | uint16(b[1]))}, nil

	case schema.Int:
		v, err := c.I32BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Int32: v}, nil

	case schema.Bigint, schema.Counter:
		v, err := c.I64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Int64: v}, nil

	case schema.Varint:
		b, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Varint: bigIntFromTwosComplement(b)}, nil

	case schema.Float:
		v, err := c.U32BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Float32: math.Float32frombits(v)}, nil

	case schema.Double:
		v, err := c.U64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Float64: math.Float64frombits(v)}, nil

	case schema.Decimal:
		scale, err := c.I32BE()
		if err != nil {
			return Value{}, err
		}
		rest, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Decimal: Decimal{Unscaled: bigIntFromTwosComplement(rest), Scale: scale}}, nil

	case schema.Ascii:
		b, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		for _, ch := range b {
			if ch > 0x7F {
				return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "non-ASCII byte 0x%02x in ascii column", ch)
			}
		}
		return Value{Type: t, Text: string(b)}, nil

	case schema.Text:
		b, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(b) {
			return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "invalid UTF-8 in text column")
		}
		return Value{Type: t, Text: string(b)}, nil

	case schema.Blob:
		b, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Bytes: append([]byte(nil), b...)}, nil

	case schema.Timestamp:
		ms, err := c.I64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Time: time.UnixMilli(ms).UTC()}, nil

	case schema.Date:
		v, err := c.U32BE()
		if err != nil {
			return Value{}, err
		}
		days := int64(v) - epochDay2031
		return Value{Type: t, Time: time.Unix(days*86400, 0).UTC()}, nil

	case schema.Time:
		ns, err := c.I64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, Int64: ns}, nil

	case schema.UUID, schema.TimeUUID:
		b, err := c.Bytes(16)
		if err != nil {
			return Value{}, err
		}
		id, perr := uuid.FromBytes(b)
		if perr != nil {
			return Value{}, cqlerr.Wrap(cqlerr.Corrupt, "cqlvalue", perr, "invalid uuid bytes")
		}
		return Value{Type: t, UUID: id}, nil

	case schema.Inet:
		b, err := c.Bytes(c.Remaining())
		if err != nil {
			return Value{}, err
		}
		if len(b) != 4 && len(b) != 16 {
			return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "inet must be 4 or 16 bytes, got %d", len(b))
		}
		return Value{Type: t, IP: append(net.IP(nil), b...)}, nil

	case schema.Duration:
		return decodeDuration(c, t)

	case schema.List, schema.Set:
		return decodeList(c, t)

	case schema.Map:
		return decodeMap(c, t)

	case schema.Tuple:
		return decodeTuple(c, t)

	case schema.UDT:
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "UDT type requires a resolved field list; use DecodeUDT")

	case schema.Frozen:
		return Decode(c, t.Elem)

	default:
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "unknown type kind %v", t.Kind)
	}
}

// UDTLookup resolves a keyspace-qualified UDT reference to its field
// list, the shape schema.Registry.LookupUDT exposes.
type UDTLookup func(keyspace, name string) (*schema.UDTDef, bool)

// DecodeWithRegistry is Decode generalized to resolve UDT references
// (direct, frozen, or nested inside a collection/tuple) via lookup.
// Plain Decode returns an error on a bare UDT kind precisely
// because it has no way to do this resolution; callers that may
// encounter user-defined types — which is effectively every caller
// decoding a real table's cell values — use this entry point instead.
func DecodeWithRegistry(c *Cursor, t *schema.Type, lookup UDTLookup) (Value, error) {
	switch t.Kind {
	case schema.UDT:
		def, ok := lookup(t.UDTKeyspace, t.UDTName)
		if !ok {
			return Value{}, cqlerr.New(cqlerr.SchemaMismatch, "cqlvalue", "unresolved user-defined type %s", t)
		}
		return decodeUDTWithRegistry(c, def, lookup)
	case schema.Frozen:
		return DecodeWithRegistry(c, t.Elem, lookup)
	case schema.List, schema.Set:
		return decodeListWithRegistry(c, t, lookup)
	case schema.Map:
		return decodeMapWithRegistry(c, t, lookup)
	case schema.Tuple:
		return decodeTupleWithRegistry(c, t, lookup)
	default:
		return Decode(c, t)
	}
}

func decodeUDTWithRegistry(c *Cursor, def *schema.UDTDef, lookup UDTLookup) (Value, error) {
	fields := make(map[string]Value, len(def.Fields))
	t := schema.NewUDTRef(def.Keyspace, def.Name)
	for _, f := range def.Fields {
		if c.Remaining() == 0 {
			fields[f.Name] = Null(f.Type)
			continue
		}
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			fields[f.Name] = Null(f.Type)
			continue
		}
		v, err := DecodeWithRegistry(NewCursor(data), f.Type, lookup)
		if err != nil {
			return Value{}, err
		}
		fields[f.Name] = v
	}
	return Value{Type: t, Flds: fields}, nil
}

func decodeListWithRegistry(c *Cursor, t *schema.Type, lookup UDTLookup) (Value, error) {
	count, err := c.I32BE()
	if err != nil {
		return Value{}, err
	}
	if count < 0 {
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "negative collection count %d", count)
	}
	elems := make([]Value, 0, boundedCap(count, c.Remaining(), 4))
	for i := int32(0); i < count; i++ {
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			elems = append(elems, Null(t.Elem))
			continue
		}
		v, err := DecodeWithRegistry(NewCursor(data), t.Elem, lookup)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{Type: t, Elems: elems}, nil
}

func decodeMapWithRegistry(c *Cursor, t *schema.Type, lookup UDTLookup) (Value, error) {
	count, err := c.I32BE()
	if err != nil {
		return Value{}, err
	}
	if count < 0 {
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "negative map count %d", count)
	}
	pairs := make([]Pair, 0, boundedCap(count, c.Remaining(), 8))
	for i := int32(0); i < count; i++ {
		kdata, kpresent, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		vdata, vpresent, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		var key, val Value
		if kpresent {
			if key, err = DecodeWithRegistry(NewCursor(kdata), t.Key, lookup); err != nil {
				return Value{}, err
			}
		} else {
			key = Null(t.Key)
		}
		if vpresent {
			if val, err = DecodeWithRegistry(NewCursor(vdata), t.Value, lookup); err != nil {
				return Value{}, err
			}
		} else {
			val = Null(t.Value)
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}
	return Value{Type: t, Pairs: pairs}, nil
}

func decodeTupleWithRegistry(c *Cursor, t *schema.Type, lookup UDTLookup) (Value, error) {
	elems := make([]Value, len(t.Elems))
	for i, fieldType := range t.Elems {
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			elems[i] = Null(fieldType)
			continue
		}
		v, err := DecodeWithRegistry(NewCursor(data), fieldType, lookup)
		if err != nil {
			return Value{}, err
		}
		elems[i] = v
	}
	return Value{Type: t, Elems: elems}, nil
}

func bigIntFromTwosComplement(b []byte) *big.Int {
	v := new(big.Int)
	if len(b) == 0 {
		return v
	}
	v.SetBytes(b)
	if b[0]&0x80 != 0 {
		// Negative: v currently holds the unsigned magnitude of the
		// two's-complement bit pattern; subtract 2^(8*len(b)).
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(b))*8)
		v.Sub(v, full)
	}
	return v
}

func bigIntToTwosComplement(v *big.Int, minLen int) []byte {
	if v.Sign() == 0 {
		return make([]byte, max(1, minLen))
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return padTo(b, minLen)
	}
	abs := new(big.Int).Neg(v)
	nbits := abs.BitLen()
	// A power-of-two magnitude (e.g. 128 = 1000_0000) is exactly
	// representable in nbits of two's-complement; anything else needs
	// one extra bit for the sign.
	isPowerOfTwo := abs.Bit(nbits-1) == 1 && new(big.Int).Lsh(big.NewInt(1), uint(nbits-1)).Cmp(abs) == 0
	if !isPowerOfTwo {
		nbits++
	}
	nbytes := (nbits + 7) / 8
	if nbytes < minLen {
		nbytes = minLen
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(nbytes)*8)
	twos := new(big.Int).Add(full, v)
	b := twos.Bytes()
	return padTo(b, nbytes)
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func decodeDuration(c *Cursor, t *schema.Type) (Value, error) {
	b, err := c.Bytes(c.Remaining())
	if err != nil {
		return Value{}, err
	}
	r := bytes.NewReader(b)
	months, _, err := vint.ReadSVInt(r)
	if err != nil {
		return Value{}, cqlerr.Wrap(cqlerr.Corrupt, "cqlvalue", err, "duration months")
	}
	days, _, err := vint.ReadSVInt(r)
	if err != nil {
		return Value{}, cqlerr.Wrap(cqlerr.Corrupt, "cqlvalue", err, "duration days")
	}
	nanos, _, err := vint.ReadSVInt(r)
	if err != nil {
		return Value{}, cqlerr.Wrap(cqlerr.Corrupt, "cqlvalue", err, "duration nanoseconds")
	}
	return Value{Type: t, Duration: CqlDuration{Months: int32(months), Days: int32(days), Nanoseconds: nanos}}, nil
}

// decodeList/decodeMap/decodeTuple consume the "simple" wire form:
// `count: i32 BE` then count elements, each `(len: i32 BE, bytes)`;
// maps interleave key then value. Complex (non-frozen collection cell)
// framing with per-element timestamps/ttls is handled one layer up, in
// package bigformat, which strips that metadata before calling here.
func decodeList(c *Cursor, t *schema.Type) (Value, error) {
	count, err := c.I32BE()
	if err != nil {
		return Value{}, err
	}
	if count < 0 {
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "negative collection count %d", count)
	}
	elems := make([]Value, 0, boundedCap(count, c.Remaining(), 4))
	for i := int32(0); i < count; i++ {
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			elems = append(elems, Null(t.Elem))
			continue
		}
		sub := NewCursor(data)
		v, err := Decode(sub, t.Elem)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{Type: t, Elems: elems}, nil
}

func decodeMap(c *Cursor, t *schema.Type) (Value, error) {
	count, err := c.I32BE()
	if err != nil {
		return Value{}, err
	}
	if count < 0 {
		return Value{}, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "negative map count %d", count)
	}
	pairs := make([]Pair, 0, boundedCap(count, c.Remaining(), 8))
	for i := int32(0); i < count; i++ {
		kdata, kpresent, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		vdata, vpresent, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		var key, val Value
		if kpresent {
			if key, err = Decode(NewCursor(kdata), t.Key); err != nil {
				return Value{}, err
			}
		} else {
			key = Null(t.Key)
		}
		if vpresent {
			if val, err = Decode(NewCursor(vdata), t.Value); err != nil {
				return Value{}, err
			}
		} else {
			val = Null(t.Value)
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}
	return Value{Type: t, Pairs: pairs}, nil
}

func decodeTuple(c *Cursor, t *schema.Type) (Value, error) {
	elems := make([]Value, len(t.Elems))
	for i, fieldType := range t.Elems {
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			elems[i] = Null(fieldType)
			continue
		}
		v, err := Decode(NewCursor(data), fieldType)
		if err != nil {
			return Value{}, err
		}
		elems[i] = v
	}
	return Value{Type: t, Elems: elems}, nil
}

// DecodeUDT decodes fields in schema order; trailing fields may be
// omitted on disk (sparse encoding) and are implicitly null.
func DecodeUDT(c *Cursor, def *schema.UDTDef) (Value, error) {
	fields := make(map[string]Value, len(def.Fields))
	t := schema.NewUDTRef(def.Keyspace, def.Name)
	for _, f := range def.Fields {
		if c.Remaining() == 0 {
			fields[f.Name] = Null(f.Type)
			continue
		}
		data, present, err := readLenPrefixed(c)
		if err != nil {
			return Value{}, err
		}
		if !present {
			fields[f.Name] = Null(f.Type)
			continue
		}
		v, err := Decode(NewCursor(data), f.Type)
		if err != nil {
			return Value{}, err
		}
		fields[f.Name] = v
	}
	return Value{Type: t, Flds: fields}, nil
}

// Encode appends v's wire representation to buf, per the same table
// Decode implements. A UDT value is rejected with an error; use
// EncodeUDT for that (it needs the UDTDef for field order).
func Encode(buf []byte, v Value) ([]byte, error) {
	if v.Null {
		return buf, nil
	}
	switch v.Type.Kind {
	case schema.Boolean:
		var b byte
		if v.Bool {
			b = 1
		}
		return append(buf, b), nil
	case schema.Tinyint:
		return append(buf, byte(v.Int8)), nil
	case schema.Smallint:
		u := uint16(v.Int16)
		return append(buf, byte(u>>8), byte(u)), nil
	case schema.Int:
		return appendI32BE(buf, v.Int32), nil
	case schema.Bigint, schema.Counter:
		return appendI64BE(buf, v.Int64), nil
	case schema.Varint:
		return append(buf, bigIntToTwosComplement(v.Varint, 1)...), nil
	case schema.Float:
		return appendU32BE(buf, math.Float32bits(v.Float32)), nil
	case schema.Double:
		return appendU64BE(buf, math.Float64bits(v.Float64)), nil
	case schema.Decimal:
		buf = appendI32BE(buf, v.Decimal.Scale)
		return append(buf, bigIntToTwosComplement(v.Decimal.Unscaled, 1)...), nil
	case schema.Ascii, schema.Text:
		return append(buf, v.Text...), nil
	case schema.Blob:
		return append(buf, v.Bytes...), nil
	case schema.Timestamp:
		return appendI64BE(buf, v.Time.UnixMilli()), nil
	case schema.Date:
		days := v.Time.Unix() / 86400
		return appendU32BE(buf, uint32(days+epochDay2031)), nil
	case schema.Time:
		return appendI64BE(buf, v.Int64), nil
	case schema.UUID, schema.TimeUUID:
		b, _ := v.UUID.MarshalBinary()
		return append(buf, b...), nil
	case schema.Inet:
		return append(buf, v.IP...), nil
	case schema.Duration:
		return encodeDuration(buf, v.Duration), nil
	case schema.List, schema.Set:
		return encodeList(buf, v)
	case schema.Map:
		return encodeMap(buf, v)
	case schema.Tuple:
		return encodeTuple(buf, v)
	case schema.Frozen:
		return Encode(buf, Value{Type: v.Type.Elem, Elems: v.Elems, Pairs: v.Pairs, Flds: v.Flds,
			Bool: v.Bool, Int8: v.Int8, Int16: v.Int16, Int32: v.Int32, Int64: v.Int64, Varint: v.Varint,
			Float32: v.Float32, Float64: v.Float64, Decimal: v.Decimal, Text: v.Text, Bytes: v.Bytes,
			Time: v.Time, Duration: v.Duration, UUID: v.UUID, IP: v.IP})
	default:
		return nil, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "cannot encode kind %v directly; use EncodeUDT for udt", v.Type.Kind)
	}
}

func appendI64BE(buf []byte, v int64) []byte { return appendU64BE(buf, uint64(v)) }

func appendU32BE(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64BE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func encodeDuration(buf []byte, d CqlDuration) []byte {
	var w bytes.Buffer
	vint.WriteSVInt(&w, int64(d.Months))
	vint.WriteSVInt(&w, int64(d.Days))
	vint.WriteSVInt(&w, d.Nanoseconds)
	return append(buf, w.Bytes()...)
}

func encodeList(buf []byte, v Value) ([]byte, error) {
	buf = appendI32BE(buf, int32(len(v.Elems)))
	for _, e := range v.Elems {
		if e.Null {
			buf = appendI32BE(buf, -1)
			continue
		}
		elemBytes, err := Encode(nil, e)
		if err != nil {
			return nil, err
		}
		buf = writeLenPrefixed(buf, elemBytes, true)
	}
	return buf, nil
}

func encodeMap(buf []byte, v Value) ([]byte, error) {
	buf = appendI32BE(buf, int32(len(v.Pairs)))
	for _, p := range v.Pairs {
		kb, err := Encode(nil, p.Key)
		if err != nil {
			return nil, err
		}
		buf = writeLenPrefixed(buf, kb, !p.Key.Null)
		vb, err := Encode(nil, p.Value)
		if err != nil {
			return nil, err
		}
		buf = writeLenPrefixed(buf, vb, !p.Value.Null)
	}
	return buf, nil
}

func encodeTuple(buf []byte, v Value) ([]byte, error) {
	for _, e := range v.Elems {
		if e.Null {
			buf = appendI32BE(buf, -1)
			continue
		}
		eb, err := Encode(nil, e)
		if err != nil {
			return nil, err
		}
		buf = writeLenPrefixed(buf, eb, true)
	}
	return buf, nil
}

// EncodeUDT emits fields in def's schema order, trimming trailing nulls
// to produce the sparse on-disk form.
func EncodeUDT(buf []byte, v Value, def *schema.UDTDef) ([]byte, error) {
	fieldBufs := make([][]byte, len(def.Fields))
	present := make([]bool, len(def.Fields))
	last := -1
	for i, f := range def.Fields {
		fv, ok := v.Flds[f.Name]
		if !ok || fv.Null {
			continue
		}
		b, err := Encode(nil, fv)
		if err != nil {
			return nil, err
		}
		fieldBufs[i] = b
		present[i] = true
		last = i
	}
	for i := 0; i <= last; i++ {
		buf = writeLenPrefixed(buf, fieldBufs[i], present[i])
	}
	return buf, nil
}
