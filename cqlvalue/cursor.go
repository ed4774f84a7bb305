// Package cqlvalue implements the CqlValue recursive sum type and the
// per-type decode/encode rules of spec.md §4.D: every primitive, every
// collection (simple framing only; complex cell framing is unpacked by
// package bigformat before it reaches here), tuples, frozen wrappers,
// and nested user-defined types.
package cqlvalue

import (
	"github.com/cqlite/cqlite/cqlerr"
)

// Cursor is a bounds-checked read cursor over a byte slice, the shared
// primitive every Decode function advances as it consumes wire bytes.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// boundedCap turns an on-wire element count into a slice-preallocation
// size that can't exceed what the cursor's remaining bytes could
// possibly hold, given every element needs at least minBytes bytes.
// A corrupt or adversarial count field (e.g. 0x7FFFFFFF) would
// otherwise drive a multi-gigabyte allocation before the first
// length-prefixed read has a chance to fail on truncation.
func boundedCap(count int32, remaining, minBytes int) int {
	if count < 0 {
		return 0
	}
	n := int(count)
	if max := remaining / minBytes; n > max {
		n = max
	}
	return n
}

func (c *Cursor) Pos() int { return c.pos }

// Bytes returns the next n bytes and advances, or a Truncated error.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, cqlerr.New(cqlerr.Truncated, "cqlvalue", "need %d bytes, have %d", n, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) Byte() (byte, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U32BE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (c *Cursor) I32BE() (int32, error) {
	v, err := c.U32BE()
	return int32(v), err
}

func (c *Cursor) I64BE() (int64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return int64(v), nil
}

func (c *Cursor) U64BE() (uint64, error) {
	v, err := c.I64BE()
	return uint64(v), err
}

// Sub carves out a bounded sub-cursor over exactly n bytes, used to
// contain a nested UDT/frozen value within its declared length prefix.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	b, err := c.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewCursor(b), nil
}

// readLenPrefixed reads a length-prefixed field per §4.D's `(len: i32
// BE, bytes)` convention: -1 means null (returns ok=false), 0 means
// empty-but-present.
func readLenPrefixed(c *Cursor) (data []byte, ok bool, err error) {
	n, err := c.I32BE()
	if err != nil {
		return nil, false, err
	}
	if n == -1 {
		return nil, false, nil
	}
	if n < 0 {
		return nil, false, cqlerr.New(cqlerr.Corrupt, "cqlvalue", "negative length %d", n)
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func writeLenPrefixed(buf []byte, data []byte, present bool) []byte {
	if !present {
		return appendI32BE(buf, -1)
	}
	buf = appendI32BE(buf, int32(len(data)))
	return append(buf, data...)
}

func appendI32BE(buf []byte, v int32) []byte {
	u := uint32(v)
	return append(buf, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
