package vint

import (
	"bytes"
	"math"
	"testing"
)

func TestVIntRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 63, 64, 127, 128, 16383, 16384,
		1 << 20, 1 << 33, 1 << 48, math.MaxUint32,
		math.MaxInt64, math.MaxUint64,
	}

	for _, v := range values {
		var buf bytes.Buffer
		n, err := WriteVInt(&buf, v)
		if err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		if n != VIntLen(v) {
			t.Fatalf("VIntLen(%d)=%d, wrote %d", v, VIntLen(v), n)
		}

		got, consumed, err := ReadVInt(&buf)
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d got %d", v, got)
		}
		if consumed != n {
			t.Fatalf("consumed %d, wrote %d", consumed, n)
		}
	}
}

func TestVIntKnownVectors(t *testing.T) {
	cases := []struct {
		bytes []byte
		value uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x3F}, 63},
	}

	for _, c := range cases {
		got, n, err := ReadVInt(bytes.NewReader(c.bytes))
		if err != nil {
			t.Fatalf("decode %x: %v", c.bytes, err)
		}
		if got != c.value || n != len(c.bytes) {
			t.Fatalf("decode %x = (%d,%d), want (%d,%d)", c.bytes, got, n, c.value, len(c.bytes))
		}
	}
}

func TestVIntMaxWidth(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xFF)
	for i := 0; i < 8; i++ {
		buf.WriteByte(0xFF)
	}

	got, n, err := ReadVInt(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Fatalf("expected 9 bytes consumed, got %d", n)
	}
	if got != math.MaxUint64 {
		t.Fatalf("got %d, want MaxUint64", got)
	}
}

func TestVIntTruncated(t *testing.T) {
	// First byte claims 8 extra bytes (0xFF) but the buffer holds only one.
	_, _, err := ReadVInt(bytes.NewReader([]byte{0xFF, 0x01}))
	if err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestSVIntRoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, -64, 63, math.MinInt64, math.MaxInt64, -123456789, 123456789}

	for _, v := range values {
		var buf bytes.Buffer
		if _, err := WriteSVInt(&buf, v); err != nil {
			t.Fatal(err)
		}
		got, _, err := ReadSVInt(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("round trip %d got %d", v, got)
		}
	}
}

func TestZigZag(t *testing.T) {
	cases := map[int64]uint64{0: 0, -1: 1, 1: 2, -2: 3, 2: 4}
	for in, want := range cases {
		if got := ZigZagEncode(in); got != want {
			t.Fatalf("ZigZagEncode(%d) = %d, want %d", in, got, want)
		}
		if got := ZigZagDecode(want); got != in {
			t.Fatalf("ZigZagDecode(%d) = %d, want %d", want, got, in)
		}
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteI32BE(&buf, -42); err != nil {
		t.Fatal(err)
	}
	v, err := ReadI32BE(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if v != -42 {
		t.Fatalf("got %d", v)
	}

	buf.Reset()
	if err := WriteF64BE(&buf, 3.5); err != nil {
		t.Fatal(err)
	}
	f, err := ReadF64BE(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if f != 3.5 {
		t.Fatalf("got %v", f)
	}
}
