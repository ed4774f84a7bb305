package schema

import (
	"encoding/hex"
	"testing"
)

func TestParseMarshallerPrimitive(t *testing.T) {
	typ, reversed, err := ParseMarshallerClassName("org.apache.cassandra.db.marshal.UTF8Type")
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Text || reversed {
		t.Fatalf("got %+v reversed=%v", typ, reversed)
	}
}

func TestParseMarshallerReversed(t *testing.T) {
	typ, reversed, err := ParseMarshallerClassName("org.apache.cassandra.db.marshal.ReversedType(org.apache.cassandra.db.marshal.TimestampType)")
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Timestamp || !reversed {
		t.Fatalf("got %+v reversed=%v", typ, reversed)
	}
}

func TestParseMarshallerList(t *testing.T) {
	typ, _, err := ParseMarshallerClassName("org.apache.cassandra.db.marshal.ListType(org.apache.cassandra.db.marshal.Int32Type)")
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != List || typ.Elem.Kind != Int {
		t.Fatalf("got %+v", typ)
	}
}

func TestParseMarshallerMap(t *testing.T) {
	typ, _, err := ParseMarshallerClassName(
		"org.apache.cassandra.db.marshal.MapType(org.apache.cassandra.db.marshal.UTF8Type,org.apache.cassandra.db.marshal.LongType)")
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Map || typ.Key.Kind != Text || typ.Value.Kind != Bigint {
		t.Fatalf("got %+v", typ)
	}
}

func TestParseMarshallerUserType(t *testing.T) {
	nameHex := hex.EncodeToString([]byte("address"))
	fieldHex := hex.EncodeToString([]byte("city"))
	class := "org.apache.cassandra.db.marshal.FrozenType(org.apache.cassandra.db.marshal.UserType(ks," +
		nameHex + "," + fieldHex + ":org.apache.cassandra.db.marshal.UTF8Type))"

	typ, _, err := ParseMarshallerClassName(class)
	if err != nil {
		t.Fatal(err)
	}
	if typ.Kind != Frozen || typ.Elem.Kind != UDT {
		t.Fatalf("got %+v", typ)
	}
	if typ.Elem.UDTKeyspace != "ks" || typ.Elem.UDTName != "address" {
		t.Fatalf("got %+v", typ.Elem)
	}
}

func TestUnifyDetectsMismatch(t *testing.T) {
	cqlType := Primitive(Int)
	headerType := Primitive(Text)
	if _, err := Unify(cqlType, headerType); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}

func TestUnifyAcceptsMatch(t *testing.T) {
	cqlType := NewList(Primitive(Text))
	headerType := NewList(Primitive(Text))
	got, err := Unify(cqlType, headerType)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != List {
		t.Fatalf("got %+v", got)
	}
}
