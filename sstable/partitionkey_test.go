package sstable

import (
	"testing"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/schema"
)

func TestPartitionKeyRoundTripSingleComponent(t *testing.T) {
	pk := []schema.PartitionKeyColumn{{Name: "id", Type: schema.Primitive(schema.Int), Position: 0}}
	values := []cqlvalue.Value{cqlvalue.NewInt(42)}

	raw, err := EncodePartitionKey(values, pk)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePartitionKey(raw, pk)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Int32 != 42 {
		t.Fatalf("got %+v", got)
	}
}

func TestPartitionKeyRoundTripComposite(t *testing.T) {
	pk := []schema.PartitionKeyColumn{
		{Name: "tenant", Type: schema.Primitive(schema.Text), Position: 0},
		{Name: "id", Type: schema.Primitive(schema.Bigint), Position: 1},
	}
	values := []cqlvalue.Value{cqlvalue.NewText("acme"), cqlvalue.NewBigint(9001)}

	raw, err := EncodePartitionKey(values, pk)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePartitionKey(raw, pk)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Text != "acme" || got[1].Int64 != 9001 {
		t.Fatalf("got %+v", got)
	}
}

func TestPartitionKeyWrongArity(t *testing.T) {
	pk := []schema.PartitionKeyColumn{{Name: "id", Type: schema.Primitive(schema.Int), Position: 0}}
	if _, err := EncodePartitionKey(nil, pk); err == nil {
		t.Fatal("expected an arity mismatch error")
	}
}
