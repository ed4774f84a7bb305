package render

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/query"
)

func TestScalarPrimitiveTypes(t *testing.T) {
	if got := Scalar(cqlvalue.NewInt(42)); got != int32(42) {
		t.Fatalf("int scalar = %v", got)
	}
	if got := Scalar(cqlvalue.NewText("hi")); got != "hi" {
		t.Fatalf("text scalar = %v", got)
	}
	if got := Scalar(cqlvalue.NewVarint(big.NewInt(9001))); got != "9001" {
		t.Fatalf("varint scalar = %v", got)
	}
	null := cqlvalue.Null(cqlvalue.NewInt(0).Type)
	if got := Scalar(null); got != nil {
		t.Fatalf("null scalar = %v, want nil", got)
	}
}

func TestScalarBlobBase64(t *testing.T) {
	got := Scalar(cqlvalue.NewBlob([]byte{0xde, 0xad, 0xbe, 0xef}))
	if got != "3q2+7w==" {
		t.Fatalf("blob scalar = %v", got)
	}
}

func TestJSONRendersRows(t *testing.T) {
	rs := &query.ResultSet{
		Columns: []string{"id", "name"},
		Rows: []query.Row{
			{Values: map[string]cqlvalue.Value{"id": cqlvalue.NewInt(1), "name": cqlvalue.NewText("a")}},
		},
	}
	var buf bytes.Buffer
	if err := JSON(&buf, rs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"id": 1`) || !strings.Contains(out, `"name": "a"`) {
		t.Fatalf("json output = %s", out)
	}
}

func TestCSVRendersHeaderAndRows(t *testing.T) {
	rs := &query.ResultSet{
		Columns: []string{"id", "name"},
		Rows: []query.Row{
			{Values: map[string]cqlvalue.Value{"id": cqlvalue.NewInt(1), "name": cqlvalue.NewText("a")}},
			{Values: map[string]cqlvalue.Value{"id": cqlvalue.NewInt(2), "name": cqlvalue.NewText("b")}},
		},
	}
	var buf bytes.Buffer
	if err := CSV(&buf, rs); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "id,name" {
		t.Fatalf("csv output = %q", lines)
	}
}

func TestTabularAligns(t *testing.T) {
	rs := &query.ResultSet{
		Columns: []string{"id"},
		Rows: []query.Row{
			{Values: map[string]cqlvalue.Value{"id": cqlvalue.NewInt(100)}},
		},
	}
	var buf bytes.Buffer
	Tabular(&buf, rs)
	if !strings.Contains(buf.String(), "100") {
		t.Fatalf("tabular output = %s", buf.String())
	}
}
