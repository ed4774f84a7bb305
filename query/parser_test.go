package query

import "testing"

func mustParse(t *testing.T, sql string) *SelectStatement {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return stmt
}

func TestParseStar(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM ks.t WHERE id = 42")
	if len(stmt.Projections) != 1 || !stmt.Projections[0].Star {
		t.Fatalf("projections = %+v", stmt.Projections)
	}
	if stmt.Keyspace != "ks" || stmt.Table != "t" {
		t.Fatalf("keyspace/table = %q/%q", stmt.Keyspace, stmt.Table)
	}
	if len(stmt.Where) != 1 || stmt.Where[0].Kind != PredEq || stmt.Where[0].Column != "id" || stmt.Where[0].Value.Int != 42 {
		t.Fatalf("where = %+v", stmt.Where)
	}
}

func TestParseUnqualifiedTable(t *testing.T) {
	stmt := mustParse(t, "select id, name from t")
	if stmt.Keyspace != "" || stmt.Table != "t" {
		t.Fatalf("keyspace/table = %q/%q", stmt.Keyspace, stmt.Table)
	}
	if len(stmt.Projections) != 2 || stmt.Projections[0].Column != "id" || stmt.Projections[1].Column != "name" {
		t.Fatalf("projections = %+v", stmt.Projections)
	}
}

func TestParseAggregates(t *testing.T) {
	for _, tc := range []struct {
		sql    string
		agg    AggKind
		star   bool
		column string
	}{
		{"SELECT COUNT(*) FROM t", AggCount, true, ""},
		{"SELECT COUNT(id) FROM t", AggCount, false, "id"},
		{"SELECT MIN(ts) FROM t", AggMin, false, "ts"},
		{"SELECT MAX(ts) FROM t", AggMax, false, "ts"},
		{"SELECT SUM(value) FROM t", AggSum, false, "value"},
		{"SELECT AVG(value) FROM t", AggAvg, false, "value"},
	} {
		stmt := mustParse(t, tc.sql)
		if len(stmt.Projections) != 1 {
			t.Fatalf("%s: projections = %+v", tc.sql, stmt.Projections)
		}
		got := stmt.Projections[0]
		if got.Agg != tc.agg || got.Star != tc.star || got.Column != tc.column {
			t.Fatalf("%s: got %+v", tc.sql, got)
		}
	}
}

func TestParseWhereVariants(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM t WHERE a = 1 AND b IN (1, 2, 3) AND c BETWEEN 1 AND 10 AND d LIKE 'foo%' AND e IS NOT NULL AND f CONTAINS 'x' AND g CONTAINS KEY 'y' AND h[1] = 2")
	if len(stmt.Where) != 8 {
		t.Fatalf("got %d predicates, want 8: %+v", len(stmt.Where), stmt.Where)
	}
	kinds := []PredicateKind{PredEq, PredIn, PredBetween, PredLike, PredIsNull, PredContains, PredContainsKey, PredMapSubscript}
	for i, k := range kinds {
		if stmt.Where[i].Kind != k {
			t.Fatalf("predicate %d: kind = %v, want %v", i, stmt.Where[i].Kind, k)
		}
	}
	if !stmt.Where[4].IsNot {
		t.Fatalf("IS NOT NULL should set IsNot: %+v", stmt.Where[4])
	}
	if stmt.Where[7].Key.Int != 1 || stmt.Where[7].Value.Int != 2 {
		t.Fatalf("map subscript predicate = %+v", stmt.Where[7])
	}
}

func TestParseRangeOperators(t *testing.T) {
	for _, tc := range []struct {
		sql string
		op  CmpOp
	}{
		{"SELECT * FROM t WHERE a < 1", OpLt},
		{"SELECT * FROM t WHERE a <= 1", OpLe},
		{"SELECT * FROM t WHERE a > 1", OpGt},
		{"SELECT * FROM t WHERE a >= 1", OpGe},
		{"SELECT * FROM t WHERE a != 1", OpNe},
	} {
		stmt := mustParse(t, tc.sql)
		if stmt.Where[0].Kind != PredRange || stmt.Where[0].Op != tc.op {
			t.Fatalf("%s: got %+v", tc.sql, stmt.Where[0])
		}
	}
}

func TestParseOrderByLimitAllowFiltering(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM t ORDER BY ts DESC, id ASC LIMIT 10 ALLOW FILTERING")
	if len(stmt.OrderBy) != 2 || stmt.OrderBy[0].Column != "ts" || !stmt.OrderBy[0].Desc || stmt.OrderBy[1].Column != "id" || stmt.OrderBy[1].Desc {
		t.Fatalf("order by = %+v", stmt.OrderBy)
	}
	if !stmt.HasLimit || stmt.Limit != 10 {
		t.Fatalf("limit = %d, has=%v", stmt.Limit, stmt.HasLimit)
	}
	if !stmt.AllowFiltering {
		t.Fatal("expected AllowFiltering to be set")
	}
}

func TestParseUDTFieldPathProjection(t *testing.T) {
	stmt := mustParse(t, "SELECT person.address.city, id FROM people")
	if len(stmt.Projections) != 2 {
		t.Fatalf("projections = %+v", stmt.Projections)
	}
	got := stmt.Projections[0]
	if got.Column != "person" || len(got.Path) != 2 || got.Path[0] != "address" || got.Path[1] != "city" {
		t.Fatalf("field-path projection = %+v", got)
	}
	if stmt.Projections[1].Column != "id" || stmt.Projections[1].Path != nil {
		t.Fatalf("plain projection = %+v", stmt.Projections[1])
	}
}

func TestParseRejectsNonSelect(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO t (id) VALUES (1)",
		"UPDATE t SET a = 1 WHERE id = 1",
		"DELETE FROM t WHERE id = 1",
		"WITH x AS (SELECT * FROM t) SELECT * FROM x",
		"",
	} {
		if _, err := Parse(sql); err == nil {
			t.Fatalf("expected Parse(%q) to fail", sql)
		}
	}
}

func TestParseRejectsTrailingInput(t *testing.T) {
	if _, err := Parse("SELECT * FROM t; DROP TABLE t"); err == nil {
		t.Fatal("expected trailing input after the statement to be rejected")
	}
}

func TestParseRejectsNonCountStar(t *testing.T) {
	if _, err := Parse("SELECT SUM(*) FROM t"); err == nil {
		t.Fatal("expected SUM(*) to be rejected, only COUNT(*) is allowed")
	}
}

func TestParseLikeRequiresStringLiteral(t *testing.T) {
	if _, err := Parse("SELECT * FROM t WHERE a LIKE 5"); err == nil {
		t.Fatal("expected LIKE with a non-string literal to fail")
	}
}

func TestParseFloatAndBoolAndNullLiterals(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM t WHERE a = 3.5 AND b = true AND c = null")
	if stmt.Where[0].Value.Kind != LitFloat || stmt.Where[0].Value.Flt != 3.5 {
		t.Fatalf("float literal = %+v", stmt.Where[0].Value)
	}
	if stmt.Where[1].Value.Kind != LitBool || !stmt.Where[1].Value.Bool {
		t.Fatalf("bool literal = %+v", stmt.Where[1].Value)
	}
	if stmt.Where[2].Value.Kind != LitNull {
		t.Fatalf("null literal = %+v", stmt.Where[2].Value)
	}
}
