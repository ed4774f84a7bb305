package schema

import "testing"

func TestParseCreateTableInlinePK(t *testing.T) {
	tbl, err := ParseCreateTable(`CREATE TABLE ks.users (id uuid PRIMARY KEY, name text)`)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Keyspace != "ks" || tbl.Name != "users" {
		t.Fatalf("got %s.%s", tbl.Keyspace, tbl.Name)
	}
	if len(tbl.PartitionKey) != 1 || tbl.PartitionKey[0].Name != "id" {
		t.Fatalf("partition key: %+v", tbl.PartitionKey)
	}
	if len(tbl.ClusteringKey) != 0 {
		t.Fatalf("expected no clustering key, got %+v", tbl.ClusteringKey)
	}
	if _, ok := tbl.ColumnByName("name"); !ok {
		t.Fatal("expected column name")
	}
	if _, ok := tbl.ColumnByName("id"); ok {
		t.Fatal("id should have been bound into PartitionKey, not left in Columns")
	}
}

func TestParseCreateTableCompositeKey(t *testing.T) {
	tbl, err := ParseCreateTable(`CREATE TABLE IF NOT EXISTS ks.events (
		tenant text,
		bucket int,
		ts timestamp,
		payload blob,
		PRIMARY KEY ((tenant, bucket), ts)
	) WITH CLUSTERING ORDER BY (ts DESC)`)
	if err != nil {
		t.Fatal(err)
	}

	if len(tbl.PartitionKey) != 2 {
		t.Fatalf("partition key: %+v", tbl.PartitionKey)
	}
	if tbl.PartitionKey[0].Name != "tenant" || tbl.PartitionKey[1].Name != "bucket" {
		t.Fatalf("partition key order: %+v", tbl.PartitionKey)
	}
	if len(tbl.ClusteringKey) != 1 || tbl.ClusteringKey[0].Name != "ts" {
		t.Fatalf("clustering key: %+v", tbl.ClusteringKey)
	}
	if tbl.ClusteringKey[0].Order != Desc {
		t.Fatalf("expected DESC clustering order, got %v", tbl.ClusteringKey[0].Order)
	}
	if _, ok := tbl.ColumnByName("payload"); !ok {
		t.Fatal("expected payload column to remain")
	}
}

func TestParseCreateTableCollectionsAndFrozen(t *testing.T) {
	tbl, err := ParseCreateTable(`CREATE TABLE ks.t (
		id uuid PRIMARY KEY,
		tags set<text>,
		scores map<text, int>,
		history frozen<list<int>>,
		coord tuple<double, double>
	)`)
	if err != nil {
		t.Fatal(err)
	}

	tagsCol, ok := tbl.ColumnByName("tags")
	if !ok || tagsCol.Type.Kind != Set || tagsCol.Type.Elem.Kind != Text {
		t.Fatalf("tags: %+v", tagsCol)
	}
	scoresCol, _ := tbl.ColumnByName("scores")
	if scoresCol.Type.Kind != Map || scoresCol.Type.Key.Kind != Text || scoresCol.Type.Value.Kind != Int {
		t.Fatalf("scores: %+v", scoresCol)
	}
	historyCol, _ := tbl.ColumnByName("history")
	if historyCol.Type.Kind != Frozen || historyCol.Type.Elem.Kind != List {
		t.Fatalf("history: %+v", historyCol)
	}
	coordCol, _ := tbl.ColumnByName("coord")
	if coordCol.Type.Kind != Tuple || len(coordCol.Type.Elems) != 2 {
		t.Fatalf("coord: %+v", coordCol)
	}
}

func TestParseCreateTableUDTReference(t *testing.T) {
	tbl, err := ParseCreateTable(`CREATE TABLE ks.accounts (id uuid PRIMARY KEY, addr frozen<ks.address>)`)
	if err != nil {
		t.Fatal(err)
	}
	addrCol, ok := tbl.ColumnByName("addr")
	if !ok || addrCol.Type.Kind != Frozen {
		t.Fatalf("addr: %+v", addrCol)
	}
	if addrCol.Type.Elem.Kind != UDT || addrCol.Type.Elem.UDTKeyspace != "ks" || addrCol.Type.Elem.UDTName != "address" {
		t.Fatalf("addr elem: %+v", addrCol.Type.Elem)
	}
}

func TestParseCreateTableMissingPrimaryKey(t *testing.T) {
	_, err := ParseCreateTable(`CREATE TABLE ks.bad (a int, b int)`)
	if err == nil {
		t.Fatal("expected error for missing PRIMARY KEY")
	}
}

func TestParseCreateType(t *testing.T) {
	def, err := ParseCreateType(`CREATE TYPE ks.address (street text, city text, zip int)`)
	if err != nil {
		t.Fatal(err)
	}
	if def.Keyspace != "ks" || def.Name != "address" {
		t.Fatalf("got %s.%s", def.Keyspace, def.Name)
	}
	if len(def.Fields) != 3 || def.Fields[0].Name != "street" {
		t.Fatalf("fields: %+v", def.Fields)
	}
	if def.FieldIndex("city") != 1 {
		t.Fatalf("city index: %d", def.FieldIndex("city"))
	}
}

func TestQuotedIdentifierPreservesCase(t *testing.T) {
	tbl, err := ParseCreateTable(`CREATE TABLE ks."MixedCase" ("ID" uuid PRIMARY KEY)`)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Name != "MixedCase" {
		t.Fatalf("got table name %q", tbl.Name)
	}
	if len(tbl.PartitionKey) != 1 || tbl.PartitionKey[0].Name != "ID" {
		t.Fatalf("partition key: %+v", tbl.PartitionKey)
	}
}
