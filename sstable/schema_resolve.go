package sstable

import (
	"fmt"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstfile"
)

// resolveSchema produces the schema.Table a generation's Data.db is
// decoded against. With a SchemaOverride supplied, every column name
// and clustering order comes from the CQL-sourced table; the
// serialization header only confirms the marshaller class names agree
// (schema.Unify), since Statistics.db carries positional types but not
// column names. Without an override, Open falls back to a synthetic
// table with positional column names (pk0, pk1, ..., ck0, ...) built
// straight from the serialization header — enough to decode rows, not
// to answer a SELECT by the CQL names a caller would actually use.
func resolveSchema(header sstfile.SerializationHeader, opts Options) (*schema.Table, error) {
	if opts.SchemaOverride != nil {
		return unifyWithOverride(header, opts.SchemaOverride, opts.LenientOrdering)
	}
	return synthesizeSchema(header)
}

func unifyWithOverride(header sstfile.SerializationHeader, table *schema.Table, lenient bool) (*schema.Table, error) {
	if len(header.PartitionKeyTypes) != len(table.PartitionKey) {
		return nil, cqlerr.New(cqlerr.SchemaMismatch, component, "serialization header has %d partition key components, schema has %d", len(header.PartitionKeyTypes), len(table.PartitionKey))
	}
	for i, class := range header.PartitionKeyTypes {
		if err := unifyOne(class, table.PartitionKey[i].Type); err != nil {
			return nil, fmt.Errorf("partition key column %s: %w", table.PartitionKey[i].Name, err)
		}
	}

	if len(header.ClusteringKeyTypes) != len(table.ClusteringKey) {
		return nil, cqlerr.New(cqlerr.SchemaMismatch, component, "serialization header has %d clustering key components, schema has %d", len(header.ClusteringKeyTypes), len(table.ClusteringKey))
	}
	for i, class := range header.ClusteringKeyTypes {
		_, reversed, err := schema.ParseMarshallerClassName(class)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing clustering column %s marshaller", table.ClusteringKey[i].Name)
		}
		wantDesc := table.ClusteringKey[i].Order == schema.Desc
		if reversed != wantDesc && !lenient {
			return nil, cqlerr.New(cqlerr.SchemaMismatch, component, "clustering column %s order disagrees with serialization header (reversed=%v, schema desc=%v)", table.ClusteringKey[i].Name, reversed, wantDesc)
		}
		if err := unifyOne(class, table.ClusteringKey[i].Type); err != nil {
			return nil, fmt.Errorf("clustering key column %s: %w", table.ClusteringKey[i].Name, err)
		}
	}

	for _, spec := range append(append([]sstfile.ColumnSpec{}, header.StaticColumns...), header.RegularColumns...) {
		col, ok := table.ColumnByName(spec.Name)
		if !ok {
			continue // a column the header carries but the override schema omits: projection will simply never surface it
		}
		if err := unifyOne(spec.ClassName, col.Type); err != nil {
			return nil, fmt.Errorf("column %s: %w", spec.Name, err)
		}
	}

	return table, nil
}

func unifyOne(class string, cqlType *schema.Type) error {
	headerType, _, err := schema.ParseMarshallerClassName(class)
	if err != nil {
		return cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing marshaller class %q", class)
	}
	if _, err := schema.Unify(cqlType, headerType); err != nil {
		return cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "unifying against marshaller class %q", class)
	}
	return nil
}

// synthesizeSchema builds a best-effort schema straight out of
// Statistics.db's serialization header when the caller supplied no
// CREATE TABLE. Static/regular columns already carry real names;
// partition and clustering key components only carry position and
// type, so they're named positionally.
func synthesizeSchema(header sstfile.SerializationHeader) (*schema.Table, error) {
	t := &schema.Table{}

	for i, class := range header.PartitionKeyTypes {
		typ, _, err := schema.ParseMarshallerClassName(class)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing partition key component %d marshaller", i)
		}
		t.PartitionKey = append(t.PartitionKey, schema.PartitionKeyColumn{
			Name:     fmt.Sprintf("pk%d", i),
			Type:     typ,
			Position: i,
		})
	}

	for i, class := range header.ClusteringKeyTypes {
		typ, reversed, err := schema.ParseMarshallerClassName(class)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing clustering key component %d marshaller", i)
		}
		order := schema.Asc
		if reversed {
			order = schema.Desc
		}
		t.ClusteringKey = append(t.ClusteringKey, schema.ClusteringColumn{
			Name:     fmt.Sprintf("ck%d", i),
			Type:     typ,
			Position: i,
			Order:    order,
		})
	}

	for _, spec := range header.StaticColumns {
		typ, _, err := schema.ParseMarshallerClassName(spec.ClassName)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing static column %s marshaller", spec.Name)
		}
		t.Columns = append(t.Columns, schema.Column{Name: spec.Name, Type: typ, Kind: schema.Static})
	}
	for _, spec := range header.RegularColumns {
		typ, _, err := schema.ParseMarshallerClassName(spec.ClassName)
		if err != nil {
			return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, component, err, "parsing regular column %s marshaller", spec.Name)
		}
		t.Columns = append(t.Columns, schema.Column{Name: spec.Name, Type: typ, Kind: schema.Regular})
	}

	return t, nil
}
