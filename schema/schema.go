package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is raised when the CQL-sourced schema and the
// serialization-header-sourced schema disagree on a column's type.
var ErrSchemaMismatch = errors.New("schema: mismatch between CQL and serialization header")

// ErrRecursiveUDT is raised at registration time when a UDT directly or
// transitively references itself.
var ErrRecursiveUDT = errors.New("schema: recursive user-defined type")

// Order is a clustering column's sort direction.
type Order int

const (
	Asc Order = iota
	Desc
)

// Field is one member of a UDT, in declaration order.
type Field struct {
	Name string
	Type *Type
}

// UDTDef is a user-defined type, keyspace-scoped and field-ordered.
type UDTDef struct {
	Keyspace string
	Name     string
	Fields   []Field
}

func (u *UDTDef) FieldIndex(name string) int {
	for i, f := range u.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// PartitionKeyColumn is one component of the partition key.
type PartitionKeyColumn struct {
	Name     string
	Type     *Type
	Position int
}

// ClusteringColumn is one component of the clustering key.
type ClusteringColumn struct {
	Name     string
	Type     *Type
	Position int
	Order    Order
}

// ColumnKind classifies a regular/static column.
type ColumnKind int

const (
	Regular ColumnKind = iota
	Static
)

// Column is a non-key column.
type Column struct {
	Name string
	Type *Type
	Kind ColumnKind
}

// Table is the full description of one table, per spec.md §3.
type Table struct {
	Keyspace      string
	Name          string
	PartitionKey  []PartitionKeyColumn
	ClusteringKey []ClusteringColumn
	Columns       []Column // regular + static, in declared order

	registry *Registry
}

func (t *Table) FullName() string { return t.Keyspace + "." + t.Name }

// Registry returns the catalog this table was registered into, for
// resolving UDT columns encountered while decoding its rows.
func (t *Table) Registry() *Registry { return t.registry }

// ColumnByName finds a regular/static column.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// AllColumnNames returns the partition key, then the clustering key, then
// the regular/static columns, each group in its own declared order — the
// order SELECT * projects.
func (t *Table) AllColumnNames() []string {
	var names []string
	for _, c := range t.PartitionKey {
		names = append(names, c.Name)
	}
	for _, c := range t.ClusteringKey {
		names = append(names, c.Name)
	}
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// TypeOf resolves any column name (key or regular/static) to its type.
func (t *Table) TypeOf(name string) (*Type, bool) {
	for _, c := range t.PartitionKey {
		if c.Name == name {
			return c.Type, true
		}
	}
	for _, c := range t.ClusteringKey {
		if c.Name == name {
			return c.Type, true
		}
	}
	if c, ok := t.ColumnByName(name); ok {
		return c.Type, true
	}
	return nil, false
}

// Registry is the read-after-open catalog of UDTs and tables, unifying
// CQL-sourced and serialization-header-sourced schema (spec.md §4.C).
type Registry struct {
	udts   map[string]*UDTDef // "keyspace.name" -> def
	tables map[string]*Table  // "keyspace.table" -> table
}

func NewRegistry() *Registry {
	return &Registry{
		udts:   make(map[string]*UDTDef),
		tables: make(map[string]*Table),
	}
}

func udtKey(keyspace, name string) string { return keyspace + "." + name }

// RegisterUDT adds a UDT definition, rejecting direct or transitive
// self-reference.
func (r *Registry) RegisterUDT(def *UDTDef) error {
	key := udtKey(def.Keyspace, def.Name)
	r.udts[key] = def
	if r.isRecursive(def, map[string]bool{key: true}) {
		delete(r.udts, key)
		return fmt.Errorf("%w: %s", ErrRecursiveUDT, key)
	}
	return nil
}

func (r *Registry) isRecursive(def *UDTDef, visiting map[string]bool) bool {
	for _, f := range def.Fields {
		if r.typeRefersTo(f.Type, visiting) {
			return true
		}
	}
	return false
}

func (r *Registry) typeRefersTo(t *Type, visiting map[string]bool) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case List, Set, Frozen:
		return r.typeRefersTo(t.Elem, visiting)
	case Map:
		return r.typeRefersTo(t.Key, visiting) || r.typeRefersTo(t.Value, visiting)
	case Tuple:
		for _, e := range t.Elems {
			if r.typeRefersTo(e, visiting) {
				return true
			}
		}
		return false
	case UDT:
		key := udtKey(t.UDTKeyspace, t.UDTName)
		if visiting[key] {
			return true
		}
		other, ok := r.udts[key]
		if !ok {
			return false // forward reference, resolved later
		}
		visiting[key] = true
		defer delete(visiting, key)
		return r.isRecursive(other, visiting)
	default:
		return false
	}
}

// LookupUDT resolves a keyspace-qualified UDT name.
func (r *Registry) LookupUDT(keyspace, name string) (*UDTDef, bool) {
	d, ok := r.udts[udtKey(keyspace, name)]
	return d, ok
}

// ResolveForwardRefs verifies every UDT type reference (direct or nested)
// resolves within the catalog; called once a whole script has been parsed.
func (r *Registry) ResolveForwardRefs() error {
	for key, def := range r.udts {
		for _, f := range def.Fields {
			if err := r.checkResolved(f.Type); err != nil {
				return fmt.Errorf("schema: UDT %s field %s: %w", key, f.Name, err)
			}
		}
	}
	for _, t := range r.tables {
		for _, c := range t.Columns {
			if err := r.checkResolved(c.Type); err != nil {
				return fmt.Errorf("schema: table %s column %s: %w", t.FullName(), c.Name, err)
			}
		}
	}
	return nil
}

func (r *Registry) checkResolved(t *Type) error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case List, Set, Frozen:
		return r.checkResolved(t.Elem)
	case Map:
		if err := r.checkResolved(t.Key); err != nil {
			return err
		}
		return r.checkResolved(t.Value)
	case Tuple:
		for _, e := range t.Elems {
			if err := r.checkResolved(e); err != nil {
				return err
			}
		}
		return nil
	case UDT:
		if _, ok := r.LookupUDT(t.UDTKeyspace, t.UDTName); !ok {
			return fmt.Errorf("unresolved UDT reference %s.%s", t.UDTKeyspace, t.UDTName)
		}
		return nil
	default:
		return nil
	}
}

// RegisterTable adds a parsed table.
func (r *Registry) RegisterTable(t *Table) {
	t.registry = r
	r.tables[t.FullName()] = t
}

// Table looks up a previously registered table.
func (r *Registry) Table(keyspace, name string) (*Table, bool) {
	t, ok := r.tables[keyspace+"."+name]
	return t, ok
}
