package query

// AggKind names a projection aggregate function.
type AggKind int

const (
	AggNone AggKind = iota
	AggCount
	AggMin
	AggMax
	AggSum
	AggAvg
)

// Projection is one output column of a SELECT list: either a plain
// column reference or an aggregate over one (COUNT(*) has Column ""
// and Star true).
type Projection struct {
	Agg    AggKind
	Column string
	Path   []string // UDT field path after Column, e.g. person.address.city
	Star   bool     // COUNT(*) or bare "*"
}

// CmpOp is a range-predicate comparison operator.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// Literal is a parsed SQL literal: exactly one of the typed fields is
// meaningful, selected by Kind. Binding against a schema.Type (and
// therefore conversion to a cqlvalue.Value) happens at plan time, not
// parse time — the parser has no schema to consult.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

type Literal struct {
	Kind LiteralKind
	Int  int64
	Flt  float64
	Str  string
	Bool bool
}

// PredicateKind discriminates the WHERE clause shapes spec.md §4.I
// names.
type PredicateKind int

const (
	PredEq PredicateKind = iota
	PredIn
	PredRange       // <,<=,>,>=, and != (OpNe)
	PredBetween
	PredLike
	PredIsNull
	PredContains
	PredContainsKey
	PredMapSubscript
)

// Predicate is one AND-ed term of the WHERE clause.
type Predicate struct {
	Kind PredicateKind

	Column string

	// PredEq, PredRange, PredLike, PredContains, PredContainsKey
	Value Literal
	Op    CmpOp // PredRange only

	// PredIn
	Values []Literal

	// PredBetween
	Low, High Literal

	// PredIsNull
	IsNot bool

	// PredMapSubscript: column[Key] = Value
	Key Literal
}

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Column string
	Desc   bool
}

// SelectStatement is the parsed form of one SELECT, per spec.md §4.I's
// accepted grammar: "SELECT <projection> FROM [ks.]table [WHERE
// <preds>] [ORDER BY col {ASC|DESC}[, ...]] [LIMIT n] [ALLOW
// FILTERING]".
type SelectStatement struct {
	Projections    []Projection
	Keyspace       string
	Table          string
	Where          []Predicate
	OrderBy        []OrderTerm
	Limit          int
	HasLimit       bool
	AllowFiltering bool
}
