package query

// tokenType enumerates the lexical tokens of the SELECT subset spec.md
// §4.I names: projections, WHERE predicates, ORDER BY, LIMIT, ALLOW
// FILTERING. Mirrors schema.tokenType's shape one package over.
type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal

	tokIdent  // unquoted or "quoted" identifier
	tokInt    // 12345 or -12345
	tokFloat  // 1.5
	tokString // 'string literal'

	tokComma  // ,
	tokLParen // (
	tokRParen // )
	tokLBrack // [
	tokRBrack // ]
	tokDot    // .
	tokStar   // *

	tokEq  // =
	tokNe  // != or <>
	tokLt  // <
	tokLe  // <=
	tokGt  // >
	tokGe  // >=

	keywordBeg
	kwSelect
	kwFrom
	kwWhere
	kwAnd
	kwIn
	kwBetween
	kwLike
	kwIs
	kwNot
	kwNull
	kwContains
	kwKey
	kwOrder
	kwBy
	kwAsc
	kwDesc
	kwLimit
	kwAllow
	kwFiltering
	kwCount
	kwMin
	kwMax
	kwSum
	kwAvg
	kwTrue
	kwFalse
	keywordEnd
)

var keywords = map[string]tokenType{
	"SELECT":     kwSelect,
	"FROM":       kwFrom,
	"WHERE":      kwWhere,
	"AND":        kwAnd,
	"IN":         kwIn,
	"BETWEEN":    kwBetween,
	"LIKE":       kwLike,
	"IS":         kwIs,
	"NOT":        kwNot,
	"NULL":       kwNull,
	"CONTAINS":   kwContains,
	"KEY":        kwKey,
	"ORDER":      kwOrder,
	"BY":         kwBy,
	"ASC":        kwAsc,
	"DESC":       kwDesc,
	"LIMIT":      kwLimit,
	"ALLOW":      kwAllow,
	"FILTERING":  kwFiltering,
	"COUNT":      kwCount,
	"MIN":        kwMin,
	"MAX":        kwMax,
	"SUM":        kwSum,
	"AVG":        kwAvg,
	"TRUE":       kwTrue,
	"FALSE":      kwFalse,
}

func lookupKeyword(ident string) (tokenType, bool) {
	t, ok := keywords[upperASCII(ident)]
	return t, ok
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

type token struct {
	Type    tokenType
	Literal string
	Quoted  bool
	Line    int
	Col     int
}
