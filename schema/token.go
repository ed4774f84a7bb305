package schema

// tokenType enumerates the lexical tokens of the CQL subset this package
// parses: CREATE TABLE, CREATE TYPE, and their referenced type grammar.
type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal

	tokIdent  // unquoted or "quoted" identifier
	tokInt    // 12345
	tokString // 'string literal'

	tokComma     // ,
	tokLParen    // (
	tokRParen    // )
	tokLAngle    // <
	tokRAngle    // >
	tokDot       // .
	tokEquals    // =

	keywordBeg
	kwCreate
	kwTable
	kwType
	kwKeyspace
	kwIf
	kwNot
	kwExists
	kwPrimary
	kwKey
	kwWith
	kwClustering
	kwOrder
	kwBy
	kwAsc
	kwDesc
	kwStatic
	kwFrozen
	kwList
	kwSet
	kwMap
	kwTuple
	keywordEnd
)

var keywords = map[string]tokenType{
	"CREATE":     kwCreate,
	"TABLE":      kwTable,
	"TYPE":       kwType,
	"KEYSPACE":   kwKeyspace,
	"IF":         kwIf,
	"NOT":        kwNot,
	"EXISTS":     kwExists,
	"PRIMARY":    kwPrimary,
	"KEY":        kwKey,
	"WITH":       kwWith,
	"CLUSTERING": kwClustering,
	"ORDER":      kwOrder,
	"BY":         kwBy,
	"ASC":        kwAsc,
	"DESC":       kwDesc,
	"STATIC":     kwStatic,
	"FROZEN":     kwFrozen,
	"LIST":       kwList,
	"SET":        kwSet,
	"MAP":        kwMap,
	"TUPLE":      kwTuple,
}

// lookupKeyword case-folds per CQL's rule that unquoted identifiers are
// compared in lower case, and reports whether ident names a keyword.
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
	// Quoted is true when Literal came from a double-quoted identifier,
	// whose case CQL preserves verbatim instead of folding to lower case.
	Quoted bool
	Line   int
	Col    int
}
