package query

import "fmt"

// ErrSyntax wraps a position-annotated parse failure, mirroring
// schema.ErrSyntax.
type ErrSyntax struct {
	Line, Col int
	Msg       string
}

func (e *ErrSyntax) Error() string {
	return fmt.Sprintf("query: syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

type parser struct {
	l         *lexer
	cur, peek token
}

func newParser(input string) *parser {
	p := &parser{l: newLexer(input)}
	p.advance()
	p.advance()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.l.next()
}

func (p *parser) errorf(format string, args ...any) error {
	return &ErrSyntax{Line: p.cur.Line, Col: p.cur.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(t tokenType) (token, error) {
	if p.cur.Type != t {
		return token{}, p.errorf("unexpected %q", p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

func (p *parser) parseIdentifier() (string, error) {
	if p.cur.Type != tokIdent {
		return "", p.errorf("expected identifier, got %q", p.cur.Literal)
	}
	name := p.cur.Literal
	p.advance()
	return name, nil
}

// Parse parses one SELECT statement. Any other statement kind fails
// with a syntax error; callers translate that into Unsupported per
// spec.md §4.I ("Non-SELECT statements fail with Unsupported at parse
// time").
func Parse(sql string) (*SelectStatement, error) {
	p := newParser(sql)
	return p.parseSelect()
}

func (p *parser) parseSelect() (*SelectStatement, error) {
	if _, err := p.expect(kwSelect); err != nil {
		return nil, err
	}

	stmt := &SelectStatement{}
	projs, err := p.parseProjections()
	if err != nil {
		return nil, err
	}
	stmt.Projections = projs

	if _, err := p.expect(kwFrom); err != nil {
		return nil, err
	}
	ks, table, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	stmt.Keyspace, stmt.Table = ks, table

	if p.cur.Type == kwWhere {
		p.advance()
		preds, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = preds
	}

	if p.cur.Type == kwOrder {
		p.advance()
		if _, err := p.expect(kwBy); err != nil {
			return nil, err
		}
		terms, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = terms
	}

	if p.cur.Type == kwLimit {
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Limit = n
		stmt.HasLimit = true
	}

	if p.cur.Type == kwAllow {
		p.advance()
		if _, err := p.expect(kwFiltering); err != nil {
			return nil, err
		}
		stmt.AllowFiltering = true
	}

	if p.cur.Type != tokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.cur.Literal)
	}

	return stmt, nil
}

func (p *parser) parseQualifiedName() (keyspace, name string, err error) {
	first, err := p.parseIdentifier()
	if err != nil {
		return "", "", err
	}
	if p.cur.Type == tokDot {
		p.advance()
		second, err := p.parseIdentifier()
		if err != nil {
			return "", "", err
		}
		return first, second, nil
	}
	return "", first, nil
}

func (p *parser) parseProjections() ([]Projection, error) {
	if p.cur.Type == tokStar {
		p.advance()
		return []Projection{{Star: true}}, nil
	}

	var out []Projection
	for {
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		out = append(out, proj)
		if p.cur.Type != tokComma {
			break
		}
		p.advance()
	}
	return out, nil
}

var aggKeywords = map[tokenType]AggKind{
	kwCount: AggCount,
	kwMin:   AggMin,
	kwMax:   AggMax,
	kwSum:   AggSum,
	kwAvg:   AggAvg,
}

func (p *parser) parseProjection() (Projection, error) {
	if agg, ok := aggKeywords[p.cur.Type]; ok {
		p.advance()
		if _, err := p.expect(tokLParen); err != nil {
			return Projection{}, err
		}
		if p.cur.Type == tokStar {
			if agg != AggCount {
				return Projection{}, p.errorf("%s(*) is not supported, only COUNT(*)", p.cur.Literal)
			}
			p.advance()
			if _, err := p.expect(tokRParen); err != nil {
				return Projection{}, err
			}
			return Projection{Agg: agg, Star: true}, nil
		}
		col, err := p.parseIdentifier()
		if err != nil {
			return Projection{}, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return Projection{}, err
		}
		return Projection{Agg: agg, Column: col}, nil
	}

	col, err := p.parseIdentifier()
	if err != nil {
		return Projection{}, err
	}
	// UDT field access: col.field[.field...], descended per-field by
	// the executor.
	var path []string
	for p.cur.Type == tokDot {
		p.advance()
		field, err := p.parseIdentifier()
		if err != nil {
			return Projection{}, err
		}
		path = append(path, field)
	}
	return Projection{Column: col, Path: path}, nil
}

func (p *parser) parseWhere() ([]Predicate, error) {
	var preds []Predicate
	for {
		pred, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
		if p.cur.Type != kwAnd {
			break
		}
		p.advance()
	}
	return preds, nil
}

var cmpOps = map[tokenType]CmpOp{
	tokEq: OpEq, tokNe: OpNe, tokLt: OpLt, tokLe: OpLe, tokGt: OpGt, tokGe: OpGe,
}

func (p *parser) parsePredicate() (Predicate, error) {
	if p.cur.Type == kwContains {
		return Predicate{}, p.errorf("CONTAINS must follow a column name")
	}

	col, err := p.parseIdentifier()
	if err != nil {
		return Predicate{}, err
	}

	// Map subscript: col[key] = value
	if p.cur.Type == tokLBrack {
		p.advance()
		key, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		if _, err := p.expect(tokRBrack); err != nil {
			return Predicate{}, err
		}
		if _, err := p.expect(tokEq); err != nil {
			return Predicate{}, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: PredMapSubscript, Column: col, Key: key, Value: val}, nil
	}

	switch p.cur.Type {
	case kwIn:
		p.advance()
		if _, err := p.expect(tokLParen); err != nil {
			return Predicate{}, err
		}
		var vals []Literal
		for {
			v, err := p.parseLiteral()
			if err != nil {
				return Predicate{}, err
			}
			vals = append(vals, v)
			if p.cur.Type != tokComma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(tokRParen); err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: PredIn, Column: col, Values: vals}, nil

	case kwBetween:
		p.advance()
		low, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		if _, err := p.expect(kwAnd); err != nil {
			return Predicate{}, err
		}
		high, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: PredBetween, Column: col, Low: low, High: high}, nil

	case kwLike:
		p.advance()
		pat, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		if pat.Kind != LitString {
			return Predicate{}, p.errorf("LIKE requires a string literal")
		}
		return Predicate{Kind: PredLike, Column: col, Value: pat}, nil

	case kwIs:
		p.advance()
		not := false
		if p.cur.Type == kwNot {
			not = true
			p.advance()
		}
		if _, err := p.expect(kwNull); err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: PredIsNull, Column: col, IsNot: not}, nil

	case kwContains:
		p.advance()
		if p.cur.Type == kwKey {
			p.advance()
			v, err := p.parseLiteral()
			if err != nil {
				return Predicate{}, err
			}
			return Predicate{Kind: PredContainsKey, Column: col, Value: v}, nil
		}
		v, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Kind: PredContains, Column: col, Value: v}, nil

	default:
		op, ok := cmpOps[p.cur.Type]
		if !ok {
			return Predicate{}, p.errorf("unexpected %q in predicate", p.cur.Literal)
		}
		p.advance()
		v, err := p.parseLiteral()
		if err != nil {
			return Predicate{}, err
		}
		if op == OpEq {
			return Predicate{Kind: PredEq, Column: col, Value: v}, nil
		}
		return Predicate{Kind: PredRange, Column: col, Op: op, Value: v}, nil
	}
}

func (p *parser) parseLiteral() (Literal, error) {
	switch p.cur.Type {
	case tokInt:
		return p.parseLiteralInt()
	case tokFloat:
		lit := p.cur.Literal
		p.advance()
		var f float64
		if _, err := fmt.Sscanf(lit, "%g", &f); err != nil {
			return Literal{}, p.errorf("invalid float literal %q", lit)
		}
		return Literal{Kind: LitFloat, Flt: f}, nil
	case tokString:
		lit := p.cur.Literal
		p.advance()
		return Literal{Kind: LitString, Str: lit}, nil
	case kwTrue:
		p.advance()
		return Literal{Kind: LitBool, Bool: true}, nil
	case kwFalse:
		p.advance()
		return Literal{Kind: LitBool, Bool: false}, nil
	case kwNull:
		p.advance()
		return Literal{Kind: LitNull}, nil
	default:
		return Literal{}, p.errorf("expected a literal, got %q", p.cur.Literal)
	}
}

func (p *parser) parseLiteralInt() (Literal, error) {
	lit := p.cur.Literal
	p.advance()
	var n int64
	if _, err := fmt.Sscanf(lit, "%d", &n); err != nil {
		return Literal{}, p.errorf("invalid integer literal %q", lit)
	}
	return Literal{Kind: LitInt, Int: n}, nil
}

func (p *parser) parseIntLiteral() (int, error) {
	lit, err := p.parseLiteralInt()
	if err != nil {
		return 0, err
	}
	return int(lit.Int), nil
}

func (p *parser) parseOrderBy() ([]OrderTerm, error) {
	var terms []OrderTerm
	for {
		col, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		desc := false
		switch p.cur.Type {
		case kwAsc:
			p.advance()
		case kwDesc:
			desc = true
			p.advance()
		}
		terms = append(terms, OrderTerm{Column: col, Desc: desc})
		if p.cur.Type != tokComma {
			break
		}
		p.advance()
	}
	return terms, nil
}
