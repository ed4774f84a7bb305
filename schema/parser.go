package schema

import "fmt"

// ErrSyntax wraps a position-annotated parse failure.
type ErrSyntax struct {
	Line, Col int
	Msg       string
}

func (e *ErrSyntax) Error() string {
	return fmt.Sprintf("schema: syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// parser is a recursive-descent parser over the lexer's token stream,
// holding one token of lookahead.
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

// parseIdentifier consumes one (possibly quoted) identifier token; the
// lexer has already applied Cassandra's unquoted-lower-case folding rule,
// and keyspace qualification is parseQualifiedName's job.
func (p *parser) parseIdentifier() (string, error) {
	if p.cur.Type != tokIdent {
		return "", p.errorf("expected identifier, got %q", p.cur.Literal)
	}
	name := p.cur.Literal
	p.advance()
	return name, nil
}

// parseQualifiedName parses "[keyspace.]name", returning ("", name) when
// no keyspace prefix is present.
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

// ParseCreateTable parses one "CREATE TABLE [IF NOT EXISTS] ks.name (...)
// [WITH CLUSTERING ORDER BY (...)]" statement.
func ParseCreateTable(stmt string) (*Table, error) {
	p := newParser(stmt)
	return p.parseCreateTable()
}

func (p *parser) parseCreateTable() (*Table, error) {
	if _, err := p.expect(kwCreate); err != nil {
		return nil, err
	}
	if _, err := p.expect(kwTable); err != nil {
		return nil, err
	}
	if p.cur.Type == kwIf {
		p.advance()
		if _, err := p.expect(kwNot); err != nil {
			return nil, err
		}
		if _, err := p.expect(kwExists); err != nil {
			return nil, err
		}
	}

	keyspace, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	t := &Table{Keyspace: keyspace, Name: name}
	var inlinePK []string
	var standalonePK, standaloneClustering []string

	for {
		if p.cur.Type == kwPrimary {
			p.advance()
			if _, err := p.expect(kwKey); err != nil {
				return nil, err
			}
			if _, err := p.expect(tokLParen); err != nil {
				return nil, err
			}
			pk, ck, err := p.parsePrimaryKeyClause()
			if err != nil {
				return nil, err
			}
			standalonePK, standaloneClustering = pk, ck
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
		} else {
			colName, colType, kind, isInlinePK, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			if isInlinePK {
				inlinePK = append(inlinePK, colName)
			}
			t.Columns = append(t.Columns, Column{Name: colName, Type: colType, Kind: kind})
		}

		if p.cur.Type == tokComma {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	var clusteringOrder map[string]Order
	if p.cur.Type == kwWith {
		p.advance()
		if _, err := p.expect(kwClustering); err != nil {
			return nil, err
		}
		if _, err := p.expect(kwOrder); err != nil {
			return nil, err
		}
		if _, err := p.expect(kwBy); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		clusteringOrder, err = p.parseClusteringOrderClause()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	pkNames := standalonePK
	ckNames := standaloneClustering
	if len(pkNames) == 0 {
		pkNames = inlinePK
	}
	if len(pkNames) == 0 {
		return nil, p.errorf("table %s declares no PRIMARY KEY", t.FullName())
	}

	if err := t.bindKeyColumns(pkNames, ckNames, clusteringOrder); err != nil {
		return nil, err
	}

	return t, nil
}

// bindKeyColumns moves key columns out of Columns and into
// PartitionKey/ClusteringKey, in declaration order, applying any WITH
// CLUSTERING ORDER BY directions.
func (t *Table) bindKeyColumns(pkNames, ckNames []string, order map[string]Order) error {
	remaining := make([]Column, 0, len(t.Columns))
	byName := make(map[string]Column, len(t.Columns))
	for _, c := range t.Columns {
		byName[c.Name] = c
	}

	for i, n := range pkNames {
		c, ok := byName[n]
		if !ok {
			return fmt.Errorf("schema: PRIMARY KEY references undeclared column %q", n)
		}
		t.PartitionKey = append(t.PartitionKey, PartitionKeyColumn{Name: n, Type: c.Type, Position: i})
	}
	for i, n := range ckNames {
		c, ok := byName[n]
		if !ok {
			return fmt.Errorf("schema: PRIMARY KEY references undeclared column %q", n)
		}
		ord := order[n] // defaults to Asc
		t.ClusteringKey = append(t.ClusteringKey, ClusteringColumn{Name: n, Type: c.Type, Position: i, Order: ord})
	}

	keyNames := make(map[string]bool, len(pkNames)+len(ckNames))
	for _, n := range pkNames {
		keyNames[n] = true
	}
	for _, n := range ckNames {
		keyNames[n] = true
	}
	for _, c := range t.Columns {
		if !keyNames[c.Name] {
			remaining = append(remaining, c)
		}
	}
	t.Columns = remaining
	return nil
}

// parsePrimaryKeyClause parses "(pk1[, pk2...])[, ck1[, ck2...]]" inside a
// standalone PRIMARY KEY(...) clause. A leading parenthesized group names
// the (possibly composite) partition key; anything after it is the
// clustering key.
func (p *parser) parsePrimaryKeyClause() (pk, ck []string, err error) {
	if p.cur.Type == tokLParen {
		p.advance()
		for {
			name, err := p.parseIdentifier()
			if err != nil {
				return nil, nil, err
			}
			pk = append(pk, name)
			if p.cur.Type == tokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, nil, err
		}
	} else {
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, nil, err
		}
		pk = append(pk, name)
	}

	for p.cur.Type == tokComma {
		p.advance()
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, nil, err
		}
		ck = append(ck, name)
	}
	return pk, ck, nil
}

func (p *parser) parseClusteringOrderClause() (map[string]Order, error) {
	orders := make(map[string]Order)
	for {
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		ord := Asc
		switch p.cur.Type {
		case kwAsc:
			p.advance()
		case kwDesc:
			ord = Desc
			p.advance()
		}
		orders[name] = ord
		if p.cur.Type == tokComma {
			p.advance()
			continue
		}
		break
	}
	return orders, nil
}

// parseColumnDef parses "name type [STATIC] [PRIMARY KEY]".
func (p *parser) parseColumnDef() (name string, typ *Type, kind ColumnKind, isInlinePK bool, err error) {
	name, err = p.parseIdentifier()
	if err != nil {
		return "", nil, 0, false, err
	}
	typ, err = p.parseType()
	if err != nil {
		return "", nil, 0, false, err
	}
	kind = Regular
	if p.cur.Type == kwStatic {
		kind = Static
		p.advance()
	}
	if p.cur.Type == kwPrimary {
		p.advance()
		if _, err := p.expect(kwKey); err != nil {
			return "", nil, 0, false, err
		}
		isInlinePK = true
	}
	return name, typ, kind, isInlinePK, nil
}

// parseType parses a CQL type expression: a primitive keyword/identifier,
// or a parameterized list/set/map/tuple/frozen wrapping nested types.
func (p *parser) parseType() (*Type, error) {
	switch p.cur.Type {
	case kwFrozen:
		p.advance()
		if _, err := p.expect(tokLAngle); err != nil {
			return nil, err
		}
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return NewFrozen(inner), nil
	case kwList:
		p.advance()
		if _, err := p.expect(tokLAngle); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return NewList(elem), nil
	case kwSet:
		p.advance()
		if _, err := p.expect(tokLAngle); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return NewSet(elem), nil
	case kwMap:
		p.advance()
		if _, err := p.expect(tokLAngle); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return NewMap(key, val), nil
	case kwTuple:
		p.advance()
		if _, err := p.expect(tokLAngle); err != nil {
			return nil, err
		}
		var elems []*Type
		for {
			e, err := p.parseType()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.cur.Type == tokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
		return NewTuple(elems...), nil
	case tokIdent:
		name := p.cur.Literal
		p.advance()
		if k, ok := primitiveKindByName(name); ok {
			return Primitive(k), nil
		}
		// Keyspace-qualified or bare UDT reference.
		if p.cur.Type == tokDot {
			p.advance()
			udtName, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			return NewUDTRef(name, udtName), nil
		}
		return NewUDTRef("", name), nil
	default:
		return nil, p.errorf("expected a type, got %q", p.cur.Literal)
	}
}

func primitiveKindByName(name string) (Kind, bool) {
	switch name {
	case "boolean":
		return Boolean, true
	case "tinyint":
		return Tinyint, true
	case "smallint":
		return Smallint, true
	case "int":
		return Int, true
	case "bigint":
		return Bigint, true
	case "varint":
		return Varint, true
	case "float":
		return Float, true
	case "double":
		return Double, true
	case "decimal":
		return Decimal, true
	case "ascii":
		return Ascii, true
	case "text", "varchar":
		return Text, true
	case "blob":
		return Blob, true
	case "timestamp":
		return Timestamp, true
	case "date":
		return Date, true
	case "time":
		return Time, true
	case "uuid":
		return UUID, true
	case "timeuuid":
		return TimeUUID, true
	case "inet":
		return Inet, true
	case "duration":
		return Duration, true
	case "counter":
		return Counter, true
	default:
		return 0, false
	}
}

// ParseCreateType parses "CREATE TYPE [IF NOT EXISTS] ks.name (field type, ...)".
func ParseCreateType(stmt string) (*UDTDef, error) {
	p := newParser(stmt)
	return p.parseCreateType()
}

func (p *parser) parseCreateType() (*UDTDef, error) {
	if _, err := p.expect(kwCreate); err != nil {
		return nil, err
	}
	if _, err := p.expect(kwType); err != nil {
		return nil, err
	}
	if p.cur.Type == kwIf {
		p.advance()
		if _, err := p.expect(kwNot); err != nil {
			return nil, err
		}
		if _, err := p.expect(kwExists); err != nil {
			return nil, err
		}
	}

	keyspace, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	def := &UDTDef{Keyspace: keyspace, Name: name}
	for {
		fieldName, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		fieldType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		def.Fields = append(def.Fields, Field{Name: fieldName, Type: fieldType})
		if p.cur.Type == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	return def, nil
}
