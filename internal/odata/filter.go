package odata

import (
	"strconv"
	"strings"
)

// Filter is a compiled $filter expression: a parameterized SQL condition
// ready to hand to the store.
type Filter struct {
	SQL  string
	Args []interface{}
}

// ParseFilter compiles a $filter expression against the entity schema.
// Supported: eq ne gt ge lt le, and/or/not, parentheses, contains/
// startswith/endswith, tolower/toupper, string/number/bool/null literals.
func ParseFilter(input string, schema *EntitySchema) (*Filter, error) {
	toks, err := lexFilter(input)
	if err != nil {
		return nil, err
	}
	p := &filterParser{toks: toks, schema: schema}
	sql, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, queryErrorf("$filter: unexpected %q", p.peek().text)
	}
	return &Filter{SQL: sql, Args: p.args}, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lexFilter(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'':
			var sb strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\'' {
					// '' is an escaped quote inside the literal
					if i+1 < len(input) && input[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, queryErrorf("$filter: unterminated string literal")
			}
			toks = append(toks, token{tokString, sb.String()})
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j]})
			i = j
		default:
			return nil, queryErrorf("$filter: unexpected character %q", string(c))
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type filterParser struct {
	toks   []token
	pos    int
	args   []interface{}
	schema *EntitySchema
}

func (p *filterParser) peek() token {
	return p.toks[p.pos]
}

func (p *filterParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *filterParser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, queryErrorf("$filter: expected %s, got %q", what, t.text)
	}
	return t, nil
}

func (p *filterParser) parseOr() (string, error) {
	left, err := p.parseAnd()
	if err != nil {
		return "", err
	}
	for p.peek().kind == tokIdent && p.peek().text == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return "", err
		}
		left = "(" + left + " OR " + right + ")"
	}
	return left, nil
}

func (p *filterParser) parseAnd() (string, error) {
	left, err := p.parseUnary()
	if err != nil {
		return "", err
	}
	for p.peek().kind == tokIdent && p.peek().text == "and" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return "", err
		}
		left = "(" + left + " AND " + right + ")"
	}
	return left, nil
}

func (p *filterParser) parseUnary() (string, error) {
	if p.peek().kind == tokIdent && p.peek().text == "not" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
	return p.parsePrimary()
}

func (p *filterParser) parsePrimary() (string, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return "", err
		}
		return inner, nil
	case tokIdent:
		switch t.text {
		case "contains", "startswith", "endswith":
			return p.parseStringFunc(t.text)
		}
		return p.parseComparison()
	default:
		return "", queryErrorf("$filter: expected expression, got %q", t.text)
	}
}

// parseStringFunc handles contains/startswith/endswith(field,'value').
func (p *filterParser) parseStringFunc(fn string) (string, error) {
	p.next()
	if _, err := p.expect(tokLParen, "("); err != nil {
		return "", err
	}
	col, err := p.parseFieldExpr()
	if err != nil {
		return "", err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return "", err
	}
	lit, err := p.expect(tokString, "string literal")
	if err != nil {
		return "", err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return "", err
	}

	var pattern string
	switch fn {
	case "contains":
		pattern = "%" + lit.text + "%"
	case "startswith":
		pattern = lit.text + "%"
	case "endswith":
		pattern = "%" + lit.text
	}
	p.args = append(p.args, pattern)
	return col + " LIKE ?", nil
}

func (p *filterParser) parseComparison() (string, error) {
	col, err := p.parseFieldExpr()
	if err != nil {
		return "", err
	}

	op, err := p.expect(tokIdent, "comparison operator")
	if err != nil {
		return "", err
	}
	var sqlOp string
	switch op.text {
	case "eq":
		sqlOp = "="
	case "ne":
		sqlOp = "<>"
	case "gt":
		sqlOp = ">"
	case "ge":
		sqlOp = ">="
	case "lt":
		sqlOp = "<"
	case "le":
		sqlOp = "<="
	default:
		return "", queryErrorf("$filter: unknown operator %q", op.text)
	}

	lit := p.next()
	switch lit.kind {
	case tokString:
		p.args = append(p.args, lit.text)
		return col + " " + sqlOp + " ?", nil
	case tokNumber:
		if strings.Contains(lit.text, ".") {
			v, err := strconv.ParseFloat(lit.text, 64)
			if err != nil {
				return "", queryErrorf("$filter: bad number %q", lit.text)
			}
			p.args = append(p.args, v)
		} else {
			v, err := strconv.ParseInt(lit.text, 10, 64)
			if err != nil {
				return "", queryErrorf("$filter: bad number %q", lit.text)
			}
			p.args = append(p.args, v)
		}
		return col + " " + sqlOp + " ?", nil
	case tokIdent:
		switch lit.text {
		case "true", "false":
			p.args = append(p.args, lit.text == "true")
			return col + " " + sqlOp + " ?", nil
		case "null":
			switch sqlOp {
			case "=":
				return col + " IS NULL", nil
			case "<>":
				return col + " IS NOT NULL", nil
			}
			return "", queryErrorf("$filter: null only supports eq/ne")
		}
	}
	return "", queryErrorf("$filter: expected literal, got %q", lit.text)
}

// parseFieldExpr resolves a field reference, optionally wrapped in
// tolower/toupper, to a column expression.
func (p *filterParser) parseFieldExpr() (string, error) {
	t, err := p.expect(tokIdent, "field")
	if err != nil {
		return "", err
	}
	switch t.text {
	case "tolower", "toupper":
		fn := "LOWER"
		if t.text == "toupper" {
			fn = "UPPER"
		}
		if _, err := p.expect(tokLParen, "("); err != nil {
			return "", err
		}
		inner, err := p.parseFieldExpr()
		if err != nil {
			return "", err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return "", err
		}
		return fn + "(" + inner + ")", nil
	}

	col, ok := p.schema.Column(t.text)
	if !ok {
		return "", queryErrorf("$filter: unknown field %q", t.text)
	}
	return col, nil
}
