package filterexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Parse compiles a predicate string. An empty or blank string yields a
// match-everything predicate.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return matchAll{}, nil
	}
	p := &parser{lex: newLexer(input)}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("filterexpr: unexpected %q at offset %d", tok.text, tok.pos)
	}
	return expr, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil

	case c == '\'':
		l.pos++
		var b strings.Builder
		for l.pos < len(l.input) {
			if l.input[l.pos] == '\'' {
				// doubled quote is an escaped quote
				if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
					b.WriteByte('\'')
					l.pos += 2
					continue
				}
				l.pos++
				return token{kind: tokString, text: b.String(), pos: start}, nil
			}
			b.WriteByte(l.input[l.pos])
			l.pos++
		}
		return token{}, fmt.Errorf("filterexpr: unterminated string literal at offset %d", start)

	case c == '-' || (c >= '0' && c <= '9'):
		l.pos++
		for l.pos < len(l.input) {
			c := l.input[l.pos]
			if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
				l.pos++
				continue
			}
			break
		}
		return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil

	case isIdentStart(rune(c)):
		l.pos++
		for l.pos < len(l.input) && isIdentRune(rune(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
	}
	return token{}, fmt.Errorf("filterexpr: unexpected character %q at offset %d", c, start)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	lex    *lexer
	peeked *token
	err    error
}

func (p *parser) peek() token {
	if p.peeked == nil {
		tok, err := p.lex.next()
		if err != nil {
			p.err = err
			tok = token{kind: tokEOF, pos: p.lex.pos}
		}
		p.peeked = &tok
	}
	return *p.peeked
}

func (p *parser) advance() token {
	tok := p.peek()
	p.peeked = nil
	return tok
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokIdent || tok.text != "or" {
			return left, p.err
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokIdent || tok.text != "and" {
			return left, p.err
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.kind == tokIdent && tok.text == "not" {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	if tok.kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, fmt.Errorf("filterexpr: expected ')' at offset %d", closing.pos)
		}
		return inner, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "ge": true, "lt": true, "le": true,
}

func (p *parser) parseComparison() (Expr, error) {
	ident := p.advance()
	if ident.kind != tokIdent {
		return nil, fmt.Errorf("filterexpr: expected column name at offset %d, got %q", ident.pos, ident.text)
	}
	op := p.advance()
	if op.kind != tokIdent || !comparisonOps[op.text] {
		return nil, fmt.Errorf("filterexpr: expected comparison operator at offset %d, got %q", op.pos, op.text)
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &comparison{column: ident.text, op: op.text, lit: lit}, nil
}

func (p *parser) parseLiteral() (literal, error) {
	tok := p.advance()
	switch tok.kind {
	case tokString:
		return literal{str: &tok.text}, nil

	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return literal{}, fmt.Errorf("filterexpr: bad number %q at offset %d", tok.text, tok.pos)
		}
		return literal{num: &f}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			v := true
			return literal{b: &v}, nil
		case "false":
			v := false
			return literal{b: &v}, nil
		case "datetime":
			s := p.advance()
			if s.kind != tokString {
				return literal{}, fmt.Errorf("filterexpr: datetime literal requires a quoted value at offset %d", tok.pos)
			}
			t, err := time.Parse(time.RFC3339Nano, s.text)
			if err != nil {
				return literal{}, fmt.Errorf("filterexpr: bad datetime %q: %v", s.text, err)
			}
			t = t.UTC()
			return literal{t: &t}, nil
		case "guid":
			s := p.advance()
			if s.kind != tokString {
				return literal{}, fmt.Errorf("filterexpr: guid literal requires a quoted value at offset %d", tok.pos)
			}
			id, err := uuid.Parse(s.text)
			if err != nil {
				return literal{}, fmt.Errorf("filterexpr: bad guid %q: %v", s.text, err)
			}
			return literal{guid: &id}, nil
		}
	}
	return literal{}, fmt.Errorf("filterexpr: expected literal at offset %d, got %q", tok.pos, tok.text)
}
