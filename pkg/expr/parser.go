package expr

import (
	"fmt"
	"strconv"
)

// Parse compiles an expression string. Version literals are resolved
// through the supplied table immediately so they are parsed once per
// schema load, not once per field decode. A nil table rejects version
// literals.
func Parse(src string, versions VersionTable) (*Expr, error) {
	p := &parser{lex: lexer{src: src}, versions: versions}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at position %d in %q", p.cur.typ, p.cur.pos, src)
	}
	return e, nil
}

// MustParse is Parse for expressions known good at compile time, such as
// the built-in schema fragments. It panics on error.
func MustParse(src string, versions VersionTable) *Expr {
	e, err := Parse(src, versions)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	lex      lexer
	cur      token
	versions VersionTable
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) match(types ...tokenType) (token, bool, error) {
	for _, t := range types {
		if p.cur.typ == t {
			tok := p.cur
			if err := p.advance(); err != nil {
				return token{}, false, err
			}
			return tok, true, nil
		}
	}
	return token{}, false, nil
}

func (p *parser) parseOr() (*Expr, error) {
	return p.parseBinary(p.parseAnd, tokenOr)
}

func (p *parser) parseAnd() (*Expr, error) {
	return p.parseBinary(p.parseBitOr, tokenAnd)
}

func (p *parser) parseBitOr() (*Expr, error) {
	return p.parseBinary(p.parseBitAnd, tokenBitOr)
}

func (p *parser) parseBitAnd() (*Expr, error) {
	return p.parseBinary(p.parseEquality, tokenBitAnd)
}

func (p *parser) parseEquality() (*Expr, error) {
	return p.parseBinary(p.parseComparison, tokenEq, tokenNe)
}

func (p *parser) parseComparison() (*Expr, error) {
	return p.parseBinary(p.parseTerm, tokenLt, tokenGt, tokenLe, tokenGe)
}

func (p *parser) parseTerm() (*Expr, error) {
	return p.parseBinary(p.parseFactor, tokenAdd, tokenSub)
}

func (p *parser) parseFactor() (*Expr, error) {
	return p.parseBinary(p.parseUnary, tokenMul, tokenDiv)
}

func (p *parser) parseBinary(next func() (*Expr, error), ops ...tokenType) (*Expr, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok, err := p.match(ops...)
		if err != nil {
			return nil, err
		}
		if !ok {
			return lhs, nil
		}
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = &Expr{kind: kindBinary, op: op.typ, lhs: lhs, rhs: rhs}
	}
}

func (p *parser) parseUnary() (*Expr, error) {
	op, ok, err := p.match(tokenNot, tokenSub)
	if err != nil {
		return nil, err
	}
	if ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{kind: kindUnary, op: op.typ, lhs: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	tok := p.cur
	switch tok.typ {
	case tokenInt:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(tok.lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", tok.lit, err)
		}
		return &Expr{kind: kindInt, val: v}, nil
	case tokenVersion:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.versions == nil {
			return nil, fmt.Errorf("version literal %q not allowed here", tok.lit)
		}
		v, ok := p.versions(tok.lit)
		if !ok {
			return nil, fmt.Errorf("unknown version literal %q", tok.lit)
		}
		return &Expr{kind: kindInt, val: v}, nil
	case tokenArg:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Expr{kind: kindArg}, nil
	case tokenIdent:
		path := []string{tok.lit}
		if err := p.advance(); err != nil {
			return nil, err
		}
		for p.cur.typ == tokenDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.typ != tokenIdent {
				return nil, fmt.Errorf("expected field name after '.' at position %d", p.cur.pos)
			}
			path = append(path, p.cur.lit)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &Expr{kind: kindField, path: path}, nil
	case tokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, ok, err := p.match(tokenRParen); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("missing ')' at position %d", p.cur.pos)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unexpected %s at position %d", tok.typ, tok.pos)
}
