package expr

import (
	"fmt"
	"strings"
)

// lexer scans one expression string into tokens. Dotted numeric literals
// like 20.1.0.3 are version literals; plain digits are integers; anything
// starting with a letter or underscore is an identifier.
type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{tokenLParen, "(", start}, nil
	case c == ')':
		l.pos++
		return token{tokenRParen, ")", start}, nil
	case c == '.':
		l.pos++
		return token{tokenDot, ".", start}, nil
	case c == '*':
		l.pos++
		return token{tokenMul, "*", start}, nil
	case c == '/':
		l.pos++
		return token{tokenDiv, "/", start}, nil
	case c == '+':
		l.pos++
		return token{tokenAdd, "+", start}, nil
	case c == '-':
		l.pos++
		return token{tokenSub, "-", start}, nil
	case c == '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenNe, "!=", start}, nil
		}
		l.pos++
		return token{tokenNot, "!", start}, nil
	case c == '<':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenLe, "<=", start}, nil
		}
		l.pos++
		return token{tokenLt, "<", start}, nil
	case c == '>':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenGe, ">=", start}, nil
		}
		l.pos++
		return token{tokenGt, ">", start}, nil
	case c == '=':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return token{tokenEq, "==", start}, nil
		}
		return token{}, fmt.Errorf("unexpected '=' at position %d (did you mean '=='?)", start)
	case c == '&':
		if l.peekAt(1) == '&' {
			l.pos += 2
			return token{tokenAnd, "&&", start}, nil
		}
		l.pos++
		return token{tokenBitAnd, "&", start}, nil
	case c == '|':
		if l.peekAt(1) == '|' {
			l.pos += 2
			return token{tokenOr, "||", start}, nil
		}
		l.pos++
		return token{tokenBitOr, "|", start}, nil
	case c == '#':
		if strings.HasPrefix(l.src[l.pos:], "#ARG#") {
			l.pos += len("#ARG#")
			return token{tokenArg, "#ARG#", start}, nil
		}
		return token{}, fmt.Errorf("unexpected '#' at position %d", start)
	case isDigit(c):
		return l.scanNumber(start)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{tokenIdent, l.src[start:l.pos], start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
}

// scanNumber reads an integer or a dotted version literal. A number
// followed by '.digit' keeps consuming dotted components; a lone trailing
// dot is left for the parser (field access on a numeric-looking name is
// not legal, so this only arises in malformed input).
func (l *lexer) scanNumber(start int) (token, error) {
	if l.src[l.pos] == '0' && l.peekAt(1) == 'x' || l.src[l.pos] == '0' && l.peekAt(1) == 'X' {
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return token{tokenInt, l.src[start:l.pos], start}, nil
	}
	dots := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) {
			l.pos++
			continue
		}
		if c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			dots++
			l.pos++
			continue
		}
		break
	}
	lit := l.src[start:l.pos]
	if dots > 0 {
		return token{tokenVersion, lit, start}, nil
	}
	return token{tokenInt, lit, start}, nil
}

func (l *lexer) peekAt(ahead int) byte {
	if l.pos+ahead < len(l.src) {
		return l.src[l.pos+ahead]
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
