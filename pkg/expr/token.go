package expr

// tokenType identifies a lexical token in a schema expression.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenInt           // integer literal, decimal or 0x hex
	tokenVersion       // dotted version literal, resolved at parse time
	tokenIdent         // field name, possibly the head of a dotted path
	tokenArg           // #ARG#, the template argument
	tokenLParen
	tokenRParen
	tokenDot
	tokenNot
	tokenMul
	tokenDiv
	tokenAdd
	tokenSub
	tokenLt
	tokenGt
	tokenLe
	tokenGe
	tokenEq
	tokenNe
	tokenBitAnd
	tokenBitOr
	tokenAnd
	tokenOr
)

type token struct {
	typ tokenType
	lit string
	pos int
}

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of expression"
	case tokenInt:
		return "integer"
	case tokenVersion:
		return "version literal"
	case tokenIdent:
		return "identifier"
	case tokenArg:
		return "#ARG#"
	case tokenLParen:
		return "("
	case tokenRParen:
		return ")"
	case tokenDot:
		return "."
	case tokenNot:
		return "!"
	case tokenMul:
		return "*"
	case tokenDiv:
		return "/"
	case tokenAdd:
		return "+"
	case tokenSub:
		return "-"
	case tokenLt:
		return "<"
	case tokenGt:
		return ">"
	case tokenLe:
		return "<="
	case tokenGe:
		return ">="
	case tokenEq:
		return "=="
	case tokenNe:
		return "!="
	case tokenBitAnd:
		return "&"
	case tokenBitOr:
		return "|"
	case tokenAnd:
		return "&&"
	case tokenOr:
		return "||"
	}
	return "unknown"
}
