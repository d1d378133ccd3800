// Package expr implements the small arithmetic/comparison expression
// language used by schema field conditions and array lengths. Expressions
// are parsed once at schema load and evaluated, without side effects,
// against a record instance or a stream context.
package expr

import (
	"fmt"
	"strings"
)

// Env supplies values to an evaluation: field lookups by dotted path and
// the template argument. Implementations live next to the record and
// context types; the evaluator only needs integers (booleans are nonzero).
type Env interface {
	// Field resolves a dotted field path to an integer value. The second
	// return is false when the path does not resolve.
	Field(path []string) (int64, bool)
	// Arg returns the value bound to #ARG#.
	Arg() (int64, bool)
}

// VersionTable resolves dotted version literals ("20.1.0.3") to their
// packed integer form at parse time. Each format supplies its own.
type VersionTable func(lit string) (int64, bool)

type exprKind int

const (
	kindInt exprKind = iota
	kindField
	kindArg
	kindUnary
	kindBinary
)

// Expr is one parsed expression node. Immutable after Parse.
type Expr struct {
	kind exprKind
	val  int64
	path []string
	op   tokenType
	lhs  *Expr
	rhs  *Expr
}

// Eval computes the expression against the environment. Evaluation is
// idempotent; array-length expressions are recomputed freely during
// partial decodes.
func (e *Expr) Eval(env Env) (int64, error) {
	switch e.kind {
	case kindInt:
		return e.val, nil
	case kindField:
		v, ok := env.Field(e.path)
		if !ok {
			return 0, fmt.Errorf("expression references unknown field %q", strings.Join(e.path, "."))
		}
		return v, nil
	case kindArg:
		v, ok := env.Arg()
		if !ok {
			return 0, fmt.Errorf("expression references #ARG# outside a template instantiation")
		}
		return v, nil
	case kindUnary:
		v, err := e.lhs.Eval(env)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case tokenNot:
			return b2i(v == 0), nil
		case tokenSub:
			return -v, nil
		}
	case kindBinary:
		return e.evalBinary(env)
	}
	return 0, fmt.Errorf("malformed expression node")
}

func (e *Expr) evalBinary(env Env) (int64, error) {
	l, err := e.lhs.Eval(env)
	if err != nil {
		return 0, err
	}
	// Logical operators short-circuit so a gated right-hand lookup is
	// never touched when the left side already decides.
	switch e.op {
	case tokenAnd:
		if l == 0 {
			return 0, nil
		}
		r, err := e.rhs.Eval(env)
		if err != nil {
			return 0, err
		}
		return b2i(r != 0), nil
	case tokenOr:
		if l != 0 {
			return 1, nil
		}
		r, err := e.rhs.Eval(env)
		if err != nil {
			return 0, err
		}
		return b2i(r != 0), nil
	}
	r, err := e.rhs.Eval(env)
	if err != nil {
		return 0, err
	}
	switch e.op {
	case tokenMul:
		return l * r, nil
	case tokenDiv:
		if r == 0 {
			return 0, fmt.Errorf("division by zero in expression")
		}
		return l / r, nil
	case tokenAdd:
		return l + r, nil
	case tokenSub:
		return l - r, nil
	case tokenLt:
		return b2i(l < r), nil
	case tokenGt:
		return b2i(l > r), nil
	case tokenLe:
		return b2i(l <= r), nil
	case tokenGe:
		return b2i(l >= r), nil
	case tokenEq:
		return b2i(l == r), nil
	case tokenNe:
		return b2i(l != r), nil
	case tokenBitAnd:
		return l & r, nil
	case tokenBitOr:
		return l | r, nil
	}
	return 0, fmt.Errorf("malformed binary operator %v", e.op)
}

// EvalBool evaluates the expression as a presence condition.
func (e *Expr) EvalBool(env Env) (bool, error) {
	v, err := e.Eval(env)
	return v != 0, err
}

// FieldPath returns the dotted path when the whole expression is a bare
// field reference. Jagged array lengths use this to index a sibling array
// per outer row instead of evaluating to a single scalar.
func (e *Expr) FieldPath() ([]string, bool) {
	if e.kind == kindField {
		return e.path, true
	}
	return nil, false
}

// String renders the expression back to source form, for diagnostics.
func (e *Expr) String() string {
	switch e.kind {
	case kindInt:
		return fmt.Sprintf("%d", e.val)
	case kindField:
		return strings.Join(e.path, ".")
	case kindArg:
		return "#ARG#"
	case kindUnary:
		return fmt.Sprintf("%s%s", e.op, e.lhs)
	case kindBinary:
		return fmt.Sprintf("(%s %s %s)", e.lhs, e.op, e.rhs)
	}
	return "?"
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
