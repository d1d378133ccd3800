package schema

import (
	"github.com/ssargent/niflheim/pkg/expr"
)

// BasicKind is the wire shape of a basic (leaf) type.
type BasicKind int

const (
	KindUint8 BasicKind = iota
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindFloat32
	KindFloat64
	KindRef         // owning reference, 4-byte signed index
	KindPtr         // weak reference, encoded identically to Ref
	KindZString     // null-terminated
	KindShortString // 1-byte length (including NUL), bytes, NUL
	KindSizedString // 4-byte length, bytes
	KindFixedString // exactly Size bytes, zero padded
	KindStringRef   // inline SizedString, or pool index past the pool cutover
	KindLineString  // bytes up to a newline
	KindUndecoded   // raw bytes to end of record
)

// Basic describes one named leaf type from a schema document.
type Basic struct {
	Name string
	Kind BasicKind
	Size int // byte size for KindFixedString, ignored otherwise
}

// EnumOption is one named value of an enumeration.
type EnumOption struct {
	Name  string
	Value int64
}

// Enum is an enumerated leaf type. Reads never validate the raw value
// against the options; unknown values survive a round trip untouched.
type Enum struct {
	Name    string
	Storage string // basic type name carrying the value on the wire
	Options []EnumOption
}

// OptionName returns the name for a value, or "" if the value is not a
// declared option.
func (e *Enum) OptionName(v int64) string {
	for _, opt := range e.Options {
		if opt.Value == v {
			return opt.Name
		}
	}
	return ""
}

// BitSlot is one packed member of a BitField, NumBits wide. Slots pack
// LSB-first in declaration order.
type BitSlot struct {
	Name    string
	NumBits int
	Default int64
}

// BitField is a bit-packed leaf type stored in one integer.
type BitField struct {
	Name    string
	Storage string
	Slots   []BitSlot
}

// Field is one declared field of a record type. Immutable after load.
type Field struct {
	Name     string
	Type     string // type name, or "#T#" for the template placeholder
	Template string // template argument type name, or "#T#"
	Arg      *expr.Expr
	Default  string
	Arr1     *expr.Expr // nil for scalars
	Arr2     *expr.Expr // nil unless jagged
	Cond     *expr.Expr // presence condition over sibling fields
	VerCond  *expr.Expr // presence condition over the stream context
	Ver1     uint32     // inclusive version range; 0 means unbounded
	Ver2     uint32
	UserVer  *uint32 // nil means any user version
	Abstract bool    // declared but never on the wire
	Doc      string
}

// RecordType is one named structured type: its own fields plus a single
// optional parent whose fields precede them.
type RecordType struct {
	Name     string
	Inherit  string
	Generic  bool // requires a template argument at instantiation
	Fields   []Field
	Versions map[string][]uint32 // vendor tag -> supported versions, diagnostics only

	flat   []Field
	parent *RecordType
}

// FlatFields returns the parent-flattened field list (parents first).
func (rt *RecordType) FlatFields() []Field {
	return rt.flat
}

// Parent returns the resolved parent type, nil at the root of a chain.
func (rt *RecordType) Parent() *RecordType {
	return rt.parent
}

// IsDescendantOf reports whether rt inherits from (or is) the named type.
func (rt *RecordType) IsDescendantOf(name string) bool {
	for t := rt; t != nil; t = t.parent {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Errors
var (
	ErrUnknownType        = &SchemaError{"unknown type"}
	ErrTemplateResolution = &SchemaError{"template resolution failed"}
	ErrDuplicateType      = &SchemaError{"duplicate type name"}
	ErrMalformedSchema    = &SchemaError{"malformed schema document"}
)

// SchemaError represents a schema loading or resolution error
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return e.Message
}
