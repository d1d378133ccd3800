package stream

import (
	"encoding/binary"
)

// Context carries the stream-wide state a codec needs to decide field
// presence and numeric layout: the container version, user versions, the
// vendor/game tag, and the byte order.
type Context struct {
	Version      uint32           // container (or record-override) version
	UserVersion  uint32           // vendor user version
	UserVersion2 uint32           // second user version, where the format carries one
	Vendor       string           // game/vendor tag selected by the envelope
	Order        binary.ByteOrder // numeric byte order, little-endian unless the envelope says otherwise
}

// NewContext creates a context with the default little-endian byte order.
func NewContext(version uint32) *Context {
	return &Context{
		Version: version,
		Order:   binary.LittleEndian,
	}
}

// WithVersion returns a copy of the context with the version replaced.
// Containers that store a per-record version hand the copy down the decode
// chain; the original context is never mutated.
func (c *Context) WithVersion(v uint32) *Context {
	cp := *c
	cp.Version = v
	return &cp
}

// WarningKind classifies recoverable integrity issues.
type WarningKind int

const (
	DanglingReference WarningKind = iota // link index with no matching record, or mistyped target
	IntegrityMismatch                    // declared size/padding disagrees with the decoded bytes
)

func (k WarningKind) String() string {
	switch k {
	case DanglingReference:
		return "dangling reference"
	case IntegrityMismatch:
		return "integrity mismatch"
	}
	return "unknown"
}

// Warning is one recoverable integrity issue found during a read.
type Warning struct {
	Kind  WarningKind
	Block int    // record index, -1 if not applicable
	Field string // field path, empty if not applicable
	Msg   string
}

// Errors
var (
	ErrMalformedEnvelope  = &CodecError{"malformed envelope"}
	ErrUnsupportedVersion = &CodecError{"unsupported version"}
	ErrUnknownRecordType  = &CodecError{"unknown record type"}
	ErrTruncatedStream    = &CodecError{"truncated stream"}
	ErrMalformedLength    = &CodecError{"malformed length"}
	ErrLinkStackImbalance = &CodecError{"link stack imbalance"}
	ErrStrictIntegrity    = &CodecError{"integrity warning in strict mode"}
)

// CodecError represents a serialization engine error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}
