package object

import (
	"github.com/ssargent/niflheim/pkg/schema"
)

// Value is one decoded field value: a scalar, a string, raw bytes, a
// bit-packed flag set, an array, a nested record, or a reference.
type Value interface {
	value()
}

// Int carries every integer basic and enum value. Unsigned 64-bit wire
// values round-trip through the bit pattern.
type Int struct {
	V int64
}

// Float carries 32- and 64-bit floating point values. A float32 survives
// the float64 round trip exactly.
type Float struct {
	V float64
}

// Str carries every string shape; the wire form is the field's concern.
type Str struct {
	V string
}

// Bytes carries undecoded raw data.
type Bytes struct {
	V []byte
}

// Flags is a decoded bit-packed field, slots aligned with the schema
// declaration order (packed LSB first).
type Flags struct {
	Type  *schema.BitField
	Slots []int64
}

// Array is a 1- or 2-dimensional sequence. Jagged second dimensions hold
// an *Array per outer element.
type Array struct {
	Elems []Value
}

// Ref is a reference to another record. During decode it holds only the
// raw index until resolution; Target stays nil for the null sentinel.
// Weak references are excluded from traversal but encode identically.
type Ref struct {
	Index  int32
	Target *Record
	Weak   bool
}

func (Int) value()     {}
func (Float) value()   {}
func (Str) value()     {}
func (Bytes) value()   {}
func (*Flags) value()  {}
func (*Array) value()  {}
func (*Ref) value()    {}
func (*Record) value() {}

// Get returns the named slot of a flag set.
func (f *Flags) Get(name string) (int64, bool) {
	for i, slot := range f.Type.Slots {
		if slot.Name == name {
			return f.Slots[i], true
		}
	}
	return 0, false
}

// Set assigns the named slot of a flag set.
func (f *Flags) Set(name string, v int64) bool {
	for i, slot := range f.Type.Slots {
		if slot.Name == name {
			f.Slots[i] = v
			return true
		}
	}
	return false
}

// Pack folds the slots into the stored integer, LSB first.
func (f *Flags) Pack() int64 {
	var v int64
	pos := uint(0)
	for i, slot := range f.Type.Slots {
		mask := int64(1)<<uint(slot.NumBits) - 1
		v |= (f.Slots[i] & mask) << pos
		pos += uint(slot.NumBits)
	}
	return v
}

// Unpack splits the stored integer into slots, LSB first.
func (f *Flags) Unpack(v int64) {
	pos := uint(0)
	for i, slot := range f.Type.Slots {
		mask := int64(1)<<uint(slot.NumBits) - 1
		f.Slots[i] = (v >> pos) & mask
		pos += uint(slot.NumBits)
	}
}

// AsInt coerces a value to an integer for expression evaluation. Floats
// truncate; references count as their resolved-ness so conditions can gate
// on "has X".
func AsInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return val.V, true
	case Float:
		return int64(val.V), true
	case *Ref:
		if val.Target != nil {
			return 1, true
		}
		return 0, true
	case *Flags:
		return val.Pack(), true
	}
	return 0, false
}

// Equal compares two values structurally. References compare by the
// topology of the record graph, not by pointer: two graphs are equal when
// a consistent bijection exists between their records.
func Equal(a, b Value) bool {
	return equalValue(a, b, make(map[*Record]*Record))
}

// EqualRecords compares two records field by field, including reference
// topology.
func EqualRecords(a, b *Record) bool {
	return equalRecord(a, b, make(map[*Record]*Record))
}

func equalValue(a, b Value, seen map[*Record]*Record) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av.V == bv.V
	case Float:
		bv, ok := b.(Float)
		return ok && av.V == bv.V
	case Str:
		bv, ok := b.(Str)
		return ok && av.V == bv.V
	case Bytes:
		bv, ok := b.(Bytes)
		if !ok || len(av.V) != len(bv.V) {
			return false
		}
		for i := range av.V {
			if av.V[i] != bv.V[i] {
				return false
			}
		}
		return true
	case *Flags:
		bv, ok := b.(*Flags)
		if !ok || len(av.Slots) != len(bv.Slots) {
			return false
		}
		for i := range av.Slots {
			if av.Slots[i] != bv.Slots[i] {
				return false
			}
		}
		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !equalValue(av.Elems[i], bv.Elems[i], seen) {
				return false
			}
		}
		return true
	case *Ref:
		bv, ok := b.(*Ref)
		if !ok || av.Weak != bv.Weak {
			return false
		}
		if av.Target == nil || bv.Target == nil {
			return av.Target == bv.Target
		}
		return equalRecord(av.Target, bv.Target, seen)
	case *Record:
		bv, ok := b.(*Record)
		return ok && equalRecord(av, bv, seen)
	}
	return false
}

func equalRecord(a, b *Record, seen map[*Record]*Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	if prior, ok := seen[a]; ok {
		return prior == b
	}
	if a.rt.Name != b.rt.Name || len(a.vals) != len(b.vals) {
		return false
	}
	seen[a] = b
	for i := range a.vals {
		if !equalValue(a.vals[i], b.vals[i], seen) {
			return false
		}
	}
	return true
}
