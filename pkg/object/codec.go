package object

import (
	"bytes"
	"fmt"

	"github.com/ssargent/niflheim/pkg/expr"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Sanity ceilings. Lengths past these reject the file as corrupt instead
// of attempting the allocation.
const (
	MaxArrayLen    = 2000000
	MaxZString     = 1000
	MaxSizedString = 10000
	MaxShortString = 254
	MaxUndecoded   = 16000000
)

// NoString is the on-wire pool index of an absent string.
const NoString = 0xFFFFFFFF

// Resolver maps a raw link index to its target record during FixLinks.
// template names the field's declared target capability; implementations
// return nil for sentinel or unresolvable indices, raising their own
// integrity warnings.
type Resolver func(template string, index int32, weak bool) (*Record, error)

// State threads everything one container's decode or encode needs through
// the recursive field walk. The container codec owns it; record codecs
// only read it, except for the link table and string pool.
type State struct {
	Reg  *schema.Registry
	Ctx  *stream.Context
	Warn *stream.Warnings

	// Links collects raw reference indices in encounter order during
	// decode and is drained FIFO by FixLinks.
	Links *stream.LinkTable

	// Pool backs string fields past PoolCutover. A nil pool keeps every
	// string inline regardless of version.
	Pool        *StringPool
	PoolCutover uint32

	// RefIndex maps a live record to its assigned on-wire index during
	// encode. The index is the final wire value; base offsets and
	// one-based conventions are the container's business.
	RefIndex func(*Record) (int32, bool)

	// NullRef is the wire value of an absent reference.
	NullRef int32

	// Block is the index of the record being processed, for warnings.
	Block int
}

// pooled reports whether string fields use the shared pool at the current
// context version.
func (s *State) pooled() bool {
	return s.Pool != nil && s.Ctx.Version >= s.PoolCutover
}

// fieldActive applies the presence filters in declaration order: version
// range, user version, record condition, context condition.
func (s *State) fieldActive(rec *Record, f *schema.Field) (bool, error) {
	if f.Ver1 != 0 && s.Ctx.Version < f.Ver1 {
		return false, nil
	}
	if f.Ver2 != 0 && s.Ctx.Version > f.Ver2 {
		return false, nil
	}
	if f.UserVer != nil && s.Ctx.UserVersion != *f.UserVer {
		return false, nil
	}
	if f.Cond != nil {
		ok, err := f.Cond.EvalBool(recordEnv{rec})
		if err != nil {
			return false, fmt.Errorf("cond %s: %w", f.Cond, err)
		}
		if !ok {
			return false, nil
		}
	}
	if f.VerCond != nil {
		ok, err := f.VerCond.EvalBool(ctxEnv{s.Ctx})
		if err != nil {
			return false, fmt.Errorf("vercond %s: %w", f.VerCond, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// walkFields visits rec's active on-wire fields in declaration order,
// parents first. Presence is evaluated lazily so a condition on a later
// field sees the values a decode pass has already filled in. When two
// declarations share a name only the first active one is visited.
func (s *State) walkFields(rec *Record, visit func(f *schema.Field) error) error {
	flat := rec.rt.FlatFields()
	seen := make(map[string]bool, len(flat))
	for i := range flat {
		f := &flat[i]
		active, err := s.fieldActive(rec, f)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", rec.rt.Name, f.Name, err)
		}
		if !active || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		if f.Abstract {
			continue
		}
		if err := visit(f); err != nil {
			return fmt.Errorf("%s.%s: %w", rec.rt.Name, f.Name, err)
		}
	}
	return nil
}

// DecodeRecord fills rec from the cursor, leaving reference fields as raw
// indices for a later FixLinks pass.
func (s *State) DecodeRecord(r *stream.Reader, rec *Record) error {
	return s.walkFields(rec, func(f *schema.Field) error {
		return s.decodeField(r, rec, f)
	})
}

// EncodeRecord writes rec to the cursor. Reference targets must have been
// assigned indices (RefIndex) before the call.
func (s *State) EncodeRecord(w *stream.Writer, rec *Record) error {
	return s.walkFields(rec, func(f *schema.Field) error {
		return s.encodeField(w, rec, f)
	})
}

// RecordSize computes the encoded byte size of rec at the current context
// without touching a cursor.
func (s *State) RecordSize(rec *Record) (int64, error) {
	var total int64
	err := s.walkFields(rec, func(f *schema.Field) error {
		n, err := s.sizeField(rec, f)
		total += n
		return err
	})
	return total, err
}

// arrayLen evaluates a length expression to a bounds-checked count.
func (s *State) arrayLen(rec *Record, e *expr.Expr) (int, error) {
	n, err := e.Eval(recordEnv{rec})
	if err != nil {
		return 0, fmt.Errorf("length %s: %w", e, err)
	}
	if n < 0 || n > MaxArrayLen {
		return 0, fmt.Errorf("array length %d out of range: %w", n, stream.ErrMalformedLength)
	}
	return int(n), nil
}

// rowLengths resolves the second dimension of a jagged array. When the
// expression is a bare reference to a sibling array field, each outer row
// gets its own inner length from that array; any other expression yields
// one shared length.
func (s *State) rowLengths(rec *Record, f *schema.Field) (func(row int) (int, error), error) {
	if path, isField := f.Arr2.FieldPath(); isField {
		if v, found := lookupValue(rec, path); found {
			if arr, isArr := v.(*Array); isArr {
				return func(row int) (int, error) {
					if row >= len(arr.Elems) {
						return 0, fmt.Errorf("row %d beyond inner length array: %w", row, stream.ErrMalformedLength)
					}
					n, _ := AsInt(arr.Elems[row])
					if n < 0 || n > MaxArrayLen {
						return 0, fmt.Errorf("array length %d out of range: %w", n, stream.ErrMalformedLength)
					}
					return int(n), nil
				}, nil
			}
		}
	}
	n, err := s.arrayLen(rec, f.Arr2)
	if err != nil {
		return nil, err
	}
	return func(int) (int, error) { return n, nil }, nil
}

func (s *State) decodeField(r *stream.Reader, rec *Record, f *schema.Field) error {
	if f.Arr1 == nil {
		v, err := s.decodeValue(r, rec, f)
		if err != nil {
			return err
		}
		return rec.Set(f.Name, v)
	}
	n1, err := s.arrayLen(rec, f.Arr1)
	if err != nil {
		return err
	}
	if f.Arr2 == nil {
		arr := &Array{Elems: make([]Value, 0, n1)}
		for i := 0; i < n1; i++ {
			v, err := s.decodeValue(r, rec, f)
			if err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Elems = append(arr.Elems, v)
		}
		return rec.Set(f.Name, arr)
	}
	rowLen, err := s.rowLengths(rec, f)
	if err != nil {
		return err
	}
	outer := &Array{Elems: make([]Value, 0, n1)}
	for i := 0; i < n1; i++ {
		n2, err := rowLen(i)
		if err != nil {
			return err
		}
		inner := &Array{Elems: make([]Value, 0, n2)}
		for j := 0; j < n2; j++ {
			v, err := s.decodeValue(r, rec, f)
			if err != nil {
				return fmt.Errorf("[%d][%d]: %w", i, j, err)
			}
			inner.Elems = append(inner.Elems, v)
		}
		outer.Elems = append(outer.Elems, inner)
	}
	return rec.Set(f.Name, outer)
}

func (s *State) encodeField(w *stream.Writer, rec *Record, f *schema.Field) error {
	v, ok := rec.Get(f.Name)
	if !ok {
		return fmt.Errorf("record %q has no field %q", rec.rt.Name, f.Name)
	}
	if f.Arr1 == nil {
		return s.encodeValue(w, rec, f, v)
	}
	arr, isArr := v.(*Array)
	if !isArr {
		return fmt.Errorf("field %q holds %T, want array", f.Name, v)
	}
	n1, err := s.arrayLen(rec, f.Arr1)
	if err != nil {
		return err
	}
	if len(arr.Elems) != n1 {
		return fmt.Errorf("array holds %d elements but length evaluates to %d: %w",
			len(arr.Elems), n1, stream.ErrMalformedLength)
	}
	if f.Arr2 == nil {
		for i, e := range arr.Elems {
			if err := s.encodeValue(w, rec, f, e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}
	rowLen, err := s.rowLengths(rec, f)
	if err != nil {
		return err
	}
	for i, rowv := range arr.Elems {
		inner, isInner := rowv.(*Array)
		if !isInner {
			return fmt.Errorf("[%d]: holds %T, want inner array", i, rowv)
		}
		n2, err := rowLen(i)
		if err != nil {
			return err
		}
		if len(inner.Elems) != n2 {
			return fmt.Errorf("[%d]: inner array holds %d elements but length evaluates to %d: %w",
				i, len(inner.Elems), n2, stream.ErrMalformedLength)
		}
		for j, e := range inner.Elems {
			if err := s.encodeValue(w, rec, f, e); err != nil {
				return fmt.Errorf("[%d][%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func (s *State) sizeField(rec *Record, f *schema.Field) (int64, error) {
	v, ok := rec.Get(f.Name)
	if !ok {
		return 0, fmt.Errorf("record %q has no field %q", rec.rt.Name, f.Name)
	}
	if f.Arr1 == nil {
		return s.sizeValue(rec, f, v)
	}
	arr, isArr := v.(*Array)
	if !isArr {
		return 0, fmt.Errorf("field %q holds %T, want array", f.Name, v)
	}
	var total int64
	for _, e := range arr.Elems {
		if f.Arr2 != nil {
			inner, isInner := e.(*Array)
			if !isInner {
				return 0, fmt.Errorf("field %q holds %T, want inner array", f.Name, e)
			}
			for _, ie := range inner.Elems {
				n, err := s.sizeValue(rec, f, ie)
				if err != nil {
					return 0, err
				}
				total += n
			}
			continue
		}
		n, err := s.sizeValue(rec, f, e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// decodeValue reads one element of f's resolved type.
func (s *State) decodeValue(r *stream.Reader, rec *Record, f *schema.Field) (Value, error) {
	typeName, template := rec.resolveType(f)

	if b, ok := s.Reg.Basic(typeName); ok {
		return s.decodeBasic(r, b)
	}
	if e, ok := s.Reg.Enum(typeName); ok {
		// Raw value kept as-is; unknown options survive a round trip.
		raw, err := s.readStorage(r, e.Name, e.Storage)
		if err != nil {
			return nil, err
		}
		return Int{V: raw}, nil
	}
	if bf, ok := s.Reg.BitField(typeName); ok {
		raw, err := s.readStorage(r, bf.Name, bf.Storage)
		if err != nil {
			return nil, err
		}
		flags := &Flags{Type: bf, Slots: make([]int64, len(bf.Slots))}
		flags.Unpack(raw)
		return flags, nil
	}

	rt, err := s.Reg.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	child, err := New(rt, s.Reg, template)
	if err != nil {
		return nil, err
	}
	if f.Arg != nil {
		argv, err := f.Arg.Eval(recordEnv{rec})
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", f.Arg, err)
		}
		child.SetArg(argv)
	}
	if err := s.DecodeRecord(r, child); err != nil {
		return nil, err
	}
	return child, nil
}

// encodeValue writes one element of f's resolved type.
func (s *State) encodeValue(w *stream.Writer, rec *Record, f *schema.Field, v Value) error {
	typeName, _ := rec.resolveType(f)

	if b, ok := s.Reg.Basic(typeName); ok {
		return s.encodeBasic(w, f, b, v)
	}
	if e, ok := s.Reg.Enum(typeName); ok {
		raw, _ := AsInt(v)
		return s.writeStorage(w, e.Name, e.Storage, raw)
	}
	if bf, ok := s.Reg.BitField(typeName); ok {
		var raw int64
		if flags, isFlags := v.(*Flags); isFlags {
			raw = flags.Pack()
		} else {
			raw, _ = AsInt(v)
		}
		return s.writeStorage(w, bf.Name, bf.Storage, raw)
	}

	child, isRec := v.(*Record)
	if !isRec {
		return fmt.Errorf("field %q holds %T, want record %q", f.Name, v, typeName)
	}
	if f.Arg != nil {
		argv, err := f.Arg.Eval(recordEnv{rec})
		if err != nil {
			return fmt.Errorf("arg %s: %w", f.Arg, err)
		}
		child.SetArg(argv)
	}
	return s.EncodeRecord(w, child)
}

// sizeValue computes one element's encoded size.
func (s *State) sizeValue(rec *Record, f *schema.Field, v Value) (int64, error) {
	typeName, _ := rec.resolveType(f)

	if b, ok := s.Reg.Basic(typeName); ok {
		return s.sizeBasic(f, b, v)
	}
	if e, ok := s.Reg.Enum(typeName); ok {
		return storageSize(s.Reg, e.Name, e.Storage)
	}
	if bf, ok := s.Reg.BitField(typeName); ok {
		return storageSize(s.Reg, bf.Name, bf.Storage)
	}

	child, isRec := v.(*Record)
	if !isRec {
		return 0, fmt.Errorf("field %q holds %T, want record %q", f.Name, v, typeName)
	}
	if f.Arg != nil {
		argv, err := f.Arg.Eval(recordEnv{rec})
		if err != nil {
			return 0, fmt.Errorf("arg %s: %w", f.Arg, err)
		}
		child.SetArg(argv)
	}
	return s.RecordSize(child)
}

func (s *State) decodeBasic(r *stream.Reader, b *schema.Basic) (Value, error) {
	switch b.Kind {
	case schema.KindUint8:
		v, err := r.ReadUint8()
		return Int{V: int64(v)}, err
	case schema.KindInt8:
		v, err := r.ReadInt8()
		return Int{V: int64(v)}, err
	case schema.KindUint16:
		v, err := r.ReadUint16()
		return Int{V: int64(v)}, err
	case schema.KindInt16:
		v, err := r.ReadInt16()
		return Int{V: int64(v)}, err
	case schema.KindUint32:
		v, err := r.ReadUint32()
		return Int{V: int64(v)}, err
	case schema.KindInt32:
		v, err := r.ReadInt32()
		return Int{V: int64(v)}, err
	case schema.KindUint64:
		v, err := r.ReadUint64()
		return Int{V: int64(v)}, err
	case schema.KindInt64:
		v, err := r.ReadInt64()
		return Int{V: v}, err
	case schema.KindFloat32:
		v, err := r.ReadFloat32()
		return Float{V: float64(v)}, err
	case schema.KindFloat64:
		v, err := r.ReadFloat64()
		return Float{V: v}, err
	case schema.KindRef, schema.KindPtr:
		idx, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		s.Links.Push(idx)
		return &Ref{Index: idx, Weak: b.Kind == schema.KindPtr}, nil
	case schema.KindZString:
		return s.decodeZString(r)
	case schema.KindShortString:
		return s.decodeShortString(r)
	case schema.KindSizedString:
		return s.decodeSizedString(r)
	case schema.KindFixedString:
		buf, err := r.ReadFull(b.Size)
		if err != nil {
			return nil, err
		}
		return Str{V: trimNul(buf)}, nil
	case schema.KindStringRef:
		if !s.pooled() {
			return s.decodeSizedString(r)
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if idx == NoString {
			return Str{}, nil
		}
		v, ok := s.Pool.Get(idx)
		if !ok {
			if werr := s.Warn.Add(stream.IntegrityMismatch, s.Block, "",
				"string index %d beyond pool of %d", idx, s.Pool.Len()); werr != nil {
				return nil, werr
			}
			return Str{}, nil
		}
		return Str{V: v}, nil
	case schema.KindLineString:
		line, err := r.ReadLine(MaxSizedString)
		if err != nil {
			return nil, err
		}
		return Str{V: string(line)}, nil
	case schema.KindUndecoded:
		buf, err := r.ReadRemaining(MaxUndecoded)
		if err != nil {
			return nil, err
		}
		return Bytes{V: buf}, nil
	}
	return nil, fmt.Errorf("basic %q has no wire shape: %w", b.Name, schema.ErrMalformedSchema)
}

func (s *State) encodeBasic(w *stream.Writer, f *schema.Field, b *schema.Basic, v Value) error {
	switch b.Kind {
	case schema.KindUint8:
		n, _ := AsInt(v)
		return w.WriteUint8(uint8(n))
	case schema.KindInt8:
		n, _ := AsInt(v)
		return w.WriteInt8(int8(n))
	case schema.KindUint16:
		n, _ := AsInt(v)
		return w.WriteUint16(uint16(n))
	case schema.KindInt16:
		n, _ := AsInt(v)
		return w.WriteInt16(int16(n))
	case schema.KindUint32:
		n, _ := AsInt(v)
		return w.WriteUint32(uint32(n))
	case schema.KindInt32:
		n, _ := AsInt(v)
		return w.WriteInt32(int32(n))
	case schema.KindUint64:
		n, _ := AsInt(v)
		return w.WriteUint64(uint64(n))
	case schema.KindInt64:
		n, _ := AsInt(v)
		return w.WriteInt64(n)
	case schema.KindFloat32:
		return w.WriteFloat32(float32(asFloat(v)))
	case schema.KindFloat64:
		return w.WriteFloat64(asFloat(v))
	case schema.KindRef, schema.KindPtr:
		return s.encodeRef(w, f, v)
	case schema.KindZString:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		if len(str) > MaxZString {
			return fmt.Errorf("string of %d bytes exceeds %d: %w", len(str), MaxZString, stream.ErrMalformedLength)
		}
		if _, err := w.Write([]byte(str)); err != nil {
			return err
		}
		return w.WriteUint8(0)
	case schema.KindShortString:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		if len(str) > MaxShortString {
			return fmt.Errorf("string of %d bytes exceeds %d: %w", len(str), MaxShortString, stream.ErrMalformedLength)
		}
		if err := w.WriteUint8(uint8(len(str) + 1)); err != nil {
			return err
		}
		if _, err := w.Write([]byte(str)); err != nil {
			return err
		}
		return w.WriteUint8(0)
	case schema.KindSizedString:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		return s.encodeSizedString(w, str)
	case schema.KindFixedString:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		if len(str) > b.Size {
			return fmt.Errorf("string of %d bytes exceeds fixed size %d: %w", len(str), b.Size, stream.ErrMalformedLength)
		}
		buf := make([]byte, b.Size)
		copy(buf, str)
		_, werr := w.Write(buf)
		return werr
	case schema.KindStringRef:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		if !s.pooled() {
			return s.encodeSizedString(w, str)
		}
		if str == "" {
			return w.WriteUint32(NoString)
		}
		return w.WriteUint32(s.Pool.Intern(str))
	case schema.KindLineString:
		str, err := stringValue(f, v)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(str)); err != nil {
			return err
		}
		return w.WriteUint8('\n')
	case schema.KindUndecoded:
		raw, isBytes := v.(Bytes)
		if !isBytes {
			return fmt.Errorf("field %q holds %T, want bytes", f.Name, v)
		}
		_, err := w.Write(raw.V)
		return err
	}
	return fmt.Errorf("basic %q has no wire shape: %w", b.Name, schema.ErrMalformedSchema)
}

func (s *State) sizeBasic(f *schema.Field, b *schema.Basic, v Value) (int64, error) {
	switch b.Kind {
	case schema.KindUint8, schema.KindInt8:
		return 1, nil
	case schema.KindUint16, schema.KindInt16:
		return 2, nil
	case schema.KindUint32, schema.KindInt32, schema.KindFloat32,
		schema.KindRef, schema.KindPtr:
		return 4, nil
	case schema.KindUint64, schema.KindInt64, schema.KindFloat64:
		return 8, nil
	case schema.KindZString:
		str, err := stringValue(f, v)
		return int64(len(str)) + 1, err
	case schema.KindShortString:
		str, err := stringValue(f, v)
		return int64(len(str)) + 2, err
	case schema.KindSizedString:
		str, err := stringValue(f, v)
		return int64(len(str)) + 4, err
	case schema.KindFixedString:
		return int64(b.Size), nil
	case schema.KindStringRef:
		if s.pooled() {
			return 4, nil
		}
		str, err := stringValue(f, v)
		return int64(len(str)) + 4, err
	case schema.KindLineString:
		str, err := stringValue(f, v)
		return int64(len(str)) + 1, err
	case schema.KindUndecoded:
		raw, isBytes := v.(Bytes)
		if !isBytes {
			return 0, fmt.Errorf("field %q holds %T, want bytes", f.Name, v)
		}
		return int64(len(raw.V)), nil
	}
	return 0, fmt.Errorf("basic %q has no wire shape: %w", b.Name, schema.ErrMalformedSchema)
}

// encodeRef writes the target's assigned index, or the null sentinel. A
// target missing from the index map degrades to the sentinel with a
// warning so one detached reference does not lose the whole file.
func (s *State) encodeRef(w *stream.Writer, f *schema.Field, v Value) error {
	ref, isRef := v.(*Ref)
	if !isRef {
		return fmt.Errorf("field %q holds %T, want reference", f.Name, v)
	}
	idx := s.NullRef
	if ref.Target != nil {
		i, ok := s.RefIndex(ref.Target)
		if !ok {
			if werr := s.Warn.Add(stream.DanglingReference, s.Block, f.Name,
				"reference target %q not in the block index map", ref.Target.Type().Name); werr != nil {
				return werr
			}
		} else {
			idx = i
		}
	}
	return w.WriteInt32(idx)
}

func (s *State) decodeZString(r *stream.Reader) (Value, error) {
	buf := make([]byte, 0, 32)
	for {
		c, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return Str{V: string(buf)}, nil
		}
		if len(buf) >= MaxZString {
			return nil, fmt.Errorf("unterminated string after %d bytes: %w", MaxZString, stream.ErrMalformedLength)
		}
		buf = append(buf, c)
	}
}

func (s *State) decodeShortString(r *stream.Reader) (Value, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	buf, err := r.ReadFull(int(n))
	if err != nil {
		return nil, err
	}
	return Str{V: trimNul(buf)}, nil
}

func (s *State) decodeSizedString(r *stream.Reader) (Value, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxSizedString {
		return nil, fmt.Errorf("string length %d exceeds %d: %w", n, MaxSizedString, stream.ErrMalformedLength)
	}
	buf, err := r.ReadFull(int(n))
	if err != nil {
		return nil, err
	}
	return Str{V: string(buf)}, nil
}

func (s *State) encodeSizedString(w *stream.Writer, str string) error {
	if len(str) > MaxSizedString {
		return fmt.Errorf("string of %d bytes exceeds %d: %w", len(str), MaxSizedString, stream.ErrMalformedLength)
	}
	if err := w.WriteUint32(uint32(len(str))); err != nil {
		return err
	}
	_, err := w.Write([]byte(str))
	return err
}

// readStorage reads an enum or bitfield's backing integer.
func (s *State) readStorage(r *stream.Reader, owner, storage string) (int64, error) {
	b, ok := s.Reg.Basic(storage)
	if !ok {
		return 0, fmt.Errorf("type %q: unknown storage %q: %w", owner, storage, schema.ErrMalformedSchema)
	}
	v, err := s.decodeBasic(r, b)
	if err != nil {
		return 0, err
	}
	n, _ := AsInt(v)
	return n, nil
}

// writeStorage writes an enum or bitfield's backing integer.
func (s *State) writeStorage(w *stream.Writer, owner, storage string, v int64) error {
	b, ok := s.Reg.Basic(storage)
	if !ok {
		return fmt.Errorf("type %q: unknown storage %q: %w", owner, storage, schema.ErrMalformedSchema)
	}
	return s.encodeBasic(w, &schema.Field{Name: owner}, b, Int{V: v})
}

func storageSize(reg *schema.Registry, owner, storage string) (int64, error) {
	b, ok := reg.Basic(storage)
	if !ok {
		return 0, fmt.Errorf("type %q: unknown storage %q: %w", owner, storage, schema.ErrMalformedSchema)
	}
	switch b.Kind {
	case schema.KindUint8, schema.KindInt8:
		return 1, nil
	case schema.KindUint16, schema.KindInt16:
		return 2, nil
	case schema.KindUint32, schema.KindInt32:
		return 4, nil
	case schema.KindUint64, schema.KindInt64:
		return 8, nil
	}
	return 0, fmt.Errorf("type %q: storage %q is not an integer: %w", owner, storage, schema.ErrMalformedSchema)
}

// FixLinks rewalks rec's fields in decode order, pops one raw index from
// the link table for every reference encountered, and binds the target
// returned by resolve. Conditions see the fully decoded record, so the
// walk reproduces the decode-time field sequence exactly; the caller must
// present the same context version the record was decoded under.
func (s *State) FixLinks(rec *Record, resolve Resolver) error {
	return s.walkFields(rec, func(f *schema.Field) error {
		v, ok := rec.Get(f.Name)
		if !ok {
			return fmt.Errorf("record %q has no field %q", rec.rt.Name, f.Name)
		}
		_, template := rec.resolveType(f)
		return s.fixValue(v, template, resolve)
	})
}

func (s *State) fixValue(v Value, template string, resolve Resolver) error {
	switch t := v.(type) {
	case *Ref:
		idx, err := s.Links.Pop()
		if err != nil {
			return err
		}
		t.Index = idx
		target, err := resolve(template, idx, t.Weak)
		if err != nil {
			return err
		}
		t.Target = target
	case *Record:
		return s.FixLinks(t, resolve)
	case *Array:
		for i, e := range t.Elems {
			if err := s.fixValue(e, template, resolve); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ctxEnv exposes the stream context to version conditions. Identifiers
// are the context field names in lower snake case.
type ctxEnv struct {
	ctx *stream.Context
}

func (e ctxEnv) Field(path []string) (int64, bool) {
	if len(path) != 1 {
		return 0, false
	}
	switch path[0] {
	case "version":
		return int64(e.ctx.Version), true
	case "user_version":
		return int64(e.ctx.UserVersion), true
	case "user_version_2":
		return int64(e.ctx.UserVersion2), true
	}
	return 0, false
}

func (e ctxEnv) Arg() (int64, bool) {
	return 0, false
}

func asFloat(v Value) float64 {
	switch t := v.(type) {
	case Float:
		return t.V
	case Int:
		return float64(t.V)
	}
	return 0
}

func stringValue(f *schema.Field, v Value) (string, error) {
	str, isStr := v.(Str)
	if !isStr {
		return "", fmt.Errorf("field %q holds %T, want string", f.Name, v)
	}
	return str.V, nil
}

func trimNul(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}
