package object

import (
	"fmt"
	"strconv"

	"github.com/ssargent/niflheim/pkg/schema"
)

// Record is a live instance of a schema record type: one slot per unique
// field name, parents first. Records are arena-owned by the container
// graph that produced them; aliases see each other's mutations.
type Record struct {
	rt       *schema.RecordType
	reg      *schema.Registry
	template string
	arg      int64
	hasArg   bool
	vals     []Value
	slots    map[string]int
	names    []string
}

// New materializes a record with every field set to its default. The
// template argument binds the type's placeholder when the type is
// generic.
func New(rt *schema.RecordType, reg *schema.Registry, template string) (*Record, error) {
	if rt.Generic && template == "" {
		return nil, fmt.Errorf("type %q needs a template argument: %w", rt.Name, schema.ErrTemplateResolution)
	}
	rec := &Record{
		rt:       rt,
		reg:      reg,
		template: template,
		slots:    make(map[string]int),
	}
	for _, f := range rt.FlatFields() {
		if _, dup := rec.slots[f.Name]; dup {
			continue
		}
		v, err := rec.defaultValue(f)
		if err != nil {
			return nil, err
		}
		rec.slots[f.Name] = len(rec.vals)
		rec.names = append(rec.names, f.Name)
		rec.vals = append(rec.vals, v)
	}
	return rec, nil
}

// Type returns the schema type of the record.
func (rec *Record) Type() *schema.RecordType {
	return rec.rt
}

// Registry returns the schema registry the record was built against.
func (rec *Record) Registry() *schema.Registry {
	return rec.reg
}

// Template returns the bound template type name, empty for plain types.
func (rec *Record) Template() string {
	return rec.template
}

// SetArg binds the #ARG# value conditions and lengths may reference.
func (rec *Record) SetArg(v int64) {
	rec.arg = v
	rec.hasArg = true
}

// Arg returns the bound #ARG# value.
func (rec *Record) Arg() (int64, bool) {
	return rec.arg, rec.hasArg
}

// Get returns the named field value.
func (rec *Record) Get(name string) (Value, bool) {
	i, ok := rec.slots[name]
	if !ok {
		return nil, false
	}
	return rec.vals[i], true
}

// Set assigns the named field value.
func (rec *Record) Set(name string, v Value) error {
	i, ok := rec.slots[name]
	if !ok {
		return fmt.Errorf("record %q has no field %q", rec.rt.Name, name)
	}
	rec.vals[i] = v
	return nil
}

// GetInt returns the named field coerced to an integer.
func (rec *Record) GetInt(name string) (int64, bool) {
	v, ok := rec.Get(name)
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// SetInt assigns an integer field.
func (rec *Record) SetInt(name string, v int64) error {
	return rec.Set(name, Int{V: v})
}

// GetString returns the named string field.
func (rec *Record) GetString(name string) (string, bool) {
	v, ok := rec.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(Str)
	return s.V, ok
}

// SetString assigns a string field.
func (rec *Record) SetString(name, v string) error {
	return rec.Set(name, Str{V: v})
}

// GetRef returns the named reference field.
func (rec *Record) GetRef(name string) (*Ref, bool) {
	v, ok := rec.Get(name)
	if !ok {
		return nil, false
	}
	ref, ok := v.(*Ref)
	return ref, ok
}

// FieldNames returns the record's field names, parents first.
func (rec *Record) FieldNames() []string {
	return rec.names
}

// resolveType maps a field's declared type through the record's bound
// template placeholder.
func (rec *Record) resolveType(f *schema.Field) (string, string) {
	typeName := f.Type
	if typeName == "#T#" {
		typeName = rec.template
	}
	template := f.Template
	if template == "#T#" {
		template = rec.template
	}
	return typeName, template
}

// defaultValue builds a field's initial value: parsed default literal for
// leaves, empty array, null reference, or a recursively materialized
// nested record.
func (rec *Record) defaultValue(f schema.Field) (Value, error) {
	typeName, template := rec.resolveType(&f)

	if f.Arr1 != nil {
		return &Array{}, nil
	}

	if b, ok := rec.reg.Basic(typeName); ok {
		switch b.Kind {
		case schema.KindRef:
			return &Ref{Index: -1}, nil
		case schema.KindPtr:
			return &Ref{Index: -1, Weak: true}, nil
		case schema.KindZString, schema.KindShortString, schema.KindSizedString,
			schema.KindFixedString, schema.KindStringRef, schema.KindLineString:
			return Str{V: f.Default}, nil
		case schema.KindUndecoded:
			return Bytes{}, nil
		case schema.KindFloat32, schema.KindFloat64:
			if f.Default == "" {
				return Float{}, nil
			}
			v, err := strconv.ParseFloat(f.Default, 64)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad float default %q: %w", f.Name, f.Default, schema.ErrMalformedSchema)
			}
			return Float{V: v}, nil
		default:
			if f.Default == "" {
				return Int{}, nil
			}
			v, err := strconv.ParseInt(f.Default, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("field %q: bad integer default %q: %w", f.Name, f.Default, schema.ErrMalformedSchema)
			}
			return Int{V: v}, nil
		}
	}

	if e, ok := rec.reg.Enum(typeName); ok {
		if f.Default == "" {
			if len(e.Options) > 0 {
				return Int{V: e.Options[0].Value}, nil
			}
			return Int{}, nil
		}
		for _, opt := range e.Options {
			if opt.Name == f.Default {
				return Int{V: opt.Value}, nil
			}
		}
		v, err := strconv.ParseInt(f.Default, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: enum %q has no option %q: %w", f.Name, typeName, f.Default, schema.ErrMalformedSchema)
		}
		return Int{V: v}, nil
	}

	if bf, ok := rec.reg.BitField(typeName); ok {
		flags := &Flags{Type: bf, Slots: make([]int64, len(bf.Slots))}
		for i, slot := range bf.Slots {
			flags.Slots[i] = slot.Default
		}
		return flags, nil
	}

	childType, err := rec.reg.Resolve(typeName)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	child, err := New(childType, rec.reg, template)
	if err != nil {
		return nil, err
	}
	if f.Arg != nil {
		argv, aerr := f.Arg.Eval(recordEnv{rec})
		if aerr == nil {
			child.SetArg(argv)
		}
	}
	return child, nil
}

// recordEnv evaluates condition expressions against a record's decoded
// fields, following dotted paths into nested records and flag sets.
type recordEnv struct {
	rec *Record
}

func (e recordEnv) Field(path []string) (int64, bool) {
	return lookupPath(e.rec, path)
}

func (e recordEnv) Arg() (int64, bool) {
	return e.rec.Arg()
}

func lookupPath(rec *Record, path []string) (int64, bool) {
	cur := rec
	for i, name := range path {
		v, ok := cur.Get(name)
		if !ok {
			return 0, false
		}
		if i == len(path)-1 {
			return AsInt(v)
		}
		switch next := v.(type) {
		case *Record:
			cur = next
		case *Flags:
			if i != len(path)-2 {
				return 0, false
			}
			return next.Get(path[i+1])
		case *Ref:
			if next.Target == nil {
				return 0, false
			}
			cur = next.Target
		default:
			return 0, false
		}
	}
	return 0, false
}

// lookupValue resolves a dotted path to the raw value, used by jagged
// array length resolution.
func lookupValue(rec *Record, path []string) (Value, bool) {
	cur := rec
	for i, name := range path {
		v, ok := cur.Get(name)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		switch next := v.(type) {
		case *Record:
			cur = next
		case *Ref:
			if next.Target == nil {
				return nil, false
			}
			cur = next.Target
		default:
			return nil, false
		}
	}
	return nil, false
}
