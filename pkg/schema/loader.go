package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/niflheim/pkg/expr"
)

// The YAML document shapes. One document describes one format: its version
// table, basic types, enums, bitfields, and record types.

type yamlDoc struct {
	Format    string         `yaml:"format"`
	Versions  []yamlVersion  `yaml:"versions"`
	Basics    []yamlBasic    `yaml:"basics"`
	Enums     []yamlEnum     `yaml:"enums"`
	BitFields []yamlBitField `yaml:"bitfields"`
	Structs   []yamlStruct   `yaml:"structs"`
}

type yamlVersion struct {
	ID    string   `yaml:"id"`    // dotted literal as used in expressions
	Value uint32   `yaml:"value"` // packed integer
	Games []string `yaml:"games"`
}

type yamlBasic struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Size int    `yaml:"size"`
}

type yamlEnum struct {
	Name    string `yaml:"name"`
	Storage string `yaml:"storage"`
	Options []struct {
		Name  string `yaml:"name"`
		Value int64  `yaml:"value"`
	} `yaml:"options"`
}

type yamlBitField struct {
	Name    string `yaml:"name"`
	Storage string `yaml:"storage"`
	Slots   []struct {
		Name    string `yaml:"name"`
		Bits    int    `yaml:"bits"`
		Default int64  `yaml:"default"`
	} `yaml:"slots"`
}

type yamlStruct struct {
	Name     string              `yaml:"name"`
	Inherit  string              `yaml:"inherit"`
	Generic  bool                `yaml:"generic"`
	Versions map[string][]string `yaml:"versions"` // vendor tag -> supported record versions
	Fields   []yamlField         `yaml:"fields"`
}

type yamlField struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Template string  `yaml:"template"`
	Arg      string  `yaml:"arg"`
	Default  string  `yaml:"default"`
	Arr1     string  `yaml:"arr1"`
	Arr2     string  `yaml:"arr2"`
	Cond     string  `yaml:"cond"`
	VerCond  string  `yaml:"vercond"`
	Ver1     string  `yaml:"ver1"`
	Ver2     string  `yaml:"ver2"`
	UserVer  *uint32 `yaml:"userver"`
	Abstract bool    `yaml:"abstract"`
	Doc      string  `yaml:"doc"`
}

var basicKinds = map[string]BasicKind{
	"u8":           KindUint8,
	"i8":           KindInt8,
	"u16":          KindUint16,
	"i16":          KindInt16,
	"u32":          KindUint32,
	"i32":          KindInt32,
	"u64":          KindUint64,
	"i64":          KindInt64,
	"f32":          KindFloat32,
	"f64":          KindFloat64,
	"ref":          KindRef,
	"ptr":          KindPtr,
	"zstring":      KindZString,
	"shortstring":  KindShortString,
	"sizedstring":  KindSizedString,
	"fixed_string": KindFixedString,
	"stringref":    KindStringRef,
	"linestring":   KindLineString,
	"undecoded":    KindUndecoded,
}

// Load parses one YAML schema document into a registry. The version table
// is installed first so version literals inside field expressions resolve
// during the same pass.
func Load(doc []byte) (*Registry, error) {
	var d yamlDoc
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("parsing schema document: %w", err)
	}
	if d.Format == "" {
		return nil, fmt.Errorf("schema document has no format name: %w", ErrMalformedSchema)
	}

	r := NewRegistry(d.Format)

	for _, v := range d.Versions {
		if v.ID == "" {
			return nil, fmt.Errorf("version entry without id: %w", ErrMalformedSchema)
		}
		r.versions[v.ID] = v.Value
		for _, game := range v.Games {
			r.games[game] = append(r.games[game], v.Value)
		}
	}

	for _, b := range d.Basics {
		kind, ok := basicKinds[b.Kind]
		if !ok {
			return nil, fmt.Errorf("basic %q has unknown kind %q: %w", b.Name, b.Kind, ErrMalformedSchema)
		}
		if kind == KindFixedString && b.Size <= 0 {
			return nil, fmt.Errorf("basic %q: fixed_string needs a positive size: %w", b.Name, ErrMalformedSchema)
		}
		if err := r.register(b.Name); err != nil {
			return nil, err
		}
		r.basics[b.Name] = &Basic{Name: b.Name, Kind: kind, Size: b.Size}
	}

	for _, e := range d.Enums {
		if err := r.register(e.Name); err != nil {
			return nil, err
		}
		if err := r.checkIntStorage(e.Name, e.Storage); err != nil {
			return nil, err
		}
		enum := &Enum{Name: e.Name, Storage: e.Storage}
		for _, opt := range e.Options {
			enum.Options = append(enum.Options, EnumOption{Name: opt.Name, Value: opt.Value})
		}
		r.enums[e.Name] = enum
	}

	for _, b := range d.BitFields {
		if err := r.register(b.Name); err != nil {
			return nil, err
		}
		if err := r.checkIntStorage(b.Name, b.Storage); err != nil {
			return nil, err
		}
		bf := &BitField{Name: b.Name, Storage: b.Storage}
		total := 0
		for _, slot := range b.Slots {
			if slot.Bits <= 0 || slot.Bits > 64 {
				return nil, fmt.Errorf("bitfield %q slot %q has bad width %d: %w", b.Name, slot.Name, slot.Bits, ErrMalformedSchema)
			}
			total += slot.Bits
			bf.Slots = append(bf.Slots, BitSlot{Name: slot.Name, NumBits: slot.Bits, Default: slot.Default})
		}
		if total > 64 {
			return nil, fmt.Errorf("bitfield %q packs %d bits: %w", b.Name, total, ErrMalformedSchema)
		}
		r.bitfields[b.Name] = bf
	}

	// Register struct names before parsing fields so forward and
	// self references resolve.
	for _, s := range d.Structs {
		if err := r.register(s.Name); err != nil {
			return nil, err
		}
		r.structs[s.Name] = &RecordType{
			Name:     s.Name,
			Inherit:  s.Inherit,
			Generic:  s.Generic,
			Versions: make(map[string][]uint32),
		}
	}

	vt := r.VersionTable()
	for _, s := range d.Structs {
		rt := r.structs[s.Name]
		for game, vals := range s.Versions {
			for _, vs := range vals {
				v, err := r.parseVersion(vs)
				if err != nil {
					return nil, fmt.Errorf("struct %q versions for %q: %w", s.Name, game, err)
				}
				rt.Versions[game] = append(rt.Versions[game], v)
			}
		}
		for _, f := range s.Fields {
			field, err := r.loadField(s.Name, f, vt)
			if err != nil {
				return nil, err
			}
			rt.Fields = append(rt.Fields, field)
		}
	}

	if err := r.flatten(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile reads and parses a schema document from disk, used when the
// configuration points at schema overrides outside the embedded set.
func LoadFile(path string) (*Registry, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	return Load(doc)
}

func (r *Registry) register(name string) error {
	if name == "" {
		return fmt.Errorf("type with empty name: %w", ErrMalformedSchema)
	}
	if r.HasType(name) {
		return fmt.Errorf("%q: %w", name, ErrDuplicateType)
	}
	return nil
}

func (r *Registry) checkIntStorage(owner, storage string) error {
	b, ok := r.basics[storage]
	if !ok {
		return fmt.Errorf("%q: storage type %q: %w", owner, storage, ErrUnknownType)
	}
	switch b.Kind {
	case KindUint8, KindInt8, KindUint16, KindInt16, KindUint32, KindInt32, KindUint64, KindInt64:
		return nil
	}
	return fmt.Errorf("%q: storage type %q is not an integer: %w", owner, storage, ErrMalformedSchema)
}

func (r *Registry) loadField(owner string, f yamlField, vt expr.VersionTable) (Field, error) {
	var field Field
	if f.Name == "" || f.Type == "" {
		return field, fmt.Errorf("struct %q: field needs name and type: %w", owner, ErrMalformedSchema)
	}
	if f.Type != "#T#" && !r.HasType(f.Type) {
		return field, fmt.Errorf("struct %q field %q: type %q: %w", owner, f.Name, f.Type, ErrUnknownType)
	}
	field.Name = f.Name
	field.Type = f.Type
	field.Template = f.Template
	field.Default = f.Default
	field.UserVer = f.UserVer
	field.Abstract = f.Abstract
	field.Doc = f.Doc

	if b, ok := r.basics[f.Type]; ok && (b.Kind == KindRef || b.Kind == KindPtr) {
		if err := r.CheckRefTarget(f.Template); err != nil {
			return field, fmt.Errorf("struct %q field %q: %w", owner, f.Name, err)
		}
	}

	var err error
	parse := func(src, what string) (*expr.Expr, error) {
		if src == "" {
			return nil, nil
		}
		e, perr := expr.Parse(src, vt)
		if perr != nil {
			return nil, fmt.Errorf("struct %q field %q: %s: %w", owner, f.Name, what, perr)
		}
		return e, nil
	}
	if field.Arg, err = parse(f.Arg, "arg"); err != nil {
		return field, err
	}
	if field.Arr1, err = parse(f.Arr1, "arr1"); err != nil {
		return field, err
	}
	if field.Arr2, err = parse(f.Arr2, "arr2"); err != nil {
		return field, err
	}
	if field.Cond, err = parse(f.Cond, "cond"); err != nil {
		return field, err
	}
	if field.VerCond, err = parse(f.VerCond, "vercond"); err != nil {
		return field, err
	}
	if field.Ver1, err = r.parseVersion(f.Ver1); err != nil {
		return field, fmt.Errorf("struct %q field %q: ver1: %w", owner, f.Name, err)
	}
	if field.Ver2, err = r.parseVersion(f.Ver2); err != nil {
		return field, fmt.Errorf("struct %q field %q: ver2: %w", owner, f.Name, err)
	}
	return field, nil
}

// parseVersion accepts a declared dotted literal or a plain integer
// (decimal or 0x hex). Empty means unbounded.
func (r *Registry) parseVersion(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	if v, ok := r.versions[s]; ok {
		return v, nil
	}
	if strings.ContainsRune(s, '.') {
		return 0, fmt.Errorf("version literal %q not declared in the version table: %w", s, ErrMalformedSchema)
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad version %q: %w", s, ErrMalformedSchema)
	}
	return uint32(v), nil
}
