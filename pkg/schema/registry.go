package schema

import (
	"fmt"
	"sort"

	"github.com/ssargent/niflheim/pkg/expr"
)

// Registry holds every type of one format's schema plus the format's
// version-name table. Read-only once loaded; the codec resolves against it
// on the hot path through pre-flattened field slices.
type Registry struct {
	Format string

	basics    map[string]*Basic
	enums     map[string]*Enum
	bitfields map[string]*BitField
	structs   map[string]*RecordType
	versions  map[string]uint32   // dotted literal -> packed version
	games     map[string][]uint32 // game name -> supported versions
}

// NewRegistry creates an empty registry for the named format.
func NewRegistry(format string) *Registry {
	return &Registry{
		Format:    format,
		basics:    make(map[string]*Basic),
		enums:     make(map[string]*Enum),
		bitfields: make(map[string]*BitField),
		structs:   make(map[string]*RecordType),
		versions:  make(map[string]uint32),
		games:     make(map[string][]uint32),
	}
}

// Resolve returns the record type with parent fields flattened in.
func (r *Registry) Resolve(name string) (*RecordType, error) {
	rt, ok := r.structs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownType)
	}
	return rt, nil
}

// Basic returns the named basic type.
func (r *Registry) Basic(name string) (*Basic, bool) {
	b, ok := r.basics[name]
	return b, ok
}

// Enum returns the named enum type.
func (r *Registry) Enum(name string) (*Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// BitField returns the named bitfield type.
func (r *Registry) BitField(name string) (*BitField, bool) {
	b, ok := r.bitfields[name]
	return b, ok
}

// HasType reports whether any kind of type is registered under the name.
func (r *Registry) HasType(name string) bool {
	if _, ok := r.basics[name]; ok {
		return true
	}
	if _, ok := r.enums[name]; ok {
		return true
	}
	if _, ok := r.bitfields[name]; ok {
		return true
	}
	_, ok := r.structs[name]
	return ok
}

// StructNames returns all record type names, sorted.
func (r *Registry) StructNames() []string {
	names := make([]string, 0, len(r.structs))
	for name := range r.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VersionTable adapts the registry's version-name table for expression
// parsing, so literals like 20.1.0.3 compile to their packed integers.
func (r *Registry) VersionTable() expr.VersionTable {
	return func(lit string) (int64, bool) {
		v, ok := r.versions[lit]
		return int64(v), ok
	}
}

// VersionNumber resolves a declared dotted version literal.
func (r *Registry) VersionNumber(lit string) (uint32, bool) {
	v, ok := r.versions[lit]
	return v, ok
}

// VersionID returns the declared dotted literal for a packed version,
// the lexically first one when several literals share the value.
func (r *Registry) VersionID(v uint32) (string, bool) {
	var id string
	for lit, decl := range r.versions {
		if decl == v && (id == "" || lit < id) {
			id = lit
		}
	}
	return id, id != ""
}

// SupportsVersion reports whether the packed version is declared anywhere
// in the format's version table.
func (r *Registry) SupportsVersion(v uint32) bool {
	for _, decl := range r.versions {
		if decl == v {
			return true
		}
	}
	return false
}

// Versions returns every declared packed version, ascending.
func (r *Registry) Versions() []uint32 {
	out := make([]uint32, 0, len(r.versions))
	seen := make(map[uint32]bool)
	for _, v := range r.versions {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Games returns the vendor/game table: game name to supported versions.
func (r *Registry) Games() map[string][]uint32 {
	return r.games
}

// CheckRefTarget verifies that a reference field's template names a record
// type. References cannot point at leaf values.
func (r *Registry) CheckRefTarget(template string) error {
	if template == "" || template == "#T#" {
		return nil
	}
	if _, ok := r.structs[template]; !ok {
		return fmt.Errorf("reference target %q is not a record type: %w", template, ErrTemplateResolution)
	}
	return nil
}

// flatten builds parent-first field lists for every struct and checks the
// inheritance chains. Called once at the end of loading.
func (r *Registry) flatten() error {
	for name, rt := range r.structs {
		flat, err := r.flattenOne(rt, make(map[string]bool))
		if err != nil {
			return fmt.Errorf("flattening %q: %w", name, err)
		}
		rt.flat = flat
	}
	return nil
}

func (r *Registry) flattenOne(rt *RecordType, seen map[string]bool) ([]Field, error) {
	if seen[rt.Name] {
		return nil, fmt.Errorf("inheritance cycle through %q: %w", rt.Name, ErrMalformedSchema)
	}
	seen[rt.Name] = true

	var flat []Field
	if rt.Inherit != "" {
		parent, ok := r.structs[rt.Inherit]
		if !ok {
			return nil, fmt.Errorf("parent %q: %w", rt.Inherit, ErrUnknownType)
		}
		rt.parent = parent
		parentFlat, err := r.flattenOne(parent, seen)
		if err != nil {
			return nil, err
		}
		flat = append(flat, parentFlat...)
	}
	flat = append(flat, rt.Fields...)
	return flat, nil
}
