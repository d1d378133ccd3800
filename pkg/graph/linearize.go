package graph

import (
	"github.com/ssargent/niflheim/pkg/object"
)

// TypeTable collects logical on-disk type names, deduplicated in
// first-seen order.
type TypeTable struct {
	names []string
	index map[string]int32
}

// NewTypeTable returns an empty table.
func NewTypeTable() *TypeTable {
	return &TypeTable{index: make(map[string]int32)}
}

// Add returns the table index for name, appending it on first sight.
func (t *TypeTable) Add(name string) int32 {
	if i, ok := t.index[name]; ok {
		return i
	}
	i := int32(len(t.names))
	t.index[name] = i
	t.names = append(t.names, name)
	return i
}

// Lookup returns the index of a previously added name.
func (t *TypeTable) Lookup(name string) (int32, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Names returns the registered names in first-seen order.
func (t *TypeTable) Names() []string {
	return t.names
}

// Len returns the number of distinct names.
func (t *TypeTable) Len() int {
	return len(t.names)
}

// BlockIndexMap is the write-time bijection from record identity to
// table position.
type BlockIndexMap map[*object.Record]int32

// RefIndex adapts the map to the codec's reference index callback.
func (m BlockIndexMap) RefIndex(rec *object.Record) (int32, bool) {
	i, ok := m[rec]
	return i, ok
}

// LinearizeOptions carries the format hooks that bend the default
// parent-before-child table order.
type LinearizeOptions struct {
	// TypeName overrides the logical on-disk name of a record. Nil uses
	// the schema type name.
	TypeName func(rec *object.Record) string

	// ChildFirst reports that a child must receive its table index
	// strictly before any parent that owns it.
	ChildFirst func(child *object.Record) bool

	// Predecessors lists extra records that must be linearized before
	// rec even though rec does not own them, such as the rigid bodies a
	// physics constraint binds through weak references.
	Predecessors func(rec *object.Record) []*object.Record
}

// Plan is a linearized object graph: the block order a writer will emit,
// the index each record was assigned, and the deduplicated type table
// with one entry index per block.
type Plan struct {
	Blocks    []*object.Record
	Index     BlockIndexMap
	Types     *TypeTable
	TypeIndex []int32
}

// Linearize flattens the graphs rooted at roots into a deterministic
// block order. The traversal is depth-first and memoized by identity, so
// a record shared between branches is assigned exactly one index. For
// each record the type name is registered first, then any predecessors
// and child-first children, then the record itself, then its remaining
// children.
func Linearize(roots []*object.Record, opts LinearizeOptions) *Plan {
	l := &linearizer{
		plan: &Plan{
			Index: make(BlockIndexMap),
			Types: NewTypeTable(),
		},
		opts:     opts,
		visiting: make(map[*object.Record]bool),
	}
	for _, root := range roots {
		l.add(root)
	}
	return l.plan
}

type linearizer struct {
	plan     *Plan
	opts     LinearizeOptions
	visiting map[*object.Record]bool
}

func (l *linearizer) add(rec *object.Record) {
	if rec == nil || l.visiting[rec] {
		return
	}
	if _, done := l.plan.Index[rec]; done {
		return
	}
	l.visiting[rec] = true

	name := rec.Type().Name
	if l.opts.TypeName != nil {
		name = l.opts.TypeName(rec)
	}
	typeIndex := l.plan.Types.Add(name)

	if l.opts.Predecessors != nil {
		for _, pre := range l.opts.Predecessors(rec) {
			l.add(pre)
		}
	}

	var deferred []*object.Record
	for _, child := range Children(rec) {
		if l.opts.ChildFirst != nil && l.opts.ChildFirst(child) {
			l.add(child)
		} else {
			deferred = append(deferred, child)
		}
	}

	l.plan.Index[rec] = int32(len(l.plan.Blocks))
	l.plan.Blocks = append(l.plan.Blocks, rec)
	l.plan.TypeIndex = append(l.plan.TypeIndex, typeIndex)

	for _, child := range deferred {
		l.add(child)
	}
}
