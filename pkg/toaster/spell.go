package toaster

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/object"
)

// File is one work item flowing through a run: the path on disk, the
// envelope summary, and, once the full read has happened, the document
// the spell works on.
type File struct {
	Path   string
	Size   int64
	Format Format

	// Header is what Inspect learned from the envelope. Set before
	// DataInspect runs.
	Header *Header

	// Doc is the fully read document. Nil until DataInspect approves
	// the file.
	Doc Document

	// Log carries the file path as a field; spells add their own.
	Log *zap.Logger

	// Out is the run's print sink for spells that render output.
	Out io.Writer

	// Depth is the branch depth during recursion, zero at the roots.
	Depth int

	typeCounts map[string]int
	err        error
}

// CountType tallies one record type occurrence. The run report merges
// tallies across all files of the run.
func (f *File) CountType(name string) {
	if f.typeCounts == nil {
		f.typeCounts = make(map[string]int)
	}
	f.typeCounts[name]++
}

// Failf marks the file failed; the run report lists it under this
// message. The first failure sticks.
func (f *File) Failf(format string, args ...interface{}) {
	if f.err == nil {
		f.err = fmt.Errorf(format, args...)
	}
}

// Err returns the failure a spell declared, nil when the file is sound.
func (f *File) Err() error {
	return f.err
}

// Spell is one operation cast file by file. A fresh instance serves
// each file, so hooks may keep per-file state on the receiver. The
// stages run in declaration order; returning false from a gate skips
// the stages it guards.
type Spell interface {
	// Name identifies the spell in reports and cache keys.
	Name() string

	// ReadOnly spells never trigger write-back, whatever Changed says.
	ReadOnly() bool

	// DataInspect decides from the envelope alone whether the file is
	// worth reading in full. False skips the file.
	DataInspect(f *File) bool

	// DataEntry runs once the file is fully read. False skips the
	// branch walk and DataExit.
	DataEntry(f *File) bool

	// BranchInspect gates one record before entry, after the include
	// and exclude filters. False prunes the record and its children.
	BranchInspect(f *File, rec *object.Record) bool

	// BranchEntry casts the spell on one record. False prunes the
	// record's children and skips its BranchExit.
	BranchEntry(f *File, rec *object.Record) bool

	// BranchExit runs after a record's children are done.
	BranchExit(f *File, rec *object.Record)

	// DataExit runs after the branch walk.
	DataExit(f *File)

	// Changed reports whether the spell mutated the document.
	Changed() bool
}

// Factory builds a fresh Spell for one file. Spell instances carry
// per-file state, so one instance never serves two files.
type Factory func() Spell

// Base is the all-accepting, nothing-touching spell core. Concrete
// spells embed it and override only the hooks they need; mutating hooks
// call MarkChanged to request write-back.
type Base struct {
	changed bool
}

func (b *Base) ReadOnly() bool                           { return true }
func (b *Base) DataInspect(*File) bool                   { return true }
func (b *Base) DataEntry(*File) bool                     { return true }
func (b *Base) BranchInspect(*File, *object.Record) bool { return true }
func (b *Base) BranchEntry(*File, *object.Record) bool   { return true }
func (b *Base) BranchExit(*File, *object.Record)         {}
func (b *Base) DataExit(*File)                           {}

// Changed reports whether MarkChanged has been called.
func (b *Base) Changed() bool {
	return b.changed
}

// MarkChanged flags the document as mutated.
func (b *Base) MarkChanged() {
	b.changed = true
}

// Registry maps spell names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry holding the built-in spells.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, factory := range builtinSpells() {
		r.factories[name] = factory
	}
	return r
}

// Register adds a spell under its factory's name. Registering a name
// twice is an error.
func (r *Registry) Register(factory Factory) error {
	name := factory().Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("spell %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown spell %q", name)
	}
	return factory, nil
}

// Names returns the registered spell names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
