package graph

import (
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// ResolvePolicy carries the format-specific reference semantics: which
// raw index means "no target", how an index maps to a decoded record,
// and how strictly declared target types are enforced.
type ResolvePolicy struct {
	// Sentinel reports whether idx encodes the null reference.
	Sentinel func(idx int32) bool

	// ByIndex returns the record a raw wire index points at.
	ByIndex func(idx int32) (*object.Record, bool)

	// CheckType reports whether target satisfies the field's declared
	// target type. Nil disables the check.
	CheckType func(target *object.Record, declared string) bool

	// SilentZeroMistype drops the mistype warning when the offending
	// index is zero. Old chunk-table exporters wrote material-name
	// chunks where a node reference belongs, always at index zero, and
	// those files are otherwise sound.
	SilentZeroMistype bool

	// ContextFor supplies the stream context block i was decoded under.
	// The link walk rebuilds the decode-time field sequence, so formats
	// that override the version per record must present the same
	// override here. Nil keeps the state's context for every block.
	ContextFor func(i int) *stream.Context
}

// CheckInheritance accepts a target that is the declared type or any
// descendant of it.
func CheckInheritance(target *object.Record, declared string) bool {
	return target.Type().IsDescendantOf(declared)
}

// ResolveAll binds every pending reference in blocks, consuming the
// state's link table in the exact order the indices were read. Sentinel
// indices bind nil. An index with no record degrades to nil with a
// DanglingReference warning; a type mismatch degrades to nil with an
// IntegrityMismatch warning. Afterwards the link table must be exactly
// drained or the decode is unsound.
func ResolveAll(s *object.State, blocks []*object.Record, pol ResolvePolicy) error {
	resolve := func(declared string, idx int32, weak bool) (*object.Record, error) {
		if pol.Sentinel != nil && pol.Sentinel(idx) {
			return nil, nil
		}
		target, ok := pol.ByIndex(idx)
		if !ok {
			if err := s.Warn.Add(stream.DanglingReference, s.Block, "",
				"reference index %d has no record", idx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		if declared != "" && pol.CheckType != nil && !pol.CheckType(target, declared) {
			if idx == 0 && pol.SilentZeroMistype {
				return nil, nil
			}
			if err := s.Warn.Add(stream.IntegrityMismatch, s.Block, "",
				"record %q does not satisfy declared target %q", target.Type().Name, declared); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return target, nil
	}

	for i, rec := range blocks {
		s.Block = i
		if pol.ContextFor != nil {
			s.Ctx = pol.ContextFor(i)
		}
		if err := s.FixLinks(rec, resolve); err != nil {
			return err
		}
	}
	return s.Links.CheckDrained()
}
