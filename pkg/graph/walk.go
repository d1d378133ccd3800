package graph

import (
	"github.com/ssargent/niflheim/pkg/object"
)

// Children returns the records rec owns directly: the bound targets of
// its non-weak references, in field declaration order, descending into
// inline compounds and arrays. Weak references and unbound references
// contribute nothing.
func Children(rec *object.Record) []*object.Record {
	var out []*object.Record
	for _, name := range rec.FieldNames() {
		v, _ := rec.Get(name)
		out = collectChildren(v, out)
	}
	return out
}

func collectChildren(v object.Value, out []*object.Record) []*object.Record {
	switch t := v.(type) {
	case *object.Ref:
		if !t.Weak && t.Target != nil {
			out = append(out, t.Target)
		}
	case *object.Record:
		for _, name := range t.FieldNames() {
			inner, _ := t.Get(name)
			out = collectChildren(inner, out)
		}
	case *object.Array:
		for _, e := range t.Elems {
			out = collectChildren(e, out)
		}
	}
	return out
}

// Walk visits every record reachable from roots through owning
// references, pre-order, each exactly once. Shared subtrees are visited
// at their first encounter only. A non-nil error from visit stops the
// walk and is returned unwrapped.
func Walk(roots []*object.Record, visit func(rec *object.Record) error) error {
	seen := make(map[*object.Record]bool)
	var walk func(rec *object.Record) error
	walk = func(rec *object.Record) error {
		if rec == nil || seen[rec] {
			return nil
		}
		seen[rec] = true
		if err := visit(rec); err != nil {
			return err
		}
		for _, child := range Children(rec) {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceEverywhere swaps old for repl in every reference reachable from
// roots, weak and owning alike, and in the root slots themselves. It
// returns the updated root slice. Mutators use this to graft a rebuilt
// record into a live graph without hunting down every alias.
func ReplaceEverywhere(roots []*object.Record, old, repl *object.Record) []*object.Record {
	seen := make(map[*object.Record]bool)
	var fixRecord func(rec *object.Record)
	var fixValue func(v object.Value)

	fixValue = func(v object.Value) {
		switch t := v.(type) {
		case *object.Ref:
			if t.Target == old {
				t.Target = repl
			}
			fixRecord(t.Target)
		case *object.Record:
			fixRecord(t)
		case *object.Array:
			for _, e := range t.Elems {
				fixValue(e)
			}
		}
	}
	fixRecord = func(rec *object.Record) {
		if rec == nil || seen[rec] {
			return
		}
		seen[rec] = true
		for _, name := range rec.FieldNames() {
			v, _ := rec.Get(name)
			fixValue(v)
		}
	}

	for i := range roots {
		if roots[i] == old {
			roots[i] = repl
		}
		fixRecord(roots[i])
	}
	return roots
}
