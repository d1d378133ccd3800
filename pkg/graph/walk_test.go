package graph

import (
	"errors"
	"testing"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
)

const graphSchemaDoc = `
format: graphfmt
versions:
  - {id: 10.0.1.0, value: 0x0A000100}
basics:
  - {name: u32, kind: u32}
  - {name: ref, kind: ref}
  - {name: ptr, kind: ptr}
structs:
  - name: Node
    fields:
      - {name: value, type: u32}
      - {name: num_children, type: u32}
      - {name: children, type: ref, template: Node, arr1: num_children}
      - {name: parent, type: ptr, template: Node}
  - name: Leaf
    inherit: Node
    fields:
      - {name: weight, type: u32}
  - name: Pair
    fields:
      - {name: first, type: ref, template: Node}
      - {name: second, type: ref, template: Node}
  - name: Constraint
    fields:
      - {name: body_a, type: ptr, template: Node}
      - {name: body_b, type: ptr, template: Node}
      - {name: strength, type: u32}
  - name: Strict
    fields:
      - {name: leafref, type: ref, template: Leaf}
  - name: Rig
    fields:
      - {name: root, type: ref, template: Node}
      - {name: pair, type: Pair}
      - {name: num_constraints, type: u32}
      - {name: constraints, type: ref, template: Constraint, arr1: num_constraints}
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load([]byte(graphSchemaDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg
}

func record(t *testing.T, reg *schema.Registry, typeName string) *object.Record {
	t.Helper()
	rt, err := reg.Resolve(typeName)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", typeName, err)
	}
	rec, err := object.New(rt, reg, "")
	if err != nil {
		t.Fatalf("New(%q) error = %v", typeName, err)
	}
	return rec
}

// own appends child to parent's children array as an owning reference.
func own(t *testing.T, parent, child *object.Record) {
	t.Helper()
	v, ok := parent.Get("children")
	if !ok {
		t.Fatalf("%q has no children field", parent.Type().Name)
	}
	arr := v.(*object.Array)
	arr.Elems = append(arr.Elems, &object.Ref{Target: child})
	if err := parent.SetInt("num_children", int64(len(arr.Elems))); err != nil {
		t.Fatalf("SetInt error = %v", err)
	}
}

func bindWeak(t *testing.T, rec *object.Record, field string, target *object.Record) {
	t.Helper()
	ref, ok := rec.GetRef(field)
	if !ok {
		t.Fatalf("%q has no reference field %q", rec.Type().Name, field)
	}
	ref.Target = target
}

func TestChildren(t *testing.T) {
	reg := testRegistry(t)

	t.Run("weak and unbound references are not children", func(t *testing.T) {
		root := record(t, reg, "Node")
		c1 := record(t, reg, "Node")
		c2 := record(t, reg, "Leaf")
		own(t, root, c1)
		own(t, root, c2)
		bindWeak(t, root, "parent", c1)

		// an unbound slot in the array contributes nothing
		arr, _ := root.Get("children")
		arr.(*object.Array).Elems = append(arr.(*object.Array).Elems, &object.Ref{Index: -1})

		got := Children(root)
		if len(got) != 2 || got[0] != c1 || got[1] != c2 {
			t.Errorf("Children() = %d records, want [c1 c2]", len(got))
		}
	})

	t.Run("descends into inline compounds", func(t *testing.T) {
		rig := record(t, reg, "Rig")
		sceneRoot := record(t, reg, "Node")
		first := record(t, reg, "Node")
		constraint := record(t, reg, "Constraint")

		ref, _ := rig.GetRef("root")
		ref.Target = sceneRoot
		pair, _ := rig.Get("pair")
		pref, _ := pair.(*object.Record).GetRef("first")
		pref.Target = first
		cs, _ := rig.Get("constraints")
		cs.(*object.Array).Elems = append(cs.(*object.Array).Elems, &object.Ref{Target: constraint})

		got := Children(rig)
		if len(got) != 3 || got[0] != sceneRoot || got[1] != first || got[2] != constraint {
			t.Errorf("Children() order wrong, got %d records", len(got))
		}
	})
}

func TestWalk(t *testing.T) {
	reg := testRegistry(t)

	// diamond: root owns a and b, both own c
	root := record(t, reg, "Node")
	a := record(t, reg, "Node")
	b := record(t, reg, "Node")
	c := record(t, reg, "Node")
	own(t, root, a)
	own(t, root, b)
	own(t, a, c)
	own(t, b, c)

	t.Run("pre-order with identity dedup", func(t *testing.T) {
		var got []*object.Record
		err := Walk([]*object.Record{root}, func(rec *object.Record) error {
			got = append(got, rec)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		want := []*object.Record{root, a, c, b}
		if len(got) != len(want) {
			t.Fatalf("visited %d records, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("visit %d is the wrong record", i)
			}
		}
	})

	t.Run("visit error stops the walk", func(t *testing.T) {
		boom := errors.New("boom")
		visits := 0
		err := Walk([]*object.Record{root}, func(rec *object.Record) error {
			visits++
			if rec == a {
				return boom
			}
			return nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("Walk() error = %v, want boom", err)
		}
		if visits != 2 {
			t.Errorf("visits = %d, want 2", visits)
		}
	})
}

func TestReplaceEverywhere(t *testing.T) {
	reg := testRegistry(t)

	root := record(t, reg, "Node")
	a := record(t, reg, "Node")
	c := record(t, reg, "Node")
	repl := record(t, reg, "Node")
	own(t, root, a)
	own(t, root, c)
	bindWeak(t, c, "parent", a) // weak alias of the replaced record

	roots := ReplaceEverywhere([]*object.Record{root, a}, a, repl)

	if roots[1] != repl {
		t.Error("root slot still holds the replaced record")
	}
	kids, _ := root.Get("children")
	if kids.(*object.Array).Elems[0].(*object.Ref).Target != repl {
		t.Error("owning reference still holds the replaced record")
	}
	parent, _ := c.GetRef("parent")
	if parent.Target != repl {
		t.Error("weak reference still holds the replaced record")
	}
}
