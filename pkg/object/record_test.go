package object

import (
	"errors"
	"testing"

	"github.com/ssargent/niflheim/pkg/schema"
)

func mustRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load([]byte(testSchemaDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg
}

func mustRecord(t *testing.T, reg *schema.Registry, typeName, template string) *Record {
	t.Helper()
	rt, err := reg.Resolve(typeName)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", typeName, err)
	}
	rec, err := New(rt, reg, template)
	if err != nil {
		t.Fatalf("New(%q) error = %v", typeName, err)
	}
	return rec
}

func TestNew_Defaults(t *testing.T) {
	reg := mustRegistry(t)

	t.Run("declared literals", func(t *testing.T) {
		rec := mustRecord(t, reg, "Defaulted", "")

		if v, _ := rec.Get("scale"); v != (Float{V: 1.0}) {
			t.Errorf("scale = %v, want Float{1}", v)
		}
		if v, _ := rec.GetInt("gloss"); v != 2 {
			t.Errorf("gloss = %d, want 2 (GLOSS_MAP)", v)
		}
		if v, _ := rec.GetInt("count"); v != 3 {
			t.Errorf("count = %d, want 3", v)
		}
	})

	t.Run("zero values and null references", func(t *testing.T) {
		rec := mustRecord(t, reg, "Node", "")

		if v, _ := rec.GetInt("count"); v != 0 {
			t.Errorf("count = %d, want 0", v)
		}
		values, _ := rec.Get("values")
		if arr, ok := values.(*Array); !ok || len(arr.Elems) != 0 {
			t.Errorf("values = %#v, want empty array", values)
		}
		child, ok := rec.GetRef("child")
		if !ok || child.Index != -1 || child.Weak || child.Target != nil {
			t.Errorf("child = %#v, want null owning reference", child)
		}
		shadow, _ := rec.GetRef("shadow")
		if !shadow.Weak {
			t.Error("shadow should be a weak reference")
		}
	})

	t.Run("enum first option and bitfield slot defaults", func(t *testing.T) {
		rec := mustRecord(t, reg, "Shaded", "")

		if v, _ := rec.GetInt("gloss"); v != 0 {
			t.Errorf("gloss = %d, want first option value 0", v)
		}
		v, _ := rec.Get("flags")
		flags, ok := v.(*Flags)
		if !ok {
			t.Fatalf("flags = %T, want *Flags", v)
		}
		if p, _ := flags.Get("priority"); p != 2 {
			t.Errorf("priority = %d, want slot default 2", p)
		}
		if e, _ := flags.Get("enabled"); e != 0 {
			t.Errorf("enabled = %d, want 0", e)
		}
	})

	t.Run("empty strings", func(t *testing.T) {
		rec := mustRecord(t, reg, "Strings", "")
		for _, name := range rec.FieldNames() {
			if s, ok := rec.GetString(name); !ok || s != "" {
				t.Errorf("%s = %q, want empty string", name, s)
			}
		}
	})
}

func TestNew_GenericTemplate(t *testing.T) {
	reg := mustRegistry(t)
	rt, err := reg.Resolve("KeyGroup")
	if err != nil {
		t.Fatalf("Resolve(KeyGroup) error = %v", err)
	}

	if _, err := New(rt, reg, ""); !errors.Is(err, schema.ErrTemplateResolution) {
		t.Errorf("New without template error = %v, want ErrTemplateResolution", err)
	}

	rec, err := New(rt, reg, "Entry")
	if err != nil {
		t.Fatalf("New with template error = %v", err)
	}
	if rec.Template() != "Entry" {
		t.Errorf("Template() = %q, want Entry", rec.Template())
	}
}

func TestRecord_Accessors(t *testing.T) {
	reg := mustRegistry(t)
	rec := mustRecord(t, reg, "Node", "")

	if err := rec.SetInt("count", 7); err != nil {
		t.Fatalf("SetInt(count) error = %v", err)
	}
	if v, ok := rec.GetInt("count"); !ok || v != 7 {
		t.Errorf("GetInt(count) = %d, %v", v, ok)
	}

	if err := rec.Set("no_such_field", Int{V: 1}); err == nil {
		t.Error("Set on unknown field should fail")
	}
	if _, ok := rec.Get("no_such_field"); ok {
		t.Error("Get on unknown field should report absence")
	}
	if _, ok := rec.GetRef("count"); ok {
		t.Error("GetRef on an integer field should report a type mismatch")
	}

	strs := mustRecord(t, reg, "Strings", "")
	if err := strs.SetString("a", "hello"); err != nil {
		t.Fatalf("SetString error = %v", err)
	}
	if v, _ := strs.GetString("a"); v != "hello" {
		t.Errorf("GetString(a) = %q, want hello", v)
	}
}

func TestRecord_DuplicateNameOneSlot(t *testing.T) {
	reg := mustRegistry(t)
	rec := mustRecord(t, reg, "VersionedName", "")

	names := rec.FieldNames()
	if len(names) != 1 || names[0] != "flags" {
		t.Errorf("FieldNames() = %v, want [flags]", names)
	}
}

func TestRecord_ArgBinding(t *testing.T) {
	reg := mustRegistry(t)
	rec := mustRecord(t, reg, "ArgGated", "")

	if _, ok := rec.Arg(); ok {
		t.Error("fresh record should have no bound argument")
	}
	rec.SetArg(5)
	if v, ok := rec.Arg(); !ok || v != 5 {
		t.Errorf("Arg() = %d, %v, want 5, true", v, ok)
	}
}

func TestLookupPath(t *testing.T) {
	reg := mustRegistry(t)

	t.Run("nested record", func(t *testing.T) {
		rec := mustRecord(t, reg, "Keyed", "")
		gv, _ := rec.Get("group")
		if err := gv.(*Record).SetInt("num_keys", 4); err != nil {
			t.Fatalf("SetInt error = %v", err)
		}
		if v, ok := lookupPath(rec, []string{"group", "num_keys"}); !ok || v != 4 {
			t.Errorf("lookupPath(group.num_keys) = %d, %v, want 4", v, ok)
		}
	})

	t.Run("bitfield slot", func(t *testing.T) {
		rec := mustRecord(t, reg, "Shaded", "")
		fv, _ := rec.Get("flags")
		if !fv.(*Flags).Set("mode", 5) {
			t.Fatal("Set(mode) failed")
		}
		if v, ok := lookupPath(rec, []string{"flags", "mode"}); !ok || v != 5 {
			t.Errorf("lookupPath(flags.mode) = %d, %v, want 5", v, ok)
		}
	})

	t.Run("through a resolved reference", func(t *testing.T) {
		node0 := mustRecord(t, reg, "Node", "")
		node1 := mustRecord(t, reg, "Node", "")
		if err := node1.SetInt("count", 9); err != nil {
			t.Fatalf("SetInt error = %v", err)
		}
		ref, _ := node0.GetRef("child")
		ref.Target = node1

		if v, ok := lookupPath(node0, []string{"child", "count"}); !ok || v != 9 {
			t.Errorf("lookupPath(child.count) = %d, %v, want 9", v, ok)
		}
		// a reference leaf coerces to its bound/unbound state
		if v, ok := lookupPath(node0, []string{"child"}); !ok || v != 1 {
			t.Errorf("lookupPath(child) = %d, %v, want 1", v, ok)
		}
		if v, ok := lookupPath(node0, []string{"shadow"}); !ok || v != 0 {
			t.Errorf("lookupPath(shadow) = %d, %v, want 0", v, ok)
		}
	})

	t.Run("missing segments", func(t *testing.T) {
		rec := mustRecord(t, reg, "Node", "")
		if _, ok := lookupPath(rec, []string{"nope"}); ok {
			t.Error("unknown field should not resolve")
		}
		if _, ok := lookupPath(rec, []string{"child", "count"}); ok {
			t.Error("null reference should not resolve a nested path")
		}
		if _, ok := lookupPath(rec, []string{"count", "deeper"}); ok {
			t.Error("scalars have no nested fields")
		}
	})
}
