package toaster

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ssargent/niflheim/pkg/object"
)

// Built-in spell names.
const (
	SpellCheckNop       = "check_nop"
	SpellCheckRead      = "check_read"
	SpellCheckReadWrite = "check_readwrite"
	SpellDump           = "dump"
	SpellStats          = "stats"
)

func builtinSpells() map[string]Factory {
	return map[string]Factory{
		SpellCheckNop:       func() Spell { return &checkNop{} },
		SpellCheckRead:      func() Spell { return &checkRead{} },
		SpellCheckReadWrite: func() Spell { return &checkReadWrite{} },
		SpellDump:           func() Spell { return &dumpSpell{} },
		SpellStats:          func() Spell { return &statsSpell{} },
	}
}

// checkNop refuses every file at the envelope gate. It exists to
// exercise the walking and matching machinery alone.
type checkNop struct {
	Base
}

func (*checkNop) Name() string           { return SpellCheckNop }
func (*checkNop) DataInspect(*File) bool { return false }

// checkRead reads every file in full and stops there.
type checkRead struct {
	Base
}

func (*checkRead) Name() string         { return SpellCheckRead }
func (*checkRead) DataEntry(*File) bool { return false }

// checkReadWrite reads every file in full, re-encodes it into a
// discarded temporary file, and fails the file unless the output is
// byte-identical to the original. The original is never touched.
type checkReadWrite struct {
	Base
}

func (*checkReadWrite) Name() string { return SpellCheckReadWrite }

func (s *checkReadWrite) DataEntry(f *File) bool {
	want, err := os.ReadFile(f.Path)
	if err != nil {
		f.Failf("rereading original: %v", err)
		return false
	}
	got, err := encodeDiscard(f.Format, f.Doc)
	if err != nil {
		f.Failf("re-encoding: %v", err)
		return false
	}
	if len(got) != len(want) {
		f.Failf("round trip wrote %d bytes, original has %d", len(got), len(want))
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			f.Failf("round trip differs at offset %d", i)
			return false
		}
	}
	f.Log.Debug("round trip is byte-identical")
	return false
}

// encodeDiscard runs doc through its format encoder into a temporary
// file that never survives the call, and returns the bytes written.
func encodeDiscard(format Format, doc Document) ([]byte, error) {
	tmp, err := os.CreateTemp("", "toast-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if err := format.Write(tmp, doc); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(tmp)
}

// dumpSpell prints the record tree, fields included, to the run's
// output sink.
type dumpSpell struct {
	Base
}

func (*dumpSpell) Name() string { return SpellDump }

func (s *dumpSpell) DataEntry(f *File) bool {
	fmt.Fprintf(f.Out, "%s: %s %s", f.Path, f.Header.Format, f.Header.VersionTag)
	if f.Header.Vendor != "" {
		fmt.Fprintf(f.Out, " (%s)", f.Header.Vendor)
	}
	if f.Header.NumRecords > 0 {
		fmt.Fprintf(f.Out, ", %d records", f.Header.NumRecords)
	}
	fmt.Fprintln(f.Out)
	return true
}

func (s *dumpSpell) BranchEntry(f *File, rec *object.Record) bool {
	indent := strings.Repeat("  ", f.Depth+1)
	fmt.Fprintf(f.Out, "%s%s%s\n", indent, rec.Type().Name, displayName(rec))
	for _, name := range rec.FieldNames() {
		v, _ := rec.Get(name)
		fmt.Fprintf(f.Out, "%s  %s: %s\n", indent, name, renderValue(v))
	}
	return true
}

func (s *dumpSpell) DataExit(f *File) {
	for _, w := range f.Doc.Warnings() {
		fmt.Fprintf(f.Out, "  warning: %s\n", w.Msg)
	}
}

func displayName(rec *object.Record) string {
	if s, ok := rec.GetString("name"); ok && s != "" {
		return fmt.Sprintf(" %q", s)
	}
	return ""
}

// renderValue formats one field value on a single line. Long arrays cut
// off after sixteen elements.
func renderValue(v object.Value) string {
	switch t := v.(type) {
	case object.Int:
		return strconv.FormatInt(t.V, 10)
	case object.Float:
		return strconv.FormatFloat(t.V, 'g', -1, 64)
	case object.Str:
		return strconv.Quote(t.V)
	case object.Bytes:
		return fmt.Sprintf("<%d bytes>", len(t.V))
	case *object.Flags:
		parts := make([]string, len(t.Type.Slots))
		for i, slot := range t.Type.Slots {
			parts[i] = fmt.Sprintf("%s=%d", slot.Name, t.Slots[i])
		}
		return "(" + strings.Join(parts, " ") + ")"
	case *object.Array:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range t.Elems {
			if i == 16 {
				b.WriteString(", etc...")
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(renderValue(e))
		}
		b.WriteByte(']')
		return b.String()
	case *object.Ref:
		if t.Target == nil {
			return "null"
		}
		arrow := "->"
		if t.Weak {
			arrow = "~>"
		}
		return fmt.Sprintf("%s %s%s", arrow, t.Target.Type().Name, displayName(t.Target))
	case *object.Record:
		parts := make([]string, 0, len(t.FieldNames()))
		for _, name := range t.FieldNames() {
			inner, _ := t.Get(name)
			parts = append(parts, fmt.Sprintf("%s: %s", name, renderValue(inner)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

// statsSpell tallies record types; the run report aggregates the tally
// across every file of the run.
type statsSpell struct {
	Base
}

func (*statsSpell) Name() string { return SpellStats }

func (s *statsSpell) BranchEntry(f *File, rec *object.Record) bool {
	f.CountType(rec.Type().Name)
	return true
}
