package nif

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Write encodes the container for its version: banner, header sections,
// block bodies in linearized order, and the root trailer. Everything
// reachable from d.Roots through owning references is serialized exactly
// once; d.Blocks is not consulted.
//
// The header carries the string pool and the per-block sizes, both only
// known once the bodies exist, so bodies are encoded into memory first
// and copied out after the header. A reference to a record outside the
// linearized graph degrades to the null index and is reported in
// d.Warnings.
func Write(w io.WriteSeeker, d *Data) error {
	reg := d.registry()
	version := d.Version
	if version == 0 {
		return fmt.Errorf("container version is unset: %w", stream.ErrUnsupportedVersion)
	}
	word, err := versionWord(version, d.Modification)
	if err != nil {
		return err
	}

	plan := graph.Linearize(d.Roots, graph.LinearizeOptions{
		TypeName:     streamTypeName,
		ChildFirst:   physicsChildFirst,
		Predecessors: constraintEntities,
	})

	var order binary.ByteOrder = binary.LittleEndian
	if d.BigEndian {
		order = binary.BigEndian
	}
	warn := stream.NewWarnings(nil, false)
	ctx := stream.NewContext(version)
	ctx.UserVersion = d.UserVersion
	ctx.UserVersion2 = d.UserVersion2
	ctx.Vendor = d.Modification
	ctx.Order = order

	var pool *object.StringPool
	if version >= versionStrings {
		pool = object.NewStringPool()
	}
	st := &object.State{
		Reg:         reg,
		Ctx:         ctx,
		Warn:        warn,
		Links:       &stream.LinkTable{},
		Pool:        pool,
		PoolCutover: versionStrings,
		RefIndex:    wireIndex(plan.Index, version),
		NullRef:     nullRefFor(version),
	}

	bodies := make([][]byte, len(plan.Blocks))
	for i, rec := range plan.Blocks {
		var buf bodyBuffer
		bw := stream.NewWriter(&buf)
		bw.Order = order
		st.Block = i
		if err := st.EncodeRecord(bw, rec); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, rec.Type().Name, err)
		}
		bodies[i] = buf.buf
	}

	sw := stream.NewWriter(w)
	if err := writeLine(sw, banner(version, d.Modification)); err != nil {
		return err
	}
	if version <= versionCopyright {
		for _, line := range d.Copyright {
			if err := writeLine(sw, line); err != nil {
				return err
			}
		}
	}
	if version >= versionWordMin {
		if err := sw.WriteUint32(word); err != nil {
			return err
		}
	}
	if version >= versionEndian {
		e := uint8(1)
		if d.BigEndian {
			e = 0
		}
		if err := sw.WriteUint8(e); err != nil {
			return err
		}
	}
	sw.Order = order
	if err := writeHeaderTables(sw, d, plan, bodies, pool); err != nil {
		return err
	}

	rootSet := make(map[*object.Record]bool, len(d.Roots))
	for _, r := range d.Roots {
		rootSet[r] = true
	}
	for i, rec := range plan.Blocks {
		switch {
		case version < versionWordMin:
			if rootSet[rec] {
				if err := writeSizedString(sw, sentinelRoot); err != nil {
					return err
				}
			}
			if err := writeSizedString(sw, streamTypeName(rec)); err != nil {
				return err
			}
		case version < versionBlockType:
			if err := writeSizedString(sw, streamTypeName(rec)); err != nil {
				return err
			}
		case version <= versionSepMax:
			if err := sw.WriteUint32(0); err != nil {
				return err
			}
		}
		if _, err := sw.Write(bodies[i]); err != nil {
			return err
		}
	}

	if version >= versionWordMin {
		foot, err := newFooter(reg, d.Roots)
		if err != nil {
			return err
		}
		st.Block = len(plan.Blocks)
		if err := st.EncodeRecord(sw, foot); err != nil {
			return fmt.Errorf("footer: %w", err)
		}
	} else {
		if err := writeSizedString(sw, sentinelEOF); err != nil {
			return err
		}
	}

	d.Warnings = append(d.Warnings, warn.List()...)
	return nil
}

// writeHeaderTables emits the version-gated counted sections between the
// endian flag and the first block.
func writeHeaderTables(sw *stream.Writer, d *Data, plan *graph.Plan, bodies [][]byte, pool *object.StringPool) error {
	version := d.Version
	if version >= versionUserVer {
		if err := sw.WriteUint32(d.UserVersion); err != nil {
			return err
		}
	}
	if version >= versionWordMin {
		if err := sw.WriteUint32(uint32(len(plan.Blocks))); err != nil {
			return err
		}
	}
	if version >= versionUserVer && d.UserVersion >= 10 {
		if err := sw.WriteUint32(d.UserVersion2); err != nil {
			return err
		}
	}
	if version >= versionBlockType {
		names := plan.Types.Names()
		if err := sw.WriteUint16(uint16(len(names))); err != nil {
			return err
		}
		for _, name := range names {
			if err := writeSizedString(sw, name); err != nil {
				return err
			}
		}
		for _, ti := range plan.TypeIndex {
			if err := sw.WriteUint16(uint16(ti)); err != nil {
				return err
			}
		}
	}
	if version >= versionSizes {
		for _, body := range bodies {
			if err := sw.WriteUint32(uint32(len(body))); err != nil {
				return err
			}
		}
	}
	if version >= versionStrings {
		if err := sw.WriteUint32(uint32(pool.Len())); err != nil {
			return err
		}
		if err := sw.WriteUint32(uint32(pool.MaxLength())); err != nil {
			return err
		}
		for _, s := range pool.Strings() {
			if err := writeSizedString(sw, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireIndex adapts the plan's zero-based positions to the container's
// reference convention.
func wireIndex(index graph.BlockIndexMap, version uint32) func(*object.Record) (int32, bool) {
	if version >= versionWordMin {
		return index.RefIndex
	}
	return func(rec *object.Record) (int32, bool) {
		i, ok := index[rec]
		return i + 1, ok
	}
}

// physicsChildFirst reports the table-order exception for ref-counted
// physics objects: they receive their index before the record that owns
// them. Constraints are exempt; they follow their rigid bodies instead.
func physicsChildFirst(child *object.Record) bool {
	return child.Type().IsDescendantOf("bhkRefObject") &&
		!child.Type().IsDescendantOf("bhkConstraint")
}

// constraintEntities lists the rigid bodies a constraint binds. They ride
// weak references, which linearization never follows, yet the on-disk
// order demands they precede the constraint.
func constraintEntities(rec *object.Record) []*object.Record {
	if !rec.Type().IsDescendantOf("bhkConstraint") {
		return nil
	}
	v, _ := rec.Get("entities")
	arr, ok := v.(*object.Array)
	if !ok {
		return nil
	}
	var out []*object.Record
	for _, e := range arr.Elems {
		if ref, ok := e.(*object.Ref); ok && ref.Target != nil {
			out = append(out, ref.Target)
		}
	}
	return out
}

func newFooter(reg *schema.Registry, roots []*object.Record) (*object.Record, error) {
	rt, err := reg.Resolve("Footer")
	if err != nil {
		return nil, fmt.Errorf("type Footer is not in the schema: %w", stream.ErrUnknownRecordType)
	}
	foot, err := object.New(rt, reg, "")
	if err != nil {
		return nil, err
	}
	if err := foot.SetInt("num_roots", int64(len(roots))); err != nil {
		return nil, err
	}
	elems := make([]object.Value, len(roots))
	for i, r := range roots {
		elems[i] = &object.Ref{Target: r}
	}
	if err := foot.Set("roots", &object.Array{Elems: elems}); err != nil {
		return nil, err
	}
	return foot, nil
}

func writeLine(sw *stream.Writer, s string) error {
	if _, err := sw.Write([]byte(s)); err != nil {
		return err
	}
	return sw.WriteUint8('\n')
}

func writeSizedString(sw *stream.Writer, s string) error {
	if len(s) > object.MaxSizedString {
		return fmt.Errorf("string of %d bytes exceeds %d: %w",
			len(s), object.MaxSizedString, stream.ErrMalformedLength)
	}
	if err := sw.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := sw.Write([]byte(s))
	return err
}

// bodyBuffer is an in-memory WriteSeeker for the body prepass. Block
// encodes never seek, but the stream writer wants the interface.
type bodyBuffer struct {
	buf []byte
	pos int64
}

func (b *bodyBuffer) Write(p []byte) (int, error) {
	if need := b.pos + int64(len(p)); need > int64(len(b.buf)) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += int64(len(p))
	return len(p), nil
}

func (b *bodyBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = b.pos + offset
	case io.SeekEnd:
		next = int64(len(b.buf)) + offset
	}
	if next < 0 {
		return 0, fmt.Errorf("seek to %d before the buffer start", next)
	}
	b.pos = next
	return next, nil
}
