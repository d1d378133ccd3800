package cgf

import (
	"fmt"
	"io"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Write encodes the container: envelope, chunk bodies padded to four-byte
// boundaries, and the chunk table. The Crysis variant writes the table
// directly after the envelope and patches it once body offsets are known;
// the others append it after the last body. Either way the envelope's
// table-offset word is patched last.
//
// Chunk ids are assigned from table positions, and references encode the
// id of their target. A reference to a record outside d.Chunks degrades to
// the null index and is reported in d.Warnings.
func Write(w io.WriteSeeker, d *Data) error {
	reg := d.registry()
	names, err := newChunkNames(reg)
	if err != nil {
		return err
	}
	uv, err := userVersionFor(d.Game)
	if err != nil {
		return err
	}
	if d.FileType != FileTypeGeometry && d.FileType != FileTypeAnimation {
		return fmt.Errorf("unknown file type %#08x: %w", d.FileType, stream.ErrMalformedEnvelope)
	}
	if d.Versions == nil && len(d.Chunks) > 0 {
		if err := d.UpdateVersions(); err != nil {
			return err
		}
	}
	if len(d.Versions) != len(d.Chunks) {
		return fmt.Errorf("container has %d chunks but %d chunk versions", len(d.Chunks), len(d.Versions))
	}
	version := d.Version
	if version == 0 {
		version = Version
	}

	rows := make([]TableEntry, len(d.Chunks))
	index := make(graph.BlockIndexMap, len(d.Chunks))
	for i, rec := range d.Chunks {
		tv, ok := names.value(rec.Type().Name)
		if !ok {
			return fmt.Errorf("%s has no chunk-table type value: %w",
				rec.Type().Name, stream.ErrUnknownRecordType)
		}
		rows[i] = TableEntry{
			Type:     tv,
			TypeName: rec.Type().Name,
			Version:  d.Versions[i],
			ID:       int32(i),
		}
		index[rec] = int32(i)
	}

	warn := stream.NewWarnings(nil, false)
	ctx := stream.NewContext(version)
	ctx.UserVersion = uv
	ctx.Vendor = d.Game
	st := &object.State{
		Reg:      reg,
		Ctx:      ctx,
		Warn:     warn,
		Links:    &stream.LinkTable{},
		RefIndex: index.RefIndex,
		NullRef:  NullRef,
	}

	sw := stream.NewWriter(w)
	anim := d.FileType == FileTypeAnimation
	hdrPos := sw.Offset()

	sig := make([]byte, signatureLen)
	copy(sig, gameSignature(d.Game))
	if _, err := sw.Write(sig); err != nil {
		return err
	}
	if err := sw.WriteUint32(d.FileType); err != nil {
		return err
	}
	if err := sw.WriteUint32(version); err != nil {
		return err
	}
	// Table offset, patched once the table lands.
	if err := sw.WriteUint32(0); err != nil {
		return err
	}

	var tablePos int64
	if uv == UserVersionCrysis {
		tablePos = sw.Offset()
		if err := writeTable(sw, rows); err != nil {
			return err
		}
	}

	for i, rec := range d.Chunks {
		rows[i].Offset = uint32(sw.Offset())
		option, _ := names.option(rec.Type().Name)
		if !bareChunk(uv, d.Game, anim, false, option) {
			if err := writeChunkHeader(sw, rows[i]); err != nil {
				return err
			}
		}
		st.Ctx = ctx.WithVersion(rows[i].Version)
		st.Block = i
		if err := st.EncodeRecord(sw, rec); err != nil {
			return fmt.Errorf("chunk %d (%s): %w", i, rec.Type().Name, err)
		}
		if pad := padUp4(sw.Offset()) - sw.Offset(); pad > 0 {
			if err := sw.WriteZeros(int(pad)); err != nil {
				return err
			}
		}
	}

	if uv == UserVersionCrysis {
		endPos := sw.Offset()
		if err := sw.Seek(tablePos, io.SeekStart); err != nil {
			return err
		}
		if err := writeTable(sw, rows); err != nil {
			return err
		}
		if err := sw.Seek(endPos, io.SeekStart); err != nil {
			return err
		}
	} else {
		tablePos = sw.Offset()
		if err := writeTable(sw, rows); err != nil {
			return err
		}
	}

	if err := sw.PatchUint32(hdrPos+16, uint32(tablePos)); err != nil {
		return err
	}

	d.Warnings = append(d.Warnings, warn.List()...)
	return nil
}

func writeTable(sw *stream.Writer, rows []TableEntry) error {
	if err := sw.WriteUint32(uint32(len(rows))); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeChunkHeader(sw, row); err != nil {
			return err
		}
	}
	return nil
}

func writeChunkHeader(sw *stream.Writer, row TableEntry) error {
	if err := sw.WriteUint32(row.Type); err != nil {
		return err
	}
	if err := sw.WriteUint32(row.Version); err != nil {
		return err
	}
	if err := sw.WriteUint32(row.Offset); err != nil {
		return err
	}
	return sw.WriteInt32(row.ID)
}
