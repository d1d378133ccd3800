package cgf

import (
	"bytes"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Inspect reads the envelope and chunk table without touching chunk
// bodies, then puts the cursor back where it was.
func Inspect(r io.ReadSeeker, opts *Options) (*Summary, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	sum, err := readDirectory(r, o)
	if _, serr := r.Seek(pos, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// Read decodes a whole container: envelope, chunk table, every chunk body
// under its table-declared record version, then reference resolution
// across the finished graph.
func Read(r io.ReadSeeker, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	sum, err := readDirectory(r, o)
	if err != nil {
		return nil, err
	}
	names, err := newChunkNames(o.Registry)
	if err != nil {
		return nil, err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	sizes := declaredSizes(sum, end)

	warn := stream.NewWarnings(o.Log, o.Strict)
	ctx := stream.NewContext(sum.Version)
	ctx.UserVersion = sum.UserVersion
	ctx.Vendor = sum.Game
	st := &object.State{
		Reg:     o.Registry,
		Ctx:     ctx,
		Warn:    warn,
		Links:   &stream.LinkTable{},
		NullRef: NullRef,
	}

	sr := stream.NewReader(r)
	anim := sum.FileType == FileTypeAnimation
	chunks := make([]*object.Record, len(sum.Table))
	versions := make([]uint32, len(sum.Table))
	byID := make(map[int32]*object.Record, len(sum.Table))

	for i, row := range sum.Table {
		typeName, ok := names.recordType(row.Type)
		if !ok {
			return nil, fmt.Errorf("chunk %d has table type %#08x: %w",
				i, row.Type, stream.ErrUnknownRecordType)
		}
		rt, err := o.Registry.Resolve(typeName)
		if err != nil {
			return nil, fmt.Errorf("chunk %d type %s is undecoded: %w",
				i, typeName, stream.ErrUnknownRecordType)
		}
		if !supportsVersion(rt, sum.Game, row.Version) {
			o.Log.Warn("record version not expected for game",
				zap.String("type", typeName),
				zap.String("game", sum.Game),
				zap.Uint32("version", row.Version))
		}
		rec, err := object.New(rt, o.Registry, "")
		if err != nil {
			return nil, err
		}

		if err := sr.Seek(int64(row.Offset), io.SeekStart); err != nil {
			return nil, err
		}
		option, _ := names.option(typeName)
		if !bareChunk(sum.UserVersion, sum.Game, anim, true, option) {
			if err := checkHeaderCopy(sr, row); err != nil {
				return nil, err
			}
		}

		st.Ctx = ctx.WithVersion(row.Version)
		st.Block = i
		if err := st.DecodeRecord(sr, rec); err != nil {
			return nil, fmt.Errorf("chunk %d (%s): %w", i, typeName, err)
		}

		read := sr.Offset() - int64(row.Offset)
		if read != sizes[i] && padUp4(read) != sizes[i] {
			if err := warn.Add(stream.IntegrityMismatch, i, "",
				"chunk spans %d bytes where the table gives %d", read, sizes[i]); err != nil {
				return nil, err
			}
		}

		byID[row.ID] = rec
		chunks[i] = rec
		versions[i] = row.Version
	}

	pol := graph.ResolvePolicy{
		Sentinel: func(idx int32) bool { return idx == NullRef },
		ByIndex: func(idx int32) (*object.Record, bool) {
			rec, ok := byID[idx]
			return rec, ok
		},
		CheckType:         graph.CheckInheritance,
		SilentZeroMistype: true,
		ContextFor: func(i int) *stream.Context {
			return ctx.WithVersion(versions[i])
		},
	}
	if err := graph.ResolveAll(st, chunks, pol); err != nil {
		return nil, err
	}

	return &Data{
		Game:     sum.Game,
		FileType: sum.FileType,
		Version:  sum.Version,
		Chunks:   chunks,
		Versions: versions,
		Warnings: warn.List(),
		phase:    graph.Resolved,
		reg:      o.Registry,
	}, nil
}

// readDirectory parses the envelope and the chunk table, leaving the
// cursor wherever the table ends.
func readDirectory(r io.ReadSeeker, o Options) (*Summary, error) {
	sr := stream.NewReader(r)

	sig, err := sr.ReadFull(signatureLen)
	if err != nil {
		return nil, err
	}
	var game string
	switch {
	case bytes.HasPrefix(sig, []byte(signatureAion)):
		game = GameAion
	case bytes.HasPrefix(sig, []byte(signatureFarCry)):
		game = "" // Far Cry or Crysis, settled by the table offset
	default:
		return nil, fmt.Errorf("signature %q is not a chunk-table container: %w",
			sig, stream.ErrMalformedEnvelope)
	}

	fileType, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if fileType != FileTypeGeometry && fileType != FileTypeAnimation {
		return nil, fmt.Errorf("unknown file type %#08x: %w", fileType, stream.ErrMalformedEnvelope)
	}
	version, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if !o.Registry.SupportsVersion(version) {
		if !o.BestEffort {
			return nil, fmt.Errorf("container version %#x: %w", version, stream.ErrUnsupportedVersion)
		}
		o.Log.Warn("container version outside the schema table, reading anyway",
			zap.Uint32("version", version))
	}
	tableOffset, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if game == "" {
		if tableOffset == crysisTableOffset {
			game = GameCrysis
		} else {
			game = GameFarCry
		}
	}
	uv, err := userVersionFor(game)
	if err != nil {
		return nil, err
	}

	names, err := newChunkNames(o.Registry)
	if err != nil {
		return nil, err
	}
	if err := sr.Seek(int64(tableOffset), io.SeekStart); err != nil {
		return nil, err
	}
	count, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if count > object.MaxArrayLen {
		return nil, fmt.Errorf("chunk table declares %d rows: %w", count, stream.ErrMalformedLength)
	}

	table := make([]TableEntry, count)
	seen := make(map[int32]int, count)
	for i := range table {
		row, err := readTableRow(sr)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[row.ID]; dup {
			return nil, fmt.Errorf("chunk id %d used by rows %d and %d: %w",
				row.ID, prev, i, stream.ErrMalformedEnvelope)
		}
		seen[row.ID] = i
		row.TypeName, _ = names.recordType(row.Type)
		table[i] = row
	}

	return &Summary{
		Game:        game,
		FileType:    fileType,
		Version:     version,
		UserVersion: uv,
		TableOffset: tableOffset,
		Table:       table,
	}, nil
}

func readTableRow(sr *stream.Reader) (TableEntry, error) {
	var row TableEntry
	var err error
	if row.Type, err = sr.ReadUint32(); err != nil {
		return row, err
	}
	if row.Version, err = sr.ReadUint32(); err != nil {
		return row, err
	}
	if row.Offset, err = sr.ReadUint32(); err != nil {
		return row, err
	}
	if row.ID, err = sr.ReadInt32(); err != nil {
		return row, err
	}
	return row, nil
}

// checkHeaderCopy consumes the redundant chunk header most bodies open
// with and cross-checks it against the table row. The offset word is
// exempt; exporters never agreed on it.
func checkHeaderCopy(sr *stream.Reader, row TableEntry) error {
	typ, err := sr.ReadUint32()
	if err != nil {
		return err
	}
	ver, err := sr.ReadUint32()
	if err != nil {
		return err
	}
	if _, err := sr.ReadUint32(); err != nil {
		return err
	}
	id, err := sr.ReadInt32()
	if err != nil {
		return err
	}
	if typ != row.Type || ver != row.Version || id != row.ID {
		return fmt.Errorf("chunk %d header copy disagrees with the table: %w",
			row.ID, stream.ErrMalformedEnvelope)
	}
	return nil
}

// declaredSizes derives each chunk's size from the gap to the next
// greater offset, the table offset included, with the stream end as the
// final bound.
func declaredSizes(sum *Summary, end int64) []int64 {
	bounds := make([]int64, 0, len(sum.Table)+1)
	for _, row := range sum.Table {
		bounds = append(bounds, int64(row.Offset))
	}
	bounds = append(bounds, int64(sum.TableOffset))

	sizes := make([]int64, len(sum.Table))
	for i, row := range sum.Table {
		off := int64(row.Offset)
		size := end - off
		for _, b := range bounds {
			if b > off && b-off < size {
				size = b - off
			}
		}
		sizes[i] = size
	}
	return sizes
}

func padUp4(n int64) int64 {
	return (n + 3) &^ 3
}
