package nif

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// header is everything the envelope stores ahead of the block bodies.
type header struct {
	version      uint32
	mod          string
	bigEndian    bool
	userVersion  uint32
	userVersion2 uint32
	copyright    [3]string
	numBlocks    int
	blockTypes   []string
	typeIndex    []uint16
	sizes        []uint32
	strings      []string
}

// Inspect reads the envelope without touching block bodies, then puts
// the cursor back where it was.
func Inspect(r io.ReadSeeker, opts *Options) (*Summary, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(stream.NewReader(r), o)
	if _, serr := r.Seek(pos, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Version:      h.version,
		Modification: h.mod,
		BigEndian:    h.bigEndian,
		UserVersion:  h.userVersion,
		UserVersion2: h.userVersion2,
		NumBlocks:    h.numBlocks,
		BlockTypes:   h.blockTypes,
		NumStrings:   len(h.strings),
	}
	if len(h.typeIndex) > 0 {
		sum.BlockTypeIndex = make([]int, len(h.typeIndex))
		for i, ti := range h.typeIndex {
			sum.BlockTypeIndex[i] = int(ti)
		}
	}
	return sum, nil
}

// Read decodes a whole container: envelope, every block body, the root
// trailer, then reference resolution across the finished graph.
func Read(r io.ReadSeeker, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	sr := stream.NewReader(r)
	h, err := readHeader(sr, o)
	if err != nil {
		return nil, err
	}

	warn := stream.NewWarnings(o.Log, o.Strict)
	ctx := stream.NewContext(h.version)
	ctx.UserVersion = h.userVersion
	ctx.UserVersion2 = h.userVersion2
	ctx.Vendor = h.mod
	if h.bigEndian {
		ctx.Order = binary.BigEndian
	}
	var pool *object.StringPool
	if h.version >= versionStrings {
		pool = object.NewStringPool()
		pool.Load(h.strings)
	}
	st := &object.State{
		Reg:         o.Registry,
		Ctx:         ctx,
		Warn:        warn,
		Links:       &stream.LinkTable{},
		Pool:        pool,
		PoolCutover: versionStrings,
	}

	var (
		blocks  []*object.Record
		roots   []*object.Record
		byIndex map[int32]*object.Record
	)
	if h.version >= versionWordMin {
		blocks, byIndex, err = readBlocks(sr, st, h, warn)
	} else {
		blocks, roots, byIndex, err = readSentinelBlocks(sr, st)
	}
	if err != nil {
		return nil, err
	}

	resolveBlocks := blocks
	var foot *object.Record
	if h.version >= versionWordMin {
		foot, err = newBlockRecord(st.Reg, "Footer")
		if err != nil {
			return nil, err
		}
		st.Block = len(blocks)
		if err := st.DecodeRecord(sr, foot); err != nil {
			return nil, fmt.Errorf("footer: %w", err)
		}
		resolveBlocks = append(append([]*object.Record{}, blocks...), foot)
	}

	if _, err := sr.ReadUint8(); err == nil {
		return nil, fmt.Errorf("stream continues past the container end: %w",
			stream.ErrMalformedEnvelope)
	} else if !errors.Is(err, stream.ErrTruncatedStream) {
		return nil, err
	}

	pol := graph.ResolvePolicy{
		Sentinel: func(idx int32) bool { return idx == nullRefFor(h.version) },
		ByIndex: func(idx int32) (*object.Record, bool) {
			rec, ok := byIndex[idx]
			return rec, ok
		},
		CheckType: graph.CheckInheritance,
	}
	if err := graph.ResolveAll(st, resolveBlocks, pol); err != nil {
		return nil, err
	}
	if foot != nil {
		roots = footerRoots(foot)
	}

	return &Data{
		Version:      h.version,
		UserVersion:  h.userVersion,
		UserVersion2: h.userVersion2,
		Modification: h.mod,
		BigEndian:    h.bigEndian,
		Copyright:    h.copyright,
		Blocks:       blocks,
		Roots:        roots,
		Warnings:     warn.List(),
		phase:        graph.Resolved,
		reg:          o.Registry,
	}, nil
}

// readBlocks decodes the counted block stream of 3.3.0.13 and newer.
// Indices are zero-based table positions.
func readBlocks(sr *stream.Reader, st *object.State, h *header, warn *stream.Warnings) ([]*object.Record, map[int32]*object.Record, error) {
	blocks := make([]*object.Record, h.numBlocks)
	byIndex := make(map[int32]*object.Record, h.numBlocks)
	for i := 0; i < h.numBlocks; i++ {
		var typeName string
		if h.version >= versionBlockType {
			ti := int(h.typeIndex[i])
			if ti >= len(h.blockTypes) {
				return nil, nil, fmt.Errorf("block %d type index %d beyond table of %d: %w",
					i, ti, len(h.blockTypes), stream.ErrMalformedEnvelope)
			}
			typeName = h.blockTypes[ti]
			if h.version <= versionSepMax {
				sep, err := sr.ReadUint32()
				if err != nil {
					return nil, nil, err
				}
				if sep != 0 {
					return nil, nil, fmt.Errorf("block %d separator %#x is not zero: %w",
						i, sep, stream.ErrMalformedEnvelope)
				}
			}
		} else {
			var err error
			if typeName, err = readSizedString(sr); err != nil {
				return nil, nil, err
			}
		}

		rec, err := newBlockRecord(st.Reg, typeName)
		if err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", i, err)
		}
		start := sr.Offset()
		st.Block = i
		if err := st.DecodeRecord(sr, rec); err != nil {
			return nil, nil, fmt.Errorf("block %d (%s): %w", i, typeName, err)
		}
		if h.sizes != nil {
			read := sr.Offset() - start
			declared := int64(h.sizes[i])
			if read != declared {
				if err := warn.Add(stream.IntegrityMismatch, i, "",
					"block spans %d bytes where the header gives %d", read, declared); err != nil {
					return nil, nil, err
				}
				if err := sr.Seek(start+declared, io.SeekStart); err != nil {
					return nil, nil, err
				}
			}
		}
		blocks[i] = rec
		byIndex[int32(i)] = rec
	}
	return blocks, byIndex, nil
}

// readSentinelBlocks decodes the uncounted block stream older containers
// use: each block is preceded by its type name, roots are flagged by a
// sentinel string, and another sentinel ends the stream. Indices are
// one-based.
func readSentinelBlocks(sr *stream.Reader, st *object.State) ([]*object.Record, []*object.Record, map[int32]*object.Record, error) {
	var blocks, roots []*object.Record
	byIndex := make(map[int32]*object.Record)
	for {
		if len(blocks) >= object.MaxArrayLen {
			return nil, nil, nil, fmt.Errorf("block stream never ends: %w", stream.ErrMalformedLength)
		}
		s, err := readSizedString(sr)
		if err != nil {
			return nil, nil, nil, err
		}
		isRoot := false
		if s == sentinelRoot {
			isRoot = true
			if s, err = readSizedString(sr); err != nil {
				return nil, nil, nil, err
			}
		}
		if s == sentinelEOF {
			break
		}

		rec, err := newBlockRecord(st.Reg, s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		st.Block = len(blocks)
		if err := st.DecodeRecord(sr, rec); err != nil {
			return nil, nil, nil, fmt.Errorf("block %d (%s): %w", len(blocks), s, err)
		}
		blocks = append(blocks, rec)
		byIndex[int32(len(blocks))] = rec
		if isRoot {
			roots = append(roots, rec)
		}
	}
	return blocks, roots, byIndex, nil
}

// readHeader parses the envelope, leaving the cursor at the first block.
func readHeader(sr *stream.Reader, o Options) (*header, error) {
	line, err := sr.ReadLine(maxBannerLen)
	if err != nil {
		return nil, err
	}
	version, mod, err := parseBanner(string(line))
	if err != nil {
		return nil, err
	}
	if !o.Registry.SupportsVersion(version) {
		if !o.BestEffort {
			return nil, fmt.Errorf("container version %s: %w",
				VersionString(version), stream.ErrUnsupportedVersion)
		}
		o.Log.Warn("container version outside the schema table, reading anyway",
			zap.String("version", VersionString(version)))
	}
	h := &header{version: version, mod: mod}

	if version <= versionCopyright {
		for i := range h.copyright {
			line, err := sr.ReadLine(object.MaxZString)
			if err != nil {
				return nil, err
			}
			h.copyright[i] = string(line)
		}
	}
	if version < versionWordMin {
		return h, nil
	}

	word, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	expect, err := versionWord(version, mod)
	if err != nil {
		return nil, err
	}
	if word != expect {
		return nil, fmt.Errorf("version word %#08x does not repeat the banner's %s: %w",
			word, VersionString(version), stream.ErrMalformedEnvelope)
	}

	if version >= versionEndian {
		e, err := sr.ReadUint8()
		if err != nil {
			return nil, err
		}
		switch e {
		case 0:
			h.bigEndian = true
			sr.Order = binary.BigEndian
		case 1:
		default:
			return nil, fmt.Errorf("endian flag %d: %w", e, stream.ErrMalformedEnvelope)
		}
	}
	if version >= versionUserVer {
		if h.userVersion, err = sr.ReadUint32(); err != nil {
			return nil, err
		}
	}
	numBlocks, err := sr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if numBlocks > object.MaxArrayLen {
		return nil, fmt.Errorf("header declares %d blocks: %w", numBlocks, stream.ErrMalformedLength)
	}
	h.numBlocks = int(numBlocks)
	if version >= versionUserVer && h.userVersion >= 10 {
		if h.userVersion2, err = sr.ReadUint32(); err != nil {
			return nil, err
		}
	}

	if version >= versionBlockType {
		numTypes, err := sr.ReadUint16()
		if err != nil {
			return nil, err
		}
		h.blockTypes = make([]string, numTypes)
		for i := range h.blockTypes {
			if h.blockTypes[i], err = readSizedString(sr); err != nil {
				return nil, err
			}
		}
		h.typeIndex = make([]uint16, h.numBlocks)
		for i := range h.typeIndex {
			ti, err := sr.ReadUint16()
			if err != nil {
				return nil, err
			}
			// The high bit is an engine-side flag, not part of the index.
			h.typeIndex[i] = ti & 0x7FFF
		}
	}
	if version >= versionSizes {
		h.sizes = make([]uint32, h.numBlocks)
		for i := range h.sizes {
			if h.sizes[i], err = sr.ReadUint32(); err != nil {
				return nil, err
			}
		}
	}
	if version >= versionStrings {
		numStrings, err := sr.ReadUint32()
		if err != nil {
			return nil, err
		}
		if numStrings > object.MaxArrayLen {
			return nil, fmt.Errorf("header declares %d strings: %w", numStrings, stream.ErrMalformedLength)
		}
		// The longest-string hint is redundant on read.
		if _, err := sr.ReadUint32(); err != nil {
			return nil, err
		}
		h.strings = make([]string, numStrings)
		for i := range h.strings {
			if h.strings[i], err = readSizedString(sr); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func footerRoots(foot *object.Record) []*object.Record {
	v, _ := foot.Get("roots")
	arr, ok := v.(*object.Array)
	if !ok {
		return nil
	}
	var roots []*object.Record
	for _, e := range arr.Elems {
		if ref, ok := e.(*object.Ref); ok && ref.Target != nil {
			roots = append(roots, ref.Target)
		}
	}
	return roots
}

func readSizedString(sr *stream.Reader) (string, error) {
	n, err := sr.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > object.MaxSizedString {
		return "", fmt.Errorf("string length %d exceeds %d: %w",
			n, object.MaxSizedString, stream.ErrMalformedLength)
	}
	buf, err := sr.ReadFull(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
