package cgf

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
	"github.com/ssargent/niflheim/schemas"
)

// Vendor variants. Far Cry and Crysis share a signature and differ by
// where the chunk table sits; Aion carries its own signature.
const (
	GameFarCry = "Far Cry"
	GameCrysis = "Crysis"
	GameAion   = "Aion"
)

// Envelope constants. The container version never moved past 0x744.
const (
	Version uint32 = 0x744

	FileTypeGeometry  uint32 = 0xFFFF0000
	FileTypeAnimation uint32 = 0xFFFF0001

	UserVersionFarCry uint32 = 1
	UserVersionCrysis uint32 = 2
	UserVersionAion   uint32 = 1

	// NullRef is the on-wire index of an absent chunk reference.
	NullRef int32 = -1

	signatureFarCry = "CryTek"
	signatureAion   = "NCAion"

	signatureLen      = 8
	envelopeLen       = 20   // signature, file type, version, table offset
	chunkHeaderLen    = 16   // type, version, offset, id
	crysisTableOffset = 0x14 // table directly after the envelope
)

func userVersionFor(game string) (uint32, error) {
	switch game {
	case GameFarCry:
		return UserVersionFarCry, nil
	case GameCrysis:
		return UserVersionCrysis, nil
	case GameAion:
		return UserVersionAion, nil
	}
	return 0, fmt.Errorf("unknown chunk-table game %q: %w", game, stream.ErrUnsupportedVersion)
}

func gameSignature(game string) string {
	if game == GameAion {
		return signatureAion
	}
	return signatureFarCry
}

// Chunks whose bodies skip the redundant chunk-header copy, keyed by
// ChunkType option name. The groups follow the exporters that produced
// them; the Aion group applies on read only, those files still get the
// copy written back.
var (
	bareChunksUV1  = set("SourceInfo", "BoneNameList", "BoneLightBinding", "BoneInitialPos", "MeshMorphTarget")
	bareChunksUV2  = set("BoneNameList", "BoneInitialPos")
	bareChunksAnim = set("Controller")
	bareChunksAion = set("MeshPhysicsData", "MtlName")
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func bareChunk(uv uint32, game string, anim, reading bool, option string) bool {
	if uv == UserVersionFarCry && bareChunksUV1[option] {
		return true
	}
	if uv == UserVersionCrysis && bareChunksUV2[option] {
		return true
	}
	if anim && bareChunksAnim[option] {
		return true
	}
	if reading && game == GameAion && bareChunksAion[option] {
		return true
	}
	return false
}

// chunkNames maps between chunk-table type values and record type names.
// The schema's ChunkType enum is the single source: option Node pairs
// with record type NodeChunk.
type chunkNames struct {
	enum *schema.Enum
}

func newChunkNames(reg *schema.Registry) (chunkNames, error) {
	enum, ok := reg.Enum("ChunkType")
	if !ok {
		return chunkNames{}, fmt.Errorf("schema has no ChunkType enum: %w", schema.ErrMalformedSchema)
	}
	return chunkNames{enum: enum}, nil
}

func (m chunkNames) recordType(v uint32) (string, bool) {
	name := m.enum.OptionName(int64(v))
	if name == "" {
		return "", false
	}
	return name + "Chunk", true
}

func (m chunkNames) option(recordType string) (string, bool) {
	return strings.CutSuffix(recordType, "Chunk")
}

func (m chunkNames) value(recordType string) (uint32, bool) {
	base, ok := m.option(recordType)
	if !ok {
		return 0, false
	}
	for _, opt := range m.enum.Options {
		if opt.Name == base {
			return uint32(opt.Value), true
		}
	}
	return 0, false
}

var defaultRegistry = sync.OnceValues(func() (*schema.Registry, error) {
	return schema.Load(schemas.CGF)
})

// DefaultRegistry returns the registry built from the embedded schema
// document. The registry is shared; callers must not mutate it.
func DefaultRegistry() (*schema.Registry, error) {
	return defaultRegistry()
}

// Options tunes how containers open. The zero value reads with the
// built-in schema, no logging, and warnings kept as warnings.
type Options struct {
	// Log receives structured decode diagnostics. Nil disables logging.
	Log *zap.Logger

	// Registry overrides the built-in schema document.
	Registry *schema.Registry

	// Strict promotes integrity warnings to hard errors.
	Strict bool

	// BestEffort attempts the read even when the envelope version is
	// outside the schema's version table.
	BestEffort bool
}

func (o *Options) normalize() (Options, error) {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Log == nil {
		out.Log = zap.NewNop()
	}
	if out.Registry == nil {
		reg, err := defaultRegistry()
		if err != nil {
			return out, fmt.Errorf("loading built-in cgf schema: %w", err)
		}
		out.Registry = reg
	}
	return out, nil
}

// TableEntry is one chunk-table row.
type TableEntry struct {
	Type     uint32
	TypeName string // resolved record type, "" when the schema lacks it
	Version  uint32
	Offset   uint32
	ID       int32
}

// Summary is the identity a container declares about itself: everything
// Inspect can learn without touching chunk bodies.
type Summary struct {
	Game        string
	FileType    uint32
	Version     uint32
	UserVersion uint32
	TableOffset uint32
	Table       []TableEntry
}

// Data is one decoded chunk-table container: the envelope identity plus
// the live record graph in table order.
type Data struct {
	Game     string
	FileType uint32
	Version  uint32

	// Chunks holds the decoded records in table order; Versions holds
	// each chunk's record version from the same table. Write preserves
	// whatever versions are here, so a read container round-trips its
	// bytes; call UpdateVersions to restamp a modified graph.
	Chunks   []*object.Record
	Versions []uint32

	// Warnings accumulates recoverable integrity issues from reads and
	// writes of this container.
	Warnings []stream.Warning

	phase graph.Phase
	reg   *schema.Registry
}

// NewData creates an empty container for the given vendor variant and
// file kind.
func NewData(game string, fileType uint32, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := userVersionFor(game); err != nil {
		return nil, err
	}
	if fileType != FileTypeGeometry && fileType != FileTypeAnimation {
		return nil, fmt.Errorf("unknown file type %#08x: %w", fileType, stream.ErrMalformedEnvelope)
	}
	return &Data{
		Game:     game,
		FileType: fileType,
		Version:  Version,
		phase:    graph.Resolved,
		reg:      o.Registry,
	}, nil
}

// Phase reports how far through its lifecycle the container is.
func (d *Data) Phase() graph.Phase {
	return d.phase
}

// UserVersion returns the vendor user version for the container's game,
// zero when the game is unknown.
func (d *Data) UserVersion() uint32 {
	uv, _ := userVersionFor(d.Game)
	return uv
}

// Registry returns the schema the container decodes against.
func (d *Data) Registry() *schema.Registry {
	return d.registry()
}

func (d *Data) registry() *schema.Registry {
	if d.reg != nil {
		return d.reg
	}
	reg, err := defaultRegistry()
	if err != nil {
		return schema.NewRegistry("cgf")
	}
	return reg
}

// AddChunk creates a record of the named chunk type, stamps it with the
// newest record version the container's game supports, and appends it to
// the table.
func (d *Data) AddChunk(typeName string) (*object.Record, error) {
	reg := d.registry()
	rt, err := reg.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	ver, err := maxVersionFor(rt, d.Game)
	if err != nil {
		return nil, err
	}
	rec, err := object.New(rt, reg, "")
	if err != nil {
		return nil, err
	}
	d.Chunks = append(d.Chunks, rec)
	d.Versions = append(d.Versions, ver)
	return rec, nil
}

// ChunkSize computes the encoded byte size of the chunk at table index i,
// at that chunk's own record version.
func (d *Data) ChunkSize(i int) (int64, error) {
	if i < 0 || i >= len(d.Chunks) {
		return 0, fmt.Errorf("chunk index %d out of range", i)
	}
	uv, err := userVersionFor(d.Game)
	if err != nil {
		return 0, err
	}
	version := d.Version
	if version == 0 {
		version = Version
	}
	ctx := stream.NewContext(version)
	ctx.UserVersion = uv
	ctx.Vendor = d.Game
	if i < len(d.Versions) {
		ctx = ctx.WithVersion(d.Versions[i])
	}
	st := &object.State{Reg: d.registry(), Ctx: ctx}
	return st.RecordSize(d.Chunks[i])
}

// UpdateVersions restamps every chunk with the newest record version the
// container's game supports. It fails when any chunk type has no record
// version for that game.
func (d *Data) UpdateVersions() error {
	vers := make([]uint32, len(d.Chunks))
	for i, rec := range d.Chunks {
		v, err := maxVersionFor(rec.Type(), d.Game)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		vers[i] = v
	}
	d.Versions = vers
	return nil
}

func maxVersionFor(rt *schema.RecordType, game string) (uint32, error) {
	vs := rt.Versions[game]
	if len(vs) == 0 {
		return 0, fmt.Errorf("%s records have no version for %s: %w",
			rt.Name, game, stream.ErrUnsupportedVersion)
	}
	max := vs[0]
	for _, v := range vs[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func supportsVersion(rt *schema.RecordType, game string, v uint32) bool {
	for _, have := range rt.Versions[game] {
		if have == v {
			return true
		}
	}
	return false
}

// Roots returns the chunks no other chunk owns, in table order.
func (d *Data) Roots() []*object.Record {
	owned := make(map[*object.Record]bool)
	for _, rec := range d.Chunks {
		for _, child := range graph.Children(rec) {
			owned[child] = true
		}
	}
	var roots []*object.Record
	for _, rec := range d.Chunks {
		if !owned[rec] {
			roots = append(roots, rec)
		}
	}
	return roots
}

// ReplaceEverywhere swaps every reference to old, weak or owning, for
// repl across the whole container.
func (d *Data) ReplaceEverywhere(old, repl *object.Record) {
	d.Chunks = graph.ReplaceEverywhere(d.Chunks, old, repl)
}
