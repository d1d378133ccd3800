package nif

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
	"github.com/ssargent/niflheim/schemas"
)

// Version milestones where the envelope changes shape.
const (
	versionCopyright = 0x03010000 // last header carrying copyright lines
	versionWordMin   = 0x0303000D // binary version word, block count, footer roots
	versionBlockType = 0x05000001 // header block-type table
	versionSepMax    = 0x0A000102 // last version with zero separators, and the banner change
	versionUserVer   = 0x0A000108 // user version word
	versionEndian    = 0x14000004 // endian flag byte
	versionStrings   = 0x14010003 // header string pool
	versionSizes     = 0x14020007 // per-block byte sizes
)

// Banner prefixes. The stock ones switch at the same version the block
// separators end; the other three belong to vendor offshoots.
const (
	bannerNetImmerse = "NetImmerse File Format, Version "
	bannerGamebryo   = "Gamebryo File Format, Version "
	bannerNeoSteam   = "NDSNIF....@....@...., Version "
	bannerNdoors     = "NDOORS File Format, Version "
	bannerJoymaster  = "Joymaster HS1 Object Format - (JMI), Version "
)

// Vendor modifications. Their containers stamp a fixed magic constant
// where the version word belongs.
const (
	ModNeoSteam  = "neosteam"
	ModNdoors    = "ndoors"
	ModJoymaster = "jmihs1"
)

const (
	magicNeoSteam  uint32 = 0x08F35232 // stands in for 10.1.0.0
	magicNdoors    uint32 = 0x73615F67 // stands in for 20.0.0.4
	magicJoymaster uint32 = 0x5A000004 // stands in for 20.0.0.4
)

// Sentinel strings bracketing the block stream before 3.3.0.13.
const (
	sentinelRoot = "Top Level Object"
	sentinelEOF  = "End Of File"
)

// dataStreamType is the one block type whose on-disk name is a composite
// of the type and two integers.
const dataStreamType = "NiDataStream"

const maxBannerLen = 64

// VersionString renders a version word the way banners spell it: four
// dotted fields, two for 3.1 and older, and the historical literal 3.03.
func VersionString(v uint32) string {
	if v == 0x03000300 {
		return "3.03"
	}
	if v <= 0x03010000 {
		return fmt.Sprintf("%d.%d", v>>24, (v>>16)&0xFF)
	}
	return fmt.Sprintf("%d.%d.%d.%d", v>>24, (v>>16)&0xFF, (v>>8)&0xFF, v&0xFF)
}

func parseVersion(s string) (uint32, bool) {
	if s == "3.03" {
		return 0x03000300, true
	}
	// NeoSteam exporters stamp initials where the digits belong.
	if s == "NS" {
		return 0x0A010000, true
	}
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return 0, false
	}
	var v uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, false
		}
		v |= uint32(n) << (24 - 8*i)
	}
	return v, true
}

// banner renders the text line a container of this version and vendor
// opens with, without the terminator.
func banner(version uint32, mod string) string {
	v := VersionString(version)
	switch mod {
	case ModNeoSteam:
		return bannerNeoSteam + v
	case ModNdoors:
		return bannerNdoors + v
	case ModJoymaster:
		return bannerJoymaster + v
	}
	if version <= versionSepMax {
		return bannerNetImmerse + v
	}
	return bannerGamebryo + v
}

func parseBanner(line string) (uint32, string, error) {
	line = strings.TrimSuffix(line, "\r")
	var vstr, mod string
	switch {
	case strings.HasPrefix(line, bannerNetImmerse):
		vstr = line[len(bannerNetImmerse):]
	case strings.HasPrefix(line, bannerGamebryo):
		vstr = line[len(bannerGamebryo):]
	case strings.HasPrefix(line, bannerNeoSteam):
		vstr, mod = line[len(bannerNeoSteam):], ModNeoSteam
	case strings.HasPrefix(line, bannerNdoors):
		vstr, mod = line[len(bannerNdoors):], ModNdoors
	case strings.HasPrefix(line, bannerJoymaster):
		vstr, mod = line[len(bannerJoymaster):], ModJoymaster
	default:
		return 0, "", fmt.Errorf("banner %q is not a block-table container: %w",
			line, stream.ErrMalformedEnvelope)
	}
	v, ok := parseVersion(vstr)
	if !ok {
		return 0, "", fmt.Errorf("banner version %q does not parse: %w",
			vstr, stream.ErrMalformedEnvelope)
	}
	if mod == "" && banner(v, "") != line {
		return 0, "", fmt.Errorf("banner family does not match version %s: %w",
			VersionString(v), stream.ErrMalformedEnvelope)
	}
	return v, mod, nil
}

// versionWord returns the value stored in the binary version field: the
// version itself, or the vendor magic when the container carries one.
func versionWord(version uint32, mod string) (uint32, error) {
	switch mod {
	case "":
		return version, nil
	case ModNeoSteam:
		return magicNeoSteam, nil
	case ModNdoors:
		return magicNdoors, nil
	case ModJoymaster:
		return magicJoymaster, nil
	}
	return 0, fmt.Errorf("unknown vendor modification %q: %w", mod, stream.ErrUnsupportedVersion)
}

// nullRefFor returns the wire value of an absent reference. Indices are
// one-based with zero for null before 3.3.0.13.
func nullRefFor(version uint32) int32 {
	if version >= versionWordMin {
		return -1
	}
	return 0
}

var defaultRegistry = sync.OnceValues(func() (*schema.Registry, error) {
	return schema.Load(schemas.NIF)
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

	// BestEffort attempts the read even when the banner version is
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
			return out, fmt.Errorf("loading built-in nif schema: %w", err)
		}
		out.Registry = reg
	}
	return out, nil
}

// Summary is the identity a container declares about itself: everything
// Inspect can learn without touching block bodies. NumBlocks is zero for
// containers predating block counts.
type Summary struct {
	Version      uint32
	Modification string
	BigEndian    bool
	UserVersion  uint32
	UserVersion2 uint32
	NumBlocks    int
	BlockTypes   []string
	NumStrings   int

	// BlockTypeIndex maps each block to its BlockTypes entry, empty for
	// versions predating the type table.
	BlockTypeIndex []int
}

// VersionString renders the summary's version the way its banner does.
func (s *Summary) VersionString() string {
	return VersionString(s.Version)
}

// Data is one decoded block-table container: the envelope identity, the
// blocks in table order, and the root records the trailer names.
type Data struct {
	Version      uint32
	UserVersion  uint32
	UserVersion2 uint32

	// Modification tags the vendor offshoot the container belongs to,
	// empty for the stock format.
	Modification string

	// BigEndian selects the byte-order override one console vendor used.
	BigEndian bool

	// Copyright carries the three text lines headers up to 3.1 hold.
	Copyright [3]string

	// Blocks holds the decoded records in table order, as read. Write
	// ignores it and linearizes Roots instead.
	Blocks []*object.Record

	// Roots are the records the container names as scene roots. Write
	// serializes everything reachable from here.
	Roots []*object.Record

	// Warnings accumulates recoverable integrity issues from reads and
	// writes of this container.
	Warnings []stream.Warning

	phase graph.Phase
	reg   *schema.Registry
}

// NewData creates an empty container at the given format version.
func NewData(version uint32, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if !o.Registry.SupportsVersion(version) {
		return nil, fmt.Errorf("container version %s: %w",
			VersionString(version), stream.ErrUnsupportedVersion)
	}
	return &Data{
		Version: version,
		phase:   graph.Resolved,
		reg:     o.Registry,
	}, nil
}

// Phase reports how far through its lifecycle the container is.
func (d *Data) Phase() graph.Phase {
	return d.phase
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
		return schema.NewRegistry("nif")
	}
	return reg
}

// NewBlock creates a record of the named block type bound to this
// container's schema. The record joins the container once a reference
// reaches it or it is appended to Roots.
func (d *Data) NewBlock(typeName string) (*object.Record, error) {
	reg := d.registry()
	rt, err := reg.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	return object.New(rt, reg, "")
}

// BlockSize computes the encoded byte size of one block at this
// container's version, without serializing the graph around it.
func (d *Data) BlockSize(rec *object.Record) (int64, error) {
	ctx := stream.NewContext(d.Version)
	ctx.UserVersion = d.UserVersion
	ctx.UserVersion2 = d.UserVersion2
	ctx.Vendor = d.Modification
	if d.BigEndian {
		ctx.Order = binary.BigEndian
	}
	var pool *object.StringPool
	if d.Version >= versionStrings {
		pool = object.NewStringPool()
	}
	st := &object.State{
		Reg:         d.registry(),
		Ctx:         ctx,
		Pool:        pool,
		PoolCutover: versionStrings,
	}
	return st.RecordSize(rec)
}

// ReplaceEverywhere swaps every reference to old, weak or owning, for
// repl across the whole container, root slots included.
func (d *Data) ReplaceEverywhere(old, repl *object.Record) {
	d.Roots = graph.ReplaceEverywhere(d.Roots, old, repl)
	d.Blocks = graph.ReplaceEverywhere(d.Blocks, old, repl)
}

// splitStreamName unpacks the composite data-stream type name, which
// carries usage and access as "\x01"-separated decimal suffixes.
func splitStreamName(name string) (base string, usage, access int64, composite bool) {
	if !strings.HasPrefix(name, dataStreamType+"\x01") {
		return name, 0, 0, false
	}
	parts := strings.Split(name, "\x01")
	if len(parts) != 3 {
		return name, 0, 0, false
	}
	u, uerr := strconv.ParseInt(parts[1], 10, 64)
	a, aerr := strconv.ParseInt(parts[2], 10, 64)
	if uerr != nil || aerr != nil {
		return name, 0, 0, false
	}
	return dataStreamType, u, a, true
}

// streamTypeName is the on-disk type name of a record, composite for the
// data-stream category.
func streamTypeName(rec *object.Record) string {
	name := rec.Type().Name
	if name != dataStreamType {
		return name
	}
	usage, _ := rec.GetInt("usage")
	access, _ := rec.GetInt("access")
	return fmt.Sprintf("%s\x01%d\x01%d", dataStreamType, usage, access)
}

func newBlockRecord(reg *schema.Registry, typeName string) (*object.Record, error) {
	base, usage, access, composite := splitStreamName(typeName)
	rt, err := reg.Resolve(base)
	if err != nil {
		return nil, fmt.Errorf("type %s is not in the schema: %w",
			base, stream.ErrUnknownRecordType)
	}
	rec, err := object.New(rt, reg, "")
	if err != nil {
		return nil, err
	}
	if composite {
		if err := rec.SetInt("usage", usage); err != nil {
			return nil, err
		}
		if err := rec.SetInt("access", access); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
