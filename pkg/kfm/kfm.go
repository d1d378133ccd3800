package kfm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
	"github.com/ssargent/niflheim/schemas"
)

// The banner opens every manifest; the version spelling follows.
const bannerPrefix = ";Gamebryo KFM File Version "

const maxBannerLen = 64

// headerType is the single record type a manifest stores.
const headerType = "Header"

// parseVersion packs a banner spelling into a version word: up to four
// dot-separated hexadecimal bytes filled in from the top. A spelling
// without dots is taken as one plain decimal word.
func parseVersion(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return 0, false
	}
	var v uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return 0, false
		}
		v |= uint32(n) << (24 - 8*i)
	}
	return v, true
}

// spelling returns the banner text for a version, as declared in the
// schema's version table.
func spelling(reg *schema.Registry, version uint32) (string, error) {
	id, ok := reg.VersionID(version)
	if !ok {
		return "", fmt.Errorf("no banner spelling for version %#08x: %w",
			version, stream.ErrUnsupportedVersion)
	}
	return id, nil
}

var defaultRegistry = sync.OnceValues(func() (*schema.Registry, error) {
	return schema.Load(schemas.KFM)
})

// DefaultRegistry returns the registry built from the embedded schema
// document. The registry is shared; callers must not mutate it.
func DefaultRegistry() (*schema.Registry, error) {
	return defaultRegistry()
}

// Options tunes how manifests open. The zero value reads with the
// built-in schema and no logging.
type Options struct {
	// Log receives structured decode diagnostics. Nil disables logging.
	Log *zap.Logger

	// Registry overrides the built-in schema document.
	Registry *schema.Registry
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
			return out, fmt.Errorf("loading built-in kfm schema: %w", err)
		}
		out.Registry = reg
	}
	return out, nil
}

// Summary is what the banner alone declares: the version word, its raw
// spelling, and the line-terminator style.
type Summary struct {
	Version       uint32
	VersionString string
	CRLF          bool
}

// Data is one decoded manifest: the banner identity and the flat header
// record holding the model file name and the animation list.
type Data struct {
	Version uint32

	// CRLF records whether the banner line ended in \r\n. Write keeps
	// the style.
	CRLF bool

	// Header is the manifest body.
	Header *object.Record

	// Warnings accumulates recoverable integrity issues from reads of
	// this manifest.
	Warnings []stream.Warning

	reg *schema.Registry
}

// NewData creates an empty manifest at the given format version.
func NewData(version uint32, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := spelling(o.Registry, version); err != nil {
		return nil, err
	}
	hdr, err := newHeader(o.Registry)
	if err != nil {
		return nil, err
	}
	return &Data{Version: version, Header: hdr, reg: o.Registry}, nil
}

// Registry returns the schema the manifest decodes against.
func (d *Data) Registry() *schema.Registry {
	return d.registry()
}

func (d *Data) registry() *schema.Registry {
	if d.reg != nil {
		return d.reg
	}
	reg, err := defaultRegistry()
	if err != nil {
		return schema.NewRegistry("kfm")
	}
	return reg
}

// VersionString renders the manifest's version the way its banner does.
func (d *Data) VersionString() string {
	s, err := spelling(d.registry(), d.Version)
	if err != nil {
		return fmt.Sprintf("%#08x", d.Version)
	}
	return s
}

// NifFileName returns the model file the manifest animates.
func (d *Data) NifFileName() string {
	if d.Header == nil {
		return ""
	}
	v, _ := d.Header.GetString("nif_file_name")
	return v
}

// Animations returns the clip records in declaration order.
func (d *Data) Animations() []*object.Record {
	if d.Header == nil {
		return nil
	}
	v, _ := d.Header.Get("animations")
	arr, ok := v.(*object.Array)
	if !ok {
		return nil
	}
	out := make([]*object.Record, 0, len(arr.Elems))
	for _, e := range arr.Elems {
		if rec, isRec := e.(*object.Record); isRec {
			out = append(out, rec)
		}
	}
	return out
}

// RecordSize computes the encoded byte size of one manifest record at
// this manifest's version.
func (d *Data) RecordSize(rec *object.Record) (int64, error) {
	st := &object.State{Reg: d.registry(), Ctx: stream.NewContext(d.Version)}
	return st.RecordSize(rec)
}

// NewAnimation creates an empty clip record bound to the manifest's
// schema. Append it to the header's animations array and bump
// num_animations to include it.
func (d *Data) NewAnimation() (*object.Record, error) {
	reg := d.registry()
	rt, err := reg.Resolve("Animation")
	if err != nil {
		return nil, err
	}
	return object.New(rt, reg, "")
}

func newHeader(reg *schema.Registry) (*object.Record, error) {
	rt, err := reg.Resolve(headerType)
	if err != nil {
		return nil, fmt.Errorf("type %s is not in the schema: %w",
			headerType, stream.ErrUnknownRecordType)
	}
	return object.New(rt, reg, "")
}
