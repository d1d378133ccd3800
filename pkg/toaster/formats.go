package toaster

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ssargent/niflheim/pkg/cgf"
	"github.com/ssargent/niflheim/pkg/kfm"
	"github.com/ssargent/niflheim/pkg/nif"
	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Header is the format-independent envelope identity DataInspect gates
// on: everything Inspect learned without reading record bodies.
type Header struct {
	// Format is the short name of the container family.
	Format string

	// Version is the packed container version; VersionTag renders it
	// the way the envelope spells it.
	Version    uint32
	VersionTag string

	// Vendor is the game or modification tag, empty for stock files.
	Vendor string

	// NumRecords is the declared record count, zero when the envelope
	// predates counts or the format is flat.
	NumRecords int

	// RecordTypes lists the declared record types, one entry per record
	// where the envelope resolves them, nil when it carries none.
	RecordTypes []string
}

// Document is one fully read container seen format-independently. The
// branch walk starts from Roots; Container exposes the concrete data
// for format-specific spells.
type Document interface {
	Container() interface{}
	Roots() []*object.Record
	Warnings() []stream.Warning
}

// Format adapts one container family to the batch pipeline.
type Format interface {
	// Name is the family's short name.
	Name() string

	// Match reports whether a file name looks like this format.
	Match(name string) bool

	// Extensions lists the lower-case file extensions Match accepts.
	Extensions() []string

	// Versions lists the declared container versions, spelled the way
	// the schema declares them, ascending.
	Versions() []string

	// Inspect reads the envelope only and leaves the cursor where it
	// found it.
	Inspect(r io.ReadSeeker) (*Header, error)

	// Read decodes the full container.
	Read(r io.ReadSeeker) (Document, error)

	// Write encodes a document this format produced.
	Write(w io.WriteSeeker, doc Document) error
}

// Formats returns the built-in format trio with default options.
func Formats() []Format {
	return []Format{NIF(nil), CGF(nil), KFM(nil)}
}

func matchExt(name string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// registryVersions renders a registry's declared versions as their schema
// literals, falling back to hex for values without one.
func registryVersions(reg *schema.Registry, err error) []string {
	if err != nil {
		return nil
	}
	vs := reg.Versions()
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if id, ok := reg.VersionID(v); ok {
			out = append(out, id)
			continue
		}
		out = append(out, fmt.Sprintf("%#x", v))
	}
	return out
}

// CGF adapts the chunk-table family. Options apply to every file the
// adapter touches; nil means defaults.
func CGF(opts *cgf.Options) Format {
	return &cgfFormat{opts: opts}
}

type cgfFormat struct {
	opts *cgf.Options
}

var cgfExts = []string{"cgf", "cga", "chr", "caf"}

func (f *cgfFormat) Name() string           { return "cgf" }
func (f *cgfFormat) Match(name string) bool { return matchExt(name, cgfExts) }
func (f *cgfFormat) Extensions() []string   { return append([]string(nil), cgfExts...) }

func (f *cgfFormat) Versions() []string {
	if f.opts != nil && f.opts.Registry != nil {
		return registryVersions(f.opts.Registry, nil)
	}
	return registryVersions(cgf.DefaultRegistry())
}

func (f *cgfFormat) Inspect(r io.ReadSeeker) (*Header, error) {
	sum, err := cgf.Inspect(r, f.opts)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(sum.Table))
	for _, row := range sum.Table {
		if row.TypeName != "" {
			types = append(types, row.TypeName)
		}
	}
	return &Header{
		Format:      f.Name(),
		Version:     sum.Version,
		VersionTag:  fmt.Sprintf("%#x", sum.Version),
		Vendor:      sum.Game,
		NumRecords:  len(sum.Table),
		RecordTypes: types,
	}, nil
}

func (f *cgfFormat) Read(r io.ReadSeeker) (Document, error) {
	d, err := cgf.Read(r, f.opts)
	if err != nil {
		return nil, err
	}
	return &cgfDoc{data: d}, nil
}

func (f *cgfFormat) Write(w io.WriteSeeker, doc Document) error {
	d, ok := doc.(*cgfDoc)
	if !ok {
		return fmt.Errorf("document is %T, not a chunk container", doc)
	}
	return cgf.Write(w, d.data)
}

type cgfDoc struct {
	data *cgf.Data
}

func (d *cgfDoc) Container() interface{}     { return d.data }
func (d *cgfDoc) Roots() []*object.Record    { return d.data.Roots() }
func (d *cgfDoc) Warnings() []stream.Warning { return d.data.Warnings }

// NIF adapts the block-table family.
func NIF(opts *nif.Options) Format {
	return &nifFormat{opts: opts}
}

type nifFormat struct {
	opts *nif.Options
}

var nifExts = []string{"nif", "kf", "kfa"}

func (f *nifFormat) Name() string           { return "nif" }
func (f *nifFormat) Match(name string) bool { return matchExt(name, nifExts) }
func (f *nifFormat) Extensions() []string   { return append([]string(nil), nifExts...) }

func (f *nifFormat) Versions() []string {
	if f.opts != nil && f.opts.Registry != nil {
		return registryVersions(f.opts.Registry, nil)
	}
	return registryVersions(nif.DefaultRegistry())
}

func (f *nifFormat) Inspect(r io.ReadSeeker) (*Header, error) {
	sum, err := nif.Inspect(r, f.opts)
	if err != nil {
		return nil, err
	}
	types := sum.BlockTypes
	if len(sum.BlockTypeIndex) > 0 {
		types = make([]string, 0, len(sum.BlockTypeIndex))
		for _, ti := range sum.BlockTypeIndex {
			if ti >= 0 && ti < len(sum.BlockTypes) {
				types = append(types, sum.BlockTypes[ti])
			}
		}
	}
	return &Header{
		Format:      f.Name(),
		Version:     sum.Version,
		VersionTag:  sum.VersionString(),
		Vendor:      sum.Modification,
		NumRecords:  sum.NumBlocks,
		RecordTypes: types,
	}, nil
}

func (f *nifFormat) Read(r io.ReadSeeker) (Document, error) {
	d, err := nif.Read(r, f.opts)
	if err != nil {
		return nil, err
	}
	return &nifDoc{data: d}, nil
}

func (f *nifFormat) Write(w io.WriteSeeker, doc Document) error {
	d, ok := doc.(*nifDoc)
	if !ok {
		return fmt.Errorf("document is %T, not a block container", doc)
	}
	return nif.Write(w, d.data)
}

type nifDoc struct {
	data *nif.Data
}

func (d *nifDoc) Container() interface{}     { return d.data }
func (d *nifDoc) Roots() []*object.Record    { return d.data.Roots }
func (d *nifDoc) Warnings() []stream.Warning { return d.data.Warnings }

// KFM adapts the flat manifest family.
func KFM(opts *kfm.Options) Format {
	return &kfmFormat{opts: opts}
}

type kfmFormat struct {
	opts *kfm.Options
}

var kfmExts = []string{"kfm"}

func (f *kfmFormat) Name() string           { return "kfm" }
func (f *kfmFormat) Match(name string) bool { return matchExt(name, kfmExts) }
func (f *kfmFormat) Extensions() []string   { return append([]string(nil), kfmExts...) }

func (f *kfmFormat) Versions() []string {
	if f.opts != nil && f.opts.Registry != nil {
		return registryVersions(f.opts.Registry, nil)
	}
	return registryVersions(kfm.DefaultRegistry())
}

func (f *kfmFormat) Inspect(r io.ReadSeeker) (*Header, error) {
	sum, err := kfm.Inspect(r, f.opts)
	if err != nil {
		return nil, err
	}
	return &Header{
		Format:     f.Name(),
		Version:    sum.Version,
		VersionTag: sum.VersionString,
	}, nil
}

func (f *kfmFormat) Read(r io.ReadSeeker) (Document, error) {
	d, err := kfm.Read(r, f.opts)
	if err != nil {
		return nil, err
	}
	return &kfmDoc{data: d}, nil
}

func (f *kfmFormat) Write(w io.WriteSeeker, doc Document) error {
	d, ok := doc.(*kfmDoc)
	if !ok {
		return fmt.Errorf("document is %T, not a manifest", doc)
	}
	return kfm.Write(w, d.data)
}

type kfmDoc struct {
	data *kfm.Data
}

func (d *kfmDoc) Container() interface{} { return d.data }

// Roots returns the animation records; the flat header itself has no
// reference children to walk.
func (d *kfmDoc) Roots() []*object.Record    { return d.data.Animations() }
func (d *kfmDoc) Warnings() []stream.Warning { return d.data.Warnings }
