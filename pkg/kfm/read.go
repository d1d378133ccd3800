package kfm

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// banner is the parsed first line.
type banner struct {
	version uint32
	text    string
	crlf    bool
}

// readBanner consumes the first line and checks it spells a declared
// version exactly the way the schema's table does.
func readBanner(sr *stream.Reader, o Options) (*banner, error) {
	line, err := sr.ReadLine(maxBannerLen)
	if err != nil {
		return nil, err
	}
	text := string(line)
	b := &banner{}
	if strings.HasSuffix(text, "\r") {
		text = strings.TrimSuffix(text, "\r")
		b.crlf = true
	}
	if !strings.HasPrefix(text, bannerPrefix) {
		return nil, fmt.Errorf("banner %q is not a keyframe manifest: %w",
			text, stream.ErrMalformedEnvelope)
	}
	b.text = text[len(bannerPrefix):]
	v, ok := parseVersion(b.text)
	if !ok {
		return nil, fmt.Errorf("banner version %q does not parse: %w",
			b.text, stream.ErrMalformedEnvelope)
	}
	canonical, err := spelling(o.Registry, v)
	if err != nil {
		return nil, err
	}
	if canonical != b.text {
		return nil, fmt.Errorf("banner spells version %q where the format writes %q: %w",
			b.text, canonical, stream.ErrMalformedEnvelope)
	}
	b.version = v
	return b, nil
}

// Inspect reads the banner without touching the body, then puts the
// cursor back where it was.
func Inspect(r io.ReadSeeker, opts *Options) (*Summary, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	b, err := readBanner(stream.NewReader(r), o)
	if _, serr := r.Seek(pos, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}
	return &Summary{
		Version:       b.version,
		VersionString: b.text,
		CRLF:          b.crlf,
	}, nil
}

// Read decodes a whole manifest: banner, then the flat header record.
// Bytes past the record are malformed.
func Read(r io.ReadSeeker, opts *Options) (*Data, error) {
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	sr := stream.NewReader(r)
	b, err := readBanner(sr, o)
	if err != nil {
		return nil, err
	}

	warn := stream.NewWarnings(o.Log, false)
	st := &object.State{
		Reg:   o.Registry,
		Ctx:   stream.NewContext(b.version),
		Warn:  warn,
		Links: &stream.LinkTable{},
	}
	hdr, err := newHeader(o.Registry)
	if err != nil {
		return nil, err
	}
	if err := st.DecodeRecord(sr, hdr); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	if _, err := sr.ReadUint8(); err == nil {
		return nil, fmt.Errorf("stream continues past the manifest end: %w",
			stream.ErrMalformedEnvelope)
	} else if !errors.Is(err, stream.ErrTruncatedStream) {
		return nil, err
	}
	// The format has no reference fields; a schema that smuggles some in
	// would leave the table loaded.
	if err := st.Links.CheckDrained(); err != nil {
		return nil, err
	}

	return &Data{
		Version:  b.version,
		CRLF:     b.crlf,
		Header:   hdr,
		Warnings: warn.List(),
		reg:      o.Registry,
	}, nil
}
