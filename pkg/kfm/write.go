package kfm

import (
	"fmt"
	"io"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// Write encodes the manifest: the banner line in the declared terminator
// style, then the flat header record.
func Write(w io.WriteSeeker, d *Data) error {
	reg := d.registry()
	s, err := spelling(reg, d.Version)
	if err != nil {
		return err
	}
	if d.Header == nil {
		return fmt.Errorf("manifest has no header record: %w", stream.ErrMalformedEnvelope)
	}

	sw := stream.NewWriter(w)
	if _, err := sw.Write([]byte(bannerPrefix + s)); err != nil {
		return err
	}
	eol := "\n"
	if d.CRLF {
		eol = "\r\n"
	}
	if _, err := sw.Write([]byte(eol)); err != nil {
		return err
	}

	warn := stream.NewWarnings(nil, false)
	st := &object.State{
		Reg:   reg,
		Ctx:   stream.NewContext(d.Version),
		Warn:  warn,
		Links: &stream.LinkTable{},
	}
	if err := st.EncodeRecord(sw, d.Header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	d.Warnings = append(d.Warnings, warn.List()...)
	return nil
}
