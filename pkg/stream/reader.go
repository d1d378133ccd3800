package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader is a byte cursor over a seekable stream. Numeric reads honor the
// Order field, which the container codec sets from the envelope before any
// record body is decoded.
type Reader struct {
	src    io.ReadSeeker
	reader *bufio.Reader
	offset int64
	Order  binary.ByteOrder
}

// NewReader creates a cursor positioned at the stream's current offset.
func NewReader(src io.ReadSeeker) *Reader {
	return &Reader{
		src:    src,
		reader: bufio.NewReader(src),
		Order:  binary.LittleEndian,
	}
}

// ReadFull reads exactly n bytes. A short read is reported as
// ErrTruncatedStream; well-formed containers never end mid-field.
func (r *Reader) ReadFull(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read size %d: %w", n, ErrMalformedLength)
	}
	buf := make([]byte, n)
	m, err := io.ReadFull(r.reader, buf)
	r.offset += int64(m)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("need %d bytes at offset %d, got %d: %w", n, r.offset-int64(m), m, ErrTruncatedStream)
		}
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.ReadFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadFull(2)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadFull(4)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadFull(8)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint64(b), nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadLine reads bytes up to and including the next \n, failing once max
// bytes have been consumed without finding one. The returned line excludes
// the terminator. Used for text banners at the head of some envelopes.
func (r *Reader) ReadLine(max int) ([]byte, error) {
	line := make([]byte, 0, 64)
	for len(line) < max {
		b, err := r.reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("banner not terminated within %d bytes: %w", max, ErrTruncatedStream)
			}
			return nil, err
		}
		r.offset++
		if b == '\n' {
			return line, nil
		}
		line = append(line, b)
	}
	return nil, fmt.Errorf("banner longer than %d bytes: %w", max, ErrMalformedEnvelope)
}

// ReadRemaining consumes the rest of the stream, up to max bytes. A tail
// longer than max is malformed.
func (r *Reader) ReadRemaining(max int) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.reader.Read(chunk)
		r.offset += int64(n)
		buf = append(buf, chunk[:n]...)
		if len(buf) > max {
			return nil, fmt.Errorf("undecoded tail longer than %d bytes: %w", max, ErrMalformedLength)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Seek repositions the cursor. The buffered reader is recreated to clear
// stale buffered bytes.
func (r *Reader) Seek(offset int64, whence int) error {
	target := offset
	if whence == io.SeekCurrent {
		target = r.offset + offset
		whence = io.SeekStart
	}
	pos, err := r.src.Seek(target, whence)
	if err != nil {
		return err
	}
	r.reader = bufio.NewReader(r.src)
	r.offset = pos
	return nil
}

// Offset returns the cursor position relative to the stream start.
func (r *Reader) Offset() int64 {
	return r.offset
}
