package stream

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer is the encode-side cursor. Writes are unbuffered so that
// seek-and-patch (table offsets known only after the bodies are written)
// needs no flush bookkeeping.
type Writer struct {
	dst    io.WriteSeeker
	offset int64
	Order  binary.ByteOrder
}

// NewWriter creates a cursor positioned at the stream's current offset.
func NewWriter(dst io.WriteSeeker) *Writer {
	return &Writer{
		dst:   dst,
		Order: binary.LittleEndian,
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.offset += int64(n)
	return n, err
}

func (w *Writer) WriteUint8(v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func (w *Writer) WriteUint16(v uint16) error {
	var buf [2]byte
	w.Order.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	w.Order.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var buf [8]byte
	w.Order.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (w *Writer) WriteInt8(v int8) error   { return w.WriteUint8(uint8(v)) }
func (w *Writer) WriteInt16(v int16) error { return w.WriteUint16(uint16(v)) }
func (w *Writer) WriteInt32(v int32) error { return w.WriteUint32(uint32(v)) }
func (w *Writer) WriteInt64(v int64) error { return w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteZeros emits n zero bytes, used for inter-record alignment padding.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

// PatchUint32 overwrites 4 bytes at an earlier position and restores the
// cursor. Container codecs use this to fill in table offsets and counts
// reserved before the bodies were encoded.
func (w *Writer) PatchUint32(at int64, v uint32) error {
	if _, err := w.dst.Seek(at, io.SeekStart); err != nil {
		return err
	}
	var buf [4]byte
	w.Order.PutUint32(buf[:], v)
	if _, err := w.dst.Write(buf[:]); err != nil {
		return err
	}
	_, err := w.dst.Seek(w.offset, io.SeekStart)
	return err
}

// Seek repositions the cursor.
func (w *Writer) Seek(offset int64, whence int) error {
	target := offset
	if whence == io.SeekCurrent {
		target = w.offset + offset
		whence = io.SeekStart
	}
	pos, err := w.dst.Seek(target, whence)
	if err != nil {
		return err
	}
	w.offset = pos
	return nil
}

// Offset returns the cursor position relative to the stream start.
func (w *Writer) Offset() int64 {
	return w.offset
}
