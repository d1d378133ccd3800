package stream

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_NumericReads(t *testing.T) {
	data := []byte{
		0x2A,                   // u8
		0x34, 0x12,             // u16
		0x78, 0x56, 0x34, 0x12, // u32
		0x00, 0x00, 0x80, 0x3F, // f32 = 1.0
	}
	r := NewReader(bytes.NewReader(data))

	v8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x2A), v8)

	v16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	v32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v32)

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), f32)

	assert.Equal(t, int64(len(data)), r.Offset())
}

func TestReader_BigEndianOverride(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x12, 0x34, 0x56, 0x78}))
	r.Order = binary.BigEndian

	v, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
}

func TestReader_SignedReads(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	v, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}))

	_, err := r.ReadUint32()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestReader_NegativeSize(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))

	_, err := r.ReadFull(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedLength)
}

func TestReader_ReadLine(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("NetImmerse File Format\nrest")))

	line, err := r.ReadLine(64)
	require.NoError(t, err)
	assert.Equal(t, "NetImmerse File Format", string(line))
	assert.Equal(t, int64(23), r.Offset())

	// No newline within the remaining bytes
	_, err = r.ReadLine(2)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestReader_ReadLine_EOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("no terminator")))

	_, err := r.ReadLine(64)
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestReader_Seek(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7}))

	// Consume a few bytes through the buffer, then seek back
	_, err := r.ReadUint32()
	require.NoError(t, err)

	require.NoError(t, r.Seek(2, io.SeekStart))
	assert.Equal(t, int64(2), r.Offset())

	b, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), b)

	// Relative seek accounts for the logical offset, not the buffered one
	require.NoError(t, r.Seek(2, io.SeekCurrent))
	b, err = r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(5), b)
}

func TestReader_ReadRemaining(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5}))

	_, err := r.ReadUint8()
	require.NoError(t, err)

	rest, err := r.ReadRemaining(16)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4, 5}, rest)
	assert.Equal(t, int64(5), r.Offset())

	r = NewReader(bytes.NewReader(make([]byte, 64)))
	_, err = r.ReadRemaining(32)
	assert.ErrorIs(t, err, ErrMalformedLength)
}
