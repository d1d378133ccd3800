package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "stream_writer_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "out.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	return NewWriter(f), path
}

func TestWriter_NumericWrites(t *testing.T) {
	w, path := tempWriter(t)

	require.NoError(t, w.WriteUint8(0x2A))
	require.NoError(t, w.WriteUint16(0x1234))
	require.NoError(t, w.WriteUint32(0x12345678))
	require.NoError(t, w.WriteInt32(-1))
	assert.Equal(t, int64(11), w.Offset())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x2A,
		0x34, 0x12,
		0x78, 0x56, 0x34, 0x12,
		0xFF, 0xFF, 0xFF, 0xFF,
	}, got)
}

func TestWriter_WriteZeros(t *testing.T) {
	w, path := tempWriter(t)

	require.NoError(t, w.WriteUint8(0xAB))
	require.NoError(t, w.WriteZeros(3))
	require.NoError(t, w.WriteZeros(0))
	require.NoError(t, w.WriteZeros(-1))
	assert.Equal(t, int64(4), w.Offset())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0, 0, 0}, got)
}

func TestWriter_PatchUint32(t *testing.T) {
	w, path := tempWriter(t)

	// Reserve a slot, write a body, then patch the slot with the
	// now-known value. The cursor must come back to the end.
	require.NoError(t, w.WriteUint32(0))
	require.NoError(t, w.WriteUint32(0xCAFEBABE))
	require.NoError(t, w.PatchUint32(0, 0xDEADBEEF))
	assert.Equal(t, int64(8), w.Offset())

	require.NoError(t, w.WriteUint32(0x01020304))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xEF, 0xBE, 0xAD, 0xDE,
		0xBE, 0xBA, 0xFE, 0xCA,
		0x04, 0x03, 0x02, 0x01,
	}, got)
}
