package kfm

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/niflheim/pkg/object"
	"github.com/ssargent/niflheim/pkg/stream"
)

// wire builds little-endian byte images.
type wire struct {
	b []byte
}

func (w *wire) u8(v uint8) *wire { w.b = append(w.b, v); return w }

func (w *wire) u32(v uint32) *wire {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
	return w
}

func (w *wire) str(s string) *wire { w.b = append(w.b, s...); return w }

func (w *wire) sized(s string) *wire { return w.u32(uint32(len(s))).str(s) }

// oblivionScenario is a 1.2.4b manifest: a model with two clips, no
// per-clip names or transitions at this version.
func oblivionScenario() []byte {
	img := &wire{}
	img.str(";Gamebryo KFM File Version 1.2.4b\n")
	img.sized("Test.nif")
	img.sized("") // master
	img.u32(2)
	img.u32(5).sized("Test_Idle.kf").u32(0)
	img.u32(6).sized("Test_Run.kf").u32(1)
	return img.b
}

// emergeScenario is a 2.2.0.0b manifest with CRLF line ends: named clip,
// one transition, and the trailing unknown words.
func emergeScenario() []byte {
	img := &wire{}
	img.str(";Gamebryo KFM File Version 2.2.0.0b\r\n")
	img.u8(1)
	img.sized("Test.nif")
	img.u32(1)
	img.u32(5).sized("Idle").sized("Test_Idle.kf").u32(0)
	img.u32(1)          // num_transitions
	img.u32(1).u32(2)   // transition: clip 1, type 2
	img.u32(7).u32(8)   // unknown words
	return img.b
}

func writeManifest(t *testing.T, d *Data) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.kfm")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, d))
	require.NoError(t, f.Close())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	return got
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		s    string
		want uint32
	}{
		{"1.0", 0x01000000},
		{"1.2.4b", 0x01024B00},
		{"2.0.0.0b", 0x0200000B},
		{"2.2.0.0b", 0x0202000B},
		{"16", 16},
	}
	for _, c := range cases {
		v, ok := parseVersion(c.s)
		require.True(t, ok, c.s)
		assert.Equal(t, c.want, v, c.s)
	}

	for _, bad := range []string{"", "10.0.1.3z", "1.2.3.4.5", "300.1.1.1", "1..2"} {
		_, ok := parseVersion(bad)
		assert.False(t, ok, bad)
	}
}

func TestRead_Oblivion(t *testing.T) {
	d, err := Read(bytes.NewReader(oblivionScenario()), nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x01024B00), d.Version)
	assert.Equal(t, "1.2.4b", d.VersionString())
	assert.False(t, d.CRLF)
	assert.Empty(t, d.Warnings)
	assert.Equal(t, "Test.nif", d.NifFileName())

	master, _ := d.Header.GetString("master")
	assert.Empty(t, master)

	anims := d.Animations()
	require.Len(t, anims, 2)
	kf0, _ := anims[0].GetString("kf_file_name")
	kf1, _ := anims[1].GetString("kf_file_name")
	assert.Equal(t, "Test_Idle.kf", kf0)
	assert.Equal(t, "Test_Run.kf", kf1)
	code, _ := anims[1].GetInt("event_code")
	assert.Equal(t, int64(6), code)
}

func TestWrite_RoundTripsExactBytes(t *testing.T) {
	cases := []struct {
		name string
		img  []byte
	}{
		{"1.2.4b", oblivionScenario()},
		{"2.2.0.0b crlf", emergeScenario()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := Read(bytes.NewReader(c.img), nil)
			require.NoError(t, err)
			got := writeManifest(t, d)
			assert.Equal(t, c.img, got)
		})
	}
}

func TestRead_TransitionsAndUnknowns(t *testing.T) {
	d, err := Read(bytes.NewReader(emergeScenario()), nil)
	require.NoError(t, err)

	assert.True(t, d.CRLF)
	anims := d.Animations()
	require.Len(t, anims, 1)
	name, _ := anims[0].GetString("name")
	assert.Equal(t, "Idle", name)

	transitions, _ := anims[0].Get("transitions")
	rows := transitions.(*object.Array).Elems
	require.Len(t, rows, 1)
	clip, _ := rows[0].(*object.Record).GetInt("animation")
	kind, _ := rows[0].(*object.Record).GetInt("type")
	assert.Equal(t, int64(1), clip)
	assert.Equal(t, int64(2), kind)

	w1, _ := d.Header.GetInt("unknown_int_1")
	w2, _ := d.Header.GetInt("unknown_int_2")
	assert.Equal(t, int64(7), w1)
	assert.Equal(t, int64(8), w2)
}

func TestInspect(t *testing.T) {
	r := bytes.NewReader(emergeScenario())
	sum, err := Inspect(r, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x0202000B), sum.Version)
	assert.Equal(t, "2.2.0.0b", sum.VersionString)
	assert.True(t, sum.CRLF)

	// the cursor is back at the start
	var head [4]byte
	_, err = r.Read(head[:])
	require.NoError(t, err)
	assert.Equal(t, ";Gam", string(head[:]))
}

func TestWrite_FromScratch(t *testing.T) {
	d, err := NewData(0x0200000B, nil)
	require.NoError(t, err)
	require.NoError(t, d.Header.SetString("nif_file_name", "Scratch.nif"))

	anim, err := d.NewAnimation()
	require.NoError(t, err)
	require.NoError(t, anim.SetInt("event_code", 3))
	require.NoError(t, anim.SetString("name", "Walk"))
	require.NoError(t, anim.SetString("kf_file_name", "Scratch_Walk.kf"))
	require.NoError(t, d.Header.SetInt("num_animations", 1))
	require.NoError(t, d.Header.Set("animations",
		&object.Array{Elems: []object.Value{anim}}))

	got := writeManifest(t, d)
	assert.True(t, bytes.HasPrefix(got, []byte(";Gamebryo KFM File Version 2.0.0.0b\n")))

	back, err := Read(bytes.NewReader(got), nil)
	require.NoError(t, err)
	assert.Equal(t, "Scratch.nif", back.NifFileName())
	require.Len(t, back.Animations(), 1)
	name, _ := back.Animations()[0].GetString("name")
	assert.Equal(t, "Walk", name)

	assert.Equal(t, got, writeManifest(t, back))
}

func TestRead_EnvelopeErrors(t *testing.T) {
	t.Run("foreign banner", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte("; not a manifest at all\n")), nil)
		require.ErrorIs(t, err, stream.ErrMalformedEnvelope)
	})

	t.Run("undeclared version", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte(";Gamebryo KFM File Version 9.9.9.9\n")), nil)
		require.ErrorIs(t, err, stream.ErrUnsupportedVersion)
	})

	t.Run("non-canonical spelling", func(t *testing.T) {
		// 2.2.0.0B packs to the right word but the format writes 2.2.0.0b
		_, err := Read(bytes.NewReader([]byte(";Gamebryo KFM File Version 2.2.0.0B\n")), nil)
		require.ErrorIs(t, err, stream.ErrMalformedEnvelope)
	})

	t.Run("unparseable version", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte(";Gamebryo KFM File Version x.y\n")), nil)
		require.ErrorIs(t, err, stream.ErrMalformedEnvelope)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := Read(bytes.NewReader(oblivionScenario()[:40]), nil)
		require.ErrorIs(t, err, stream.ErrTruncatedStream)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		img := append(oblivionScenario(), 0xAA)
		_, err := Read(bytes.NewReader(img), nil)
		require.ErrorIs(t, err, stream.ErrMalformedEnvelope)
	})

	t.Run("banner never ends", func(t *testing.T) {
		img := bytes.Repeat([]byte{'x'}, 100)
		_, err := Read(bytes.NewReader(img), nil)
		require.ErrorIs(t, err, stream.ErrMalformedEnvelope)
	})
}

func TestNewData(t *testing.T) {
	_, err := NewData(0x09000000, nil)
	require.ErrorIs(t, err, stream.ErrUnsupportedVersion)

	d, err := NewData(0x01024B00, nil)
	require.NoError(t, err)
	assert.Equal(t, "1.2.4b", d.VersionString())
	assert.NotNil(t, d.Header)
	assert.Empty(t, d.Animations())
}
