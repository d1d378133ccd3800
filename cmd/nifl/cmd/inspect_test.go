package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/niflheim/pkg/kfm"
	"github.com/ssargent/niflheim/pkg/toaster"
)

// writeManifest writes a two-animation manifest and returns its path.
func writeManifest(t *testing.T, name string) string {
	t.Helper()
	d, err := kfm.NewData(0x0200000B, nil)
	require.NoError(t, err)
	require.NoError(t, d.Header.SetString("nif_file_name", "Scene.nif"))
	for i, animName := range []string{"Idle", "Walk"} {
		anim, err := d.NewAnimation()
		require.NoError(t, err)
		require.NoError(t, anim.SetInt("event_code", int64(i)))
		require.NoError(t, anim.SetString("name", animName))
		require.NoError(t, anim.SetString("kf_file_name", "Scene_"+animName+".kf"))
	}
	require.NoError(t, d.Header.SetInt("num_animations", 2))

	path := filepath.Join(t.TempDir(), name)
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, kfm.Write(fh, d))
	require.NoError(t, fh.Close())
	return path
}

func TestInspectFile(t *testing.T) {
	formats := toaster.Formats()

	t.Run("matching extension", func(t *testing.T) {
		path := writeManifest(t, "actor.kfm")

		hdr, size, err := inspectFile(formats, path)
		require.NoError(t, err)
		assert.Equal(t, "kfm", hdr.Format)
		assert.Equal(t, "2.0.0.0b", hdr.VersionTag)
		assert.Greater(t, size, int64(0))
	})

	t.Run("unknown extension falls back to sniffing", func(t *testing.T) {
		path := writeManifest(t, "actor.bak")

		hdr, _, err := inspectFile(formats, path)
		require.NoError(t, err)
		assert.Equal(t, "kfm", hdr.Format)
	})

	t.Run("unrecognized payload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.bin")
		require.NoError(t, os.WriteFile(path, []byte("not a container"), 0644))

		_, _, err := inspectFile(formats, path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := inspectFile(formats, filepath.Join(t.TempDir(), "missing.nif"))
		assert.Error(t, err)
	})
}
