package schemas_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/niflheim/pkg/schema"
	"github.com/ssargent/niflheim/schemas"
)

func TestBuiltinDocumentsLoad(t *testing.T) {
	cases := []struct {
		name   string
		doc    []byte
		format string
		probe  string
	}{
		{"cgf", schemas.CGF, "cgf", "NodeChunk"},
		{"nif", schemas.NIF, "nif", "NiNode"},
		{"kfm", schemas.KFM, "kfm", "Header"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg, err := schema.Load(tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.format, reg.Format)
			assert.True(t, reg.HasType(tc.probe))
			rt, err := reg.Resolve(tc.probe)
			require.NoError(t, err)
			assert.NotEmpty(t, rt.FlatFields())
		})
	}
}

func TestChunkTypeEnumCoversDefinedChunks(t *testing.T) {
	reg, err := schema.Load(schemas.CGF)
	require.NoError(t, err)
	enum, ok := reg.Enum("ChunkType")
	require.True(t, ok)

	options := make(map[string]bool, len(enum.Options))
	for _, opt := range enum.Options {
		options[opt.Name] = true
	}
	for _, name := range reg.StructNames() {
		base, found := strings.CutSuffix(name, "Chunk")
		if !found {
			continue
		}
		assert.Truef(t, options[base], "struct %s has no ChunkType option", name)
	}
}

func TestSceneGraphHierarchy(t *testing.T) {
	reg, err := schema.Load(schemas.NIF)
	require.NoError(t, err)

	node, err := reg.Resolve("NiNode")
	require.NoError(t, err)
	assert.True(t, node.IsDescendantOf("NiAVObject"))
	assert.True(t, node.IsDescendantOf("NiObject"))

	body, err := reg.Resolve("bhkRigidBody")
	require.NoError(t, err)
	assert.True(t, body.IsDescendantOf("bhkRefObject"))
	assert.False(t, body.IsDescendantOf("NiAVObject"))
}
