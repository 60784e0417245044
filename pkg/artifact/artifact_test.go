package artifact_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
)

func sampleLayer(content string) artifact.Layer {
	return artifact.Layer{
		MediaType: mediatype.NewTar(mediatype.None),
		Digest:    edoid.Blake3Hex([]byte(content)),
		Size:      int64(len(content)),
	}
}

func buildArtifact(t *testing.T, name string, layers []artifact.Layer) artifact.Artifact {
	t.Helper()
	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       edoid.Id{Name: name},
			Provides: artifact.ProvidesSet("lib" + name),
			Requires: map[string]map[string]string{"build": {"base": "^1.0"}},
		},
		Layers: layers,
	}
	finalized, err := artifact.Finalize(a)
	require.NoError(t, err)
	return finalized
}

func TestContentAddressing(t *testing.T) {
	a := buildArtifact(t, "widget", []artifact.Layer{sampleLayer("hello")})

	ok, err := artifact.VerifyDigest(a)
	require.NoError(t, err)
	assert.True(t, ok)

	// Identical content produces an identical digest.
	b := buildArtifact(t, "widget", []artifact.Layer{sampleLayer("hello")})
	assert.Equal(t, a.Config.Id.Digest, b.Config.Id.Digest)

	// Changing one byte (different layer content) changes the digest.
	c := buildArtifact(t, "widget", []artifact.Layer{sampleLayer("hellp")})
	assert.NotEqual(t, a.Config.Id.Digest, c.Config.Id.Digest)
}

func TestDifferentNameSameLayersDiffersDigest(t *testing.T) {
	a := buildArtifact(t, "widget-a", []artifact.Layer{sampleLayer("x")})
	b := buildArtifact(t, "widget-b", []artifact.Layer{sampleLayer("x")})
	assert.NotEqual(t, a.Config.Id.Digest, b.Config.Id.Digest)
}

func TestJSONRoundTrip(t *testing.T) {
	a := buildArtifact(t, "widget", []artifact.Layer{sampleLayer("hello"), sampleLayer("world")})

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var out artifact.Artifact
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, a.Config.Id, out.Config.Id)
	assert.Equal(t, a.MediaType.String(), out.MediaType.String())
	require.Len(t, out.Layers, 2)
	assert.Equal(t, a.Layers[0].Digest, out.Layers[0].Digest)

	ok, err := artifact.VerifyDigest(out)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWireShapeMatchesManifestSpec(t *testing.T) {
	a := buildArtifact(t, "widget", []artifact.Layer{sampleLayer("hello")})
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	assert.Equal(t, "vnd.edo.artifact.v1.manifest", generic["mediaType"])
	cfg := generic["config"].(map[string]any)
	assert.Contains(t, cfg, "id")
	assert.Contains(t, cfg, "provides")
	assert.Contains(t, cfg, "requires")
}
