package orasbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
)

func TestTagOfFallsBackToLatest(t *testing.T) {
	assert.Equal(t, "latest", tagOf(edoid.Id{Name: "widget"}))
	assert.Equal(t, "abc123", tagOf(edoid.Id{Name: "widget", Digest: "abc123"}))
}

func TestMarshalArtifactRoundTrip(t *testing.T) {
	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       edoid.Id{Name: "widget", Digest: edoid.Blake3Hex([]byte("x"))},
			Provides: artifact.ProvidesSet("widget"),
		},
	}
	data, err := marshalArtifact(a)
	require.NoError(t, err)

	var out artifact.Artifact
	require.NoError(t, unmarshalArtifact(data, &out))
	assert.Equal(t, a.Config.Id, out.Config.Id)
}

func TestToOCIDigestUsesBlake3Prefix(t *testing.T) {
	d := toOCIDigest(edoid.Blake3Hex([]byte("hello")))
	assert.Contains(t, d.String(), "blake3:")
}
