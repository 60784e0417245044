package localbackend_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/storage/localbackend"
)

func writeLayer(t *testing.T, ctx context.Context, b *localbackend.Backend, content string) artifact.Layer {
	t.Helper()
	w, err := b.StartLayer(ctx)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	layer, err := w.Finish(ctx, mediatype.NewTar(mediatype.None), nil)
	require.NoError(t, err)
	return layer
}

func buildArtifact(t *testing.T, name string, layers []artifact.Layer) artifact.Artifact {
	t.Helper()
	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       edoid.Id{Name: name},
			Provides: artifact.ProvidesSet(name),
		},
		Layers: layers,
	}
	finalized, err := artifact.Finalize(a)
	require.NoError(t, err)
	return finalized
}

func TestSaveOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	layer := writeLayer(t, ctx, b, "hello world")
	a := buildArtifact(t, "widget", []artifact.Layer{layer})

	require.NoError(t, b.Save(ctx, a))

	got, err := b.Open(ctx, a.Config.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Id, got.Config.Id)
	assert.Equal(t, a.Layers[0].Digest, got.Layers[0].Digest)

	has, err := b.Has(ctx, a.Config.Id)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFinishLayerProducesReadableIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	layer := writeLayer(t, ctx, b, "payload-bytes")

	rc, err := b.Read(ctx, layer)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(data))
	assert.Equal(t, int64(len("payload-bytes")), layer.Size)
}

func TestDuplicateLayerContentSharesDigest(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	l1 := writeLayer(t, ctx, b, "same")
	l2 := writeLayer(t, ctx, b, "same")
	assert.Equal(t, l1.Digest, l2.Digest)
}

func TestOpenMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	_, err = b.Open(ctx, edoid.Id{Name: "missing", Digest: ""})
	require.Error(t, err)
	assert.True(t, edoerr.IsNotFound(err))
}

func TestSaveRejectsMismatchedDigest(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	layer := writeLayer(t, ctx, b, "x")
	a := buildArtifact(t, "widget", []artifact.Layer{layer})
	a.Config.Id.Digest = "0000000000000000000000000000000000000000000000000000000000000000"

	err = b.Save(ctx, a)
	require.Error(t, err)
}

func TestSaveRejectsMissingBlob(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	ghost := artifact.Layer{
		MediaType: mediatype.NewTar(mediatype.None),
		Digest:    edoid.Blake3Hex([]byte("never written")),
		Size:      13,
	}
	a := buildArtifact(t, "widget", []artifact.Layer{ghost})
	err = b.Save(ctx, a)
	require.Error(t, err)
}

func TestCopyRetargetsId(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	layer := writeLayer(t, ctx, b, "content")
	a := buildArtifact(t, "widget", []artifact.Layer{layer})
	require.NoError(t, b.Save(ctx, a))

	to := a.Config.Id
	to.Version = "9.9.9"
	// The renamed config's digest changes because the id fields feed the
	// digest payload; recompute it the way a caller promoting an artifact
	// would.
	renamed := a
	renamed.Config.Id = to
	renamed, err = artifact.Finalize(renamed)
	require.NoError(t, err)
	to = renamed.Config.Id

	require.NoError(t, b.Copy(ctx, a.Config.Id, to))

	got, err := b.Open(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", got.Config.Id.Version)
	assert.Equal(t, a.Layers[0].Digest, got.Layers[0].Digest)

	// Original is untouched.
	_, err = b.Open(ctx, a.Config.Id)
	require.NoError(t, err)
}

func TestPruneRemovesOtherDigestsSameCoordinate(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	l1 := writeLayer(t, ctx, b, "v1")
	l2 := writeLayer(t, ctx, b, "v2")
	a1 := buildArtifact(t, "widget", []artifact.Layer{l1})
	a2 := buildArtifact(t, "widget", []artifact.Layer{l2})
	require.NoError(t, b.Save(ctx, a1))
	require.NoError(t, b.Save(ctx, a2))

	require.NoError(t, b.Prune(ctx, a1.Config.Id))

	_, err = b.Open(ctx, a1.Config.Id)
	require.NoError(t, err)
	_, err = b.Open(ctx, a2.Config.Id)
	require.Error(t, err)
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	err = b.Delete(ctx, edoid.Id{Name: "nope"})
	require.Error(t, err)
}

func TestAbortDiscardsPartialLayer(t *testing.T) {
	ctx := context.Background()
	b, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	w, err := b.StartLayer(ctx)
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
}
