package storagemgr_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/storage/localbackend"
	"github.com/edo-build/edo/pkg/storagemgr"
)

func writeArtifact(t *testing.T, ctx context.Context, b *localbackend.Backend, name, content string) artifact.Artifact {
	t.Helper()
	w, err := b.StartLayer(ctx)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	layer, err := w.Finish(ctx, mediatype.NewTar(mediatype.None), nil)
	require.NoError(t, err)

	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       edoid.Id{Name: name},
			Provides: artifact.ProvidesSet(name),
		},
		Layers: []artifact.Layer{layer},
	}
	a, err = artifact.Finalize(a)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, a))
	return a
}

func TestFetchSourceSynchronizesFromSourceTier(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	src, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	a := writeArtifact(t, ctx, src, "widget", "source-bytes")

	mgr := storagemgr.New(local)
	mgr.AddSource("upstream", src, false)

	got, err := mgr.FetchSource(ctx, logr.Discard(), a.Config.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Id, got.Config.Id)

	// Subsequent SafeOpen succeeds without consulting the source tier.
	local2, err := mgr.SafeOpen(ctx, a.Config.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Id, local2.Config.Id)
}

func TestFetchSourceNotFoundWhenNoTierHasIt(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	_, err = mgr.FetchSource(ctx, logr.Discard(), edoid.Id{Name: "missing"})
	require.Error(t, err)
}

func TestFindBuildSyncDownloadsLayers(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	build, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	a := writeArtifact(t, ctx, build, "output", "build-bytes")

	mgr := storagemgr.New(local)
	mgr.SetBuild(build)

	hit, err := mgr.FindBuild(ctx, a.Config.Id, true)
	require.NoError(t, err)
	assert.True(t, hit)

	got, err := mgr.SafeOpen(ctx, a.Config.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Id, got.Config.Id)
}

func TestFindBuildMissWithNoBuildTier(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	hit, err := mgr.FindBuild(ctx, edoid.Id{Name: "x"}, true)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestUploadBuildIsNoOpWithoutBuildTier(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	a := writeArtifact(t, ctx, local, "widget", "x")
	assert.NoError(t, mgr.UploadBuild(ctx, a.Config.Id))
}

func TestUploadBuildCopiesToConfiguredTier(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	build, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	a := writeArtifact(t, ctx, local, "widget", "local-bytes")

	mgr := storagemgr.New(local)
	mgr.SetBuild(build)

	require.NoError(t, mgr.UploadBuild(ctx, a.Config.Id))

	got, err := build.Open(ctx, a.Config.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Id, got.Config.Id)
}

func TestGCRemovesUnkeptArtifacts(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	keep := writeArtifact(t, ctx, local, "keeper", "1")
	gone := writeArtifact(t, ctx, local, "goner", "2")

	freed, err := mgr.GC(ctx, []edoid.Id{keep.Config.Id})
	require.NoError(t, err)
	assert.Equal(t, 1, freed)

	_, err = local.Open(ctx, keep.Config.Id)
	require.NoError(t, err)
	_, err = local.Open(ctx, gone.Config.Id)
	require.Error(t, err)
}

func TestRemoveSourceDropsTier(t *testing.T) {
	ctx := context.Background()
	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	src, err := localbackend.New(t.TempDir())
	require.NoError(t, err)

	mgr := storagemgr.New(local)
	mgr.AddSource("upstream", src, false)
	mgr.RemoveSource("upstream")

	_, err = mgr.FetchSource(ctx, logr.Discard(), edoid.Id{Name: "anything"})
	require.Error(t, err)
	_ = ctx
}
