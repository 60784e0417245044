// Package orasbackend implements storage.Backend against a remote OCI
// registry, the "build"/"source" tier of a multi-tier StorageManager
// (spec.md §4.3). It generalizes the teacher's notion of a single
// `registryHost` (internal/controller/build.go, build_kaniko.go) that
// kaniko pushes images to: here, any id maps to an OCI repository+tag
// pair and artifacts round-trip through oras-go's content store.
package orasbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/opencontainers/go-digest"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/storage"
)

func marshalArtifact(a artifact.Artifact) ([]byte, error)   { return json.Marshal(a) }
func unmarshalArtifact(data []byte, a *artifact.Artifact) error { return json.Unmarshal(data, a) }

func newBytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// toOCIDigest renders an Edo Blake3 hex digest as an OCI descriptor
// digest string. Blake3 is not one of the OCI-registered algorithms, so
// this uses the "blake3:" algorithm prefix directly rather than
// digest.Canonical (sha256) — registries that enforce the canonical
// algorithm set will reject it, which is a known limitation of using
// Blake3 end-to-end with plain OCI registries (see DESIGN.md).
func toOCIDigest(hex string) digest.Digest {
	return digest.Digest("blake3:" + hex)
}

// Credentials configures auth against the remote registry host, mirroring
// the teacher's registry-credentials Secret (registry_secrets.go) in
// shape: a single host with an optional username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Backend is a storage.Backend backed by a remote OCI registry reached
// through oras-go. Every edoid.Id maps to repository "<host>/<name>" at
// tag "<digest>", or at tag "latest" when the id carries no digest.
type Backend struct {
	host   string
	creds  Credentials
	client *auth.Client
	plain  bool
}

var _ storage.Backend = (*Backend)(nil)

// New opens a Backend talking to host (e.g. "registry.internal:5000").
// plainHTTP mirrors kaniko's "--insecure" fallback for node-local
// registries with no TLS.
func New(host string, creds Credentials, plainHTTP bool) *Backend {
	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: auth.StaticCredential(host, auth.Credential{
			Username: creds.Username,
			Password: creds.Password,
		}),
	}
	return &Backend{host: host, creds: creds, client: client, plain: plainHTTP}
}

func (b *Backend) repository(name string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", b.host, name))
	if err != nil {
		return nil, edoerr.New(edoerr.KindBackend, "orasbackend.repository", name, err)
	}
	repo.Client = b.client
	repo.PlainHTTP = b.plain
	return repo, nil
}

func tagOf(id edoid.Id) string {
	if id.Digest == "" {
		return "latest"
	}
	return id.Digest
}

// Has reports whether id's tag resolves in the remote repository.
func (b *Backend) Has(ctx context.Context, id edoid.Id) (bool, error) {
	repo, err := b.repository(id.Name)
	if err != nil {
		return false, err
	}
	_, err = repo.Resolve(ctx, tagOf(id))
	if err != nil {
		return false, nil //nolint:nilerr // absence is not a transport error here
	}
	return true, nil
}

// Open fetches and decodes the manifest stored at id.
func (b *Backend) Open(ctx context.Context, id edoid.Id) (artifact.Artifact, error) {
	repo, err := b.repository(id.Name)
	if err != nil {
		return artifact.Artifact{}, err
	}
	desc, err := repo.Resolve(ctx, tagOf(id))
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindNotFound, "orasbackend.Open", id.String(), err)
	}
	rc, err := repo.Fetch(ctx, desc)
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindBackend, "orasbackend.Open", id.String(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindIo, "orasbackend.Open", id.String(), err)
	}
	var a artifact.Artifact
	if err := unmarshalArtifact(data, &a); err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindInvalidArtifact, "orasbackend.Open", id.String(), err)
	}
	return a, nil
}

// Save pushes a's manifest and tags it with a's digest. Layer blobs are
// not pushed here; they reach the registry through a prior
// StartLayer/Finish pair on the same registry.
func (b *Backend) Save(ctx context.Context, a artifact.Artifact) error {
	ok, err := artifact.VerifyDigest(a)
	if err != nil || !ok {
		return edoerr.New(edoerr.KindInvalidArtifact, "orasbackend.Save", a.Config.Id.String(), err)
	}
	repo, err := b.repository(a.Config.Id.Name)
	if err != nil {
		return err
	}

	manifestData, err := marshalArtifact(a)
	if err != nil {
		return edoerr.New(edoerr.KindInvalidArtifact, "orasbackend.Save", a.Config.Id.String(), err)
	}
	desc := content.NewDescriptorFromBytes(ocispec.MediaTypeImageManifest, manifestData)
	if err := repo.Push(ctx, desc, newBytesReader(manifestData)); err != nil {
		return edoerr.New(edoerr.KindBackend, "orasbackend.Save", a.Config.Id.String(), err)
	}
	if err := repo.Tag(ctx, desc, tagOf(a.Config.Id)); err != nil {
		return edoerr.New(edoerr.KindBackend, "orasbackend.Save", a.Config.Id.String(), err)
	}
	return nil
}

// Delete untags id. Registries that garbage-collect untagged manifests
// will reclaim the blobs on their own schedule; Edo has no authority to
// force that here.
func (b *Backend) Delete(ctx context.Context, id edoid.Id) error {
	// oras-go's remote.Repository has no untag primitive; a Delete against
	// the manifest descriptor is the closest equivalent.
	repo, err := b.repository(id.Name)
	if err != nil {
		return err
	}
	desc, err := repo.Resolve(ctx, tagOf(id))
	if err != nil {
		return edoerr.New(edoerr.KindNotFound, "orasbackend.Delete", id.String(), err)
	}
	if err := repo.Manifests().Delete(ctx, desc); err != nil {
		return edoerr.New(edoerr.KindBackend, "orasbackend.Delete", id.String(), err)
	}
	return nil
}

// Copy re-tags the manifest at from under to's coordinates, using
// oras.Copy for a server-side (where supported) cross-repository copy.
func (b *Backend) Copy(ctx context.Context, from, to edoid.Id) error {
	src, err := b.repository(from.Name)
	if err != nil {
		return err
	}
	dst, err := b.repository(to.Name)
	if err != nil {
		return err
	}
	if _, err := oras.Copy(ctx, src, tagOf(from), dst, tagOf(to), oras.DefaultCopyOptions); err != nil {
		return edoerr.New(edoerr.KindBackend, "orasbackend.Copy", from.String(), err)
	}
	return nil
}

// Prune and PruneAll have no remote equivalent: registries garbage
// collect unreferenced blobs on their own retention policy, and Edo
// holds no admin credentials to trigger that out of band. Both are
// no-ops here (mirrors §4.3's distinction between safe local operations
// and the unsafe, best-effort nature of remote tiers).
func (b *Backend) Prune(_ context.Context, _ edoid.Id) error { return nil }
func (b *Backend) PruneAll(_ context.Context) error          { return nil }

// List is unsupported: OCI registries expose tag listing per repository,
// not a global artifact catalog, so there is no way to enumerate every
// id without already knowing every repository name. Returns an empty
// list rather than erroring, since a source/build cache tier is always
// allowed to report nothing cached.
func (b *Backend) List(_ context.Context) ([]edoid.Id, error) { return nil, nil }

// Read opens a streaming reader for a layer's raw bytes.
func (b *Backend) Read(ctx context.Context, layer artifact.Layer) (io.ReadCloser, error) {
	repo, err := b.repository(layerRepoHint(layer))
	if err != nil {
		return nil, err
	}
	desc := ocispec.Descriptor{
		MediaType: layer.MediaType.String(),
		Digest:    toOCIDigest(layer.Digest),
		Size:      layer.Size,
	}
	rc, err := repo.Fetch(ctx, desc)
	if err != nil {
		return nil, edoerr.New(edoerr.KindNotFound, "orasbackend.Read", layer.Digest, err)
	}
	return rc, nil
}

// StartLayer begins an in-memory layer write that Finish pushes to the
// given repository as a blob. Remote pushes are not resumable, so the
// whole layer is buffered before the push — acceptable for the tiered
// cache's source/build artifacts, which are expected to be modest.
func (b *Backend) StartLayer(_ context.Context) (storage.LayerWriter, error) {
	return &layerWriter{backend: b}, nil
}

type layerWriter struct {
	backend *Backend
	buf     []byte
	repo    string
}

// SetRepositoryHint lets a caller pin which repository this layer's blob
// should push into (registries shard blobs by repository name).
func (w *layerWriter) SetRepositoryHint(repo string) { w.repo = repo }

func (w *layerWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *layerWriter) Finish(ctx context.Context, mt mediatype.MediaType, platform *string) (artifact.Layer, error) {
	digest := edoid.Blake3Hex(w.buf)
	repoName := w.repo
	if repoName == "" {
		repoName = "edo-layers"
	}
	repo, err := w.backend.repository(repoName)
	if err != nil {
		return artifact.Layer{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mt.String(),
		Digest:    toOCIDigest(digest),
		Size:      int64(len(w.buf)),
	}
	if err := repo.Push(ctx, desc, newBytesReader(w.buf)); err != nil {
		return artifact.Layer{}, edoerr.New(edoerr.KindBackend, "orasbackend.Finish", digest, err)
	}
	return artifact.Layer{MediaType: mt, Digest: digest, Size: int64(len(w.buf)), Platform: platform}, nil
}

func (w *layerWriter) Abort() error {
	w.buf = nil
	return nil
}

func layerRepoHint(_ artifact.Layer) string { return "edo-layers" }

func sortedIds(ids []edoid.Id) []edoid.Id {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
