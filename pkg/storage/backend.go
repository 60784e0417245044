// Package storage defines the Backend capability set (spec.md §4.2): the
// low-level contract any blob+manifest store must satisfy, independent of
// whether it is the default local filesystem backend or a remote OCI
// registry.
package storage

import (
	"context"
	"io"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
)

// LayerWriter streams bytes for a new layer. Finish hashes everything
// written so far with Blake3, persists the blob under that digest (or
// reuses an existing blob with the same digest), and returns the
// resulting Layer descriptor. Writing identical bytes through two
// separate LayerWriters must produce the same digest and may share
// storage.
type LayerWriter interface {
	io.Writer
	Finish(ctx context.Context, mt mediatype.MediaType, platform *string) (artifact.Layer, error)
	// Abort discards a partially written layer. Safe to call after Finish
	// (no-op) so callers can always defer it.
	Abort() error
}

// Backend is the capability set every storage implementation (local
// filesystem, remote OCI registry, plugin-provided) must satisfy.
type Backend interface {
	// List returns the set of artifact ids currently present.
	List(ctx context.Context) ([]edoid.Id, error)
	// Has reports whether id is present.
	Has(ctx context.Context, id edoid.Id) (bool, error)
	// Open returns the manifest for id. Returns a NotFound *edoerr.Error
	// if absent, InvalidArtifact if the stored manifest fails validation.
	Open(ctx context.Context, id edoid.Id) (artifact.Artifact, error)
	// Save persists a (atomically, from the caller's point of view).
	Save(ctx context.Context, a artifact.Artifact) error
	// Delete removes id. Returns NotFound if absent.
	Delete(ctx context.Context, id edoid.Id) error
	// Copy deep-copies the artifact at from to to, de-duplicating layers
	// that are already present at the destination digest.
	Copy(ctx context.Context, from, to edoid.Id) error
	// Prune removes every other artifact sharing id's
	// (name, package, version, arch) but a different digest.
	Prune(ctx context.Context, id edoid.Id) error
	// PruneAll prunes every duplicate across the whole backend.
	PruneAll(ctx context.Context) error
	// Read opens a streaming reader for a layer's raw bytes.
	Read(ctx context.Context, layer artifact.Layer) (io.ReadCloser, error)
	// StartLayer begins writing a new layer's raw bytes.
	StartLayer(ctx context.Context) (LayerWriter, error)
}
