// Package source defines the Source contract (spec.md §4.4): a
// deterministic, content-addressed external input provider (git clone,
// HTTP download, ...) that caches its output through a StorageManager
// and can stage it into a build environment.
package source

import (
	"context"
	"io"

	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/storage"
)

// Storage is the subset of *storagemgr.Manager a Source needs. Defined
// here (rather than importing storagemgr directly) to keep this package
// import-cycle free and independently testable with a fake.
type Storage interface {
	FetchSource(ctx context.Context, log logr.Logger, id edoid.Id) (artifact.Artifact, error)
	SafeOpen(ctx context.Context, id edoid.Id) (artifact.Artifact, error)
	SafeSave(ctx context.Context, a artifact.Artifact) error
	SafeRead(ctx context.Context, layer artifact.Layer) (io.ReadCloser, error)
	SafeStartLayer(ctx context.Context) (storage.LayerWriter, error)
}

// Environment is the subset of environment.Environment a Source needs
// to unpack into, kept minimal for the same reason as Storage above.
type Environment interface {
	Write(ctx context.Context, path string, r io.Reader) error
	Unpack(ctx context.Context, path string, r io.Reader) error
}

// Source is the provider contract described by spec.md §4.4.
type Source interface {
	// UniqueId returns a deterministic Id derived from provider kind and
	// normalized inputs.
	UniqueId() edoid.Id
	// Fetch produces bytes, pushes them as one or more layers into
	// storage's local backend, and returns the resulting artifact. Must
	// be idempotent.
	Fetch(ctx context.Context, log logr.Logger, st Storage) (artifact.Artifact, error)
	// Stage writes or unpacks the cached artifact into path within env.
	Stage(ctx context.Context, log logr.Logger, st Storage, env Environment, path string) error
}

// Cache is the default-implemented caching wrapper spec.md §4.4
// describes: try FetchSource(unique_id) first, else call Fetch.
func Cache(ctx context.Context, log logr.Logger, st Storage, s Source) (artifact.Artifact, error) {
	id := s.UniqueId()
	if a, err := st.FetchSource(ctx, log, id); err == nil {
		return a, nil
	}
	return s.Fetch(ctx, log, st)
}
