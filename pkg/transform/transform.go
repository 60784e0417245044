// Package transform defines the Transform contract (spec.md §4.7): a
// build operation's fetch/stage/execute lifecycle, keyed by address in a
// frozen registry the scheduler reads without locks once construction
// completes.
package transform

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/environment"
)

// StatusKind classifies the outcome of Transform.Execute.
type StatusKind int

const (
	StatusSuccess StatusKind = iota
	StatusRetryable
	StatusFailed
)

// Status is a transform's execution outcome. Artifact is populated only
// for StatusSuccess; DebugPath and Err are populated for the failing
// kinds, matching spec.md §4.7's Success/Retryable/Failed union.
type Status struct {
	Kind      StatusKind
	Artifact  artifact.Artifact
	DebugPath string
	Err       error
}

func Success(a artifact.Artifact) Status { return Status{Kind: StatusSuccess, Artifact: a} }

func Retryable(debugPath string, err error) Status {
	return Status{Kind: StatusRetryable, DebugPath: debugPath, Err: err}
}

func Failed(debugPath string, err error) Status {
	return Status{Kind: StatusFailed, DebugPath: debugPath, Err: err}
}

// Registry is the interface a Handle exposes for looking up registered
// transforms by addr.
type Registry interface {
	Lookup(a addr.Addr) (Transform, bool)
}

// Storage is the subset of *storagemgr.Manager a transform's handle needs.
type Storage interface {
	SafeSave(ctx context.Context, a artifact.Artifact) error
	FindBuild(ctx context.Context, id edoid.Id, sync bool) (bool, error)
	UploadBuild(ctx context.Context, id edoid.Id) error
}

// SourceManager is the subset of source-layer functionality a handle
// needs; kept narrow and local to avoid a reverse dependency on pkg/source.
type SourceManager interface {
	FetchByAddr(ctx context.Context, log logr.Logger, a addr.Addr) (edoid.Id, error)
}

// EnvironmentManager mints Environments from a Farm registered under an
// addr, mirroring the plugin host's create_farm contract (spec.md §6).
type EnvironmentManager interface {
	Create(ctx context.Context, log logr.Logger, farm addr.Addr, path string) (environment.Environment, error)
}

// Handle is the capability set a Transform's lifecycle methods receive:
// storage, sources, the frozen transform registry (for resolving
// dependency artifacts), and the environment manager — per spec.md
// §4.7's "the handle exposes ..." line.
type Handle struct {
	Storage     Storage
	Sources     SourceManager
	Registry    Registry
	Environment EnvironmentManager
}

// Transform is one node of the build graph.
type Transform interface {
	// Addr is this transform's own address, used for registry lookups
	// and log correlation.
	Addr() addr.Addr
	// Environment names the farm this transform builds under.
	Environment() addr.Addr
	// Depends lists predecessor transform addrs.
	Depends() []addr.Addr
	// UniqueId computes this transform's cache key from everything
	// observable via handle: source ids, dependency artifact ids, and
	// the transform's own provider-specific parameters.
	UniqueId(ctx context.Context, log logr.Logger, h Handle) (edoid.Id, error)
	// Prepare fetches sources and dependency artifacts to local storage.
	// Network-allowed.
	Prepare(ctx context.Context, log logr.Logger, h Handle) error
	// Stage hydrates env with sources and dependency artifacts.
	Stage(ctx context.Context, log logr.Logger, h Handle, env environment.Environment) error
	// Execute performs the build proper.
	Execute(ctx context.Context, log logr.Logger, h Handle, env environment.Environment) Status
	// CanShell reports whether Shell is meaningful for this transform.
	CanShell() bool
	// Shell opens a debug session in env, called only after a failure
	// when CanShell is true and a debug path was reported.
	Shell(ctx context.Context, log logr.Logger, env environment.Environment) error
}
