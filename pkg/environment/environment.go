// Package environment defines the Environment/Farm lifecycle contract
// (spec.md §4.6): a farm mints environments rooted at a path; an
// environment supports path expansion, env vars, a create→up→...→down
// lifecycle, file I/O, and command execution.
package environment

import (
	"context"
	"io"

	"github.com/go-logr/logr"
)

// NetworkAccess is an environment's network policy. Defaults to None;
// Full or Limited must be explicitly configured.
type NetworkAccess struct {
	Kind  NetworkAccessKind
	Hosts []string // only meaningful when Kind == NetworkLimited
}

type NetworkAccessKind int

const (
	NetworkNone NetworkAccessKind = iota
	NetworkFull
	NetworkLimited
)

// StorageManager is the subset of *storagemgr.Manager a Farm needs for
// its one-time setup() step (e.g. pulling a base image).
type StorageManager interface{}

// Farm is a factory for Environments.
type Farm interface {
	// Setup performs one-time preparation (e.g. image pull).
	Setup(ctx context.Context, log logr.Logger, st StorageManager) error
	// Create mints an Environment rooted at path.
	Create(ctx context.Context, log logr.Logger, path string) (Environment, error)
}

// Environment is a build sandbox: a namespace, a lifecycle, file I/O,
// and command execution.
type Environment interface {
	// Expand returns path's absolute form inside the environment
	// namespace.
	Expand(path string) string
	CreateDir(ctx context.Context, path string) error
	SetEnv(key, value string)
	GetEnv(key string) (string, bool)

	// Setup prepares but does not run. Up must follow Setup; Down must
	// be called on every exit path following a successful Up.
	Setup(ctx context.Context, log logr.Logger, st StorageManager) error
	Up(ctx context.Context, log logr.Logger) error
	Down(ctx context.Context, log logr.Logger) error
	Clean(ctx context.Context, log logr.Logger) error

	Write(ctx context.Context, path string, r io.Reader) error
	Unpack(ctx context.Context, path string, r io.Reader) error
	Read(ctx context.Context, path string, w io.Writer) error

	// Cmd runs a one-shot shell string rooted at path.
	Cmd(ctx context.Context, log logr.Logger, id, path, cmdString string) (bool, error)
	// Run executes a built Command.
	Run(ctx context.Context, log logr.Logger, id, path string, cmd *Command) (bool, error)
	// Shell attaches an interactive session rooted at path, logging a
	// fresh session id for each invocation.
	Shell(ctx context.Context, log logr.Logger, path string) error
}
