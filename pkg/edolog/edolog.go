// Package edolog constructs the engine's default logr.Logger, matching
// SPEC_FULL.md §2.1: a zap core wrapped through go-logr/zapr, the same
// logging stack every controller-runtime-based operator gets for free
// via ctrl.SetLogger, generalized here for a non-Kubernetes-managed
// binary that still wants the same development/production split.
package edolog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options configures the default logger. Zero value is the production
// preset: JSON encoding, info level.
type Options struct {
	// Development selects a human-readable console encoder and debug
	// level, mirroring zap.Options{Development: true} in every
	// controller-runtime main.go.
	Development bool
	// Level overrides the default level (info for production, debug for
	// development) when non-nil.
	Level *zapcore.Level
}

// New builds the engine's default logr.Logger.
func New(opts Options) logr.Logger {
	zopts := []zap.Opts{zap.UseDevMode(opts.Development)}
	if opts.Level != nil {
		zopts = append(zopts, zap.Level(*opts.Level))
	}
	return zap.New(zopts...)
}

// NewFromCore wraps an already-constructed zap core directly, bypassing
// the controller-runtime preset builder — used by tests and embedders
// that already own a *uzap.Logger.
func NewFromCore(l *uzap.Logger) logr.Logger {
	return zapr.NewLogger(l)
}

// Discard is a logr.Logger that drops everything, for call sites (tests,
// dry-run tooling) that need a Logger value but no output.
func Discard() logr.Logger {
	return logr.Discard()
}
