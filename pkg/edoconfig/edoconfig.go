// Package edoconfig assembles the engine's typed EngineConfig from the
// single environment variable the core reads (CACHE_ROOT, spec.md §6)
// plus explicit overrides passed by the embedder, following the same
// "defaults merged with explicit overrides, non-zero wins" pattern as
// the teacher's resolveConfig in internal/controller/config.go.
package edoconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultLockFileName is spec.md §6's canonical lock file name.
	DefaultLockFileName = "edo.lock.json"
	// DefaultBatchSize is the scheduler's default concurrency bound when
	// neither an override nor a positive explicit value is supplied.
	DefaultBatchSize = 4
)

// NetworkPolicy mirrors spec.md §4.7's fetch-phase-only network
// allowance: Prepare may reach the network, Stage/Execute never do.
type NetworkPolicy struct {
	// AllowDuringPrepare is true in every correct configuration; kept as
	// a field (rather than a hardcoded constant) only so a future
	// network-policy provider can plug a stricter value in without
	// changing EngineConfig's shape.
	AllowDuringPrepare bool
}

// EngineConfig is the typed configuration every subsystem constructor
// takes, assembled once at startup.
type EngineConfig struct {
	CacheRoot     string
	LockPath      string
	BatchSize     int
	NetworkPolicy NetworkPolicy
}

// Overrides holds explicit, embedder-supplied values. A zero field means
// "use the default"; Overrides.BatchSize <= 0 and empty strings are
// both treated as unset, matching resolveConfig's "non-zero/non-nil
// only" override rule.
type Overrides struct {
	CacheRoot     string
	LockPath      string
	BatchSize     int
	NetworkPolicy *NetworkPolicy
}

// Resolve merges the process environment (CACHE_ROOT) with explicit
// overrides into a complete EngineConfig. CacheRoot must resolve to a
// non-empty value from one of the two sources or Resolve errors.
func Resolve(overrides Overrides) (EngineConfig, error) {
	cfg := EngineConfig{
		BatchSize:     DefaultBatchSize,
		NetworkPolicy: NetworkPolicy{AllowDuringPrepare: true},
	}

	if root := os.Getenv("CACHE_ROOT"); root != "" {
		cfg.CacheRoot = root
	}
	if overrides.CacheRoot != "" {
		cfg.CacheRoot = overrides.CacheRoot
	}
	if cfg.CacheRoot == "" {
		return EngineConfig{}, fmt.Errorf("edoconfig: CACHE_ROOT is required (set the environment variable or pass Overrides.CacheRoot)")
	}

	cfg.LockPath = filepath.Join(cfg.CacheRoot, DefaultLockFileName)
	if overrides.LockPath != "" {
		cfg.LockPath = overrides.LockPath
	}

	if overrides.BatchSize > 0 {
		cfg.BatchSize = overrides.BatchSize
	}
	if overrides.NetworkPolicy != nil {
		cfg.NetworkPolicy = *overrides.NetworkPolicy
	}

	return cfg, nil
}

// StorageRoots returns the cache hierarchy's four tier directories
// rooted at CacheRoot (spec.md §3's local/source/build/output tiers).
func (c EngineConfig) StorageRoots() (local, source, build, output string) {
	return filepath.Join(c.CacheRoot, "local"),
		filepath.Join(c.CacheRoot, "source"),
		filepath.Join(c.CacheRoot, "build"),
		filepath.Join(c.CacheRoot, "output")
}

// LocalFarmRoot is where localenv.Farm roots its per-environment
// directories, kept alongside the cache hierarchy rather than under the
// system temp dir so a developer can inspect a failed build's workspace.
func (c EngineConfig) LocalFarmRoot() string {
	return filepath.Join(c.CacheRoot, "environments")
}
