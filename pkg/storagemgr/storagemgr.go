// Package storagemgr implements the tiered StorageManager (spec.md §4.3):
// one mandatory local backend plus optional source/build/output tiers,
// partitioned into safe (local-only) and unsafe (network-touching)
// operations.
package storagemgr

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/storage"
)

// NamedBackend pairs a source-tier backend with the name it was
// registered under, so callers can remove it later.
type NamedBackend struct {
	Name    string
	Backend storage.Backend
}

// Manager owns the local backend and the source/build/output tiers.
// Tier slice membership is guarded by mu; backend I/O itself is not —
// once a handle is obtained, reads/writes proceed independently of the
// lock, per spec.md §4.3's concurrency model.
type Manager struct {
	local storage.Backend

	mu     sync.RWMutex
	source []NamedBackend
	build  storage.Backend
	output storage.Backend
}

// New constructs a Manager around the mandatory local backend.
func New(local storage.Backend) *Manager {
	return &Manager{local: local}
}

// AddSource inserts backend under name at the head (front=true) or tail
// of the source tier sequence.
func (m *Manager) AddSource(name string, backend storage.Backend, front bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nb := NamedBackend{Name: name, Backend: backend}
	if front {
		m.source = append([]NamedBackend{nb}, m.source...)
		return
	}
	m.source = append(m.source, nb)
}

// RemoveSource removes the named source tier, if present.
func (m *Manager) RemoveSource(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.source[:0]
	for _, nb := range m.source {
		if nb.Name != name {
			out = append(out, nb)
		}
	}
	m.source = out
}

// SetBuild installs (or, with nil, clears) the build tier.
func (m *Manager) SetBuild(backend storage.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.build = backend
}

// SetOutput installs (or, with nil, clears) the output tier.
func (m *Manager) SetOutput(backend storage.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = backend
}

func (m *Manager) sourceTiers() []NamedBackend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NamedBackend, len(m.source))
	copy(out, m.source)
	return out
}

func (m *Manager) buildTier() storage.Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.build
}

// OutputTier returns the configured write-only output sink, or nil.
func (m *Manager) OutputTier() storage.Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.output
}

// ---- Safe operations: local-only, never touch the network. ----

func (m *Manager) SafeOpen(ctx context.Context, id edoid.Id) (artifact.Artifact, error) {
	return m.local.Open(ctx, id)
}

func (m *Manager) SafeRead(ctx context.Context, layer artifact.Layer) (io.ReadCloser, error) {
	return m.local.Read(ctx, layer)
}

func (m *Manager) SafeStartLayer(ctx context.Context) (storage.LayerWriter, error) {
	return m.local.StartLayer(ctx)
}

func (m *Manager) SafeFinishLayer(ctx context.Context, w storage.LayerWriter, mt mediatype.MediaType, platform *string) (artifact.Layer, error) {
	return w.Finish(ctx, mt, platform)
}

func (m *Manager) SafeSave(ctx context.Context, a artifact.Artifact) error {
	return m.local.Save(ctx, a)
}

// ---- Unsafe operations: may touch source/build tiers. ----

// FetchSource returns the local artifact for id, synchronizing from the
// first source tier that has it if absent locally.
func (m *Manager) FetchSource(ctx context.Context, log logr.Logger, id edoid.Id) (artifact.Artifact, error) {
	if has, err := m.local.Has(ctx, id); err != nil {
		return artifact.Artifact{}, err
	} else if has {
		return m.local.Open(ctx, id)
	}

	for _, nb := range m.sourceTiers() {
		has, err := nb.Backend.Has(ctx, id)
		if err != nil {
			log.Error(err, "source tier has check failed", "tier", nb.Name, "id", id.String())
			continue
		}
		if !has {
			continue
		}
		if err := syncArtifact(ctx, nb.Backend, m.local, id); err != nil {
			log.Error(err, "source tier sync failed", "tier", nb.Name, "id", id.String())
			continue
		}
		return m.local.Open(ctx, id)
	}
	return artifact.Artifact{}, edoerr.New(edoerr.KindNotFound, "storagemgr.FetchSource", id.String(), nil)
}

// FindSource locates id in a source tier without synchronizing it
// locally, returning the name of the tier that has it.
func (m *Manager) FindSource(ctx context.Context, id edoid.Id) (string, bool, error) {
	for _, nb := range m.sourceTiers() {
		has, err := nb.Backend.Has(ctx, id)
		if err != nil {
			return "", false, err
		}
		if has {
			return nb.Name, true, nil
		}
	}
	return "", false, nil
}

// FindBuild consults the build tier for id. When sync is true and found,
// downloads all layers and saves the manifest locally.
func (m *Manager) FindBuild(ctx context.Context, id edoid.Id, sync bool) (bool, error) {
	build := m.buildTier()
	if build == nil {
		return false, nil
	}
	has, err := build.Has(ctx, id)
	if err != nil || !has {
		return false, err
	}
	if !sync {
		return true, nil
	}
	if err := syncArtifact(ctx, build, m.local, id); err != nil {
		return false, err
	}
	return true, nil
}

// UploadBuild copies the local artifact's layers and manifest to the
// build tier, if one is configured. A no-op (not an error) when no
// build tier is set, matching the "best-effort" character of upload
// calls from the scheduler's execution loop.
func (m *Manager) UploadBuild(ctx context.Context, id edoid.Id) error {
	build := m.buildTier()
	if build == nil {
		return nil
	}
	return syncArtifact(ctx, m.local, build, id)
}

// PruneLocal removes every other artifact sharing id's coordinates but a
// different digest from the local backend.
func (m *Manager) PruneLocal(ctx context.Context, id edoid.Id) error {
	return m.local.Prune(ctx, id)
}

// PruneLocalAll removes every local duplicate.
func (m *Manager) PruneLocalAll(ctx context.Context) error {
	return m.local.PruneAll(ctx)
}

// GC deletes every local artifact whose id is not listed in keep, as a final
// sweep beyond PruneLocalAll's duplicate-only elimination. Returns the
// count of artifacts removed.
func (m *Manager) GC(ctx context.Context, keep []edoid.Id) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id.String()] = struct{}{}
	}
	ids, err := m.local.List(ctx)
	if err != nil {
		return 0, err
	}
	var errs error
	freed := 0
	for _, id := range ids {
		if _, ok := keepSet[id.String()]; ok {
			continue
		}
		if err := m.local.Delete(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		freed++
	}
	return freed, errs
}

// syncArtifact streams every layer of id from src to dst in parallel,
// then saves the manifest on dst. Per spec.md §4.3: failure in any
// layer aborts the whole operation; partially-written destination blobs
// are permitted to remain, but the manifest is never saved on partial
// success.
func syncArtifact(ctx context.Context, src, dst storage.Backend, id edoid.Id) error {
	a, err := src.Open(ctx, id)
	if err != nil {
		return err
	}

	type result struct {
		idx   int
		layer artifact.Layer
		err   error
	}
	results := make(chan result, len(a.Layers))
	var wg sync.WaitGroup
	for i, l := range a.Layers {
		wg.Add(1)
		go func(i int, l artifact.Layer) {
			defer wg.Done()
			layer, err := copyLayer(ctx, src, dst, l)
			results <- result{idx: i, layer: layer, err: err}
		}(i, l)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	synced := make([]artifact.Layer, len(a.Layers))
	var errs error
	for r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		synced[r.idx] = r.layer
	}
	if errs != nil {
		return fmt.Errorf("storagemgr: sync %s: %w", id.String(), errs)
	}

	a.Layers = synced
	return dst.Save(ctx, a)
}

func copyLayer(ctx context.Context, src, dst storage.Backend, l artifact.Layer) (artifact.Layer, error) {
	rc, err := src.Read(ctx, l)
	if err != nil {
		return artifact.Layer{}, err
	}
	defer rc.Close()

	w, err := dst.StartLayer(ctx)
	if err != nil {
		return artifact.Layer{}, err
	}
	if _, err := io.Copy(w, rc); err != nil {
		_ = w.Abort()
		return artifact.Layer{}, err
	}
	return w.Finish(ctx, l.MediaType, l.Platform)
}
