// Package localbackend implements storage.Backend against the local
// filesystem, per spec.md §6:
//
//	<root>/blobs/blake3/<hex-digest>   # raw layer bytes
//	<root>/catalog.json                # id -> artifact manifest
//
// Writes are atomic: every mutation writes to a temp file in the target
// directory and renames it into place, the same pattern the teacher's
// secrets client uses for reading a mounted token file, generalized here
// to writing one.
package localbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/storage"
)

// Backend is the default local filesystem-backed storage.Backend.
type Backend struct {
	root string

	mu      sync.Mutex // guards catalog read-modify-write cycles
	blobsMu sync.Mutex // guards blob creation (independent of catalog)
}

var _ storage.Backend = (*Backend)(nil)

// New opens (creating if necessary) a local backend rooted at root.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "blake3"), 0o755); err != nil {
		return nil, edoerr.New(edoerr.KindIo, "localbackend.New", root, err)
	}
	b := &Backend{root: root}
	if _, err := os.Stat(b.catalogPath()); os.IsNotExist(err) {
		if err := b.writeCatalog(map[string]artifact.Artifact{}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) catalogPath() string { return filepath.Join(b.root, "catalog.json") }

func (b *Backend) blobPath(digest string) string {
	return filepath.Join(b.root, "blobs", "blake3", digest)
}

func (b *Backend) readCatalog() (map[string]artifact.Artifact, error) {
	data, err := os.ReadFile(b.catalogPath())
	if os.IsNotExist(err) {
		return map[string]artifact.Artifact{}, nil
	}
	if err != nil {
		return nil, edoerr.New(edoerr.KindIo, "localbackend.readCatalog", b.root, err)
	}
	var catalog map[string]artifact.Artifact
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, edoerr.New(edoerr.KindInvalidArtifact, "localbackend.readCatalog", b.root, err)
	}
	return catalog, nil
}

func (b *Backend) writeCatalog(catalog map[string]artifact.Artifact) error {
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return edoerr.New(edoerr.KindIo, "localbackend.writeCatalog", b.root, err)
	}
	return atomicWrite(b.catalogPath(), data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return edoerr.New(edoerr.KindIo, "atomicWrite", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return edoerr.New(edoerr.KindIo, "atomicWrite", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return edoerr.New(edoerr.KindIo, "atomicWrite", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return edoerr.New(edoerr.KindIo, "atomicWrite", path, err)
	}
	return nil
}

// List returns every id currently in the catalog.
func (b *Backend) List(_ context.Context) ([]edoid.Id, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return nil, err
	}
	ids := make([]edoid.Id, 0, len(catalog))
	for _, a := range catalog {
		ids = append(ids, a.Config.Id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Has reports whether id is present in the catalog.
func (b *Backend) Has(_ context.Context, id edoid.Id) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return false, err
	}
	_, ok := catalog[id.String()]
	return ok, nil
}

// Open returns the manifest stored under id.
func (b *Backend) Open(_ context.Context, id edoid.Id) (artifact.Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return artifact.Artifact{}, err
	}
	a, ok := catalog[id.String()]
	if !ok {
		return artifact.Artifact{}, edoerr.New(edoerr.KindNotFound, "localbackend.Open", id.String(), nil)
	}
	return a, nil
}

// Save persists a's manifest. Every layer referenced by a must already
// have a blob present under this backend's root.
func (b *Backend) Save(_ context.Context, a artifact.Artifact) error {
	ok, err := artifact.VerifyDigest(a)
	if err != nil {
		return edoerr.New(edoerr.KindInvalidArtifact, "localbackend.Save", a.Config.Id.String(), err)
	}
	if !ok {
		return edoerr.New(edoerr.KindInvalidArtifact, "localbackend.Save", a.Config.Id.String(),
			fmt.Errorf("config.id.digest does not match blake3(config || layers)"))
	}
	for _, l := range a.Layers {
		if _, statErr := os.Stat(b.blobPath(l.Digest)); statErr != nil {
			return edoerr.New(edoerr.KindInvalidArtifact, "localbackend.Save", a.Config.Id.String(),
				fmt.Errorf("layer %s has no blob in this backend", l.Digest))
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return err
	}
	catalog[a.Config.Id.String()] = a
	return b.writeCatalog(catalog)
}

// Delete removes id from the catalog. Blobs are left in place; they are
// inert until pruned (spec.md §4.3's "content-addressing makes them
// inert" rationale for sync failures applies equally here).
func (b *Backend) Delete(_ context.Context, id edoid.Id) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return err
	}
	if _, ok := catalog[id.String()]; !ok {
		return edoerr.New(edoerr.KindNotFound, "localbackend.Delete", id.String(), nil)
	}
	delete(catalog, id.String())
	return b.writeCatalog(catalog)
}

// Copy deep-copies the artifact at from into to. Layers are shared by
// digest (no byte copy); to's fields (including its own Digest) are
// taken as given — the caller is responsible for having computed a
// correct digest for the renamed/re-versioned config.
func (b *Backend) Copy(ctx context.Context, from, to edoid.Id) error {
	b.mu.Lock()
	catalog, err := b.readCatalog()
	if err != nil {
		b.mu.Unlock()
		return err
	}
	src, ok := catalog[from.String()]
	b.mu.Unlock()
	if !ok {
		return edoerr.New(edoerr.KindNotFound, "localbackend.Copy", from.String(), nil)
	}

	dst := src
	dst.Config.Id = to
	return b.Save(ctx, dst)
}

func duplicateKey(id edoid.Id) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s", id.Name, id.Package, id.Version, id.Arch)
}

// Prune removes every other artifact sharing (name, package, version,
// arch) with id but a different digest.
func (b *Backend) Prune(_ context.Context, id edoid.Id) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return err
	}
	key := duplicateKey(id)
	changed := false
	for k, a := range catalog {
		if duplicateKey(a.Config.Id) == key && a.Config.Id.Digest != id.Digest {
			delete(catalog, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return b.writeCatalog(catalog)
}

// PruneAll removes every duplicate across the whole backend: for every
// group of artifacts sharing (name, package, version, arch), only the
// lexicographically greatest digest survives (arbitrary but deterministic
// tie-break — there is no recency metadata to prefer "newest").
func (b *Backend) PruneAll(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	catalog, err := b.readCatalog()
	if err != nil {
		return err
	}

	survivor := make(map[string]string) // duplicateKey -> surviving digest
	for _, a := range catalog {
		key := duplicateKey(a.Config.Id)
		if cur, ok := survivor[key]; !ok || a.Config.Id.Digest > cur {
			survivor[key] = a.Config.Id.Digest
		}
	}
	changed := false
	for k, a := range catalog {
		key := duplicateKey(a.Config.Id)
		if survivor[key] != a.Config.Id.Digest {
			delete(catalog, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return b.writeCatalog(catalog)
}

// Read opens a streaming reader for layer's raw bytes.
func (b *Backend) Read(_ context.Context, layer artifact.Layer) (io.ReadCloser, error) {
	f, err := os.Open(b.blobPath(layer.Digest))
	if os.IsNotExist(err) {
		return nil, edoerr.New(edoerr.KindNotFound, "localbackend.Read", layer.Digest, nil)
	}
	if err != nil {
		return nil, edoerr.New(edoerr.KindIo, "localbackend.Read", layer.Digest, err)
	}
	return f, nil
}

// StartLayer begins writing a new layer's raw bytes to a temp file.
func (b *Backend) StartLayer(_ context.Context) (storage.LayerWriter, error) {
	tmp, err := os.CreateTemp(filepath.Join(b.root, "blobs", "blake3"), ".writing-*")
	if err != nil {
		return nil, edoerr.New(edoerr.KindIo, "localbackend.StartLayer", b.root, err)
	}
	return &layerWriter{backend: b, tmp: tmp}, nil
}

type layerWriter struct {
	backend *Backend
	tmp     *os.File
	size    int64
	done    bool
}

func (w *layerWriter) Write(p []byte) (int, error) {
	n, err := w.tmp.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *layerWriter) Finish(_ context.Context, mt mediatype.MediaType, platform *string) (artifact.Layer, error) {
	if w.done {
		return artifact.Layer{}, fmt.Errorf("localbackend: layer writer already finished")
	}
	if err := w.tmp.Sync(); err != nil {
		return artifact.Layer{}, edoerr.New(edoerr.KindIo, "localbackend.Finish", w.tmp.Name(), err)
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return artifact.Layer{}, edoerr.New(edoerr.KindIo, "localbackend.Finish", w.tmp.Name(), err)
	}
	digest, err := hashFile(w.tmp)
	w.tmp.Close()
	if err != nil {
		os.Remove(w.tmp.Name())
		return artifact.Layer{}, edoerr.New(edoerr.KindIo, "localbackend.Finish", w.tmp.Name(), err)
	}

	final := w.backend.blobPath(digest)
	w.backend.blobsMu.Lock()
	defer w.backend.blobsMu.Unlock()
	if _, statErr := os.Stat(final); statErr == nil {
		// Identical content already stored under this digest: reuse it,
		// discard the temp file (spec.md §4.2 de-duplication rule).
		os.Remove(w.tmp.Name())
	} else if err := os.Rename(w.tmp.Name(), final); err != nil {
		os.Remove(w.tmp.Name())
		return artifact.Layer{}, edoerr.New(edoerr.KindIo, "localbackend.Finish", final, err)
	}
	w.done = true

	return artifact.Layer{MediaType: mt, Digest: digest, Size: w.size, Platform: platform}, nil
}

func (w *layerWriter) Abort() error {
	if w.done {
		return nil
	}
	w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// hashFile reads f (already rewound to its start by the caller) and
// returns its lowercase hex Blake3 digest via edoid.Blake3Hex, the same
// digest function every other Blake3-addressed value in Edo uses.
func hashFile(f *os.File) (string, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return edoid.Blake3Hex(data), nil
}
