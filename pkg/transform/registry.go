package transform

import (
	"fmt"

	"github.com/edo-build/edo/pkg/addr"
)

// FrozenRegistry is a construction-then-frozen map[Addr]Transform: built
// once via a Builder, then read without any locking for the lifetime of
// a Run, matching spec.md §5's "Transform registry: construction-then-
// frozen; readable without locks" concurrency note.
type FrozenRegistry struct {
	transforms map[string]Transform
}

var _ Registry = (*FrozenRegistry)(nil)

// Builder accumulates Transforms before Freeze produces an immutable
// FrozenRegistry.
type Builder struct {
	transforms map[string]Transform
}

func NewBuilder() *Builder {
	return &Builder{transforms: map[string]Transform{}}
}

// Add registers t under its own Addr. Returns an error if the addr is
// already registered, since registry construction must be unambiguous.
func (b *Builder) Add(t Transform) error {
	key := t.Addr().String()
	if _, exists := b.transforms[key]; exists {
		return fmt.Errorf("transform: duplicate registration for %s", key)
	}
	b.transforms[key] = t
	return nil
}

// Freeze produces the immutable registry. The Builder must not be reused
// afterward.
func (b *Builder) Freeze() *FrozenRegistry {
	cp := make(map[string]Transform, len(b.transforms))
	for k, v := range b.transforms {
		cp[k] = v
	}
	return &FrozenRegistry{transforms: cp}
}

// Lookup resolves a by its textual form. No lock: the map is never
// mutated after Freeze.
func (r *FrozenRegistry) Lookup(a addr.Addr) (Transform, bool) {
	t, ok := r.transforms[a.String()]
	return t, ok
}

// All returns every registered transform, order unspecified; callers that
// need determinism (e.g. DAG construction) should sort by Addr.
func (r *FrozenRegistry) All() []Transform {
	out := make([]Transform, 0, len(r.transforms))
	for _, t := range r.transforms {
		out = append(out, t)
	}
	return out
}
