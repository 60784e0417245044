// Package resolver implements the dependency resolver (spec.md §4.5): a
// deterministic, backtracking version solver running across the union
// of every registered vendor's per-name version pool, producing a
// canonical Lock.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/node"
	"github.com/edo-build/edo/pkg/vendor"
)

// Dependency is a requested external package (spec.md §3's
// `{ addr, name, requirement, vendor? }`).
type Dependency struct {
	Addr        addr.Addr
	Name        string
	Requirement *semver.Constraints
	Vendor      string // optional pin
}

// LockEntry is one resolved package coordinate.
type LockEntry struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Digest  string `json:"digest"`
}

// Lock is the canonical, addr-sorted resolution output (spec.md §6).
type Lock struct {
	Version string               `json:"version"`
	Entries map[string]LockEntry `json:"entries"`
}

// MarshalJSON relies on encoding/json's built-in sorted-map-key
// behavior for string-keyed maps to produce the canonical, addr-sorted
// form spec.md §4.5 requires — no extra sorting pass needed.
func (l Lock) MarshalJSON() ([]byte, error) {
	type wire Lock
	if l.Version == "" {
		l.Version = "1"
	}
	return json.Marshal(wire(l))
}

// Diff reports addrs whose resolved coordinate changed between old and
// new lock files — a feature the distilled spec never names but every
// real resolver/lockfile pair needs for `edo lock --diff`-style review.
func Diff(old, new Lock) []string {
	changed := make(map[string]struct{})
	for a, e := range new.Entries {
		if prev, ok := old.Entries[a]; !ok || prev != e {
			changed[a] = struct{}{}
		}
	}
	for a := range old.Entries {
		if _, ok := new.Entries[a]; !ok {
			changed[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(changed))
	for a := range changed {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

type candidate struct {
	version    *semver.Version
	vendorName string
	vendorIdx  int
	node       node.Node
}

// sortPool sorts candidates by semver descending, then by vendor
// registration order ascending on ties — spec.md §4.5's determinism
// requirement.
func sortPool(pool []candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		cmp := pool[i].version.Compare(pool[j].version)
		if cmp != 0 {
			return cmp > 0
		}
		return pool[i].vendorIdx < pool[j].vendorIdx
	})
}

// constraintSet is the accumulated, name-scoped set of requirements
// gathered so far: every semver constraint that applies, plus an
// optional vendor pin.
type constraintSet struct {
	constraints []*semver.Constraints
	vendorPin   string
}

func (c constraintSet) satisfies(cand candidate) bool {
	if c.vendorPin != "" && c.vendorPin != cand.vendorName {
		return false
	}
	for _, cs := range c.constraints {
		if !cs.Check(cand.version) {
			return false
		}
	}
	return true
}

func (c constraintSet) withVendorPin(v string) (constraintSet, error) {
	if v == "" {
		return c, nil
	}
	if c.vendorPin != "" && c.vendorPin != v {
		return constraintSet{}, fmt.Errorf("conflicting vendor pins: %s vs %s", c.vendorPin, v)
	}
	out := c
	out.vendorPin = v
	return out, nil
}

func (c constraintSet) withConstraint(cs *semver.Constraints) constraintSet {
	out := constraintSet{vendorPin: c.vendorPin}
	out.constraints = append(append([]*semver.Constraints{}, c.constraints...), cs)
	return out
}

// Resolver runs the solve across a fixed, ordered list of vendors.
type Resolver struct {
	vendors []vendor.Vendor
	pools   map[string][]candidate
}

// New constructs a Resolver. Vendor order determines tie-break priority
// (first-registered wins ties, per spec.md §8 scenario 4).
func New(vendors []vendor.Vendor) *Resolver {
	return &Resolver{vendors: vendors, pools: map[string][]candidate{}}
}

func (r *Resolver) poolFor(ctx context.Context, name string) ([]candidate, error) {
	if pool, ok := r.pools[name]; ok {
		return pool, nil
	}
	var pool []candidate
	for vi, v := range r.vendors {
		versions, err := v.Options(ctx, name)
		if err != nil {
			return nil, edoerr.New(edoerr.KindUnsolvableRequirement, "resolver.Options", name, err)
		}
		for _, ver := range versions {
			pool = append(pool, candidate{version: ver, vendorName: v.Name(), vendorIdx: vi})
		}
	}
	sortPool(pool)
	r.pools[name] = pool
	return pool, nil
}

func (r *Resolver) vendorByName(name string) vendor.Vendor {
	for _, v := range r.vendors {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

// Resolve runs the solver over deps and returns the canonical Lock.
func (r *Resolver) Resolve(ctx context.Context, log logr.Logger, deps []Dependency) (Lock, error) {
	constraints := map[string]constraintSet{}
	for _, d := range deps {
		cs, err := constraints[d.Name].withVendorPin(d.Vendor)
		if err != nil {
			return Lock{}, edoerr.New(edoerr.KindUnsolvableRequirement, "resolver.Resolve", d.Name, err)
		}
		constraints[d.Name] = cs.withConstraint(d.Requirement)
	}

	queue := make([]string, 0, len(constraints))
	for name := range constraints {
		queue = append(queue, name)
	}
	sort.Strings(queue) // deterministic initial processing order

	chosen := map[string]candidate{}
	final, err := r.solve(ctx, log, queue, constraints, chosen)
	if err != nil {
		return Lock{}, err
	}

	entries := map[string]LockEntry{}
	for _, d := range deps {
		cand := final[d.Name]
		entries[d.Addr.String()] = LockEntry{
			Vendor:  cand.vendorName,
			Name:    d.Name,
			Version: cand.version.String(),
			Digest:  nodeDigest(cand.node),
		}
	}
	return Lock{Version: "1", Entries: entries}, nil
}

// solve recursively assigns a candidate to every name in queue, trying
// candidates highest-first and backtracking when a choice's transitive
// dependencies conflict with an already-established constraint.
func (r *Resolver) solve(ctx context.Context, log logr.Logger, queue []string, constraints map[string]constraintSet, chosen map[string]candidate) (map[string]candidate, error) {
	if len(queue) == 0 {
		return chosen, nil
	}
	name, rest := queue[0], queue[1:]
	if existing, ok := chosen[name]; ok {
		if !constraints[name].satisfies(existing) {
			return nil, edoerr.New(edoerr.KindUnsolvableRequirement, "resolver.solve", name,
				fmt.Errorf("conflicting requirements for %s resolved to %s", name, existing.version))
		}
		return r.solve(ctx, log, rest, constraints, chosen)
	}

	pool, err := r.poolFor(ctx, name)
	if err != nil {
		return nil, err
	}
	cs := constraints[name]

	for _, cand := range pool {
		if !cs.satisfies(cand) {
			continue
		}
		v := r.vendorByName(cand.vendorName)
		n, err := v.Resolve(ctx, name, cand.version)
		if err != nil {
			log.Error(err, "vendor resolve failed, trying next candidate", "name", name, "version", cand.version.String())
			continue
		}
		cand.node = n

		deps, err := v.Dependencies(ctx, name, cand.version)
		if err != nil {
			log.Error(err, "vendor dependencies lookup failed, trying next candidate", "name", name, "version", cand.version.String())
			continue
		}

		nextConstraints := cloneConstraints(constraints)
		nextQueue := append([]string{}, rest...)
		conflict := false
		for depName, reqStr := range deps {
			reqCs, err := semver.NewConstraint(reqStr)
			if err != nil {
				conflict = true
				break
			}
			nextConstraints[depName] = nextConstraints[depName].withConstraint(reqCs)
			if _, alreadyChosen := chosen[depName]; !alreadyChosen && !contains(nextQueue, depName) {
				nextQueue = append(nextQueue, depName)
			}
		}
		if conflict {
			continue
		}

		nextChosen := cloneChosen(chosen)
		nextChosen[name] = cand
		result, err := r.solve(ctx, log, nextQueue, nextConstraints, nextChosen)
		if err == nil {
			return result, nil
		}
		log.V(1).Info("backtracking", "name", name, "version", cand.version.String(), "reason", err.Error())
	}
	return nil, edoerr.New(edoerr.KindUnsolvableRequirement, "resolver.solve", name,
		fmt.Errorf("no candidate for %q satisfies all requirements", name))
}

func cloneConstraints(in map[string]constraintSet) map[string]constraintSet {
	out := make(map[string]constraintSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneChosen(in map[string]candidate) map[string]candidate {
	out := make(map[string]candidate, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// nodeDigest extracts a stable digest from a resolved Node, if the
// vendor populated one via a "digest" table key; otherwise Blake3 of
// the node's rendered string form, so every lock entry has a digest
// even for vendors that don't expose a content hash directly.
func nodeDigest(n node.Node) string {
	if d, ok := n.Get("digest"); ok {
		if s, err := d.AsString(); err == nil {
			return s
		}
	}
	return edoid.Blake3Hex([]byte(fmt.Sprintf("%v", n)))
}
