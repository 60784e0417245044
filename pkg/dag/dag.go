// Package dag implements the transform dependency graph (spec.md §4.8):
// idempotent construction from a root addr, cycle detection, leaf
// discovery, and a per-node state machine the scheduler drives.
package dag

import (
	"context"
	"fmt"
	"sync"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/edoerr"
)

// DependsFunc returns the direct dependency addrs of a, mirroring
// Transform.Depends without creating a reverse import on pkg/transform.
type DependsFunc func(ctx context.Context, a addr.Addr) ([]addr.Addr, error)

// State is a node's position in the Pending → Queued → Running →
// (Success | Failed) state machine.
type State int

const (
	StatePending State = iota
	StateQueued
	StateRunning
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Graph is a numeric-index adjacency-list DAG over addrs: index gives the
// Addr↔int bijection, edges holds forward (dependency → dependent) arcs,
// preds holds the reverse (dependent → dependency) arcs leaf discovery and
// the scheduler's "all predecessors Success" check need.
type Graph struct {
	mu sync.RWMutex

	nodes []addr.Addr
	index map[string]int

	edges [][]int // edges[i] = indices of nodes that depend on i
	preds [][]int // preds[i] = indices of i's dependencies

	states []State
}

func New() *Graph {
	return &Graph{index: map[string]int{}}
}

// Add idempotently inserts a node for a and recursively inserts its
// dependencies, wiring a directed edge from each dependency to a.
// Already-visited addrs are not re-walked, per spec.md §4.8.
func (g *Graph) Add(ctx context.Context, root addr.Addr, depends DependsFunc) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	visited := map[string]bool{}
	return g.add(ctx, root, depends, visited)
}

func (g *Graph) add(ctx context.Context, a addr.Addr, depends DependsFunc, visited map[string]bool) error {
	key := a.String()
	if visited[key] {
		return nil
	}
	visited[key] = true

	g.ensureNode(a)

	deps, err := depends(ctx, a)
	if err != nil {
		return fmt.Errorf("dag: depends(%s): %w", key, err)
	}
	for _, d := range deps {
		if err := g.add(ctx, d, depends, visited); err != nil {
			return err
		}
		g.addEdge(d, a)
	}
	return nil
}

// ensureNode returns a's index, creating it if absent. Caller must hold
// g.mu.
func (g *Graph) ensureNode(a addr.Addr) int {
	if i, ok := g.index[a.String()]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, a)
	g.index[a.String()] = i
	g.edges = append(g.edges, nil)
	g.preds = append(g.preds, nil)
	g.states = append(g.states, StatePending)
	return i
}

// addEdge wires a directed edge from dependency dep to dependent. Caller
// must hold g.mu.
func (g *Graph) addEdge(dep, dependent addr.Addr) {
	di := g.ensureNode(dep)
	ti := g.ensureNode(dependent)
	for _, existing := range g.edges[di] {
		if existing == ti {
			return
		}
	}
	g.edges[di] = append(g.edges[di], ti)
	g.preds[ti] = append(g.preds[ti], di)
}

// Index returns a's numeric index, if present.
func (g *Graph) Index(a addr.Addr) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.index[a.String()]
	return i, ok
}

// Addr returns the addr at index i.
func (g *Graph) Addr(i int) addr.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[i]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Predecessors returns the dependency indices of node i.
func (g *Graph) Predecessors(i int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.preds[i]...)
}

// Successors returns the dependent indices of node i.
func (g *Graph) Successors(i int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.edges[i]...)
}

// DetectCycle runs a standard three-color DFS over the whole graph and
// returns an edoerr Cycle error naming the first addr found to be part of
// a cycle, or nil if the graph is acyclic.
func (g *Graph) DetectCycle() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.nodes))

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, next := range g.edges[i] {
			switch color[next] {
			case gray:
				return edoerr.New(edoerr.KindCycle, "dag.detectCycle", g.nodes[next].String(), nil)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[i] = black
		return nil
	}

	for i := range g.nodes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// Leaves computes the initial ready set for a run rooted at target: every
// node reachable from target (inclusive) that has no incoming edges
// within that reachable subgraph, per spec.md §4.8.
func (g *Graph) Leaves(target addr.Addr) ([]addr.Addr, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	root, ok := g.index[target.String()]
	if !ok {
		return nil, edoerr.New(edoerr.KindNotFound, "dag.leaves", target.String(), nil)
	}

	reachable := map[int]bool{}
	var walk func(i int)
	walk = func(i int) {
		if reachable[i] {
			return
		}
		reachable[i] = true
		for _, p := range g.preds[i] {
			walk(p)
		}
	}
	walk(root)

	var leaves []addr.Addr
	for i := range reachable {
		hasPredInSubgraph := false
		for _, p := range g.preds[i] {
			if reachable[p] {
				hasPredInSubgraph = true
				break
			}
		}
		if !hasPredInSubgraph {
			leaves = append(leaves, g.nodes[i])
		}
	}
	return leaves, nil
}

// Reachable returns every node reachable (via dependency edges) from
// target, target included.
func (g *Graph) Reachable(target addr.Addr) ([]addr.Addr, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	root, ok := g.index[target.String()]
	if !ok {
		return nil, edoerr.New(edoerr.KindNotFound, "dag.reachable", target.String(), nil)
	}
	seen := map[int]bool{}
	var walk func(i int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		for _, p := range g.preds[i] {
			walk(p)
		}
	}
	walk(root)

	out := make([]addr.Addr, 0, len(seen))
	for i := range seen {
		out = append(out, g.nodes[i])
	}
	return out, nil
}

// State returns node i's current state.
func (g *Graph) State(i int) State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.states[i]
}

// Transition moves node i to next, validating that the move is legal per
// spec.md §4.8's state machine (only Pending nodes may be Queued; only
// Queued nodes may start Running).
func (g *Graph) Transition(i int, next State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.states[i]
	switch next {
	case StateQueued:
		if cur != StatePending {
			return fmt.Errorf("dag: %s: cannot queue from state %d", g.nodes[i].String(), cur)
		}
	case StateRunning:
		if cur != StateQueued {
			return fmt.Errorf("dag: %s: cannot run from state %d", g.nodes[i].String(), cur)
		}
	case StateSuccess, StateFailed:
		if cur != StateRunning {
			return fmt.Errorf("dag: %s: cannot finish from state %d", g.nodes[i].String(), cur)
		}
	}
	g.states[i] = next
	return nil
}

// AllPredecessorsSucceeded reports whether every predecessor of i is
// StateSuccess — the gate for transitioning a child to Queued.
func (g *Graph) AllPredecessorsSucceeded(i int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.preds[i] {
		if g.states[p] != StateSuccess {
			return false
		}
	}
	return true
}
