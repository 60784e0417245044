// Package scheduler implements the DAG execution engine (spec.md §4.8):
// a fetch pass that warms the build tier in parallel, followed by a
// batch-concurrency-bounded dispatch loop that respects the predecessor-
// complete-before-successor ordering invariant and short-circuits cache
// hits before ever creating an environment.
package scheduler

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/dag"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/transform"
)

// Config wires a Scheduler to the registry and subsystem handles its
// transforms need.
type Config struct {
	Registry     *transform.FrozenRegistry
	Storage      transform.Storage
	Sources      transform.SourceManager
	Environments transform.EnvironmentManager
	BatchSize    int
	Metrics      *Metrics
	Tracer       trace.Tracer
}

// Scheduler runs one DAG to completion per Run call; it holds no
// per-run mutable state between calls.
type Scheduler struct {
	cfg Config
}

func New(cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/edo-build/edo/pkg/scheduler")
	}
	return &Scheduler{cfg: cfg}
}

// Result is the outcome of a completed Run.
type Result struct {
	RunID    string
	Statuses map[string]dag.State // addr string -> final state
}

// Plan is the dry-run output of Scheduler.Plan: the wave-by-wave batch
// ordering a real Run would dispatch, without executing anything
// (supplemented feature, SPEC_FULL.md §6).
type Plan struct {
	RunID   string
	Batches [][]addr.Addr
}

func (s *Scheduler) dependsFunc() dag.DependsFunc {
	return func(ctx context.Context, a addr.Addr) ([]addr.Addr, error) {
		t, ok := s.cfg.Registry.Lookup(a)
		if !ok {
			return nil, edoerr.New(edoerr.KindNotFound, "scheduler.depends", a.String(), nil)
		}
		return t.Depends(), nil
	}
}

func (s *Scheduler) buildGraph(ctx context.Context, target addr.Addr) (*dag.Graph, error) {
	g := dag.New()
	if err := g.Add(ctx, target, s.dependsFunc()); err != nil {
		return nil, err
	}
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

// Plan constructs the graph, checks for cycles, and returns the batch
// ordering a Run would use without calling prepare/stage/transform on
// anything.
func (s *Scheduler) Plan(ctx context.Context, target addr.Addr) (*Plan, error) {
	g, err := s.buildGraph(ctx, target)
	if err != nil {
		return nil, err
	}

	done := map[int]bool{}
	var batches [][]addr.Addr
	for {
		var batch []addr.Addr
		var batchIdx []int
		for i := 0; i < g.Len(); i++ {
			if done[i] {
				continue
			}
			ready := true
			for _, p := range g.Predecessors(i) {
				if !done[p] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, g.Addr(i))
				batchIdx = append(batchIdx, i)
			}
		}
		if len(batch) == 0 {
			break
		}
		for _, i := range batchIdx {
			done[i] = true
		}
		batches = append(batches, batch)
	}

	return &Plan{RunID: uuid.NewString(), Batches: batches}, nil
}

// Run executes every transform in target's dependency subgraph, honoring
// batch concurrency, cache-hit short-circuiting, and the predecessor-
// complete-before-successor ordering invariant.
func (s *Scheduler) Run(ctx context.Context, log logr.Logger, target addr.Addr) (*Result, error) {
	runID := uuid.NewString()
	log = log.WithValues("run_id", runID, "target", target.String())

	runCtx, span := s.cfg.Tracer.Start(ctx, "scheduler.Run", trace.WithAttributes(
		attribute.String("edo.run_id", runID),
		attribute.String("edo.target", target.String()),
	))
	defer span.End()
	defer s.cfg.Metrics.delete(runID)

	g, err := s.buildGraph(runCtx, target)
	if err != nil {
		return nil, err
	}

	ids, err := s.fetchPass(runCtx, log, g)
	if err != nil {
		return nil, fmt.Errorf("scheduler: fetch pass: %w", err)
	}

	result, err := s.executeLoop(runCtx, log, g, ids, runID)
	if err != nil {
		return result, err
	}
	return result, nil
}

// fetchPass calls transform.Prepare in parallel for every node whose
// unique_id is not already present in the build tier, per spec.md §4.8.
// Failures here are fatal.
func (s *Scheduler) fetchPass(ctx context.Context, log logr.Logger, g *dag.Graph) (map[int]edoid.Id, error) {
	n := g.Len()
	ids := make([]edoid.Id, n)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.BatchSize)

	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			a := g.Addr(i)
			t, ok := s.cfg.Registry.Lookup(a)
			if !ok {
				return edoerr.New(edoerr.KindNotFound, "scheduler.fetchPass", a.String(), nil)
			}
			h := s.handleFor(t)

			id, err := t.UniqueId(egCtx, log, h)
			if err != nil {
				return fmt.Errorf("unique_id(%s): %w", a.String(), err)
			}
			ids[i] = id

			hit, err := s.cfg.Storage.FindBuild(egCtx, id, true)
			if err != nil {
				return fmt.Errorf("find_build(%s): %w", a.String(), err)
			}
			if hit {
				return nil
			}
			if err := t.Prepare(egCtx, log, h); err != nil {
				return fmt.Errorf("prepare(%s): %w", a.String(), err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]edoid.Id, n)
	for i, id := range ids {
		out[i] = id
	}
	return out, nil
}

func (s *Scheduler) handleFor(t transform.Transform) transform.Handle {
	return transform.Handle{
		Storage:     s.cfg.Storage,
		Sources:     s.cfg.Sources,
		Registry:    s.cfg.Registry,
		Environment: s.cfg.Environments,
	}
}

type completion struct {
	idx int
	err error
}

// executeLoop is the dispatcher+controller described in spec.md §4.8: a
// single goroutine owns the ready queue and inflight counter (no lock
// needed since only this goroutine mutates them), spawning one task per
// dispatched node and waiting on a completion channel.
func (s *Scheduler) executeLoop(ctx context.Context, log logr.Logger, g *dag.Graph, ids map[int]edoid.Id, runID string) (*Result, error) {
	n := g.Len()
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if len(g.Predecessors(i)) == 0 {
			if err := g.Transition(i, dag.StateQueued); err != nil {
				return nil, err
			}
			queue = append(queue, i)
		}
	}

	completions := make(chan completion, s.cfg.BatchSize)
	inflight := 0
	var failed bool
	var errs *multierror.Error

	for len(queue) > 0 || inflight > 0 {
		for len(queue) > 0 && inflight < s.cfg.BatchSize {
			idx := queue[0]
			queue = queue[1:]
			if err := g.Transition(idx, dag.StateRunning); err != nil {
				return nil, err
			}
			inflight++
			s.cfg.Metrics.set(runID, inflight)

			go func(idx int) {
				err := s.runNode(ctx, log, g, idx, ids[idx], runID)
				completions <- completion{idx: idx, err: err}
			}(idx)
		}

		if inflight == 0 {
			break
		}

		comp := <-completions
		inflight--
		s.cfg.Metrics.set(runID, inflight)

		if comp.err != nil {
			failed = true
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", g.Addr(comp.idx).String(), comp.err))
			_ = g.Transition(comp.idx, dag.StateFailed)
			continue
		}
		_ = g.Transition(comp.idx, dag.StateSuccess)

		if failed {
			continue // draining only; stop queueing new work
		}
		for _, child := range g.Successors(comp.idx) {
			if g.State(child) == dag.StatePending && g.AllPredecessorsSucceeded(child) {
				if err := g.Transition(child, dag.StateQueued); err != nil {
					return nil, err
				}
				queue = append(queue, child)
			}
		}
	}

	statuses := make(map[string]dag.State, n)
	for i := 0; i < n; i++ {
		statuses[g.Addr(i).String()] = g.State(i)
	}
	result := &Result{RunID: runID, Statuses: statuses}

	if err := errs.ErrorOrNil(); err != nil {
		return result, err
	}
	return result, nil
}

// runNode executes one node's prepare-to-down lifecycle. A cache hit on
// the build tier short-circuits straight to success with no environment
// creation, per spec.md §4.8 step 1.
func (s *Scheduler) runNode(ctx context.Context, log logr.Logger, g *dag.Graph, idx int, id edoid.Id, runID string) error {
	a := g.Addr(idx)
	nodeCtx, span := s.cfg.Tracer.Start(ctx, "scheduler.node", trace.WithAttributes(
		attribute.String("edo.addr", a.String()),
	))
	defer span.End()

	log = log.WithValues("addr", a.String())

	t, ok := s.cfg.Registry.Lookup(a)
	if !ok {
		return edoerr.New(edoerr.KindNotFound, "scheduler.runNode", a.String(), nil)
	}

	if hit, err := s.cfg.Storage.FindBuild(nodeCtx, id, false); err != nil {
		return fmt.Errorf("find_build: %w", err)
	} else if hit {
		log.V(1).Info("cache hit, skipping environment creation")
		return nil
	}

	h := s.handleFor(t)
	env, err := s.cfg.Environments.Create(nodeCtx, log, t.Environment(), runID+"/"+a.Name())
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}

	if err := env.Setup(nodeCtx, log, nil); err != nil {
		return fmt.Errorf("environment setup: %w", err)
	}
	if err := env.Up(nodeCtx, log); err != nil {
		return fmt.Errorf("environment up: %w", err)
	}
	defer func() {
		if err := env.Down(context.WithoutCancel(nodeCtx), log); err != nil {
			log.Error(err, "environment down failed")
		}
	}()

	if err := t.Stage(nodeCtx, log, h, env); err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	status := t.Execute(nodeCtx, log, h, env)
	switch status.Kind {
	case transform.StatusSuccess:
		if err := s.cfg.Storage.SafeSave(nodeCtx, status.Artifact); err != nil {
			return fmt.Errorf("safe_save: %w", err)
		}
		if err := s.cfg.Storage.UploadBuild(nodeCtx, status.Artifact.Config.Id); err != nil {
			log.V(1).Info("upload_build best-effort failure", "error", err.Error())
		}
		return nil
	default:
		log.Error(status.Err, "transform did not succeed", "kind", status.Kind, "debug_path", status.DebugPath)
		if t.CanShell() && status.DebugPath != "" {
			if shellErr := t.Shell(nodeCtx, log, env); shellErr != nil {
				log.Error(shellErr, "debug shell failed")
			}
		}
		if status.Err != nil {
			return status.Err
		}
		return fmt.Errorf("transform %s did not succeed", a.String())
	}
}
