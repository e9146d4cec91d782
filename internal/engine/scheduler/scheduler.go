// Package scheduler implements spec.md §4.7's BuildQueue: topological
// execution of a dependency graph with a bounded concurrency gate, a
// bail-or-continue failure policy, and the stuck-node diagnostic.
package scheduler

import (
	"context"
	"errors"

	"go.nozem.dev/nozem/internal/build"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

const defaultConcurrency = 4

// RunOptions configures one Run call. Targets/Concurrency/Bail/Downstream
// map directly onto the `build` CLI command's flags (spec.md §6).
type RunOptions struct {
	Targets     []string
	Concurrency int
	Bail        bool
	Downstream  bool
}

// Result reports what happened to every unit selected for the run.
type Result struct {
	Succeeded []domain.InternedString
	Failed    []domain.InternedString
	Pruned    int
	Outputs   build.DependencyOutputs
}

// Scheduler drives a Builder over a dependency graph. Per-unit progress
// vertices for units that actually ran are opened by the Builder itself,
// not here (see build.Config's Telemetry field). Scheduler holds its own
// Telemetry handle only for the stuck-node diagnostic below, so a unit that
// never became buildable still gets a vertex in the same progress stream
// instead of a second, disconnected report.
type Scheduler struct {
	builder   *build.Builder
	logger    ports.Logger
	telemetry ports.Telemetry
}

// NewScheduler creates a Scheduler over builder. telemetry may be nil, in
// which case the stuck-node diagnostic logs only (no vertices are opened).
func NewScheduler(builder *build.Builder, logger ports.Logger, telemetry ports.Telemetry) *Scheduler {
	return &Scheduler{builder: builder, logger: logger, telemetry: telemetry}
}

type unitResult struct {
	id     domain.InternedString
	output build.Output
	err    error
}

// runState holds everything mutated over the life of one Run call. Like the
// teacher's schedulerRunState, all mutation happens on the single goroutine
// draining resultsCh; executeUnit goroutines only ever send a unitResult.
type runState struct {
	graph       *domain.Graph
	units       map[domain.InternedString]domain.Unit
	inDegree    map[domain.InternedString]int
	ready       []domain.InternedString
	enqueued    map[domain.InternedString]struct{}
	active      int
	concurrency int
	bail        bool

	resultsCh chan unitResult
	outputs   build.DependencyOutputs
	succeeded []domain.InternedString
	failed    []domain.InternedString
	pruned    int
	errs      error
}

// Run selects the units opts.Targets names (or the whole graph when empty),
// then executes them respecting dependency order, spec.md §4.7's
// concurrency gate, and the bail/continue failure policy.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, opts RunOptions) (Result, error) {
	if err := graph.Validate(); err != nil {
		return Result{}, err
	}

	selected, err := resolveTargets(graph, opts.Targets, opts.Downstream)
	if err != nil {
		return Result{}, err
	}
	if len(selected) == 0 {
		return Result{}, domain.ErrEmptyGraph
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	state := s.newRunState(graph, selected, concurrency, opts.Bail)
	state.runLoop(ctx, s)
	state.logStuckNodes(ctx, s.logger, s.telemetry)

	return Result{
		Succeeded: state.succeeded,
		Failed:    state.failed,
		Pruned:    state.pruned,
		Outputs:   state.outputs,
	}, state.errs
}

func (s *Scheduler) newRunState(graph *domain.Graph, selected map[domain.InternedString]struct{}, concurrency int, bail bool) *runState {
	units := make(map[domain.InternedString]domain.Unit, len(selected))
	inDegree := make(map[domain.InternedString]int, len(selected))

	for id := range selected {
		unit, _ := graph.Unit(id)
		units[id] = unit

		degree := 0
		for _, dep := range unit.DependencyIdentifiers() {
			if _, ok := selected[dep]; ok {
				degree++
			}
		}
		inDegree[id] = degree
	}

	var ready []domain.InternedString
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}

	return &runState{
		graph:       graph,
		units:       units,
		inDegree:    inDegree,
		ready:       ready,
		enqueued:    make(map[domain.InternedString]struct{}, len(selected)),
		concurrency: concurrency,
		bail:        bail,
		resultsCh:   make(chan unitResult, concurrency),
		outputs:     make(build.DependencyOutputs, len(selected)),
	}
}

// isDone reports whether the run loop has nothing left to do: either the
// ready queue has drained with nothing in flight, or a bail-mode failure
// has already occurred and every in-flight task has finished (a ready queue
// of now-unreachable dependents can be non-empty in that case, but
// schedule() refuses to start them, so waiting on it would hang forever).
func (state *runState) isDone() bool {
	if state.active == 0 && len(state.ready) == 0 {
		return true
	}
	return state.bail && state.errs != nil && state.active == 0
}

func (state *runState) runLoop(ctx context.Context, s *Scheduler) {
	for !state.isDone() {
		state.schedule(ctx, s)
		if state.isDone() {
			break
		}

		if ctx.Err() != nil && state.active == 0 {
			state.errs = errors.Join(state.errs, ctx.Err())
			return
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-ctx.Done():
		}
	}

	if ctx.Err() != nil {
		state.errs = errors.Join(state.errs, ctx.Err())
	}
}

func (state *runState) schedule(ctx context.Context, s *Scheduler) {
	if state.bail && state.errs != nil {
		// spec.md §5: "on bail-mode failure, in-flight tasks run to
		// completion (not canceled)" — so don't cancel state.active work,
		// just stop starting anything new.
		return
	}
	for len(state.ready) > 0 && state.active < state.concurrency && ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]
		state.enqueued[id] = struct{}{}
		state.active++

		unit := state.units[id]
		deps := state.snapshotOutputs(&unit)
		go state.executeUnit(ctx, s, unit, deps)
	}
}

// snapshotOutputs copies just the producer outputs a unit's own dependency
// edges need, since outputs is otherwise only ever read/written on the
// single result-handling goroutine.
func (state *runState) snapshotOutputs(unit *domain.Unit) build.DependencyOutputs {
	deps := make(build.DependencyOutputs, len(unit.Dependencies))
	for _, id := range unit.DependencyIdentifiers() {
		if out, ok := state.outputs[id]; ok {
			deps[id] = out
		}
	}
	return deps
}

func (state *runState) executeUnit(ctx context.Context, s *Scheduler, unit domain.Unit, deps build.DependencyOutputs) {
	output, err := s.builder.Build(ctx, unit, deps)
	state.resultsCh <- unitResult{id: unit.Identifier, output: output, err: err}
}

func (state *runState) handleResult(res unitResult) {
	state.active--

	if res.err != nil {
		state.failed = append(state.failed, res.id)
		werr := zerr.With(res.err, "unit", res.id.String())
		if state.bail {
			state.errs = errors.Join(state.errs, werr)
			return
		}
		state.errs = errors.Join(state.errs, werr)
		state.pruneDownstream(res.id)
		return
	}

	state.outputs[res.id] = res.output
	state.succeeded = append(state.succeeded, res.id)

	for _, dependent := range state.graph.Dependents(res.id) {
		if _, inRun := state.units[dependent]; !inRun {
			continue
		}
		if _, already := state.enqueued[dependent]; already {
			continue
		}
		state.inDegree[dependent]--
		if state.inDegree[dependent] == 0 {
			state.ready = append(state.ready, dependent)
		}
	}
}

// pruneDownstream implements spec.md §4.7's continue-mode policy: every
// node reachable from a failed node is added to enqueued (so it is never
// scheduled) and counted as pruned, without being marked failed itself.
func (state *runState) pruneDownstream(failedID domain.InternedString) {
	var visit func(id domain.InternedString)
	visit = func(id domain.InternedString) {
		for _, dependent := range state.graph.Dependents(id) {
			if _, inRun := state.units[dependent]; !inRun {
				continue
			}
			if _, already := state.enqueued[dependent]; already {
				continue
			}
			state.enqueued[dependent] = struct{}{}
			state.pruned++
			visit(dependent)
		}
	}
	visit(failedID)
}

// logStuckNodes implements spec.md §4.7's diagnostic: if fewer nodes were
// enqueued than the selected set, report each one along with the
// dependencies that never became available. This is informational only —
// it never changes the returned error. When telemetry is configured, each
// stuck unit also gets its own vertex, closed immediately with an error
// naming the blocking dependencies, so the progress stream shows exactly
// why a unit never started rather than relying on a separate log line.
func (state *runState) logStuckNodes(ctx context.Context, logger ports.Logger, telemetry ports.Telemetry) {
	if len(state.enqueued) >= len(state.units) {
		return
	}
	for id, unit := range state.units {
		if _, ok := state.enqueued[id]; ok {
			continue
		}
		var blocking []string
		for _, dep := range unit.DependencyIdentifiers() {
			if _, ok := state.outputs[dep]; !ok {
				blocking = append(blocking, dep.String())
			}
		}
		if logger != nil {
			logger.Warn("unit never became buildable", "unit", id.String(), "blocked_on", blocking)
		}
		if telemetry != nil {
			v := telemetry.Vertex(ctx, id.String(), id.String())
			v.Done(zerr.With(zerr.New("unit never became buildable"), "blocked_on", blocking))
		}
	}
}
