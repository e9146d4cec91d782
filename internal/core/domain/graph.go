package domain

import (
	"iter"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// Graph is the dependency graph of units loaded from nozem.json. It owns
// validation (cycle detection via topological sort) and the closures the
// scheduler's target-selection logic (spec.md §4.7) needs: the incoming
// closure (everything a target transitively depends on) and the outgoing
// closure (everything that transitively depends on a target).
type Graph struct {
	units          map[InternedString]Unit
	executionOrder []InternedString
	dependents     map[InternedString][]InternedString
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		units:      make(map[InternedString]Unit),
		dependents: make(map[InternedString][]InternedString),
	}
}

// AddUnit adds a unit to the graph. Returns ErrUnitAlreadyExists if the
// identifier was already registered.
func (g *Graph) AddUnit(u Unit) error {
	if _, exists := g.units[u.Identifier]; exists {
		return zerr.With(ErrUnitAlreadyExists, "unit", u.Identifier.String())
	}
	g.units[u.Identifier] = u
	return nil
}

// TaskCount returns the number of units in the graph (kept as TaskCount to
// echo the scheduler's existing vocabulary; a "task" here is one unit build).
func (g *Graph) TaskCount() int { return len(g.units) }

// Unit looks up a unit by identifier.
func (g *Graph) Unit(id InternedString) (Unit, bool) {
	u, ok := g.units[id]
	return u, ok
}

// Dependents returns the identifiers of units that directly depend on id.
// Valid only after Validate has run.
func (g *Graph) Dependents(id InternedString) []InternedString {
	return g.dependents[id]
}

// Validate checks for missing dependencies and cycles via DFS, and
// populates the execution order (a valid topological sort) and the
// dependents index used by Dependents/closures.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.units))
	g.dependents = make(map[InternedString][]InternedString, len(g.units))
	visited := make(map[InternedString]int) // 0 unvisited, 1 visiting, 2 done
	var path []InternedString

	var visit func(id InternedString) error
	visit = func(id InternedString) error {
		visited[id] = 1
		path = append(path, id)

		unit, exists := g.units[id]
		if !exists {
			return zerr.With(ErrMissingDependency, "dependency", id.String())
		}

		for _, depID := range unit.DependencyIdentifiers() {
			g.dependents[depID] = append(g.dependents[depID], id)

			switch visited[depID] {
			case 1:
				return g.buildCycleError(path, depID)
			case 0:
				if err := visit(depID); err != nil {
					return err
				}
			}
		}

		visited[id] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, id)
		return nil
	}

	names := make([]InternedString, 0, len(g.units))
	for name := range g.units {
		names = append(names, name)
	}
	sortInterned(names)

	for _, name := range names {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	var sb strings.Builder
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		sb.WriteString(path[i].String())
		sb.WriteString(" -> ")
	}
	sb.WriteString(dep.String())
	return zerr.With(ErrCycleDetected, "cycle", sb.String())
}

// Walk returns an iterator yielding units in a valid topological order.
// Requires a prior successful Validate.
func (g *Graph) Walk() iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.units[name]) {
				return
			}
		}
	}
}

// IncomingClosure returns seeds plus every unit they transitively depend on
// (spec.md §4.7: "include those nodes plus ... their incoming closure").
func (g *Graph) IncomingClosure(seeds []InternedString) (map[InternedString]struct{}, error) {
	result := make(map[InternedString]struct{}, len(seeds))
	var visit func(id InternedString) error
	visit = func(id InternedString) error {
		if _, seen := result[id]; seen {
			return nil
		}
		unit, ok := g.units[id]
		if !ok {
			return zerr.With(ErrUnitNotFound, "unit", id.String())
		}
		result[id] = struct{}{}
		for _, dep := range unit.DependencyIdentifiers() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range seeds {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// OutgoingClosure returns seeds plus every unit that transitively depends on
// them (spec.md §4.7's "downstream" flag). Requires the dependents index,
// populated by Validate.
func (g *Graph) OutgoingClosure(seeds map[InternedString]struct{}) map[InternedString]struct{} {
	result := make(map[InternedString]struct{}, len(seeds))
	var visit func(id InternedString)
	visit = func(id InternedString) {
		if _, seen := result[id]; seen {
			return
		}
		result[id] = struct{}{}
		for _, dependent := range g.dependents[id] {
			visit(dependent)
		}
	}
	for id := range seeds {
		visit(id)
	}
	return result
}

// UnitsWithRootUnder returns the identifiers of every unit whose declared
// Root falls within dir (used for directory-based target selection).
func (g *Graph) UnitsWithRootUnder(dir string) []InternedString {
	dir = strings.TrimSuffix(dir, "/")
	var ids []InternedString
	for id, unit := range g.units {
		root := strings.TrimSuffix(unit.Root, "/")
		if root == dir || strings.HasPrefix(root, dir+"/") {
			ids = append(ids, id)
		}
	}
	sortInterned(ids)
	return ids
}

func sortInterned(ids []InternedString) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
