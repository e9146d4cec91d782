package scheduler

import (
	"go.nozem.dev/nozem/internal/core/domain"
)

// resolveSeeds turns the CLI's TARGET arguments into a set of graph node
// identifiers. Each argument is tried as a unit identifier first; anything
// that doesn't name a unit is treated as a directory path and expands to
// every unit whose declared Root falls within it (spec.md §4.7: "given
// directories, select all units whose declared root is within the
// directory").
func resolveSeeds(graph *domain.Graph, targets []string) []domain.InternedString {
	var seeds []domain.InternedString
	for _, t := range targets {
		id := domain.NewInternedString(t)
		if _, ok := graph.Unit(id); ok {
			seeds = append(seeds, id)
			continue
		}
		seeds = append(seeds, graph.UnitsWithRootUnder(t)...)
	}
	return seeds
}

// resolveTargets implements spec.md §4.7's target selection: no targets
// builds the whole graph; named targets (units or directories) always pull
// in their incoming closure (what they depend on); the downstream flag
// additionally pulls in the outgoing closure (what depends on them) of the
// originally selected set, not of the whole incoming closure.
func resolveTargets(graph *domain.Graph, targets []string, downstream bool) (map[domain.InternedString]struct{}, error) {
	if len(targets) == 0 {
		result := make(map[domain.InternedString]struct{})
		for unit := range graph.Walk() {
			result[unit.Identifier] = struct{}{}
		}
		return result, nil
	}

	seeds := resolveSeeds(graph, targets)
	if len(seeds) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	seedSet := make(map[domain.InternedString]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	selected, err := graph.IncomingClosure(seeds)
	if err != nil {
		return nil, err
	}

	if !downstream {
		return selected, nil
	}

	for id := range graph.OutgoingClosure(seedSet) {
		selected[id] = struct{}{}
	}
	return selected, nil
}
