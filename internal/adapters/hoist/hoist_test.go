package hoist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.nozem.dev/nozem/internal/adapters/hoist"
	"go.nozem.dev/nozem/internal/core/domain"
)

// dep builds a DependencyNode named name@version with the given children.
func dep(name, version string, children ...*domain.DependencyNode) *domain.DependencyNode {
	childMap := make(map[string]*domain.DependencyNode, len(children))
	for _, c := range children {
		childMap[c.Pkg.Name] = c
	}
	return domain.NewDependencyNode(domain.PackageRef{Name: name, Version: version}, childMap)
}

// render walks the hoisted tree into "path=version" lines (path segments
// joined by '.'), mirroring the notation spec.md §8 uses for its expected
// outputs.
func render(prefix string, node *domain.DependencyNode, out map[string]string) {
	for name, child := range node.Children {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = child.Pkg.Version
		render(path, child, out)
	}
}

func TestHoist_NonConflictingTreeFlattens(t *testing.T) {
	root := dep("root", "0.0.0",
		dep("stringutil", "1.0.0", dep("leftpad", "2.0.0")),
		dep("numutil", "3.0.0", dep("isodd", "4.0.0")),
	)

	hoist.Hoist(root, nil)

	got := map[string]string{}
	render("", root, got)
	assert.Equal(t, map[string]string{
		"stringutil": "1.0.0",
		"leftpad":    "2.0.0",
		"numutil":    "3.0.0",
		"isodd":      "4.0.0",
	}, got)
}

func TestHoist_DuplicatesDeduped(t *testing.T) {
	root := dep("root", "0.0.0",
		dep("a", "1.0.0", dep("leftpad", "2.0.0")),
		dep("b", "1.0.0", dep("leftpad", "2.0.0")),
	)

	hoist.Hoist(root, nil)

	got := map[string]string{}
	render("", root, got)
	assert.Equal(t, "2.0.0", got["leftpad"])
	assert.NotContains(t, got, "a.leftpad")
	assert.NotContains(t, got, "b.leftpad")
}

func TestHoist_ConflictingVersionsStayInPlace(t *testing.T) {
	root := dep("root", "0.0.0",
		dep("stringutil", "1.0.0", dep("leftpad", "2.0.0")),
		dep("numutil", "3.0.0", dep("leftpad", "5.0.0"), dep("isodd", "4.0.0")),
	)

	hoist.Hoist(root, nil)

	got := map[string]string{}
	render("", root, got)
	assert.Equal(t, map[string]string{
		"stringutil":      "1.0.0",
		"leftpad":         "2.0.0",
		"numutil":         "3.0.0",
		"numutil.leftpad": "5.0.0",
		"isodd":           "4.0.0",
	}, got)
}

func TestHoist_DependenciesOfDedupedPackagesNotUselesslyHoisted(t *testing.T) {
	root := dep("root", "0.0.0",
		dep("stringutil", "1.0.0", dep("leftpad", "2.0.0", dep("spacemaker", "3.0.0"))),
		dep("leftpad", "2.0.0", dep("spacemaker", "3.0.0")),
		dep("spacemaker", "4.0.0"),
	)

	hoist.Hoist(root, nil)

	got := map[string]string{}
	render("", root, got)
	assert.Equal(t, map[string]string{
		"stringutil":         "1.0.0",
		"leftpad":            "2.0.0",
		"leftpad.spacemaker": "3.0.0",
		"spacemaker":         "4.0.0",
	}, got)
}

// TestHoist_OrderOfHoistingDoesNotProduceWrongVersions exercises a case where
// the same name (spacemaker) is required at two depths below a single
// ancestor: once directly (stringutil -> spacemaker@4.0.0) and once three
// hops down (stringutil -> wrapper -> leftPad -> spacemaker@3.0.0). Phase A's
// "first absent wins" rule means the shallower requirement always reaches a
// contested ancestor first, so spacemaker@4.0.0 (one hop from stringutil)
// takes the root-level "spacemaker" slot and blocks the deeper 3.0.0 copy
// from ever being hoisted past wrapper. Phase B then retracts wrapper's
// blocked, now-orphaned hoist attempt (its real requirer, leftPad, no longer
// sits below it once leftPad itself reaches the top level unblocked), leaving
// 3.0.0 nested under the hoisted leftPad rather than also at the top level.
// Both copies resolve correctly from whichever package originally asked for
// them; nothing ends up silently shadowed by the other's version.
func TestHoist_OrderOfHoistingDoesNotProduceWrongVersions(t *testing.T) {
	root := dep("root", "0.0.0",
		dep("stringutil", "1.0.0",
			dep("wrapper", "100.0.0", dep("leftPad", "2.0.0", dep("spacemaker", "3.0.0"))),
			dep("spacemaker", "4.0.0"),
		),
	)

	hoist.Hoist(root, nil)

	got := map[string]string{}
	render("", root, got)
	assert.Equal(t, map[string]string{
		"stringutil":         "1.0.0",
		"wrapper":            "100.0.0",
		"spacemaker":         "4.0.0",
		"leftPad":            "2.0.0",
		"leftPad.spacemaker": "3.0.0",
	}, got)
}
