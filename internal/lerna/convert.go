// Package lerna converts a Lerna-style JS/TS monorepo (a root lerna.json or
// package.json "workspaces" field, plus one package.json per package) into
// nozem's own nozem.json unit schema (spec.md §6). The from-lerna command's
// own workspace-discovery and dependency-edge inference is deliberately
// shallow — spec.md marks the Lerna importer's internals out of scope and
// only requires that the command emit the documented schema.
package lerna

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/zerr"
)

// Manifest mirrors config.unitFile's wire shape (kept separate since that
// type is unexported to its own package).
type Manifest struct {
	Units []UnitDTO `json:"units"`
}

// UnitDTO mirrors config.unitDTO.
type UnitDTO struct {
	Identifier   string   `json:"identifier"`
	Kind         string   `json:"kind"`
	Root         string   `json:"root"`
	BuildCommand []string `json:"buildCommand,omitempty"`
	TestCommand  []string `json:"testCommand,omitempty"`
	Dependencies []DepDTO `json:"dependencies,omitempty"`
}

// DepDTO mirrors config.depDTO.
type DepDTO struct {
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	VersionRange string `json:"versionRange,omitempty"`
	Node         string `json:"node,omitempty"`
	Executables  bool   `json:"executables,omitempty"`
}

type lernaConfig struct {
	Packages []string `json:"packages"`
}

type packageJSON struct {
	Name            string            `json:"name"`
	Workspaces      []string          `json:"workspaces"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Convert scans root for a lerna.json (or root package.json "workspaces"
// field), resolves each package glob to a directory containing its own
// package.json, and returns the equivalent nozem.json Manifest. Dependency
// edges that name another discovered package become link-npm edges;
// anything else becomes an npm edge carrying the version range as declared.
func Convert(root string) (*Manifest, error) {
	globs, err := workspaceGlobs(root)
	if err != nil {
		return nil, err
	}

	dirs, err := expandGlobs(root, globs)
	if err != nil {
		return nil, err
	}

	packagesByName := make(map[string]discovered, len(dirs))
	for _, dir := range dirs {
		pkgPath := filepath.Join(dir, "package.json")
		data, err := os.ReadFile(pkgPath) //nolint:gosec // dir resolved from a workspace glob under root
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, zerr.Wrap(err, "read package.json")
		}
		var pkg packageJSON
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "parse package.json"), "path", pkgPath)
		}
		if pkg.Name == "" {
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, zerr.Wrap(err, "compute package root relative to monorepo root")
		}
		packagesByName[pkg.Name] = discovered{rel: rel, pkg: pkg}
	}

	names := make([]string, 0, len(packagesByName))
	for name := range packagesByName {
		names = append(names, name)
	}
	sort.Strings(names)

	units := make([]UnitDTO, 0, len(names))
	for _, name := range names {
		d := packagesByName[name]

		var buildCommand []string
		if script, ok := d.pkg.Scripts["build"]; ok && script != "" {
			buildCommand = []string{"sh", "-c", script}
		}
		var testCommand []string
		if script, ok := d.pkg.Scripts["test"]; ok && script != "" {
			testCommand = []string{"sh", "-c", script}
		}

		units = append(units, UnitDTO{
			Identifier:   name,
			Kind:         "command",
			Root:         d.rel,
			BuildCommand: buildCommand,
			TestCommand:  testCommand,
			Dependencies: dependencyEdges(d.pkg, packagesByName),
		})
	}

	return &Manifest{Units: units}, nil
}

type discovered struct {
	rel string
	pkg packageJSON
}

func dependencyEdges(pkg packageJSON, packagesByName map[string]discovered) []DepDTO {
	merged := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		merged[name] = version
	}
	for name, version := range pkg.DevDependencies {
		if _, already := merged[name]; !already {
			merged[name] = version
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	edges := make([]DepDTO, 0, len(names))
	for _, name := range names {
		if _, isWorkspacePkg := packagesByName[name]; isWorkspacePkg {
			edges = append(edges, DepDTO{Type: "link-npm", Node: name, Executables: true})
			continue
		}
		edges = append(edges, DepDTO{Type: "npm", Name: name, VersionRange: merged[name]})
	}
	return edges
}

func workspaceGlobs(root string) ([]string, error) {
	lernaPath := filepath.Join(root, "lerna.json")
	if data, err := os.ReadFile(lernaPath); err == nil { //nolint:gosec // fixed filename under root
		var cfg lernaConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "parse lerna.json"), "path", lernaPath)
		}
		if len(cfg.Packages) > 0 {
			return cfg.Packages, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, zerr.Wrap(err, "read lerna.json")
	}

	pkgPath := filepath.Join(root, "package.json")
	data, err := os.ReadFile(pkgPath) //nolint:gosec // fixed filename under root
	if err != nil {
		return nil, zerr.Wrap(err, "read root package.json")
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "parse root package.json"), "path", pkgPath)
	}
	if len(pkg.Workspaces) == 0 {
		return nil, zerr.With(zerr.New("no lerna.json packages and no root package.json workspaces"), "root", root)
	}
	return pkg.Workspaces, nil
}

// expandGlobs resolves each workspace glob (simple filepath.Glob patterns,
// e.g. "packages/*") relative to root into absolute package directories.
func expandGlobs(root string, globs []string) ([]string, error) {
	var dirs []string
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(root, g))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "expand workspace glob"), "glob", g)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

// Write marshals manifest as indented JSON and writes it to path.
func Write(path string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal nozem.json")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // CLI output file, not sensitive
		return zerr.Wrap(err, "write nozem.json")
	}
	return nil
}
