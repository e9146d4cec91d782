// Package config loads a monorepo's nozem.json unit definitions (and its
// optional nozem.local.yaml override layer) into a domain.Graph.
package config

// unitFile is the top-level shape of nozem.json (spec.md §6).
type unitFile struct {
	Units []unitDTO `json:"units"`
}

// unitDTO is the wire shape of one Unit, discriminated by Kind.
type unitDTO struct {
	Identifier      string            `json:"identifier"`
	Kind            string            `json:"kind"`
	Root            string            `json:"root"`
	NonSources      []string          `json:"nonSources"`
	NonArtifacts    []string          `json:"nonArtifacts"`
	BuildCommand    []string          `json:"buildCommand"`
	TestCommand     []string          `json:"testCommand"`
	Dependencies    []depDTO          `json:"dependencies"`
	Env             map[string]string `json:"env"`
	PatchTsconfig   bool              `json:"patchTsconfig"`
	ExtractPatterns []string          `json:"extractPatterns"`
}

// depDTO is the wire shape of one BuildDepSpec, discriminated by Type
// (spec.md §6): {"type":"npm", ...}, {"type":"link-npm", ...},
// {"type":"os", ...}, {"type":"copy", ...}.
type depDTO struct {
	Type string `json:"type"`

	// npm (external-npm edge)
	Name             string `json:"name"`
	VersionRange     string `json:"versionRange"`
	Version          string `json:"version"`
	ResolvedLocation string `json:"resolvedLocation"`

	// link-npm edge
	Node        string `json:"node"`
	Executables bool   `json:"executables"`

	// os edge
	Executable string `json:"executable"`
	Rename     string `json:"rename"`

	// copy edge
	Subdir string `json:"subdir"`
}

// localOverride is the wire shape of the optional nozem.local.yaml file: a
// per-unit additive patch of extra env entries and ignore globs, never
// capable of adding/removing units or dependency edges.
type localOverride struct {
	Units map[string]unitOverrideDTO `yaml:"units"`
}

type unitOverrideDTO struct {
	Env        map[string]string `yaml:"env"`
	NonSources []string          `yaml:"nonSources"`
}

// cacheConfigDTO is the wire shape of the optional nozem-cache.json file
// (spec.md §6).
type cacheConfigDTO struct {
	CacheDir    string          `json:"cacheDir"`
	CacheBucket *cacheBucketDTO `json:"cacheBucket"`
}

type cacheBucketDTO struct {
	BucketName  string `json:"bucketName"`
	Region      string `json:"region"`
	ProfileName string `json:"profileName"`
}
