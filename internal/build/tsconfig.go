package build

import (
	"encoding/json"
	"os"

	"go.trai.ch/zerr"
)

// tsconfigStrippedKeys are removed from tsconfig.json (both at the document
// root and under compilerOptions, since project layouts place these either
// way) before a typescript-build unit's build command runs, per spec.md
// §4.6: project references and composite builds assume a multi-package
// build graph TypeScript itself manages, which conflicts with nozem owning
// that graph; inline source maps/sources bloat the artifact with content
// already present in the source FileSet.
var tsconfigStrippedKeys = []string{"references", "composite", "inlineSourceMap", "inlineSources"}

// patchTsconfig rewrites the tsconfig.json at path in place, deleting
// tsconfigStrippedKeys wherever they appear. A missing file is not an
// error: not every typescript-build unit necessarily has its own
// tsconfig.json if it extends one from an installed dependency.
func patchTsconfig(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is sandbox/source-tree-joined, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return zerr.Wrap(err, "read tsconfig.json")
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return zerr.Wrap(err, "parse tsconfig.json")
	}

	stripKeys(doc)
	if sub, ok := doc["compilerOptions"].(map[string]any); ok {
		stripKeys(sub)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal patched tsconfig.json")
	}
	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(path, out, mode)
}

func stripKeys(doc map[string]any) {
	for _, key := range tsconfigStrippedKeys {
		delete(doc, key)
	}
}
