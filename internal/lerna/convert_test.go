package lerna_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nozem.dev/nozem/internal/lerna"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConvert_LinksWorkspacePackagesAndKeepsExternalDepsAsNpmEdges(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "lerna.json"), `{"packages": ["packages/*"]}`)
	writeJSON(t, filepath.Join(root, "packages/core/package.json"), `{
		"name": "@acme/core",
		"scripts": {"build": "tsc -b"},
		"dependencies": {"lodash": "^4.17.0"}
	}`)
	writeJSON(t, filepath.Join(root, "packages/app/package.json"), `{
		"name": "@acme/app",
		"scripts": {"build": "tsc -b", "test": "jest"},
		"dependencies": {"@acme/core": "*"}
	}`)

	manifest, err := lerna.Convert(root)
	require.NoError(t, err)
	require.Len(t, manifest.Units, 2)

	byID := make(map[string]lerna.UnitDTO, len(manifest.Units))
	for _, u := range manifest.Units {
		byID[u.Identifier] = u
	}

	core := byID["@acme/core"]
	assert.Equal(t, "command", core.Kind)
	assert.Equal(t, filepath.FromSlash("packages/core"), core.Root)
	assert.Equal(t, []string{"sh", "-c", "tsc -b"}, core.BuildCommand)
	require.Len(t, core.Dependencies, 1)
	assert.Equal(t, "npm", core.Dependencies[0].Type)
	assert.Equal(t, "lodash", core.Dependencies[0].Name)

	app := byID["@acme/app"]
	assert.Equal(t, []string{"sh", "-c", "jest"}, app.TestCommand)
	require.Len(t, app.Dependencies, 1)
	assert.Equal(t, "link-npm", app.Dependencies[0].Type)
	assert.Equal(t, "@acme/core", app.Dependencies[0].Node)
}

func TestConvert_FallsBackToRootPackageJSONWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "package.json"), `{"workspaces": ["pkgs/*"]}`)
	writeJSON(t, filepath.Join(root, "pkgs/only/package.json"), `{"name": "@acme/only"}`)

	manifest, err := lerna.Convert(root)
	require.NoError(t, err)
	require.Len(t, manifest.Units, 1)
	assert.Equal(t, "@acme/only", manifest.Units[0].Identifier)
}

func TestConvert_ErrorsWhenNoWorkspaceConfigFound(t *testing.T) {
	root := t.TempDir()
	_, err := lerna.Convert(root)
	require.Error(t, err)
}

func TestWrite_ProducesValidNozemJSONFile(t *testing.T) {
	root := t.TempDir()
	manifest := &lerna.Manifest{Units: []lerna.UnitDTO{{Identifier: "@acme/x", Kind: "command", Root: "x"}}}

	path := filepath.Join(root, "nozem.json")
	require.NoError(t, lerna.Write(path, manifest))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identifier": "@acme/x"`)
}
