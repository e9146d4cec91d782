package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheDir_EnvOverrideWins(t *testing.T) {
	t.Setenv("NOZEM_LOCAL_CACHE_DIR", "/tmp/explicit-override")
	t.Setenv("NOZEM_ROOT", t.TempDir())

	assert.Equal(t, "/tmp/explicit-override", localCacheDir())
}

func TestLocalCacheDir_FallsBackToCacheConfigFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "nozem-cache.json"),
		[]byte(`{"cacheDir": "/var/cache/nozem-from-config"}`), 0o644))

	t.Setenv("NOZEM_LOCAL_CACHE_DIR", "")
	t.Setenv("NOZEM_ROOT", root)

	assert.Equal(t, "/var/cache/nozem-from-config", localCacheDir())
}

func TestLocalCacheDir_FallsBackToDefaultWhenNeitherIsSet(t *testing.T) {
	t.Setenv("NOZEM_LOCAL_CACHE_DIR", "")
	t.Setenv("NOZEM_ROOT", t.TempDir())

	assert.Equal(t, DefaultLocalCacheDir(), localCacheDir())
}
