package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GenerateEnvID creates a deterministic, fast (non-content-hash) identity
// for a tools map, used to key the OS-tool resolution cache. It
// deliberately uses xxhash rather than the SHA-1 engine used for artifact
// input hashes: this value never crosses a process boundary as a cache key
// people reason about by hand, it only needs to be fast and collision-free
// enough for an in-memory/on-disk resolution cache.
func GenerateEnvID(tools map[string]string) string {
	aliases := make([]string, 0, len(tools))
	for alias := range tools {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	var b strings.Builder
	for _, alias := range aliases {
		b.WriteString(alias)
		b.WriteString(":")
		b.WriteString(tools[alias])
		b.WriteString(";")
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
