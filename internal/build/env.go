package build

import (
	"os"
	"strings"

	"go.nozem.dev/nozem/internal/core/domain"
)

// resolveEnvEntry applies a unit's Env directive semantics to one key/value
// pair (spec.md §4.6): a key prefixed with '&' is passed to the child
// process but never contributes to the input hash; a value prefixed with
// '|' means "inherit this variable from the invoking process, falling back
// to the remainder of the string when unset".
func resolveEnvEntry(key, value string) (resolvedKey, resolvedValue string) {
	resolvedKey = strings.TrimPrefix(key, "&")
	if rest, ok := strings.CutPrefix(value, "|"); ok {
		if v, ok := os.LookupEnv(resolvedKey); ok {
			return resolvedKey, v
		}
		return resolvedKey, rest
	}
	return resolvedKey, value
}

// composeEnvMerkle builds the "env" branch of a unit's input Merkle: every
// entry whose declared key does not start with '&', keyed and hashed by its
// resolved (not raw) value so that a process-inherited variable's actual
// content participates in cache identity.
func composeEnvMerkle(env map[string]string) domain.Hashable {
	children := make(map[string]domain.Hashable, len(env))
	for key, value := range env {
		if strings.HasPrefix(key, "&") {
			continue
		}
		_, resolvedValue := resolveEnvEntry(key, value)
		children[key] = domain.DirectHash(domain.HashString(resolvedValue))
	}
	return domain.NewComposite(children)
}

// resolveEnv renders a unit's Env map into the KEY=VALUE pairs a
// ports.CommandSpec expects, applying both directive rules to every entry
// (including '&'-prefixed ones, which still reach the child process).
func resolveEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for key, value := range env {
		resolvedKey, resolvedValue := resolveEnvEntry(key, value)
		out = append(out, resolvedKey+"="+resolvedValue)
	}
	return out
}
