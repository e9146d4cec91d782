// Package cache implements the three-tier artifact cache spec.md §4.4
// describes: an in-place sidecar file, a local gzipped-tarball directory, and
// a remote object-store tier, composed by Chain into the single
// ports.ArtifactCache the build orchestrator talks to.
package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// SidecarFileName is the per-package cache file nozem leaves alongside a
// unit's source tree. Walker excludes any ".nzm-"-prefixed name, so this
// never leaks into a unit's own source FileSet.
const SidecarFileName = ".nzm-buildcache"

// changeDetailLevels bounds how deep the sidecar's serialized input tree
// goes before collapsing to bare hashes, per spec.md §4.4.
const changeDetailLevels = 3

type sidecarEntry struct {
	InputTree    domain.SerializedNode `json:"inputTree"`
	Artifacts    domain.FileSetSchema  `json:"artifacts"`
	ArtifactHash string                `json:"artifactHash"`
	ArtifactTree domain.SerializedNode `json:"artifactTree"`
}

// Sidecar is the in-place cache tier for a single unit's source directory:
// when the recorded input tree still matches and every recorded artifact
// file is still present and unchanged, the source directory's own files
// *are* the cached artifact, so lookup never copies anything.
type Sidecar struct {
	sourceDir string
	hasher    ports.ContentHasher
}

var _ ports.ArtifactCache = (*Sidecar)(nil)

// NewSidecar creates the in-place tier for one unit's source directory.
func NewSidecar(sourceDir string, hasher ports.ContentHasher) *Sidecar {
	return &Sidecar{sourceDir: sourceDir, hasher: hasher}
}

// Writable implements ports.ArtifactCache: the in-place tier is always
// writable — it's just a file next to the sources it describes.
func (s *Sidecar) Writable() bool { return true }

func (s *Sidecar) path() string {
	return filepath.Join(s.sourceDir, SidecarFileName)
}

// Lookup implements ports.ArtifactCache. locator is unused beyond InputHash.
func (s *Sidecar) Lookup(_ context.Context, locator domain.CacheLocator) (ports.CachedArtifact, bool, error) {
	data, err := os.ReadFile(s.path()) //nolint:gosec // path is sourceDir-joined, not user input
	if err != nil {
		return ports.CachedArtifact{}, false, nil
	}

	var entry sidecarEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return ports.CachedArtifact{}, false, nil
	}

	if entry.InputTree.Hash != locator.InputHash {
		return ports.CachedArtifact{}, false, nil
	}

	recomputed := make(map[string]string, len(entry.Artifacts.RelativePaths))
	for _, rel := range entry.Artifacts.RelativePaths {
		abs := filepath.Join(s.sourceDir, filepath.FromSlash(rel))
		if _, statErr := os.Lstat(abs); statErr != nil {
			return ports.CachedArtifact{}, false, nil
		}
		hash, hashErr := s.hasher.HashFile(abs)
		if hashErr != nil {
			// A recorded artifact file is gone or unreadable: treat as a miss
			// rather than a hard failure, per spec.md's "non-fatal, treated
			// as missing" cache-inconsistency policy.
			return ports.CachedArtifact{}, false, nil
		}
		recomputed[rel] = hash
	}

	fileSet := domain.NewFileSet(s.sourceDir, recomputed)
	if fileSet.Hash() != entry.ArtifactHash {
		return ports.CachedArtifact{}, false, nil
	}

	return ports.CachedArtifact{
		Schema:       entry.Artifacts,
		ArtifactHash: entry.ArtifactHash,
		SourceDir:    s.sourceDir,
	}, true, nil
}

// ExplainMiss reads the sidecar file (if any) and, when its recorded input
// tree's hash no longer matches currentTree's, deserializes the recorded
// tree and diffs it against currentTree via domain.Compare, returning the
// single-line rendering spec.md's MerkleDifference is for. The second
// return value is false when there is nothing to explain: no sidecar file
// yet, a corrupt/stale recording that fails to deserialize, or the trees
// already match (the miss, if any, came from the artifact side instead).
func (s *Sidecar) ExplainMiss(currentTree domain.Hashable) (string, bool) {
	data, err := os.ReadFile(s.path()) //nolint:gosec // path is sourceDir-joined, not user input
	if err != nil {
		return "", false
	}

	var entry sidecarEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}

	if entry.InputTree.Hash == currentTree.Hash() {
		return "", false
	}

	recorded, err := domain.Deserialize(entry.InputTree)
	if err != nil {
		return "", false
	}

	result := domain.Compare(recorded, currentTree)
	if result.Same() {
		return "", false
	}
	return domain.FormatDifferences(result.Differences), true
}

// Store implements ports.ArtifactCache. It records only the bare input hash
// (no truncated tree detail), since the interface doesn't carry the input
// Merkle tree itself. Callers that have the tree in hand (internal/build,
// right after computing the input hash) should call StoreWithInputTree
// instead, which honors spec.md's CHANGE_DETAIL_LEVELS truncation so a later
// miss can be explained via domain.Compare against the recorded tree.
func (s *Sidecar) Store(_ context.Context, locator domain.CacheLocator, artifact ports.CachedArtifact) error {
	return s.writeEntry(domain.SerializedNode{Hash: locator.InputHash}, artifact)
}

// StoreWithInputTree writes the sidecar with a truncated (to
// changeDetailLevels) serialization of the full input Merkle tree, giving a
// later cache-miss explanation something to diff against.
func (s *Sidecar) StoreWithInputTree(_ context.Context, inputTree domain.Hashable, artifact ports.CachedArtifact) error {
	return s.writeEntry(domain.Serialize(inputTree, changeDetailLevels), artifact)
}

func (s *Sidecar) writeEntry(inputTree domain.SerializedNode, artifact ports.CachedArtifact) error {
	entry := sidecarEntry{
		InputTree:    inputTree,
		Artifacts:    artifact.Schema,
		ArtifactHash: artifact.ArtifactHash,
		ArtifactTree: domain.SerializedNode{Hash: artifact.ArtifactHash},
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal sidecar entry")
	}

	return atomicWriteFile(s.path(), data)
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by rename, so readers never see a partially written file. Mirrors
// the teacher's nix resolver cache write idiom.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "create cache directory")
	}

	tmp, err := os.CreateTemp(dir, ".nzm-tmp-*")
	if err != nil {
		return zerr.Wrap(err, "create temp cache file")
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "write temp cache file")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "close temp cache file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return zerr.Wrap(err, "chmod temp cache file")
	}
	return os.Rename(tmpName, path)
}
