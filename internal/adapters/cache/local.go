package cache

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// cleanupEvictConcurrency bounds how many tarball+index pairs clean()
// removes at once, once the (purely sequential, since it depends on running
// total order) eviction list has been decided.
const cleanupEvictConcurrency = 8

// localIndexEntry is the `<hash>.json` sidecar to each tarball.
type localIndexEntry struct {
	ArtifactHash string               `json:"artifactHash"`
	Artifacts    domain.FileSetSchema `json:"artifacts"`
}

// Local is the second cache tier: a directory of gzipped tarballs under
// $HOME/.cache/nozem/local, sharded two hex characters deep
// (`<hh>/<hash>.tar.gz` + `<hh>/<hash>.json`) so no single directory holds
// an unbounded number of entries.
type Local struct {
	dir        string
	maxSizeMB  int64
	cleanGroup singleflight.Group
}

var _ ports.ArtifactCache = (*Local)(nil)

// DefaultLocalCacheDir returns $HOME/.cache/nozem/local, falling back to a
// relative path if $HOME can't be resolved.
func DefaultLocalCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cache", "nozem", "local")
	}
	return filepath.Join(home, ".cache", "nozem", "local")
}

// NewLocal creates the local tarball tier rooted at dir, evicting
// oldest-first once its total tarball size would exceed maxSizeMB megabytes.
func NewLocal(dir string, maxSizeMB int64) *Local {
	return &Local{dir: dir, maxSizeMB: maxSizeMB}
}

// Writable implements ports.ArtifactCache.
func (l *Local) Writable() bool { return true }

func (l *Local) shard(hash string) string {
	if len(hash) < 2 {
		return "00"
	}
	return hash[:2]
}

func (l *Local) tarballPath(hash string) string {
	return filepath.Join(l.dir, l.shard(hash), hash+".tar.gz")
}

func (l *Local) indexPath(hash string) string {
	return filepath.Join(l.dir, l.shard(hash), hash+".json")
}

// Lookup implements ports.ArtifactCache.
func (l *Local) Lookup(_ context.Context, locator domain.CacheLocator) (ports.CachedArtifact, bool, error) {
	indexData, err := os.ReadFile(l.indexPath(locator.InputHash)) //nolint:gosec // path built from hex hash
	if err != nil {
		return ports.CachedArtifact{}, false, nil
	}
	var entry localIndexEntry
	if err := json.Unmarshal(indexData, &entry); err != nil {
		return ports.CachedArtifact{}, false, nil
	}
	if _, err := os.Stat(l.tarballPath(locator.InputHash)); err != nil {
		return ports.CachedArtifact{}, false, nil
	}

	// SourceDir is left empty: the local tier's payload lives in its own
	// tarball, materialized into a caller-chosen directory by Fetch, not
	// implicitly at artifact-lookup time.
	return ports.CachedArtifact{
		Schema:       entry.Artifacts,
		ArtifactHash: entry.ArtifactHash,
	}, true, nil
}

// Fetch extracts the tarball for locator into targetDir and returns the
// resulting FileSet, with each file's content hash recomputed via hasher
// (the tarball itself carries no hashes — FileSetSchema's wire format is
// paths only). Used once a Lookup hit needs materializing to disk for a
// sandboxed build or for promotion into a higher-priority tier.
func (l *Local) Fetch(locator domain.CacheLocator, targetDir string, hasher ports.ContentHasher) (*domain.FileSet, error) {
	//nolint:gosec // path built from hex hash under our own cache root
	f, err := os.Open(l.tarballPath(locator.InputHash))
	if err != nil {
		return nil, zerr.Wrap(err, "open cached tarball")
	}
	defer func() { _ = f.Close() }()

	return extractTarGz(f, targetDir, hasher)
}

// extractTarGz unpacks a gzipped tarball read from r into targetDir,
// recomputing each extracted file's content hash (the tarball format itself
// carries no hashes) and returning the resulting FileSet. Shared by Local's
// on-disk tarballs and Remote's downloaded ones.
func extractTarGz(r io.Reader, targetDir string, hasher ports.ContentHasher) (*domain.FileSet, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, zerr.Wrap(err, "open gzip stream")
	}
	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, zerr.Wrap(err, "create fetch target directory")
	}

	entries := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, zerr.Wrap(err, "read tarball entry")
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeSymlink {
			continue
		}
		dest := filepath.Join(targetDir, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, zerr.Wrap(err, "create extracted file directory")
		}

		var hash string
		if hdr.Typeflag == tar.TypeSymlink {
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return nil, zerr.Wrap(err, "create extracted symlink")
			}
			hash, err = hasher.HashSymlink(dest)
		} else {
			hash, err = extractRegularFile(tr, dest, os.FileMode(hdr.Mode), hasher)
		}
		if err != nil {
			return nil, err
		}
		entries[filepath.ToSlash(hdr.Name)] = hash
	}

	return domain.NewFileSet(targetDir, entries), nil
}

func extractRegularFile(tr *tar.Reader, dest string, mode os.FileMode, hasher ports.ContentHasher) (string, error) {
	//nolint:gosec // hdr.Name comes from our own previously-written tarball
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return "", zerr.Wrap(err, "create extracted file")
	}
	//nolint:gosec // tarballs written only by Store, size-bounded by the artifact itself
	if _, err := io.Copy(out, tr); err != nil {
		_ = out.Close()
		return "", zerr.Wrap(err, "write extracted file")
	}
	if err := out.Close(); err != nil {
		return "", zerr.Wrap(err, "close extracted file")
	}
	return hasher.HashFile(dest)
}

// Store implements ports.ArtifactCache: write a gzipped tarball of
// artifact's files plus its index, then kick off an asynchronous,
// singleflight-guarded cleanup pass.
func (l *Local) Store(_ context.Context, locator domain.CacheLocator, artifact ports.CachedArtifact) error {
	if err := l.writeTarball(locator.InputHash, artifact); err != nil {
		return err
	}

	index := localIndexEntry{ArtifactHash: artifact.ArtifactHash, Artifacts: artifact.Schema}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal local cache index")
	}
	if err := atomicWriteFile(l.indexPath(locator.InputHash), data); err != nil {
		return err
	}

	go l.cleanAsync()
	return nil
}

// StoreRawTarball writes already-packed tarball bytes (fetched from another
// tier) straight to this tier's shard, skipping the extract-then-repack
// round trip writeTarball does for a freshly-built artifact. Used by
// MirrorMissing to mirror a remote hit into the local directory without
// materializing its files to a scratch directory first.
func (l *Local) StoreRawTarball(locator domain.CacheLocator, artifactHash string, schema domain.FileSetSchema, tarballBytes []byte) error {
	path := l.tarballPath(locator.InputHash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerr.Wrap(err, "create local cache shard directory")
	}
	if err := atomicWriteFile(path, tarballBytes); err != nil {
		return err
	}

	index := localIndexEntry{ArtifactHash: artifactHash, Artifacts: schema}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal local cache index")
	}
	if err := atomicWriteFile(l.indexPath(locator.InputHash), data); err != nil {
		return err
	}

	go l.cleanAsync()
	return nil
}

func (l *Local) writeTarball(hash string, artifact ports.CachedArtifact) error {
	path := l.tarballPath(hash)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "create local cache shard directory")
	}

	tmp, err := os.CreateTemp(dir, ".nzm-tmp-*.tar.gz")
	if err != nil {
		return zerr.Wrap(err, "create temp tarball")
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)

	for _, rel := range artifact.Schema.RelativePaths {
		abs := filepath.Join(artifact.SourceDir, filepath.FromSlash(rel))
		if err := addFileToTar(tw, abs, rel); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			_ = tmp.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		_ = gz.Close()
		_ = tmp.Close()
		return zerr.Wrap(err, "close tar writer")
	}
	if err := gz.Close(); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "close gzip writer")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "close temp tarball")
	}

	return os.Rename(tmpName, path)
}

func addFileToTar(tw *tar.Writer, abs, rel string) error {
	info, err := os.Lstat(abs)
	if err != nil {
		return zerr.Wrap(err, "stat artifact file")
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return zerr.Wrap(err, "build tar header")
	}
	hdr.Name = filepath.ToSlash(rel)

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err != nil {
			return zerr.Wrap(err, "read symlink target")
		}
		hdr.Linkname = target
		return tw.WriteHeader(hdr)
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return zerr.Wrap(err, "write tar header")
	}

	//nolint:gosec // artifact.SourceDir is the build sandbox's own output tree
	f, err := os.Open(abs)
	if err != nil {
		return zerr.Wrap(err, "open artifact file")
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(tw, f)
	return err
}

// cleanAsync runs the eviction pass through singleflight, so only one pass
// runs at a time. Callers that arrive while a pass is in flight share that
// pass; no further pass is run on their behalf, so a tarball written during
// a pass is only considered by the pass a later Store or StoreRawTarball
// starts.
func (l *Local) cleanAsync() {
	_, _, _ = l.cleanGroup.Do("clean", func() (any, error) {
		return nil, l.clean()
	})
}

type tarballInfo struct {
	path    string
	size    int64
	modTime int64
}

// clean drops the oldest tarballs (and their index files) until the total
// size of remaining tarballs is at most maxSizeMB megabytes.
func (l *Local) clean() error {
	maxBytes := l.maxSizeMB * 1_000_000

	var infos []tarballInfo
	var total int64

	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".gz" {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		infos = append(infos, tarballInfo{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return zerr.Wrap(err, "walk local cache for cleanup")
	}

	if total <= maxBytes {
		return nil
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime < infos[j].modTime })

	var toEvict []tarballInfo
	for _, info := range infos {
		if total <= maxBytes {
			break
		}
		toEvict = append(toEvict, info)
		total -= info.size
	}

	return evictTarballs(toEvict)
}

// evictTarballs removes each candidate's tarball and index file, bounded to
// cleanupEvictConcurrency concurrent removals — the candidate list itself is
// already fixed by clean()'s sequential running-total accounting, so the
// actual filesystem I/O has no shared state left to race over. A removal
// failure (already gone, permission denied) is non-fatal per spec.md's cache
// I/O policy: removal errors are ignored, and evictTarballs always returns
// nil.
func evictTarballs(candidates []tarballInfo) error {
	g := new(errgroup.Group)
	g.SetLimit(cleanupEvictConcurrency)
	for _, info := range candidates {
		info := info
		g.Go(func() error {
			_ = os.Remove(info.path)
			indexPath := info.path[:len(info.path)-len(".tar.gz")] + ".json"
			_ = os.Remove(indexPath)
			return nil
		})
	}
	return g.Wait()
}
