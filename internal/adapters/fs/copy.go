package fs

import (
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// CopyPreservingSymlinks copies src to dst. If src is a symlink, dst becomes
// a symlink with the same target rather than a copy of the link's target
// content (spec.md §4.5 "addSrcFiles ... copies (preserving symlinks)").
func CopyPreservingSymlinks(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat source path"), "path", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create destination directory"), "path", filepath.Dir(dst))
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, readErr := os.Readlink(src)
		if readErr != nil {
			return zerr.With(zerr.Wrap(readErr, "failed to read symlink"), "path", src)
		}
		_ = os.Remove(dst)
		if symErr := os.Symlink(target, dst); symErr != nil {
			return zerr.With(zerr.Wrap(symErr, "failed to recreate symlink"), "path", dst)
		}
		return nil
	}

	return copyRegularFile(src, dst, info.Mode())
}

func copyRegularFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // walker-controlled path
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open source file"), "path", src)
	}
	defer in.Close() //nolint:errcheck // best-effort close on a read handle

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create destination file"), "path", dst)
	}
	defer out.Close() //nolint:errcheck // explicit Sync+Close error is checked below

	if _, err := io.Copy(out, in); err != nil {
		wrapped := zerr.With(zerr.Wrap(err, "failed to copy file content"), "src", src)
		return zerr.With(wrapped, "dst", dst)
	}
	return out.Close()
}

// LinkOrCopy symlinks dst to the absolute path of src. Used for link-npm
// dependency edges, where the sandbox should see live package contents
// rather than a point-in-time copy.
func LinkOrCopy(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve absolute path"), "path", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create destination directory"), "path", filepath.Dir(dst))
	}
	_ = os.Remove(dst)
	if err := os.Symlink(absSrc, dst); err != nil {
		wrapped := zerr.With(zerr.Wrap(err, "failed to create symlink"), "src", absSrc)
		return zerr.With(wrapped, "dst", dst)
	}
	return nil
}
