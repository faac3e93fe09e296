// Package fsutil holds the directory copy used by staging, merging and publishing.
package fsutil

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyOptions controls CopyDir.
type CopyOptions struct {
	// Overwrite replaces existing destination files; otherwise they are kept.
	Overwrite bool
	// Skip, when set, is called with each source-relative path; returning true skips it
	// (and, for directories, everything below).
	Skip func(rel string, d fs.DirEntry) bool
}

// CopyStats counts what CopyDir did.
type CopyStats struct {
	Files   int
	Skipped int // existing files kept because Overwrite was false
	// Loops lists source-relative directories not copied because they resolve
	// to one of their own ancestors.
	Loops []string
}

// CopyDir recursively copies src into dst, creating dst as needed.
// Symlinks are followed unless a directory link points back into its own
// ancestry; file modes are preserved.
func CopyDir(src, dst string, opts CopyOptions) (CopyStats, error) {
	var stats CopyStats
	info, err := os.Stat(src)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", src)
	}
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return stats, err
	}
	ancestors := map[string]bool{root: true}
	err = copyDir(src, dst, "", info.Mode().Perm()|0o700, opts, ancestors, &stats)
	return stats, err
}

func copyDir(srcRoot, dstRoot, rel string, mode fs.FileMode, opts CopyOptions, ancestors map[string]bool, stats *CopyStats) error {
	if err := os.MkdirAll(filepath.Join(dstRoot, rel), mode); err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(srcRoot, rel))
	if err != nil {
		return err
	}

	for _, entry := range entries {
		childRel := filepath.Join(rel, entry.Name())
		if opts.Skip != nil && opts.Skip(filepath.ToSlash(childRel), entry) {
			continue
		}
		info, err := os.Stat(filepath.Join(srcRoot, childRel))
		if err != nil {
			return err
		}
		if info.IsDir() {
			resolved, err := filepath.EvalSymlinks(filepath.Join(srcRoot, childRel))
			if err != nil {
				return err
			}
			if ancestors[resolved] {
				stats.Loops = append(stats.Loops, filepath.ToSlash(childRel))
				continue
			}
			ancestors[resolved] = true
			err = copyDir(srcRoot, dstRoot, childRel, info.Mode().Perm()|0o700, opts, ancestors, stats)
			delete(ancestors, resolved)
			if err != nil {
				return err
			}
			continue
		}

		dst := filepath.Join(dstRoot, childRel)
		if !opts.Overwrite {
			if _, err := os.Lstat(dst); err == nil {
				stats.Skipped++
				continue
			} else if !stderrors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := CopyFile(filepath.Join(srcRoot, childRel), dst); err != nil {
			return err
		}
		stats.Files++
	}
	return nil
}

// CopyFile copies a single file, preserving its permission bits.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
