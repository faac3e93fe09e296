package git

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// ReplaceDir replaces dir (slash-separated, relative to the worktree root)
// with the regular files under src. It returns the number of files written.
func ReplaceDir(repo *git.Repository, dir, src string) (int, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return 0, ClassifyGitError(err, "worktree", "")
	}
	wfs := wt.Filesystem

	if err := util.RemoveAll(wfs, dir); err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to clear worktree directory").
			WithContext("path", dir).Build()
	}

	files := 0
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := path.Join(dir, filepath.ToSlash(rel))
		if d.IsDir() {
			return wfs.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := util.WriteFile(wfs, target, data, info.Mode().Perm()); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return files, errors.WrapError(err, errors.CategoryFileSystem, "failed to copy into worktree").
			WithContext("source", src).WithContext("path", dir).Build()
	}
	return files, nil
}
