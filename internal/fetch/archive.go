package fetch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Extract unpacks the zip archive at src into dest and returns the number of files written.
// Entries escaping dest are rejected.
func Extract(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to open archive").
			WithContext("path", src).Build()
	}
	defer func() { _ = r.Close() }()

	files := 0
	for _, f := range r.File {
		name := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(name) {
			return files, errors.ValidationError("archive entry escapes the destination").
				WithContext("entry", f.Name).Build()
		}
		target := filepath.Join(dest, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory").
					WithContext("path", target).Build()
			}
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if err := extractFile(f, target); err != nil {
			return files, errors.WrapError(err, errors.CategoryFileSystem, "failed to extract archive entry").
				WithContext("entry", f.Name).Build()
		}
		files++
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return out.Close()
}
