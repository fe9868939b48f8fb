// Package archive unpacks release archives into an install directory.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsafePath is returned for entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extractor unpacks an archive file into a directory.
type Extractor interface {
	Extract(src, dest string) ([]string, error)
}

// ZipExtractor handles .zip archives.
type ZipExtractor struct{}

// Extract unpacks src into dest, overwriting existing files, and returns
// the paths written. Files are staged next to their target and renamed
// into place so a running executable can be replaced.
func (ZipExtractor) Extract(src, dest string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", src)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dest)
	}

	var written []string
	for _, f := range r.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return written, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, errors.Wrapf(err, "create %s", target)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		if err := extractFile(f, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func entryPath(dest, name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.VolumeName(rel) != "" {
		return "", errors.WithMessage(ErrUnsafePath, name)
	}
	return filepath.Join(dest, rel), nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(target))
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open entry %s", f.Name)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return errors.Wrapf(err, "stage %s", target)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", target)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", target)
	}
	if err := os.Chmod(tmpName, f.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "chmod %s", target)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return errors.Wrapf(err, "replace %s", target)
	}
	return nil
}
