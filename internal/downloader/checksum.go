package downloader

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// CalculateSHA256 returns the hex SHA-256 digest of r.
func CalculateSHA256(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", errors.Wrap(err, "failed to read data for checksum")
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// FileChecksum returns the SHA-256 digest of the file at path.
func FileChecksum(fs FileSystem, path string) (string, error) {
	if fs == nil {
		fs = OSFileSystem{}
	}
	file, err := fs.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer file.Close()

	return CalculateSHA256(file)
}

// Checksum returns the SHA-256 digest of a file on the downloader's filesystem.
func (d *Downloader) Checksum(path string) (string, error) {
	return FileChecksum(d.fs, path)
}
