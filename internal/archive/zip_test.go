package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	mode os.FileMode
}

func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		hdr.SetMode(mode)
		fw, err := w.CreateHeader(hdr)
		require.NoError(t, err)
		if e.body != "" {
			_, err = fw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractOverwritesAndPreservesMode(t *testing.T) {
	src := writeZip(t,
		entry{name: "xray", body: "new-binary", mode: 0o755},
		entry{name: "geoip.dat", body: "ip"},
		entry{name: "docs/", mode: os.ModeDir | 0o755},
		entry{name: "docs/README.md", body: "readme"},
	)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "xray"), []byte("old-binary-longer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "config.json"), []byte("{}"), 0o644))

	written, err := ZipExtractor{}.Extract(src, dest)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dest, "xray"),
		filepath.Join(dest, "geoip.dat"),
		filepath.Join(dest, "docs", "README.md"),
	}, written)

	data, err := os.ReadFile(filepath.Join(dest, "xray"))
	require.NoError(t, err)
	assert.Equal(t, "new-binary", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data), "unrelated files are kept")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "xray"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}

	leftovers, err := filepath.Glob(filepath.Join(dest, ".xray.*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExtractRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil", "a/../../evil", "/etc/evil"} {
		t.Run(name, func(t *testing.T) {
			src := writeZip(t, entry{name: name, body: "x"})
			dest := filepath.Join(t.TempDir(), "install")

			_, err := ZipExtractor{}.Extract(src, dest)
			require.Error(t, err)
			_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestEntryPath(t *testing.T) {
	dest := t.TempDir()

	got, err := entryPath(dest, "bin/xray")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "bin", "xray"), got)

	for _, name := range []string{"../evil", "a/../../evil", ".."} {
		_, err := entryPath(dest, name)
		assert.True(t, errors.Is(err, ErrUnsafePath), name)
	}
}

func TestExtractAllowsDotDotPrefixedNames(t *testing.T) {
	src := writeZip(t, entry{name: "..hidden", body: "ok"})
	dest := t.TempDir()

	_, err := ZipExtractor{}.Extract(src, dest)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "..hidden"))
}

func TestExtractInvalidArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0o644))

	_, err := ZipExtractor{}.Extract(src, t.TempDir())
	assert.Error(t, err)
}
