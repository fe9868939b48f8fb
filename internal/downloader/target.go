package downloader

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FallbackFileName is used when a URL has no final path segment.
const FallbackFileName = "unknown"

// Target pairs a source URL with the directory it is downloaded into.
type Target struct {
	URL string
	Dir string
}

// FileName derives the local file name from the URL's final path segment.
func (t Target) FileName() string {
	return FileNameFromURL(t.URL)
}

// LocalPath is where the downloaded body is written.
func (t Target) LocalPath() string {
	return filepath.Join(t.Dir, t.FileName())
}

// FileNameFromURL returns the last "/"-delimited segment of the URL path, or
// FallbackFileName when the path is empty or ends in "/". Query strings and
// fragments are not part of the name.
func FileNameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	idx := strings.LastIndex(p, "/")
	name := p[idx+1:]
	if name == "" || name == "." || name == ".." {
		return FallbackFileName
	}
	return name
}
