// Package version models the three-component versions reported by proxy
// executables and published release tags.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a major.minor.patch triple. The zero value is 0.0.0, which
// stands for "not installed".
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Zero is the version reported when no executable is installed.
var Zero = Version{}

// Parse reads a strict major.minor.patch string. Prerelease and build
// suffixes are rejected.
func Parse(s string) (Version, error) {
	sv, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, errors.Errorf("invalid version %q: only major.minor.patch is accepted", s)
	}
	return Version{Major: sv.Major(), Minor: sv.Minor(), Patch: sv.Patch()}, nil
}

// ParseTag strips one leading "v" from a release tag and parses the rest.
func ParseTag(tag string) (Version, error) {
	return Parse(strings.TrimPrefix(tag, "v"))
}

// Compare returns -1, 0 or 1 ordering by major, then minor, then patch.
func (v Version) Compare(o Version) int {
	return v.semver().Compare(o.semver())
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

// IsZero reports whether v is 0.0.0.
func (v Version) IsZero() bool {
	return v == Zero
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}
