// Package proxy detects, upgrades and restarts a locally installed proxy
// daemon.
package proxy

import (
	"context"
	"strings"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/release"
	"proxyup/internal/system"
	"proxyup/internal/version"
)

const moduleName = "proxy"

// Variant names a proxy implementation.
type Variant string

const (
	VariantXray  Variant = "xray"
	VariantV2Ray Variant = "v2ray"
)

// Variants lists every variant accepted on the command line.
var Variants = []Variant{VariantXray, VariantV2Ray}

// ParseVariant normalises s into a known Variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants {
		if v == known {
			return v, nil
		}
	}
	return "", unsupportedVariant(s)
}

// Proxy is the capability set shared by every managed proxy.
type Proxy interface {
	Identity() Identity
	Version(ctx context.Context) (version.Version, error)
	Restart(ctx context.Context) error
	Upgrade(ctx context.Context) (*UpgradeResult, error)
}

// Identity describes one installed proxy. It does not change for the
// lifetime of a Proxy.
type Identity struct {
	Name       string
	DaemonName string
	Dir        string
	ReleaseURL string
	AssetName  string
}

// UpgradeResult summarises one Upgrade call.
type UpgradeResult struct {
	Current  version.Version
	Latest   version.Version
	Tag      string
	Upgraded bool
	Archive  string
	Checksum string
	Files    []string
}

// ReleaseFetcher resolves the latest published release.
type ReleaseFetcher interface {
	FetchLatest(ctx context.Context, apiURL string) (*release.Release, error)
}

// Fetcher downloads a URL into a directory and returns the local path.
// Checksum digests a file it downloaded.
type Fetcher interface {
	Download(ctx context.Context, sourceURL, destDir string) (string, error)
	Checksum(path string) (string, error)
}

// Settings carries the per-run inputs used to build a Proxy.
type Settings struct {
	Variant    Variant
	Dir        string
	ReleaseURL string
	AssetName  string
	Platform   system.Platform
}

// New builds the Proxy for settings.Variant. Variants without an
// implementation are rejected here rather than at upgrade time.
func New(settings Settings, deps Dependencies) (Proxy, error) {
	switch settings.Variant {
	case VariantXray:
		id := XrayIdentity(settings.Platform, settings.Dir, settings.ReleaseURL, settings.AssetName)
		return NewXray(id, deps)
	default:
		return nil, unsupportedVariant(string(settings.Variant))
	}
}

func unsupportedVariant(name string) *apperrors.AppError {
	return apperrors.ConfigError(apperrors.CodeProxyUnsupportedVariant, "unsupported proxy variant", nil).
		WithModule(moduleName).
		WithOperation("New").
		WithField("variant", name)
}
