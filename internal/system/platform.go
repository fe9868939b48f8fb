package system

import (
	"fmt"
	"runtime"

	apperrors "proxyup/internal/errors"
)

// Platform identifies the host operating system and CPU architecture.
type Platform struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// Detect reports the platform this binary was built for.
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// String renders the platform as os/arch.
func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// IsWindows reports whether executables need the .exe suffix.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// ExecutableName appends the platform executable suffix to base.
func (p Platform) ExecutableName(base string) string {
	if p.IsWindows() {
		return base + ".exe"
	}
	return base
}

// Xray release archives use their own os and arch vocabulary.
var xrayOSNames = map[string]string{
	"linux":   "linux",
	"windows": "windows",
	"darwin":  "macos",
	"freebsd": "freebsd",
	"openbsd": "openbsd",
	"android": "android",
}

var xrayArchNames = map[string]string{
	"amd64":   "64",
	"386":     "32",
	"arm64":   "arm64-v8a",
	"arm":     "arm32-v7a",
	"mips64":  "mips64",
	"mipsle":  "mips32le",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

// XrayAssetName returns the release asset carrying the Xray build for p,
// e.g. Xray-linux-64.zip.
func (p Platform) XrayAssetName() (string, error) {
	osName, ok := xrayOSNames[p.OS]
	if !ok {
		return "", newSystemError("system.XrayAssetName", "unsupported operating system", apperrors.Metadata{
			"os": p.OS,
		})
	}
	archName, ok := xrayArchNames[p.Arch]
	if !ok {
		return "", newSystemError("system.XrayAssetName", "unsupported architecture", apperrors.Metadata{
			"arch": p.Arch,
		})
	}
	return fmt.Sprintf("Xray-%s-%s.zip", osName, archName), nil
}

func newSystemError(operation, message string, metadata apperrors.Metadata) *apperrors.AppError {
	return apperrors.SystemError(apperrors.CodeSystemGeneric, message, nil).
		WithModule("system").
		WithOperation(operation).
		WithFields(metadata)
}
