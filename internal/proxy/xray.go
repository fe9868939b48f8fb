package proxy

import (
	"context"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"proxyup/internal/archive"
	apperrors "proxyup/internal/errors"
	"proxyup/internal/logger"
	"proxyup/internal/process"
	"proxyup/internal/system"
	"proxyup/internal/version"
)

const (
	xrayExecutable = "xray"
	xrayDaemon     = "wxray"
)

var versionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// Dependencies are the collaborators a Proxy drives.
type Dependencies struct {
	Process   process.Controller
	Releases  ReleaseFetcher
	Fetcher   Fetcher
	Extractor archive.Extractor
	Logger    logger.Logger
}

// Xray manages an Xray-core installation.
type Xray struct {
	id        Identity
	process   process.Controller
	releases  ReleaseFetcher
	fetcher   Fetcher
	extractor archive.Extractor
	logger    logger.Logger
}

// XrayIdentity returns the identity of an Xray install in dir.
func XrayIdentity(p system.Platform, dir, releaseURL, assetName string) Identity {
	return Identity{
		Name:       p.ExecutableName(xrayExecutable),
		DaemonName: p.ExecutableName(xrayDaemon),
		Dir:        dir,
		ReleaseURL: releaseURL,
		AssetName:  assetName,
	}
}

// NewXray validates deps and returns an Xray manager.
func NewXray(id Identity, deps Dependencies) (*Xray, error) {
	missing := make([]string, 0, 5)
	if deps.Process == nil {
		missing = append(missing, "process")
	}
	if deps.Releases == nil {
		missing = append(missing, "releases")
	}
	if deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if deps.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if deps.Logger == nil {
		missing = append(missing, "logger")
	}
	if len(missing) > 0 {
		return nil, apperrors.SystemError(apperrors.CodeSystemGeneric, "proxy dependencies are missing", nil).
			WithModule(moduleName).
			WithOperation("NewXray").
			WithField("missing", strings.Join(missing, ","))
	}

	return &Xray{
		id:        id,
		process:   deps.Process,
		releases:  deps.Releases,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		logger:    deps.Logger.With(logger.String("proxy", string(VariantXray))),
	}, nil
}

func (x *Xray) Identity() Identity {
	return x.id
}

// Version runs "<executable> version" in the install directory and parses
// its standard output whatever the exit status. A missing executable
// reports version.Zero.
func (x *Xray) Version(ctx context.Context) (version.Version, error) {
	out, err := x.process.Output(ctx, x.id.Dir, x.id.Name, "version")
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		x.logger.DebugContext(ctx, "executable not found, treating as not installed", logger.String("executable", x.id.Name))
		return version.Zero, nil
	case errors.As(err, &exitErr):
		// The exit status does not matter, only what was printed.
		x.logger.DebugContext(ctx, "version command exited non-zero",
			logger.String("executable", x.id.Name),
			logger.Int("exit_code", exitErr.ExitCode()))
	default:
		return version.Version{}, apperrors.ProcessError(apperrors.CodeProxyVersion, "failed to run version command", err).
			WithModule(moduleName).
			WithOperation("Version").
			WithFields(apperrors.Metadata{
				"executable": x.id.Name,
				"dir":        x.id.Dir,
			})
	}

	text := string(out)
	match := versionPattern.FindString(text)
	if match == "" {
		return version.Version{}, unparsableVersion(text, nil)
	}
	v, err := version.Parse(match)
	if err != nil {
		return version.Version{}, unparsableVersion(text, err)
	}
	return v, nil
}

// Restart kills the daemon by name and spawns a fresh detached copy. A
// failed kill is only logged.
func (x *Xray) Restart(ctx context.Context) error {
	if err := x.process.KillByName(ctx, x.id.DaemonName); err != nil {
		x.logger.WarnContext(ctx, "failed to stop daemon, starting anyway",
			logger.String("daemon", x.id.DaemonName),
			logger.Error(err))
	}

	pid, err := x.process.SpawnDetached(x.id.Dir, x.id.DaemonName)
	if err != nil {
		return apperrors.ProcessError(apperrors.CodeProxySpawn, "failed to start daemon", err).
			WithModule(moduleName).
			WithOperation("Restart").
			WithFields(apperrors.Metadata{
				"daemon": x.id.DaemonName,
				"dir":    x.id.Dir,
			})
	}

	x.logger.Info("Started %s (pid %d).", x.id.DaemonName, pid)
	return nil
}

// Upgrade installs the latest release when it is newer than the installed
// version. It never restarts the daemon.
func (x *Xray) Upgrade(ctx context.Context) (*UpgradeResult, error) {
	current, err := x.Version(ctx)
	if err != nil {
		return nil, err
	}

	rel, err := x.releases.FetchLatest(ctx, x.id.ReleaseURL)
	if err != nil {
		return nil, err
	}

	latest, err := rel.Version()
	if err != nil {
		return nil, err
	}

	result := &UpgradeResult{Current: current, Latest: latest, Tag: rel.TagName}
	if current.AtLeast(latest) {
		x.logger.Info("Already latest version.")
		return result, nil
	}

	x.logger.Info("New version %s is available!", latest)

	assetURL, err := rel.AssetURL(x.id.AssetName)
	if err != nil {
		return nil, err
	}

	x.logger.Info("Downloading %s...", x.id.AssetName)
	archivePath, err := x.fetcher.Download(ctx, assetURL, x.id.Dir)
	if err != nil {
		return nil, err
	}
	result.Archive = archivePath

	if sum, err := x.fetcher.Checksum(archivePath); err != nil {
		x.logger.WarnContext(ctx, "failed to checksum archive", logger.String("path", archivePath), logger.Error(err))
	} else {
		result.Checksum = sum
		x.logger.InfoContext(ctx, "archive downloaded", logger.String("path", archivePath), logger.String("sha256", sum))
	}

	x.logger.Info("Unzipping...")
	files, err := x.extractor.Extract(archivePath, x.id.Dir)
	if err != nil {
		return nil, apperrors.SystemError(apperrors.CodeProxyExtract, "failed to extract release archive", err).
			WithModule(moduleName).
			WithOperation("Upgrade").
			WithFields(apperrors.Metadata{
				"archive": archivePath,
				"dir":     x.id.Dir,
			})
	}

	result.Files = files
	result.Upgraded = true
	x.logger.Info("Upgraded %s from %s to %s.", x.id.Name, current, latest)
	return result, nil
}

func unparsableVersion(output string, err error) *apperrors.AppError {
	return apperrors.ProcessError(apperrors.CodeProxyVersionUnparsable, "failed to parse version from command output", err).
		WithModule(moduleName).
		WithOperation("Version").
		WithField("output", strings.TrimSpace(output))
}
