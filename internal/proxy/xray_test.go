package proxy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/logger"
	"proxyup/internal/release"
	"proxyup/internal/system"
	"proxyup/internal/version"
)

type fakeProcess struct {
	mu        sync.Mutex
	output    string
	outputErr error
	killErr   error
	spawnErr  error
	calls     []string
}

func (f *fakeProcess) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProcess) Output(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.record("output:" + name)
	return []byte(f.output), f.outputErr
}

func (f *fakeProcess) KillByName(_ context.Context, name string) error {
	f.record("kill:" + name)
	return f.killErr
}

func (f *fakeProcess) SpawnDetached(dir, name string, args ...string) (int, error) {
	f.record("spawn:" + name)
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	return 4242, nil
}

type fakeReleases struct {
	release *release.Release
	err     error
	calls   int
}

func (f *fakeReleases) FetchLatest(_ context.Context, apiURL string) (*release.Release, error) {
	f.calls++
	return f.release, f.err
}

type fakeFetcher struct {
	urls        []string
	err         error
	checksumErr error
	digested    []string
}

func (f *fakeFetcher) Download(_ context.Context, sourceURL, destDir string) (string, error) {
	f.urls = append(f.urls, sourceURL)
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(destDir, filepath.Base(sourceURL))
	if err := os.WriteFile(path, []byte("zip-bytes"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeFetcher) Checksum(path string) (string, error) {
	f.digested = append(f.digested, path)
	if f.checksumErr != nil {
		return "", f.checksumErr
	}
	return strings.Repeat("ab", 32), nil
}

type fakeExtractor struct {
	calls [][2]string
	err   error
}

func (f *fakeExtractor) Extract(src, dest string) ([]string, error) {
	f.calls = append(f.calls, [2]string{src, dest})
	if f.err != nil {
		return nil, f.err
	}
	return []string{filepath.Join(dest, "xray")}, nil
}

type harness struct {
	proc      *fakeProcess
	releases  *fakeReleases
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	log       *logger.MockLogger
	dir       string
	xray      *Xray
}

func newHarness(t *testing.T, installed string, tag string) *harness {
	t.Helper()
	h := &harness{
		proc: &fakeProcess{output: "Xray " + installed + " (Xray, Penetrates Everything.) 3b452e2 (go1.21.1 linux/amd64)\nA unified platform for anti-censorship.\n"},
		releases: &fakeReleases{release: &release.Release{
			TagName: tag,
			Assets: []release.Asset{
				{Name: "proxy-windows-64.zip", BrowserDownloadURL: "https://x/proxy-windows-64.zip"},
				{Name: "proxy-linux-64.zip", BrowserDownloadURL: "https://x/proxy-linux-64.zip"},
			},
		}},
		fetcher:   &fakeFetcher{},
		extractor: &fakeExtractor{},
		log:       logger.NewMockLogger(),
		dir:       t.TempDir(),
	}

	id := XrayIdentity(system.Platform{OS: "linux", Arch: "amd64"}, h.dir, "https://api.example.com/latest", "proxy-linux-64.zip")
	x, err := NewXray(id, Dependencies{
		Process:   h.proc,
		Releases:  h.releases,
		Fetcher:   h.fetcher,
		Extractor: h.extractor,
		Logger:    h.log,
	})
	require.NoError(t, err)
	h.xray = x
	return h
}

func notFound() error {
	return errors.WithMessage(&exec.Error{Name: "xray", Err: exec.ErrNotFound}, "resolve xray")
}

func TestXrayIdentity(t *testing.T) {
	id := XrayIdentity(system.Platform{OS: "linux", Arch: "amd64"}, "/opt/xray", "u", "a.zip")
	assert.Equal(t, Identity{Name: "xray", DaemonName: "wxray", Dir: "/opt/xray", ReleaseURL: "u", AssetName: "a.zip"}, id)

	id = XrayIdentity(system.Platform{OS: "windows", Arch: "amd64"}, `C:\xray`, "u", "a.zip")
	assert.Equal(t, "xray.exe", id.Name)
	assert.Equal(t, "wxray.exe", id.DaemonName)
}

func TestNewRejectsUnimplementedVariant(t *testing.T) {
	_, err := New(Settings{Variant: VariantV2Ray, Dir: t.TempDir()}, Dependencies{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProxyUnsupportedVariant))
}

func TestNewXrayRequiresDependencies(t *testing.T) {
	_, err := New(Settings{Variant: VariantXray, Dir: t.TempDir()}, Dependencies{})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "process,releases,fetcher,extractor,logger", appErr.Metadata["missing"])
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant(" XRay ")
	require.NoError(t, err)
	assert.Equal(t, VariantXray, v)

	_, err = ParseVariant("clash")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProxyUnsupportedVariant))
}

func TestVersionParsesFirstMatch(t *testing.T) {
	h := newHarness(t, "1.8.24", "v1.8.24")

	v, err := h.xray.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.Version{Major: 1, Minor: 8, Patch: 24}, v)
	assert.Equal(t, []string{"output:xray"}, h.proc.calls)
}

func TestVersionMissingExecutableIsZero(t *testing.T) {
	h := newHarness(t, "", "v1.0.0")
	h.proc.outputErr = notFound()

	v, err := h.xray.Version(context.Background())
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestVersionSpawnFailure(t *testing.T) {
	h := newHarness(t, "", "v1.0.0")
	h.proc.outputErr = errors.New("permission denied")

	_, err := h.xray.Version(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProxyVersion))
}

func exitStatus() error {
	return errors.WithMessage(&exec.ExitError{}, "run xray")
}

func TestVersionParsesOutputOfFailingCommand(t *testing.T) {
	h := newHarness(t, "", "v1.0.0")
	h.proc.output = "Xray 1.8.24 (Xray, Penetrates Everything.)\n"
	h.proc.outputErr = exitStatus()

	v, err := h.xray.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.8.24", v.String())
}

func TestVersionFailingCommandWithoutVersion(t *testing.T) {
	h := newHarness(t, "", "v1.0.0")
	h.proc.output = "flag provided but not defined"
	h.proc.outputErr = exitStatus()

	_, err := h.xray.Version(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProxyVersionUnparsable))
}

func TestVersionUnparsableOutput(t *testing.T) {
	h := newHarness(t, "", "v1.0.0")
	h.proc.output = "Xray development build"

	_, err := h.xray.Version(context.Background())
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProxyVersionUnparsable, appErr.Code)
	assert.Equal(t, "Xray development build", appErr.Metadata["output"])
}

func TestRestartToleratesKillFailure(t *testing.T) {
	h := newHarness(t, "1.0.0", "v1.0.0")
	h.proc.killErr = errors.New("no matching process")

	require.NoError(t, h.xray.Restart(context.Background()))
	assert.Equal(t, []string{"kill:wxray", "spawn:wxray"}, h.proc.calls)
	assert.True(t, h.log.HasEntry(logger.LevelWarn, "failed to stop daemon"))
}

func TestRestartSpawnFailureIsFatal(t *testing.T) {
	h := newHarness(t, "1.0.0", "v1.0.0")
	h.proc.spawnErr = notFound()

	err := h.xray.Restart(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProxySpawn))
}

func TestUpgradeInstallsNewerRelease(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.4.0")

	result, err := h.xray.Upgrade(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Upgraded)
	assert.Equal(t, "1.3.9", result.Current.String())
	assert.Equal(t, "1.4.0", result.Latest.String())
	assert.Equal(t, []string{"https://x/proxy-linux-64.zip"}, h.fetcher.urls)
	require.Len(t, h.extractor.calls, 1)
	assert.Equal(t, [2]string{filepath.Join(h.dir, "proxy-linux-64.zip"), h.dir}, h.extractor.calls[0])
	assert.Equal(t, strings.Repeat("ab", 32), result.Checksum)
	assert.Equal(t, []string{filepath.Join(h.dir, "proxy-linux-64.zip")}, h.fetcher.digested)
	assert.True(t, h.log.HasEntry(logger.LevelInfo, "New version 1.4.0 is available!"))
	assert.Equal(t, []string{"output:xray"}, h.proc.calls, "upgrade never restarts")
}

func TestUpgradeFirstInstall(t *testing.T) {
	h := newHarness(t, "", "v1.4.0")
	h.proc.outputErr = notFound()

	result, err := h.xray.Upgrade(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Upgraded)
	assert.True(t, result.Current.IsZero())
}

func TestUpgradeIsIdempotentWhenCurrent(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.3.9")

	for i := 0; i < 2; i++ {
		result, err := h.xray.Upgrade(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Upgraded)
	}

	assert.Equal(t, 2, h.releases.calls)
	assert.Empty(t, h.fetcher.urls)
	assert.Empty(t, h.extractor.calls)
	assert.Equal(t, 2, h.log.CountEntries(logger.LevelInfo))
	assert.True(t, h.log.HasEntry(logger.LevelInfo, "Already latest version."))
}

func TestUpgradeSkipsWhenInstalledIsNewer(t *testing.T) {
	h := newHarness(t, "2.0.0", "v1.9.9")

	result, err := h.xray.Upgrade(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Upgraded)
	assert.Empty(t, h.fetcher.urls)
}

func TestUpgradeMissingAsset(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.4.0")
	h.releases.release.Assets = h.releases.release.Assets[:1]

	_, err := h.xray.Upgrade(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReleaseAssetNotFound))
	assert.Empty(t, h.fetcher.urls)
}

func TestUpgradeBadTag(t *testing.T) {
	h := newHarness(t, "1.3.9", "latest")

	_, err := h.xray.Upgrade(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReleaseVersion))
	assert.Empty(t, h.fetcher.urls)
}

func TestUpgradeAbortsOnVersionError(t *testing.T) {
	h := newHarness(t, "", "v1.4.0")
	h.proc.output = "garbage"

	_, err := h.xray.Upgrade(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, h.releases.calls)
}

func TestUpgradePropagatesFetchAndDownloadErrors(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.4.0")
	h.releases.err = apperrors.NetworkError(apperrors.CodeReleaseRequest, "boom", nil)

	_, err := h.xray.Upgrade(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReleaseRequest))

	h = newHarness(t, "1.3.9", "v1.4.0")
	h.fetcher.err = apperrors.NetworkError(apperrors.CodeDownloadContentLength, "no length", nil)

	_, err = h.xray.Upgrade(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDownloadContentLength))
	assert.Empty(t, h.extractor.calls)
}

func TestUpgradeExtractFailure(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.4.0")
	h.extractor.err = errors.New("zip: not a valid zip file")

	_, err := h.xray.Upgrade(context.Background())
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProxyExtract, appErr.Code)
	assert.Equal(t, filepath.Join(h.dir, "proxy-linux-64.zip"), appErr.Metadata["archive"])
}

func TestUpgradeContinuesWhenChecksumFails(t *testing.T) {
	h := newHarness(t, "1.3.9", "v1.4.0")
	h.fetcher.checksumErr = errors.New("read failed")

	result, err := h.xray.Upgrade(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Upgraded)
	assert.Empty(t, result.Checksum)
	assert.Len(t, h.extractor.calls, 1)
	assert.True(t, h.log.HasEntry(logger.LevelWarn, "failed to checksum archive"))
}
