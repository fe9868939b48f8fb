package downloader

import (
	"context"
	"io"
	"net/http"
	"time"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/logger"
)

const (
	copyBufferSize   = 32 * 1024
	defaultUserAgent = "proxyup/1.0 (Go downloader)"
	moduleName       = "downloader"
)

// HTTPClient represents the subset of http.Client methods required for downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader streams HTTP payloads to disk while reporting progress.
// It keeps no state between calls and is safe for concurrent use with
// independent targets.
type Downloader struct {
	client    HTTPClient
	fs        FileSystem
	reporter  ProgressReporter
	logger    logger.Logger
	userAgent string
}

// Option customises Downloader construction.
type Option func(*Downloader)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(client HTTPClient) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithFileSystem overrides the filesystem implementation.
func WithFileSystem(fs FileSystem) Option {
	return func(d *Downloader) {
		d.fs = fs
	}
}

// WithProgressReporter overrides the progress reporter implementation.
func WithProgressReporter(reporter ProgressReporter) Option {
	return func(d *Downloader) {
		d.reporter = reporter
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// New constructs a Downloader. Without options it uses a default HTTP
// client, the OS filesystem and a console progress bar on stdout.
func New(log logger.Logger, opts ...Option) (*Downloader, error) {
	if log == nil {
		return nil, apperrors.SystemError(apperrors.CodeSystemGeneric, "logger must not be nil", nil).
			WithModule(moduleName).
			WithOperation("New")
	}

	d := &Downloader{
		client:    NewHTTPClient(0),
		fs:        OSFileSystem{},
		reporter:  NewConsoleProgressReporter(nil),
		logger:    log,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		d.client = NewHTTPClient(0)
	}
	if d.fs == nil {
		d.fs = OSFileSystem{}
	}
	if d.reporter == nil {
		d.reporter = NoopProgressReporter{}
	}

	return d, nil
}

// Download fetches sourceURL into destDir and returns the local file path.
// The destination file is recreated on every call. A failed stream leaves
// the partially written file on disk.
func (d *Downloader) Download(ctx context.Context, sourceURL, destDir string) (string, error) {
	target := Target{URL: sourceURL, Dir: destDir}

	if err := d.fs.MkdirAll(target.Dir, 0o755); err != nil {
		return "", apperrors.SystemError(apperrors.CodeDownloadDirectory, "failed to create destination directory", err).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("path", target.Dir)
	}

	localPath := target.LocalPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return "", apperrors.NetworkError(apperrors.CodeDownloadRequest, "failed to create download request", err).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("url", target.URL)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", apperrors.NetworkError(apperrors.CodeDownloadRequest, "download request failed", err).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("url", target.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", apperrors.NetworkError(apperrors.CodeDownloadStatus, "download failed with unexpected status", nil).
			WithModule(moduleName).
			WithOperation("Download").
			WithFields(apperrors.Metadata{
				"url":    target.URL,
				"status": resp.StatusCode,
			})
	}

	total := resp.ContentLength
	if total < 0 {
		return "", apperrors.NetworkError(apperrors.CodeDownloadContentLength, "response does not declare a content length", nil).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("url", target.URL)
	}

	file, err := d.fs.Create(localPath)
	if err != nil {
		return "", apperrors.SystemError(apperrors.CodeDownloadStream, "failed to create local file", err).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("path", localPath)
	}

	d.logger.Info("Downloading %s...", target.URL)

	if err := d.stream(resp.Body, file, target, total); err != nil {
		_ = file.Close()
		return "", err
	}

	if err := file.Close(); err != nil {
		return "", apperrors.SystemError(apperrors.CodeDownloadStream, "failed to flush local file", err).
			WithModule(moduleName).
			WithOperation("Download").
			WithField("path", localPath)
	}

	d.logger.Info("Downloaded %s to %s", target.URL, localPath)
	return localPath, nil
}

// stream copies body into file chunk by chunk, emitting a progress update
// after each written chunk.
func (d *Downloader) stream(body io.Reader, file io.Writer, target Target, total int64) error {
	name := target.FileName()
	tracker := &progressTracker{total: total}
	started := time.Now()

	d.reporter.OnStart(name, total)

	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return apperrors.SystemError(apperrors.CodeDownloadStream, "error while writing to file", err).
					WithModule(moduleName).
					WithOperation("stream").
					WithField("path", target.LocalPath())
			}
			d.reporter.OnProgress(name, tracker.advance(n))
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return apperrors.NetworkError(apperrors.CodeDownloadStream, "error while downloading file", readErr).
				WithModule(moduleName).
				WithOperation("stream").
				WithField("url", target.URL)
		}
	}

	d.reporter.OnComplete(name, tracker.downloaded, time.Since(started))
	return nil
}

// NewHTTPClient returns the HTTP client shared by the downloader and the
// release client. A zero timeout leaves requests unbounded.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
