// Package release reads "latest release" descriptors from a GitHub-style
// releases API.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/logger"
	"proxyup/internal/version"
)

const (
	acceptHeader     = "application/vnd.github.v3+json"
	defaultUserAgent = "Xray-Proxy-Updater"
	moduleName       = "release"
	maxErrorBody     = 512
)

// HTTPClient is the subset of http.Client used to query the releases API.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Asset is a downloadable artifact attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is the subset of a release object the updater needs.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Version derives the semantic version from the tag, dropping a leading "v".
func (r *Release) Version() (version.Version, error) {
	v, err := version.ParseTag(r.TagName)
	if err != nil {
		return version.Version{}, apperrors.ReleaseError(apperrors.CodeReleaseVersion, "release tag is not a valid version", err).
			WithModule(moduleName).
			WithOperation("Version").
			WithField("tag", r.TagName)
	}
	return v, nil
}

// AssetURL returns the download URL of the first asset named exactly name.
func (r *Release) AssetURL(name string) (string, error) {
	for _, asset := range r.Assets {
		if asset.Name == name {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", apperrors.ReleaseError(apperrors.CodeReleaseAssetNotFound, "release has no asset with the requested name", nil).
		WithModule(moduleName).
		WithOperation("AssetURL").
		WithFields(apperrors.Metadata{
			"asset": name,
			"tag":   r.TagName,
		})
}

// Client fetches release descriptors.
type Client struct {
	http      HTTPClient
	logger    logger.Logger
	userAgent string
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithUserAgent overrides the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// NewClient constructs a Client. A nil logger is replaced by a no-op one.
func NewClient(log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewStandardLogger(logger.WithOutput(io.Discard))
	}
	c := &Client{
		http:      http.DefaultClient,
		logger:    log,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchLatest performs one GET against apiURL and decodes the release object.
func (c *Client) FetchLatest(ctx context.Context, apiURL string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, c.requestError("failed to build release request", apiURL, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.DebugContext(ctx, "fetching latest release", logger.String("url", apiURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.requestError("release request failed", apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.requestError("releases API returned an unexpected status", apiURL,
			fmt.Errorf("status %d: %s", resp.StatusCode, snippet)).
			WithField("status", resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, apperrors.ReleaseError(apperrors.CodeReleaseParse, "failed to decode release JSON", err).
			WithModule(moduleName).
			WithOperation("FetchLatest").
			WithField("url", apiURL)
	}
	if rel.TagName == "" {
		return nil, apperrors.ReleaseError(apperrors.CodeReleaseParse, "release JSON has no tag_name", nil).
			WithModule(moduleName).
			WithOperation("FetchLatest").
			WithField("url", apiURL)
	}

	c.logger.DebugContext(ctx, "latest release fetched",
		logger.String("tag", rel.TagName),
		logger.Int("assets", len(rel.Assets)))
	return &rel, nil
}

func (c *Client) requestError(msg, url string, err error) *apperrors.AppError {
	return apperrors.NetworkError(apperrors.CodeReleaseRequest, msg, err).
		WithModule(moduleName).
		WithOperation("FetchLatest").
		WithField("url", url)
}
