package releaseapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/version"
)

const (
	releasesPath = "/desktop/releases"
	latestPath   = releasesPath + "/latest"

	contentTypeJSON = "application/json"

	// maxErrorBody caps how much of a failed response is kept in errors.
	maxErrorBody = 4 << 10
)

var (
	errNoPublishKey = errors.New("publish key is required for this operation")
	errNoVersion    = errors.New("latest release has no version")
)

// HTTPClient is the subset of *http.Client the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithPublishKey sets the bearer key required by write routes.
func WithPublishKey(key string) Option {
	return func(c *Client) {
		c.publishKey = key
	}
}

// Client talks to the release feed service.
type Client struct {
	baseURL    string
	publishKey string
	http       HTTPClient
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// registerRequest is the body of a registration call.
type registerRequest struct {
	Version      string           `json:"version"`
	Platform     release.Platform `json:"platform"`
	DownloadURL  string           `json:"downloadUrl"`
	FileName     string           `json:"fileName"`
	FileSize     int64            `json:"fileSize"`
	ReleaseNotes string           `json:"releaseNotes"`
}

// Latest returns the newest published version record.
// It returns ErrNoReleases on 404 and *FeedUnavailableError for any other failure.
func (c *Client) Latest(ctx context.Context) (*release.VersionRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, latestPath, nil, false)
	if err != nil {
		return nil, &FeedUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoReleases
	default:
		return nil, &FeedUnavailableError{StatusCode: resp.StatusCode}
	}

	record := new(release.VersionRecord)
	if err = decode(resp.Body, record); err != nil {
		return nil, &FeedUnavailableError{Err: err}
	}

	if record.Version == "" {
		return nil, &FeedUnavailableError{Err: errNoVersion}
	}

	return record, nil
}

// Register records one uploaded artifact.
func (c *Client) Register(ctx context.Context, artifact release.Artifact) (*release.Artifact, error) {
	regErr := &RegistrationError{
		Platform:    artifact.Platform,
		Version:     artifact.Version,
		DownloadURL: artifact.DownloadURL,
	}

	body, err := sonic.Marshal(registerRequest{
		Version:      artifact.Version,
		Platform:     artifact.Platform,
		DownloadURL:  artifact.DownloadURL,
		FileName:     artifact.FileName,
		FileSize:     artifact.FileSize,
		ReleaseNotes: artifact.ReleaseNotes,
	})
	if err != nil {
		regErr.Err = fmt.Errorf("encode request: %w", err)
		return nil, regErr
	}

	resp, err := c.do(ctx, http.MethodPost, releasesPath, body, true)
	if err != nil {
		regErr.Err = err
		return nil, regErr
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		regErr.StatusCode = resp.StatusCode
		regErr.Body = readErrorBody(resp.Body)

		return nil, regErr
	}

	registered := new(release.Artifact)
	if err = decode(resp.Body, registered); err != nil {
		regErr.StatusCode = resp.StatusCode
		regErr.Err = err

		return nil, regErr
	}

	return registered, nil
}

// List returns every registered artifact.
func (c *Client) List(ctx context.Context) ([]release.Artifact, error) {
	resp, err := c.do(ctx, http.MethodGet, releasesPath, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodGet, releasesPath, resp)
	}

	var artifacts []release.Artifact
	if err = decode(resp.Body, &artifacts); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// ByVersion returns the record of one version or ErrNoReleases.
func (c *Client) ByVersion(ctx context.Context, v string) (*release.VersionRecord, error) {
	path := releasesPath + "/" + url.PathEscape(v)

	resp, err := c.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoReleases
	default:
		return nil, statusError(http.MethodGet, path, resp)
	}

	record := new(release.VersionRecord)
	if err = decode(resp.Body, record); err != nil {
		return nil, err
	}

	return record, nil
}

// DeleteVersion removes every artifact registered for a version.
func (c *Client) DeleteVersion(ctx context.Context, v string) error {
	path := releasesPath + "/" + url.PathEscape(v)

	resp, err := c.do(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		return statusError(http.MethodDelete, path, resp)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, authorized bool) (*http.Response, error) {
	if authorized && c.publishKey == "" {
		return nil, errNoPublishKey
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", contentTypeJSON)

	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	if authorized {
		req.Header.Set("Authorization", "Bearer "+c.publishKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return resp, nil
}

func decode(r io.Reader, target any) error {
	contents, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err = sonic.Unmarshal(contents, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func successful(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func readErrorBody(r io.Reader) string {
	contents, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	return strings.TrimSpace(string(contents))
}

func statusError(method, path string, resp *http.Response) error {
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       readErrorBody(resp.Body),
	}
}
