package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/version"
)

// Feed manifest names per operating system.
const (
	ManifestWindows = "latest.yml"
	ManifestMac     = "latest-mac.yml"
	ManifestLinux   = "latest-linux.yml"
)

var (
	errBadHTTPStatus     = errors.New("unexpected http status")
	errNoFileForPlatform = errors.New("feed has no file for platform")
	errUnknownPlatform   = errors.New("unsupported platform")
	errNoVersion         = errors.New("feed manifest has no version")
)

// HTTPClient is the subset of *http.Client the feed backend needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FeedManifest is an updater feed descriptor as written by the desktop build.
type FeedManifest struct {
	Version string         `yaml:"version"`
	Files   []ManifestFile `yaml:"files"`
	// Path and SHA512 describe the primary file in older descriptors.
	Path        string `yaml:"path"`
	SHA512      string `yaml:"sha512"`
	ReleaseDate string `yaml:"releaseDate"`
}

// ManifestFile is one downloadable entry of a feed manifest.
type ManifestFile struct {
	URL    string `yaml:"url"`
	SHA512 string `yaml:"sha512"`
	Size   int64  `yaml:"size"`
}

// ManifestName returns the feed descriptor read by platform.
func ManifestName(platform release.Platform) (string, error) {
	switch {
	case strings.HasPrefix(string(platform), "win32-"):
		return ManifestWindows, nil
	case strings.HasPrefix(string(platform), "darwin-"):
		return ManifestMac, nil
	case strings.HasPrefix(string(platform), "linux-"):
		return ManifestLinux, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownPlatform, platform)
	}
}

// FeedOption configures a FeedBackend.
type FeedOption func(*FeedBackend)

// WithFeedHTTPClient replaces the client used for feed descriptors.
func WithFeedHTTPClient(client HTTPClient) FeedOption {
	return func(b *FeedBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithDownloadHTTPClient replaces the client used for update files.
// It must not put a deadline on the whole response: artifacts are large.
func WithDownloadHTTPClient(client HTTPClient) FeedOption {
	return func(b *FeedBackend) {
		if client != nil {
			b.downloadClient = client
		}
	}
}

// WithPlatform overrides the detected platform.
func WithPlatform(platform release.Platform) FeedOption {
	return func(b *FeedBackend) {
		b.platform = platform
	}
}

// WithDownloadDir sets where downloads are staged.
func WithDownloadDir(dir string) FeedOption {
	return func(b *FeedBackend) {
		if dir != "" {
			b.downloadDir = dir
		}
	}
}

// FeedBackend reads a generic update feed: YAML descriptors at the feed root
// and artifacts below {version}/.
type FeedBackend struct {
	base           *url.URL
	platform       release.Platform
	client         HTTPClient
	downloadClient HTTPClient
	downloadDir    string
}

// NewFeedBackend creates a backend for the feed at feedURL.
func NewFeedBackend(feedURL string, opts ...FeedOption) (*FeedBackend, error) {
	base, err := url.Parse(strings.TrimRight(feedURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}

	platform, _ := release.CurrentPlatform()

	b := &FeedBackend{
		base:           base,
		platform:       platform,
		client:         http.DefaultClient,
		downloadClient: http.DefaultClient,
		downloadDir:    defaultDownloadDir(),
	}

	for _, opt := range opts {
		opt(b)
	}

	if _, err = ManifestName(b.platform); err != nil {
		return nil, err
	}

	return b, nil
}

// Latest reads the platform descriptor and selects the platform's file.
func (b *FeedBackend) Latest(ctx context.Context) (*UpdateInfo, error) {
	manifestName, err := ManifestName(b.platform)
	if err != nil {
		return nil, err
	}

	manifest, err := b.fetchManifest(ctx, manifestName)
	if err != nil {
		return nil, err
	}

	return b.selectUpdate(manifest)
}

func (b *FeedBackend) fetchManifest(ctx context.Context, name string) (*FeedManifest, error) {
	target := b.base.JoinPath(name).String()

	resp, err := get(ctx, b.client, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return ParseManifest(data)
}

// ParseManifest decodes and validates a feed descriptor.
func ParseManifest(data []byte) (*FeedManifest, error) {
	manifest := new(FeedManifest)
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("decode feed manifest: %w", err)
	}

	if manifest.Version == "" {
		return nil, errNoVersion
	}

	if _, err := semver.NewVersion(manifest.Version); err != nil {
		return nil, fmt.Errorf("feed manifest version %q: %w", manifest.Version, err)
	}

	if len(manifest.Files) == 0 && manifest.Path != "" {
		manifest.Files = []ManifestFile{{URL: manifest.Path, SHA512: manifest.SHA512}}
	}

	return manifest, nil
}

// selectUpdate picks the first file whose name maps to the backend platform.
func (b *FeedBackend) selectUpdate(manifest *FeedManifest) (*UpdateInfo, error) {
	for _, file := range manifest.Files {
		name := fileName(file.URL)

		pattern, ok := release.MatchPattern(name)
		if !ok || pattern.Platform != b.platform {
			continue
		}

		info := &UpdateInfo{
			Version: manifest.Version,
			File: UpdateFile{
				Name:    name,
				URL:     b.resolve(manifest.Version, file.URL),
				SHA512:  file.SHA512,
				Size:    file.Size,
				Archive: pattern.Archive,
			},
		}

		if released, err := time.Parse(time.RFC3339, manifest.ReleaseDate); err == nil {
			info.ReleaseDate = released
		}

		return info, nil
	}

	return nil, fmt.Errorf("%w %s in version %s", errNoFileForPlatform, b.platform, manifest.Version)
}

// resolve turns a manifest file reference into an absolute URL.
// Relative references live under {feed}/{version}/.
func (b *FeedBackend) resolve(version, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	return b.base.JoinPath(version, ref).String()
}

func get(ctx context.Context, client HTTPClient, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", target, resp.Status, errBadHTTPStatus)
	}

	return resp, nil
}

// fileName returns the unescaped last path segment of a file reference.
func fileName(ref string) string {
	if parsed, err := url.Parse(ref); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}

	return path.Base(ref)
}
