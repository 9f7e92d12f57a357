package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/releaseapi"
	"github.com/oshokin/release-pipeline/internal/storage"
)

const bytesInMegabyte = 1024 * 1024

var (
	errNotDirectory    = errors.New("not a directory")
	errManifestsFailed = errors.New("updater manifest upload failed")
	errArtifactPublish = errors.New("artifact publish failed")
)

// Uploader stores a local file under a key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, key, displayName string) (string, error)
}

// Registrar records an uploaded artifact with the release feed.
type Registrar interface {
	Register(ctx context.Context, artifact release.Artifact) (*release.Artifact, error)
}

// Options contains inputs for the publish entry point.
type Options struct {
	// ConfigPath is an optional YAML settings file.
	ConfigPath string
	// Version overrides RELEASE_VERSION and package.json.
	Version string
	// PackageJSON is read when no version is configured.
	PackageJSON string
	// ReleaseDir overrides RELEASE_DIR.
	ReleaseDir string
	// ReleaseNotes overrides RELEASE_NOTES.
	ReleaseNotes string
	// DryRun prints the plan without any network call.
	DryRun bool
	// Stdout receives the plan and the summary; os.Stdout when nil.
	Stdout io.Writer
}

// Result summarizes a finished publish run.
type Result struct {
	// Manifests are the descriptors uploaded successfully.
	Manifests []string
	// Published are the registered artifacts in processing order.
	Published []release.Artifact
}

// Platforms returns the number of platforms published.
func (r *Result) Platforms() int {
	return len(r.Published)
}

// publisher runs one publish workflow.
// It is unexported; callers should use Run, which loads and validates settings.
type publisher struct {
	cfg       *config.Publish
	uploader  Uploader
	registrar Registrar
	out       io.Writer
}

// Run publishes every artifact found in the release directory.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "release-publisher")
	ctx = logger.WithKV(ctx, "run_id", ksuid.New().String())

	cfg, err := config.LoadPublish(opts.ConfigPath, &config.Publish{
		Version:      opts.Version,
		ReleaseDir:   opts.ReleaseDir,
		ReleaseNotes: opts.ReleaseNotes,
		PackageJSON:  opts.PackageJSON,
	})
	if err != nil {
		return nil, err
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	if opts.DryRun {
		plan, err := BuildPlan(cfg.ReleaseDir, cfg.Version)
		if err != nil {
			return nil, err
		}

		PrintPlan(out, plan)

		return new(Result), nil
	}

	uploader, err := storage.New(cfg.Storage, storage.WithHTTPClient(&http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}))
	if err != nil {
		return nil, fmt.Errorf("initialize uploader: %w", err)
	}

	registrar := releaseapi.New(cfg.APIURL,
		releaseapi.WithPublishKey(cfg.PublishKey),
		releaseapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	return newPublisher(cfg, uploader, registrar, out).Publish(ctx)
}

// newPublisher wires a publisher from explicit dependencies.
func newPublisher(cfg *config.Publish, uploader Uploader, registrar Registrar, out io.Writer) *publisher {
	if out == nil {
		out = io.Discard
	}

	return &publisher{
		cfg:       cfg,
		uploader:  uploader,
		registrar: registrar,
		out:       out,
	}
}

// Publish uploads manifests, then uploads and registers every planned artifact.
// Manifest failures are reported after all artifacts were processed.
func (p *publisher) Publish(ctx context.Context) (*Result, error) {
	logger.InfoKV(ctx, "Publishing release", "version", p.cfg.Version, "dir", p.cfg.ReleaseDir)

	plan, err := BuildPlan(p.cfg.ReleaseDir, p.cfg.Version)
	if err != nil {
		return nil, err
	}

	result := new(Result)

	manifestErr := p.uploadManifests(ctx, plan, result)

	for _, skipped := range plan.Duplicates {
		logger.InfoKV(ctx, "Skipping duplicate platform artifact", "file", skipped.FileName, "reason", skipped.Reason)
	}

	for _, artifact := range plan.Artifacts {
		registered, err := p.publishArtifact(ctx, artifact)
		if err != nil {
			return result, errors.Join(fmt.Errorf("%w: %s: %w", errArtifactPublish, artifact.FileName, err), manifestErr)
		}

		result.Published = append(result.Published, *registered)
	}

	if len(plan.Artifacts) == 0 {
		logger.Warn(ctx, "No installable artifacts matched any platform")
	}

	_, _ = fmt.Fprintf(p.out, "Published %d platform(s) for version %s\n", result.Platforms(), p.cfg.Version)

	logger.InfoKV(ctx, "Release published",
		"version", p.cfg.Version,
		"platforms", result.Platforms(),
		"manifests", len(result.Manifests))

	return result, manifestErr
}

// uploadManifests uploads the updater descriptors at the bucket root.
// Missing descriptors are expected for single-platform builds.
func (p *publisher) uploadManifests(ctx context.Context, plan *Plan, result *Result) error {
	for _, name := range plan.MissingManifests {
		logger.WarnKV(ctx, "Updater manifest not found, this is normal for some platforms", "file", name)
	}

	var errs []error

	for _, name := range plan.Manifests {
		url, err := p.uploader.Upload(ctx, filepath.Join(plan.Dir, name), name, name)
		if err != nil {
			logger.ErrorKV(ctx, "Failed to upload updater manifest", "file", name, "error", err)
			errs = append(errs, err)

			continue
		}

		logger.InfoKV(ctx, "Uploaded updater manifest", "file", name, "url", url)
		result.Manifests = append(result.Manifests, name)
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", errManifestsFailed, errors.Join(errs...))
}

// publishArtifact uploads one artifact and registers it.
func (p *publisher) publishArtifact(ctx context.Context, artifact PlannedArtifact) (*release.Artifact, error) {
	key := artifact.Key(p.cfg.Version)

	logger.InfoKV(ctx, "Processing artifact",
		"file", artifact.FileName,
		"platform", artifact.Platform,
		"size_mb", fmt.Sprintf("%.2f", float64(artifact.Size)/bytesInMegabyte))

	downloadURL, err := p.uploader.Upload(ctx, artifact.Path, key, artifact.FileName)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Uploaded artifact", "url", downloadURL)

	registered, err := p.registrar.Register(ctx, release.Artifact{
		Version:      p.cfg.Version,
		Platform:     artifact.Platform,
		DownloadURL:  downloadURL,
		FileName:     artifact.FileName,
		FileSize:     artifact.Size,
		ReleaseNotes: p.cfg.ReleaseNotes,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Uploaded object is not registered, register it manually or delete it",
			"key", key,
			"url", downloadURL,
			"error", err)

		return nil, err
	}

	logger.InfoKV(ctx, "Registered artifact", "platform", artifact.Platform, "id", registered.ID)

	return registered, nil
}
