package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/releaseapi"
	"github.com/oshokin/release-pipeline/internal/vercomp"
)

// Options contains inputs for the gate entry point.
type Options struct {
	// ConfigPath is an optional YAML settings file.
	ConfigPath string
	// Version overrides RELEASE_VERSION and package.json.
	Version string
	// PackageJSON is read when no version is configured.
	PackageJSON string
	// OutputFile overrides GITHUB_OUTPUT.
	OutputFile string
	// Stdout receives the echoed outputs; os.Stdout when nil.
	Stdout io.Writer
}

// LatestFetcher reads the newest published release.
type LatestFetcher interface {
	Latest(ctx context.Context) (*release.VersionRecord, error)
}

// Decision is the outcome of a gate check.
type Decision struct {
	ShouldRelease bool
	// LocalVersion is the version being built.
	LocalVersion string
	// LatestVersion is empty when nothing is known to be released.
	LatestVersion string
}

// Run loads the configuration, performs the check and writes the outputs.
// Only configuration and output errors are returned; feed failures are logged.
func Run(ctx context.Context, opts *Options) (*Decision, error) {
	ctx = logger.WithName(ctx, "release-gate")

	cfg, err := config.LoadGate(opts.ConfigPath, &config.Gate{
		Version:     opts.Version,
		PackageJSON: opts.PackageJSON,
		OutputFile:  opts.OutputFile,
	})
	if err != nil {
		return nil, err
	}

	client := releaseapi.New(cfg.APIURL, releaseapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	decision := Check(ctx, client, cfg.Version)

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if err = WriteOutputs(cfg.OutputFile, stdout, decision); err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}

	return decision, nil
}

// Check queries the feed once and decides whether local should be released.
func Check(ctx context.Context, feed LatestFetcher, local string) *Decision {
	decision := &Decision{LocalVersion: local}

	logger.InfoKV(ctx, "Checking release feed", "local_version", local)

	latest, err := feed.Latest(ctx)

	var unavailable *releaseapi.FeedUnavailableError

	switch {
	case errors.Is(err, releaseapi.ErrNoReleases):
		logger.Info(ctx, "No existing releases found")
	case errors.As(err, &unavailable):
		logger.WarnKV(ctx, "Release feed unavailable, treating as no release", "error", err)
	case err != nil:
		logger.WarnKV(ctx, "Unable to read release feed, treating as no release", "error", err)
	default:
		decision.LatestVersion = latest.Version
	}

	decision.ShouldRelease = ShouldRelease(local, decision.LatestVersion)

	logger.InfoKV(ctx, "Release decision",
		"local_version", local,
		"latest_version", decision.LatestVersion,
		"should_release", decision.ShouldRelease)

	return decision
}

// ShouldRelease reports whether local is strictly newer than latest.
// An empty latest means nothing has been released.
func ShouldRelease(local, latest string) bool {
	if latest == "" {
		return true
	}

	return vercomp.Compare(local, latest) == vercomp.Greater
}
