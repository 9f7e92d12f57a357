package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/releaseapi"
	"github.com/oshokin/release-pipeline/internal/vercomp"
)

// ManageOptions contains inputs for the list and retract entry points.
type ManageOptions struct {
	// ConfigPath is an optional YAML settings file.
	ConfigPath string
	// Stdout receives the output; os.Stdout when nil.
	Stdout io.Writer
}

func (o *ManageOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}

	return o.Stdout
}

// List prints every registered artifact, newest version first.
func List(ctx context.Context, opts *ManageOptions) error {
	ctx = logger.WithName(ctx, "release-publisher")

	cfg, err := config.LoadAPI(opts.ConfigPath, false)
	if err != nil {
		return err
	}

	client := releaseapi.New(cfg.APIURL, releaseapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	artifacts, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("list releases: %w", err)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if c := vercomp.Compare(artifacts[i].Version, artifacts[j].Version); c != vercomp.Equal {
			return c == vercomp.Greater
		}

		return artifacts[i].Platform < artifacts[j].Platform
	})

	logger.DebugKV(ctx, "Fetched registered artifacts", "count", len(artifacts))

	PrintArtifacts(opts.stdout(), artifacts)

	return nil
}

// Retract deletes every artifact record of a version. Uploaded objects are kept.
func Retract(ctx context.Context, opts *ManageOptions, version string) error {
	ctx = logger.WithName(ctx, "release-publisher")

	cfg, err := config.LoadAPI(opts.ConfigPath, true)
	if err != nil {
		return err
	}

	client := releaseapi.New(cfg.APIURL,
		releaseapi.WithPublishKey(cfg.PublishKey),
		releaseapi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))

	if _, err = client.ByVersion(ctx, version); err != nil {
		return fmt.Errorf("look up %s: %w", version, err)
	}

	if err = client.DeleteVersion(ctx, version); err != nil {
		return fmt.Errorf("retract %s: %w", version, err)
	}

	logger.InfoKV(ctx, "Retracted release", "version", version)

	_, _ = fmt.Fprintf(opts.stdout(), "Retracted %s\n", version)

	return nil
}
