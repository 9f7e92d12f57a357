package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/service/gate"
	"github.com/oshokin/release-pipeline/internal/version"
)

var errInvalidLogLevel = errors.New("invalid log level")

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// releaseVersion overrides RELEASE_VERSION.
	releaseVersion string
	// packageJSON is read when no version is configured.
	packageJSON string
	// outputFile overrides GITHUB_OUTPUT.
	outputFile string
	// logLevel sets the minimum level of printed messages.
	logLevel string

	// rootCmd represents the base command for the release gate.
	rootCmd = &cobra.Command{
		Use:   "release-gate",
		Short: "Decide whether the local version should be released.",
		Long: `Compares the version being built with the newest version known to the release API.

Writes should_release=<true|false> and version=<local> to $GITHUB_OUTPUT and echoes
them to stdout. An unreachable release API is logged and treated as "no release yet",
so only configuration problems make the command fail.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel(logLevel)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := gate.Run(ctx, &gate.Options{
				ConfigPath:  configPath,
				Version:     releaseVersion,
				PackageJSON: packageJSON,
				OutputFile:  outputFile,
			})

			return err
		},
	}
)

// Execute runs the release-gate CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyLogLevel(s string) error {
	level, ok := logger.ParseLogLevel(s)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, s)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&releaseVersion, "release-version", "", "version being built (overrides "+config.EnvReleaseVersion+")")
	rootCmd.Flags().StringVar(&packageJSON, "package-json", config.DefaultPackageJSON, "package.json read when no version is set")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "CI output file (overrides "+config.EnvGitHubOutput+")")
}
