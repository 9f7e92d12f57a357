package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/service/publisher"
)

func newPublishCommand() *cobra.Command {
	var (
		options = new(publisher.Options)
		dir     string
	)

	command := &cobra.Command{
		Use:   "publish [release-dir]",
		Short: "Upload build artifacts and register them with the release API.",
		Long: `Uploads the update descriptors (latest.yml, latest-mac.yml, latest-linux.yml) to the
bucket root, then uploads every recognized installer under {version}/ and registers it.

Artifacts are processed one at a time; the first failure stops the run.
` + configHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			options.ConfigPath = configPath
			options.ReleaseDir = dir

			if len(args) > 0 {
				options.ReleaseDir = args[0]
			}

			_, err := publisher.Run(ctx, options)

			return err
		},
	}

	command.Flags().StringVar(&options.Version, "release-version", "", "version to publish (overrides "+config.EnvReleaseVersion+")")
	command.Flags().StringVar(&options.PackageJSON, "package-json", config.DefaultPackageJSON, "package.json read when no version is set")
	command.Flags().StringVarP(&dir, "dir", "d", "", "release directory (overrides "+config.EnvReleaseDir+")")
	command.Flags().StringVar(&options.ReleaseNotes, "notes", "", "release notes (overrides "+config.EnvReleaseNotes+")")
	command.Flags().BoolVar(&options.DryRun, "dry-run", false, "print the plan without uploading or registering")

	return command
}
