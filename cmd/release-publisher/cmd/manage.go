package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/release-pipeline/internal/service/publisher"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every registered artifact, newest version first.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return publisher.List(ctx, &publisher.ManageOptions{ConfigPath: configPath})
		},
	}
}

func newRetractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retract <version>",
		Short: "Delete the registered artifacts of a version.",
		Long: `Deletes every artifact record of the version from the release API so clients stop
being offered it. Objects already uploaded to the bucket are left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return publisher.Retract(ctx, &publisher.ManageOptions{ConfigPath: configPath}, args[0])
		},
	}
}
