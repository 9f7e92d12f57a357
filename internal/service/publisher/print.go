package publisher

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/oshokin/release-pipeline/internal/domain/release"
)

const (
	tabMinWidth = 0
	tabWidth    = 4
	tabPadding  = 2
)

// PrintPlan writes a human-readable publish plan.
func PrintPlan(w io.Writer, plan *Plan) {
	_, _ = fmt.Fprintf(w, "Release %s from %s\n\n", plan.Version, plan.Dir)

	_, _ = fmt.Fprintln(w, "Updater manifests:")

	for _, name := range plan.Manifests {
		_, _ = fmt.Fprintf(w, "  upload  %s\n", name)
	}

	for _, name := range plan.MissingManifests {
		_, _ = fmt.Fprintf(w, "  missing %s\n", name)
	}

	_, _ = fmt.Fprintln(w, "\nArtifacts:")

	tw := tabwriter.NewWriter(w, tabMinWidth, tabWidth, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  PLATFORM\tFILE\tSIZE\tKEY")

	for _, artifact := range plan.Artifacts {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
			artifact.Platform,
			artifact.FileName,
			strconv.FormatInt(artifact.Size, 10),
			artifact.Key(plan.Version))
	}

	_ = tw.Flush()

	for _, skipped := range plan.Duplicates {
		_, _ = fmt.Fprintf(w, "  skip    %s (%s)\n", skipped.FileName, skipped.Reason)
	}
}

// PrintArtifacts writes registered artifacts as a table.
func PrintArtifacts(w io.Writer, artifacts []release.Artifact) {
	tw := tabwriter.NewWriter(w, tabMinWidth, tabWidth, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tPLATFORM\tFILE\tSIZE\tCREATED\tURL")

	for _, a := range artifacts {
		created := "-"
		if !a.CreatedAt.IsZero() {
			created = a.CreatedAt.UTC().Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.Version, a.Platform, a.FileName, a.FileSize, created, a.DownloadURL)
	}

	_ = tw.Flush()
}
