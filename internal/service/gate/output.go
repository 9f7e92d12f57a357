package gate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	outputShouldRelease = "should_release"
	outputVersion       = "version"

	outputFileMode os.FileMode = 0o644
)

// FormatOutputs renders the decision as key=value lines.
func FormatOutputs(d *Decision) string {
	var builder strings.Builder

	builder.WriteString(outputShouldRelease)
	builder.WriteString("=")
	builder.WriteString(strconv.FormatBool(d.ShouldRelease))
	builder.WriteString("\n")
	builder.WriteString(outputVersion)
	builder.WriteString("=")
	builder.WriteString(d.LocalVersion)
	builder.WriteString("\n")

	return builder.String()
}

// WriteOutputs appends the outputs to path, when set, and echoes them to stdout.
func WriteOutputs(path string, stdout io.Writer, d *Decision) error {
	lines := FormatOutputs(d)

	if path != "" {
		file, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, outputFileMode)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}

		if _, err = file.WriteString(lines); err != nil {
			_ = file.Close()
			return fmt.Errorf("append %s: %w", path, err)
		}

		if err = file.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}

	_, err := io.WriteString(stdout, lines)

	return err
}
