package config

import (
	"errors"
	"strings"
	"time"
)

// Gate is the validated configuration of a release gate check.
type Gate struct {
	APIURL  string        `mapstructure:"api_url"`
	Version string        `mapstructure:"version"`
	Timeout time.Duration `mapstructure:"timeout"`
	// OutputFile receives the key=value outputs; empty means stdout only.
	OutputFile string `mapstructure:"output_file"`
	// PackageJSON is consulted when Version is empty.
	PackageJSON string `mapstructure:"-"`
}

//nolint:gochecknoglobals // Immutable binding table.
var gateBindings = []binding{
	{"api_url", EnvAPIURL},
	{"version", EnvReleaseVersion},
	{"timeout", EnvTimeout},
	{"output_file", EnvGitHubOutput},
}

// LoadGate reads and validates the gate configuration.
func LoadGate(path string, overrides *Gate) (*Gate, error) {
	cfg := new(Gate)

	if err := load(path, gateBindings, map[string]any{"timeout": DefaultTimeout}, cfg); err != nil {
		return nil, err
	}

	cfg.PackageJSON = DefaultPackageJSON

	if overrides != nil {
		if overrides.Version != "" {
			cfg.Version = overrides.Version
		}

		if overrides.PackageJSON != "" {
			cfg.PackageJSON = overrides.PackageJSON
		}

		if overrides.OutputFile != "" {
			cfg.OutputFile = overrides.OutputFile
		}

		if overrides.Timeout > 0 {
			cfg.Timeout = overrides.Timeout
		}
	}

	if err := ValidateGate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateGate checks the API URL and resolves the local version.
func ValidateGate(g *Gate) error {
	var (
		errs []error
		err  error
	)

	if g.APIURL, err = normalizeBaseURL(EnvAPIURL, g.APIURL); err != nil {
		errs = append(errs, err)
	}

	if g.Version, err = resolveVersion(g.Version, g.PackageJSON); err != nil {
		errs = append(errs, err)
	}

	if g.Timeout <= 0 {
		g.Timeout = DefaultTimeout
	}

	g.OutputFile = strings.TrimSpace(g.OutputFile)

	return errors.Join(errs...)
}
