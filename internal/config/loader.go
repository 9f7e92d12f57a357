package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bytedance/sonic"
	"github.com/spf13/viper"
)

// binding ties a viper key to its environment variable.
type binding struct {
	key string
	env string
}

// load merges defaults, the optional YAML file at path and the bound
// environment variables, then decodes the result into target.
func load(path string, bindings []binding, defaults map[string]any, target any) error {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	return nil
}

// packageManifest is the subset of package.json holding the app version.
type packageManifest struct {
	Version string `json:"version"`
}

// ReadPackageVersion returns the "version" field of a package.json file.
func ReadPackageVersion(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var manifest packageManifest
	if err = sonic.Unmarshal(contents, &manifest); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	if manifest.Version == "" {
		return "", fmt.Errorf("%s has no version field", path)
	}

	return manifest.Version, nil
}

// resolveVersion picks the explicit version or falls back to package.json and
// checks that the result is a semantic version.
func resolveVersion(explicit, packageJSON string) (string, error) {
	version := strings.TrimSpace(explicit)

	if version == "" {
		if packageJSON == "" {
			return "", missing(EnvReleaseVersion)
		}

		fromFile, err := ReadPackageVersion(packageJSON)
		if err != nil {
			return "", invalid(EnvReleaseVersion, err)
		}

		version = fromFile
	}

	if _, err := semver.NewVersion(version); err != nil {
		return "", invalid(EnvReleaseVersion, err)
	}

	return version, nil
}

// normalizeBaseURL validates an absolute URL and trims trailing slashes.
func normalizeBaseURL(env, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", missing(env)
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", invalid(env, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", invalid(env, fmt.Errorf("%q is not an absolute URL", raw))
	}

	return strings.TrimRight(raw, "/"), nil
}
