package config

import (
	"errors"
	"strings"
	"time"
)

// Environment variables read by the release tooling.
const (
	EnvAPIURL          = "RELEASE_API_URL"
	EnvPublishKey      = "RELEASE_PUBLISH_KEY"
	EnvReleaseVersion  = "RELEASE_VERSION"
	EnvReleaseDir      = "RELEASE_DIR"
	EnvReleaseNotes    = "RELEASE_NOTES"
	EnvTimeout         = "RELEASE_TIMEOUT"
	EnvGitHubOutput    = "GITHUB_OUTPUT"
	EnvStorageAccount  = "OBJECT_STORE_ACCOUNT_ID"
	EnvStorageKeyID    = "OBJECT_STORE_ACCESS_KEY_ID"
	EnvStorageSecret   = "OBJECT_STORE_SECRET_ACCESS_KEY"
	EnvStorageBucket   = "OBJECT_STORE_BUCKET"
	EnvStoragePublic   = "OBJECT_STORE_PUBLIC_URL"
	EnvStorageHost     = "OBJECT_STORE_HOST"
	EnvStorageEndpoint = "OBJECT_STORE_ENDPOINT"
)

const (
	// DefaultTimeout bounds every network call of the release tooling.
	DefaultTimeout = 30 * time.Second
	// DefaultStorageHost is the S3-compatible host suffix after the account id.
	DefaultStorageHost = "r2.cloudflarestorage.com"
	// DefaultReleaseDir is where the desktop build writes its artifacts.
	DefaultReleaseDir = "release"
	// DefaultPackageJSON is read when no version is configured.
	DefaultPackageJSON = "package.json"
)

// Storage describes the object store artifacts are uploaded to.
type Storage struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	// PublicURL is the base URL objects are served from.
	PublicURL string `mapstructure:"public_url"`
	// Host is the store host suffix; the endpoint is https://{account}.{host}.
	Host string `mapstructure:"host"`
	// Endpoint overrides the derived endpoint, e.g. for a local test store.
	Endpoint string `mapstructure:"endpoint"`
}

// Publish is the validated configuration of a publish run.
type Publish struct {
	APIURL       string        `mapstructure:"api_url"`
	PublishKey   string        `mapstructure:"publish_key"`
	Version      string        `mapstructure:"version"`
	ReleaseDir   string        `mapstructure:"release_dir"`
	ReleaseNotes string        `mapstructure:"release_notes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Storage      Storage       `mapstructure:"storage"`
	// PackageJSON is consulted when Version is empty. It is not read from the environment.
	PackageJSON string `mapstructure:"-"`
}

//nolint:gochecknoglobals // Immutable binding table.
var publishBindings = []binding{
	{"api_url", EnvAPIURL},
	{"publish_key", EnvPublishKey},
	{"version", EnvReleaseVersion},
	{"release_dir", EnvReleaseDir},
	{"release_notes", EnvReleaseNotes},
	{"timeout", EnvTimeout},
	{"storage.account_id", EnvStorageAccount},
	{"storage.access_key_id", EnvStorageKeyID},
	{"storage.secret_access_key", EnvStorageSecret},
	{"storage.bucket", EnvStorageBucket},
	{"storage.public_url", EnvStoragePublic},
	{"storage.host", EnvStorageHost},
	{"storage.endpoint", EnvStorageEndpoint},
}

// LoadPublish reads and validates the publisher configuration.
// Explicit values in overrides win over file and environment.
func LoadPublish(path string, overrides *Publish) (*Publish, error) {
	cfg := new(Publish)

	defaults := map[string]any{
		"release_dir":  DefaultReleaseDir,
		"timeout":      DefaultTimeout,
		"storage.host": DefaultStorageHost,
	}

	if err := load(path, publishBindings, defaults, cfg); err != nil {
		return nil, err
	}

	cfg.PackageJSON = DefaultPackageJSON
	cfg.merge(overrides)

	if err := ValidatePublish(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (p *Publish) merge(o *Publish) {
	if o == nil {
		return
	}

	if o.Version != "" {
		p.Version = o.Version
	}

	if o.ReleaseDir != "" {
		p.ReleaseDir = o.ReleaseDir
	}

	if o.ReleaseNotes != "" {
		p.ReleaseNotes = o.ReleaseNotes
	}

	if o.PackageJSON != "" {
		p.PackageJSON = o.PackageJSON
	}
}

// ValidatePublish checks every required value and fills defaults.
// All problems are reported together.
func ValidatePublish(p *Publish) error {
	var errs []error

	required := []struct {
		value *string
		env   string
	}{
		{&p.Storage.AccountID, EnvStorageAccount},
		{&p.Storage.AccessKeyID, EnvStorageKeyID},
		{&p.Storage.SecretAccessKey, EnvStorageSecret},
		{&p.Storage.Bucket, EnvStorageBucket},
		{&p.PublishKey, EnvPublishKey},
	}

	for _, r := range required {
		*r.value = strings.TrimSpace(*r.value)
		if *r.value == "" {
			errs = append(errs, missing(r.env))
		}
	}

	var err error

	if p.Storage.PublicURL, err = normalizeBaseURL(EnvStoragePublic, p.Storage.PublicURL); err != nil {
		errs = append(errs, err)
	}

	if p.APIURL, err = normalizeBaseURL(EnvAPIURL, p.APIURL); err != nil {
		errs = append(errs, err)
	}

	if p.Storage.Host == "" {
		p.Storage.Host = DefaultStorageHost
	}

	if p.Storage.Endpoint == "" && p.Storage.AccountID != "" {
		p.Storage.Endpoint = "https://" + p.Storage.AccountID + "." + p.Storage.Host
	}

	if p.Storage.Endpoint != "" {
		if p.Storage.Endpoint, err = normalizeBaseURL(EnvStorageEndpoint, p.Storage.Endpoint); err != nil {
			errs = append(errs, err)
		}
	}

	if p.Version, err = resolveVersion(p.Version, p.PackageJSON); err != nil {
		errs = append(errs, err)
	}

	if p.ReleaseDir == "" {
		p.ReleaseDir = DefaultReleaseDir
	}

	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}

	return errors.Join(errs...)
}
