package updater

import (
	"context"
	"time"

	"github.com/oshokin/release-pipeline/internal/domain/release"
)

// UpdateFile is the installable selected for the running platform.
type UpdateFile struct {
	// Name is the artifact file name.
	Name string
	// URL is the absolute download address.
	URL string
	// SHA512 is the base64 encoded SHA-512 digest of the file.
	SHA512 string
	// Size is the declared length in bytes, zero when unknown.
	Size int64
	// Archive tells the installer how to apply the file.
	Archive release.ArchiveType
}

// UpdateInfo describes the newest version offered by the feed.
type UpdateInfo struct {
	Version     string
	ReleaseDate time.Time
	File        UpdateFile
}

// StagedUpdate is a verified download waiting to be installed.
type StagedUpdate struct {
	Version string
	// Path is the local file.
	Path    string
	Archive release.ArchiveType
	// Checksum is the raw SHA-512 digest of the file.
	Checksum []byte
}

// ProgressFunc receives download progress in percent.
type ProgressFunc func(percent float64)

// Backend reads the update feed and downloads updates.
type Backend interface {
	// Latest returns the newest version the feed offers for this platform.
	Latest(ctx context.Context) (*UpdateInfo, error)
	// Download fetches and verifies the update file.
	Download(ctx context.Context, info *UpdateInfo, progress ProgressFunc) (*StagedUpdate, error)
}

// Installer applies a staged update and restarts the app.
type Installer interface {
	Install(ctx context.Context, staged *StagedUpdate) error
}
