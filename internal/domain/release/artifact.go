package release

import "time"

// Artifact is a single platform-specific installable registered for a version.
// It is created once per uploaded build output and never modified afterwards.
type Artifact struct {
	// ID is assigned by the release API on registration.
	ID string `json:"id,omitempty"`
	// Version is the release version the artifact belongs to.
	Version string `json:"version"`
	// Platform routes the artifact to an update channel.
	Platform Platform `json:"platform"`
	// DownloadURL is the public URL of the uploaded object.
	DownloadURL string `json:"downloadUrl"`
	// FileName is the name clients see when downloading.
	FileName string `json:"fileName"`
	// FileSize is the artifact length in bytes.
	FileSize int64 `json:"fileSize"`
	// ReleaseNotes is optional free-form text.
	ReleaseNotes string `json:"releaseNotes"`
	// CreatedAt is assigned by the release API on registration.
	CreatedAt time.Time `json:"createdAt"`
}

// PlatformBuild is one platform entry of a grouped version record.
type PlatformBuild struct {
	Platform    Platform `json:"platform"`
	DownloadURL string   `json:"downloadUrl"`
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
}

// VersionRecord groups every platform build registered for one version.
type VersionRecord struct {
	Version      string          `json:"version"`
	ReleaseNotes *string         `json:"releaseNotes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Platforms    []PlatformBuild `json:"platforms"`
}
