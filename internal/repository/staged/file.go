package staged

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/service/updater"
)

const (
	// DefaultFilename is the record kept in the download directory.
	DefaultFilename = "staged-update.yaml"

	filePermissions = 0o600
)

var (
	// ErrNotFound is returned when nothing has been staged yet.
	ErrNotFound = errors.New("no staged update")
	// ErrStale is returned when the staged file is gone or was modified.
	ErrStale = errors.New("staged update no longer matches its file")
)

// record is the on-disk form of a staged update.
type record struct {
	Version  string              `yaml:"version"`
	Path     string              `yaml:"path"`
	Archive  release.ArchiveType `yaml:"archive"`
	SHA512   string              `yaml:"sha512"`
	StagedAt time.Time           `yaml:"staged_at"`
}

// FileRepository persists the staged update to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
	// now stamps saved records.
	now func() time.Time
	// mu protects concurrent access to the record.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		now:  time.Now,
	}
}

// Path returns the location of the record.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the staged update and checks that its file is still intact.
func (r *FileRepository) Load(_ context.Context) (*updater.StagedUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read staged update: %w", err)
	}

	var rec record
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("decode staged update: %w", err)
	}

	checksum, err := base64.StdEncoding.DecodeString(rec.SHA512)
	if err != nil {
		return nil, fmt.Errorf("decode staged checksum: %w", err)
	}

	actual, err := updater.FileChecksum(rec.Path)
	if err != nil || !bytes.Equal(actual, checksum) {
		return nil, fmt.Errorf("%s: %w", rec.Path, ErrStale)
	}

	return &updater.StagedUpdate{
		Version:  rec.Version,
		Path:     rec.Path,
		Archive:  rec.Archive,
		Checksum: checksum,
	}, nil
}

// Save writes the staged update record.
func (r *FileRepository) Save(_ context.Context, staged *updater.StagedUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(&record{
		Version:  staged.Version,
		Path:     staged.Path,
		Archive:  staged.Archive,
		SHA512:   base64.StdEncoding.EncodeToString(staged.Checksum),
		StagedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode staged update: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write staged update: %w", err)
	}

	return nil
}

// Clear removes the record and the staged file it points to.
func (r *FileRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read staged update: %w", err)
	}

	var rec record
	if yaml.Unmarshal(contents, &rec) == nil && rec.Path != "" {
		if err = os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove staged file: %w", err)
		}
	}

	if err = os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged update: %w", err)
	}

	return nil
}
