package updater

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ChecksumFunction is the digest feed manifests declare for every file.
	ChecksumFunction crypto.Hash = crypto.SHA512

	downloadDirName = "release-pipeline-update"
	stagingDirMode  = 0o755
	percentScale    = 100.0
)

var (
	errHashUnavailable  = errors.New("hash function unavailable")
	errChecksumMismatch = errors.New("checksum mismatch")
	errNoChecksum       = errors.New("feed declares no checksum")
)

func defaultDownloadDir() string {
	return filepath.Join(os.TempDir(), downloadDirName)
}

// Download streams the update file into the staging directory and verifies
// its SHA-512 digest before it is moved into place.
func (b *FeedBackend) Download(ctx context.Context, info *UpdateInfo, progress ProgressFunc) (*StagedUpdate, error) {
	expected, err := base64.StdEncoding.DecodeString(info.File.SHA512)
	if err != nil {
		return nil, fmt.Errorf("decode checksum of %s: %w", info.File.Name, err)
	}

	if len(expected) == 0 {
		return nil, fmt.Errorf("%s: %w", info.File.Name, errNoChecksum)
	}

	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	if err = os.MkdirAll(b.downloadDir, stagingDirMode); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	resp, err := get(ctx, b.downloadClient, info.File.URL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	temporary, err := os.CreateTemp(b.downloadDir, "download-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	temporaryPath := temporary.Name()

	defer func() {
		_ = temporary.Close()
		_ = os.Remove(temporaryPath)
	}()

	total := resp.ContentLength
	if total <= 0 {
		total = info.File.Size
	}

	hasher := ChecksumFunction.New()
	reader := io.TeeReader(newProgressReader(resp.Body, total, progress), hasher)

	if _, err = io.Copy(temporary, reader); err != nil {
		return nil, fmt.Errorf("write %s: %w", info.File.Name, err)
	}

	if err = temporary.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", info.File.Name, err)
	}

	actual := hasher.Sum(nil)
	if !bytes.Equal(actual, expected) {
		return nil, fmt.Errorf("%s: %w: got %s", info.File.Name, errChecksumMismatch,
			base64.StdEncoding.EncodeToString(actual))
	}

	finalPath := filepath.Join(b.downloadDir, filepath.Base(info.File.Name))
	if err = os.Remove(finalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove previous download: %w", err)
	}

	if err = os.Rename(temporaryPath, finalPath); err != nil {
		return nil, fmt.Errorf("stage %s: %w", info.File.Name, err)
	}

	if progress != nil {
		progress(percentScale)
	}

	return &StagedUpdate{
		Version:  info.Version,
		Path:     finalPath,
		Archive:  info.File.Archive,
		Checksum: actual,
	}, nil
}

// FileChecksum returns the SHA-512 digest of a local file.
func FileChecksum(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// progressReader reports the share of total read so far.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func newProgressReader(r io.Reader, total int64, report ProgressFunc) io.Reader {
	if report == nil || total <= 0 {
		return r
	}

	return &progressReader{r: r, total: total, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(float64(p.read) / float64(p.total) * percentScale)
	}

	return n, err
}
