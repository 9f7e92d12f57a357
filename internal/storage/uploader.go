package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/signer"
)

const (
	headerContentDisposition = "Content-Disposition"

	// maxErrorBody caps how much of a failed response is kept in UploadError.
	maxErrorBody = 4 << 10
)

var (
	errNoBucket   = errors.New("bucket is required")
	errNoEndpoint = errors.New("endpoint is required")
)

// HTTPClient is the subset of *http.Client the uploader needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(u *Uploader) {
		if client != nil {
			u.client = client
		}
	}
}

// WithClock replaces the time source used for request signing.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// Uploader puts local files into one bucket.
type Uploader struct {
	endpoint  *url.URL
	bucket    string
	publicURL string
	signer    *signer.Signer
	client    HTTPClient
	now       func() time.Time
}

// New creates an Uploader for the given store settings.
func New(cfg config.Storage, opts ...Option) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errNoBucket
	}

	if cfg.Endpoint == "" {
		return nil, errNoEndpoint
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	u := &Uploader{
		endpoint:  endpoint,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		signer: signer.New(signer.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		}),
		client: http.DefaultClient,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u, nil
}

// DetectPlatform maps an artifact file name to its platform.
func DetectPlatform(fileName string) (release.Platform, bool) {
	return release.DetectPlatform(fileName)
}

// PublicURL returns the address a key is served from.
func (u *Uploader) PublicURL(key string) string {
	return u.publicURL + "/" + signer.EncodeKey(key)
}

// Upload stores the file at localPath under key and returns its public URL.
// displayName is offered to browsers through Content-Disposition.
func (u *Uploader) Upload(ctx context.Context, localPath, key, displayName string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(localPath))
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}

	var (
		disposition = `attachment; filename="` + displayName + `"`
		objectPath  = strings.TrimRight(u.endpoint.Path, "/") + "/" + u.bucket + "/" + strings.TrimPrefix(key, "/")
	)

	sig, err := u.signer.Sign(signer.Request{
		Method:      http.MethodPut,
		Host:        u.endpoint.Host,
		Path:        objectPath,
		Headers:     map[string]string{headerContentDisposition: disposition},
		PayloadHash: signer.PayloadHash(contents),
		Time:        u.now(),
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("sign request: %w", err)}
	}

	target := *u.endpoint
	target.Path = objectPath
	target.RawPath = signer.EncodePath(objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(contents))
	if err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("build request: %w", err)}
	}

	req.ContentLength = int64(len(contents))
	req.Header.Set(headerContentDisposition, disposition)
	req.Header.Set(signer.HeaderDate, sig.AmzDate)
	req.Header.Set(signer.HeaderContentSHA256, sig.ContentSHA256)
	req.Header.Set("Authorization", sig.Authorization)

	logger.DebugKV(ctx, "Uploading object",
		"key", key,
		"size", len(contents),
		"signed_headers", sig.SignedHeaders)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return "", &UploadError{
			Key:        key,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return u.PublicURL(key), nil
}
