package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/signer"
)

//nolint:gochecknoglobals // Fixed clock for deterministic signatures.
var fixedTime = time.Date(2024, time.March, 1, 10, 20, 30, 0, time.UTC)

type capturedRequest struct {
	method        string
	escapedPath   string
	host          string
	body          []byte
	authorization string
	disposition   string
	amzDate       string
	contentSHA    string
}

func newStore(t *testing.T, status int, body string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()

	captured := make(chan capturedRequest, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		captured <- capturedRequest{
			method:        r.Method,
			escapedPath:   r.URL.EscapedPath(),
			host:          r.Host,
			body:          payload,
			authorization: r.Header.Get("Authorization"),
			disposition:   r.Header.Get("Content-Disposition"),
			amzDate:       r.Header.Get(signer.HeaderDate),
			contentSHA:    r.Header.Get(signer.HeaderContentSHA256),
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))

	t.Cleanup(srv.Close)

	return srv, captured
}

func writeArtifact(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func storageConfig(endpoint string) config.Storage {
	return config.Storage{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Bucket:          "releases",
		PublicURL:       "https://cdn.example.com/",
		Endpoint:        endpoint,
	}
}

func TestUploadSignsAndReturnsPublicURL(t *testing.T) {
	t.Parallel()

	srv, captured := newStore(t, http.StatusOK, "")

	uploader, err := New(storageConfig(srv.URL), WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, err)

	path := writeArtifact(t, "App Setup 1.2.3.exe", "installer-bytes")

	publicURL, err := uploader.Upload(context.Background(), path, "1.2.3/App Setup 1.2.3.exe", "App Setup 1.2.3.exe")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/1.2.3/App%20Setup%201.2.3.exe", publicURL)

	got := <-captured
	require.Equal(t, http.MethodPut, got.method)
	require.Equal(t, "/releases/1.2.3/App%20Setup%201.2.3.exe", got.escapedPath)
	require.Equal(t, []byte("installer-bytes"), got.body)
	require.Equal(t, `attachment; filename="App Setup 1.2.3.exe"`, got.disposition)
	require.Equal(t, "20240301T102030Z", got.amzDate)
	require.Equal(t, signer.PayloadHash([]byte("installer-bytes")), got.contentSHA)

	expected, err := signer.New(signer.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}).Sign(signer.Request{
		Method:      http.MethodPut,
		Host:        got.host,
		Path:        "/releases/1.2.3/App Setup 1.2.3.exe",
		Headers:     map[string]string{"content-disposition": got.disposition},
		PayloadHash: got.contentSHA,
		Time:        fixedTime,
	})
	require.NoError(t, err)
	require.Equal(t, expected.Authorization, got.authorization)
	require.Contains(t, got.authorization,
		"SignedHeaders=content-disposition;host;x-amz-content-sha256;x-amz-date")
	require.Contains(t, got.authorization, "Credential=AKID/20240301/auto/s3/aws4_request")
}

func TestUploadRejectedByStore(t *testing.T) {
	t.Parallel()

	srv, _ := newStore(t, http.StatusForbidden, "<Error>SignatureDoesNotMatch</Error>")

	uploader, err := New(storageConfig(srv.URL))
	require.NoError(t, err)

	path := writeArtifact(t, "latest.yml", "version: 1.0.0\n")

	_, err = uploader.Upload(context.Background(), path, "latest.yml", "latest.yml")

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	require.Equal(t, "latest.yml", uploadErr.Key)
	require.Equal(t, http.StatusForbidden, uploadErr.StatusCode)
	require.Contains(t, uploadErr.Body, "SignatureDoesNotMatch")
}

func TestUploadMissingFile(t *testing.T) {
	t.Parallel()

	uploader, err := New(storageConfig("https://acct.r2.cloudflarestorage.com"))
	require.NoError(t, err)

	_, err = uploader.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.zip"), "1.0.0/nope.zip", "nope.zip")

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, uploadErr.StatusCode)
}

func TestUploadTransportFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newStore(t, http.StatusOK, "")
	endpoint := srv.URL
	srv.Close()

	uploader, err := New(storageConfig(endpoint))
	require.NoError(t, err)

	path := writeArtifact(t, "App-1.0.0-mac-arm64.zip", "zip")

	_, err = uploader.Upload(context.Background(), path, "1.0.0/App-1.0.0-mac-arm64.zip", "App-1.0.0-mac-arm64.zip")

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.Error(t, uploadErr.Err)
}

func TestNewValidatesSettings(t *testing.T) {
	t.Parallel()

	_, err := New(config.Storage{Endpoint: "https://x"})
	require.ErrorIs(t, err, errNoBucket)

	_, err = New(config.Storage{Bucket: "b"})
	require.ErrorIs(t, err, errNoEndpoint)
}

func TestDetectPlatformReexport(t *testing.T) {
	t.Parallel()

	platform, ok := DetectPlatform("App-2.0.0-arm64.AppImage")
	require.True(t, ok)
	require.Equal(t, release.PlatformLinuxARM64, platform)

	_, ok = DetectPlatform("App-2.0.0.dmg.blockmap")
	require.False(t, ok)
}
