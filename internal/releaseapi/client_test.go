package releaseapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/version"
)

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestLatest(t *testing.T) {
	t.Parallel()

	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/desktop/releases/latest", r.URL.Path)
		require.Equal(t, version.UserAgent(), r.Header.Get("User-Agent"))
		require.Empty(t, r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{"version":"1.4.0","createdAt":"2024-02-01T10:00:00Z",`+
			`"platforms":[{"platform":"linux-x64","downloadUrl":"https://cdn/x","fileName":"x.AppImage","fileSize":12}]}`)
	})

	record, err := New(srv.URL + "/").Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.4.0", record.Version)
	require.Nil(t, record.ReleaseNotes)
	require.Len(t, record.Platforms, 1)
	require.Equal(t, release.PlatformLinuxX64, record.Platforms[0].Platform)
	require.Equal(t, time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC), record.CreatedAt.UTC())
}

func TestLatestNotFound(t *testing.T) {
	t.Parallel()

	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"no releases found"}`)
	})

	_, err := New(srv.URL).Latest(context.Background())
	require.ErrorIs(t, err, ErrNoReleases)
}

func TestLatestUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantStatus: http.StatusInternalServerError},
		{name: "malformed body", status: http.StatusOK, body: "{not json"},
		{name: "missing version", status: http.StatusOK, body: `{"platforms":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := New(srv.URL).Latest(context.Background())

			var unavailable *FeedUnavailableError
			require.ErrorAs(t, err, &unavailable)
			require.Equal(t, tt.wantStatus, unavailable.StatusCode)
		})
	}
}

func TestLatestTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base).Latest(context.Background())

	var unavailable *FeedUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Zero(t, unavailable.StatusCode)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/desktop/releases", r.URL.Path)
		require.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, sonic.Unmarshal(body, &got))
		require.Equal(t, map[string]any{
			"version":      "1.2.3",
			"platform":     "win32-x64",
			"downloadUrl":  "https://cdn.example.com/1.2.3/App%20Setup%201.2.3.exe",
			"fileName":     "App Setup 1.2.3.exe",
			"fileSize":     float64(1048576),
			"releaseNotes": "",
		}, got)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"r-1","version":"1.2.3","platform":"win32-x64",`+
			`"downloadUrl":"https://cdn.example.com/1.2.3/App%20Setup%201.2.3.exe",`+
			`"fileName":"App Setup 1.2.3.exe","fileSize":1048576,"createdAt":"2024-02-01T10:00:00Z"}`)
	})

	registered, err := New(srv.URL, WithPublishKey("secret-key")).Register(context.Background(), release.Artifact{
		Version:     "1.2.3",
		Platform:    release.PlatformWin32X64,
		DownloadURL: "https://cdn.example.com/1.2.3/App%20Setup%201.2.3.exe",
		FileName:    "App Setup 1.2.3.exe",
		FileSize:    1048576,
	})
	require.NoError(t, err)
	require.Equal(t, "r-1", registered.ID)
	require.Equal(t, release.PlatformWin32X64, registered.Platform)
}

func TestRegisterRejected(t *testing.T) {
	t.Parallel()

	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
	})

	_, err := New(srv.URL, WithPublishKey("wrong")).Register(context.Background(), release.Artifact{
		Version:     "1.2.3",
		Platform:    release.PlatformDarwinARM64,
		DownloadURL: "https://cdn.example.com/1.2.3/App-1.2.3-mac-arm64.zip",
	})

	var regErr *RegistrationError
	require.True(t, errors.As(err, &regErr))
	require.Equal(t, http.StatusUnauthorized, regErr.StatusCode)
	require.Equal(t, release.PlatformDarwinARM64, regErr.Platform)
	require.Contains(t, err.Error(), "https://cdn.example.com/1.2.3/App-1.2.3-mac-arm64.zip")
	require.Contains(t, err.Error(), "unauthorized")
}

func TestRegisterRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New("https://api.example.com").Register(context.Background(), release.Artifact{Version: "1.0.0"})

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	require.ErrorIs(t, err, errNoPublishKey)
}

func TestListByVersionAndDelete(t *testing.T) {
	t.Parallel()

	deleted := make(chan string, 1)

	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/desktop/releases":
			_, _ = io.WriteString(w, `[{"id":"a","version":"1.0.0","platform":"linux-x64","downloadUrl":"u","fileName":"f","fileSize":1,"createdAt":"2024-01-01T00:00:00Z"},`+
				`{"id":"b","version":"1.0.0","platform":"win32-x64","downloadUrl":"u2","fileName":"f2","fileSize":2,"releaseNotes":"notes","createdAt":"2024-01-01T00:00:00Z"}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/desktop/releases/1.0.0":
			_, _ = io.WriteString(w, `{"version":"1.0.0","releaseNotes":"notes","createdAt":"2024-01-01T00:00:00Z","platforms":[]}`)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			deleted <- strings.TrimPrefix(r.URL.Path, "/desktop/releases/")
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	client := New(srv.URL, WithPublishKey("key"))
	ctx := context.Background()

	artifacts, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	require.Equal(t, "notes", artifacts[1].ReleaseNotes)

	record, err := client.ByVersion(ctx, "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, record.ReleaseNotes)
	require.Equal(t, "notes", *record.ReleaseNotes)

	_, err = client.ByVersion(ctx, "9.9.9")
	require.ErrorIs(t, err, ErrNoReleases)

	require.NoError(t, client.DeleteVersion(ctx, "1.0.0"))
	require.Equal(t, "1.0.0", <-deleted)
}

func TestDeleteVersionFailure(t *testing.T) {
	t.Parallel()

	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "db down")
	})

	err := New(srv.URL, WithPublishKey("key")).DeleteVersion(context.Background(), "1.0.0")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, "db down", statusErr.Body)
}
