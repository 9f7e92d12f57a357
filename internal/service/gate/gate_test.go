package gate

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-pipeline/internal/config"
	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/releaseapi"
)

type fakeFeed struct {
	record *release.VersionRecord
	err    error
	calls  int
}

func (f *fakeFeed) Latest(context.Context) (*release.VersionRecord, error) {
	f.calls++

	return f.record, f.err
}

func TestShouldRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		local  string
		latest string
		want   bool
	}{
		{local: "1.2.0", latest: "", want: true},
		{local: "1.2.0", latest: "1.1.9", want: true},
		{local: "1.2.0", latest: "1.2.0", want: false},
		{local: "1.2", latest: "1.2.0", want: false},
		{local: "v1.10.0", latest: "1.9.9", want: true},
		{local: "1.0.0", latest: "2.0.0", want: false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, ShouldRelease(tt.local, tt.latest), "%s vs %q", tt.local, tt.latest)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		feed       *fakeFeed
		local      string
		want       bool
		wantLatest string
	}{
		{
			name:  "no releases",
			feed:  &fakeFeed{err: releaseapi.ErrNoReleases},
			local: "1.0.0",
			want:  true,
		},
		{
			name:  "feed unavailable",
			feed:  &fakeFeed{err: &releaseapi.FeedUnavailableError{StatusCode: http.StatusBadGateway}},
			local: "1.0.0",
			want:  true,
		},
		{
			name:  "unexpected error",
			feed:  &fakeFeed{err: errors.New("boom")},
			local: "1.0.0",
			want:  true,
		},
		{
			name:       "newer local",
			feed:       &fakeFeed{record: &release.VersionRecord{Version: "1.0.0"}},
			local:      "1.0.1",
			want:       true,
			wantLatest: "1.0.0",
		},
		{
			name:       "older local",
			feed:       &fakeFeed{record: &release.VersionRecord{Version: "1.0.0"}},
			local:      "0.9.9",
			want:       false,
			wantLatest: "1.0.0",
		},
		{
			name:       "same version",
			feed:       &fakeFeed{record: &release.VersionRecord{Version: "1.0.1"}},
			local:      "1.0.1",
			want:       false,
			wantLatest: "1.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision := Check(context.Background(), tt.feed, tt.local)
			require.Equal(t, tt.want, decision.ShouldRelease)
			require.Equal(t, tt.local, decision.LocalVersion)
			require.Equal(t, tt.wantLatest, decision.LatestVersion)
			require.Equal(t, 1, tt.feed.calls)
		})
	}
}

func TestWriteOutputsAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "github_output")
	require.NoError(t, os.WriteFile(path, []byte("previous=1\n"), 0o600))

	var stdout bytes.Buffer

	err := WriteOutputs(path, &stdout, &Decision{ShouldRelease: true, LocalVersion: "1.2.3"})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous=1\nshould_release=true\nversion=1.2.3\n", string(contents))
	require.Equal(t, "should_release=true\nversion=1.2.3\n", stdout.String())
}

func TestWriteOutputsStdoutOnly(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	require.NoError(t, WriteOutputs("", &stdout, &Decision{LocalVersion: "0.1.0"}))
	require.Equal(t, "should_release=false\nversion=0.1.0\n", stdout.String())
}

func TestRunTreatsTimeoutAsNoRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	t.Setenv(config.EnvAPIURL, srv.URL)
	t.Setenv(config.EnvTimeout, "200ms")
	t.Setenv(config.EnvReleaseVersion, "")
	t.Setenv(config.EnvGitHubOutput, "")

	var stdout bytes.Buffer

	started := time.Now()

	decision, err := Run(context.Background(), &Options{Version: "1.0.0", Stdout: &stdout})
	require.NoError(t, err)
	require.Less(t, time.Since(started), 5*time.Second)

	require.True(t, decision.ShouldRelease)
	require.Equal(t, "1.0.0", decision.LocalVersion)
	require.Empty(t, decision.LatestVersion)
	require.Equal(t, "should_release=true\nversion=1.0.0\n", stdout.String())
}
