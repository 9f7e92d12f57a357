package integration

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/minio/sha256-simd"

	"github.com/oshokin/release-pipeline/internal/domain/release"
	"github.com/oshokin/release-pipeline/internal/vercomp"
)

const (
	testBucket     = "releases"
	testPublishKey = "publish-key"
)

// objectStore accepts signed PUTs under /{bucket}/ and serves the stored
// objects publicly under /public/.
type objectStore struct {
	server *httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
	order   []string
}

func newObjectStore(t *testing.T) *objectStore {
	t.Helper()

	store := &objectStore{objects: make(map[string][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /"+testBucket+"/{key...}", store.put)
	mux.HandleFunc("GET /public/{key...}", store.get)

	store.server = httptest.NewServer(mux)
	t.Cleanup(store.server.Close)

	return store
}

func (s *objectStore) publicURL() string {
	return s.server.URL + "/public"
}

func (s *objectStore) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sum := sha256.Sum256(body)

	switch {
	case !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential="):
		http.Error(w, "<Error><Code>AccessDenied</Code></Error>", http.StatusForbidden)
		return
	case r.Header.Get("x-amz-content-sha256") != hex.EncodeToString(sum[:]):
		http.Error(w, "<Error><Code>XAmzContentSHA256Mismatch</Code></Error>", http.StatusBadRequest)
		return
	}

	key := r.PathValue("key")

	s.mu.Lock()
	s.objects[key] = body
	s.order = append(s.order, key)
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *objectStore) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.objects[r.PathValue("key")]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func (s *objectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// releaseAPI keeps registered artifacts in memory and serves the desktop
// release routes.
type releaseAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	artifacts []release.Artifact
	nextID    int
}

func newReleaseAPI(t *testing.T) *releaseAPI {
	t.Helper()

	api := new(releaseAPI)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /desktop/releases/latest", api.latest)
	mux.HandleFunc("GET /desktop/releases/{version}", api.byVersion)
	mux.HandleFunc("DELETE /desktop/releases/{version}", api.deleteVersion)
	mux.HandleFunc("GET /desktop/releases", api.list)
	mux.HandleFunc("POST /desktop/releases", api.register)

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)

	return api
}

func (a *releaseAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testPublishKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return false
	}

	return true
}

func (a *releaseAPI) register(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var artifact release.Artifact
	if err = sonic.Unmarshal(body, &artifact); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	a.mu.Lock()
	a.nextID++
	artifact.ID = "rel-" + strconv.Itoa(a.nextID)
	artifact.CreatedAt = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a.artifacts = append(a.artifacts, artifact)
	a.mu.Unlock()

	writeJSON(w, http.StatusCreated, artifact)
}

func (a *releaseAPI) latest(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	newest := ""
	for _, artifact := range a.artifacts {
		if newest == "" || vercomp.Newer(artifact.Version, newest) {
			newest = artifact.Version
		}
	}

	if newest == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No releases found"})
		return
	}

	writeJSON(w, http.StatusOK, a.recordLocked(newest))
}

func (a *releaseAPI) byVersion(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	record := a.recordLocked(r.PathValue("version"))
	if len(record.Platforms) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Release not found"})
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (a *releaseAPI) deleteVersion(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	a.mu.Lock()
	kept := a.artifacts[:0]
	for _, artifact := range a.artifacts {
		if artifact.Version != r.PathValue("version") {
			kept = append(kept, artifact)
		}
	}
	a.artifacts = kept
	a.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (a *releaseAPI) list(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	writeJSON(w, http.StatusOK, a.artifacts)
}

func (a *releaseAPI) recordLocked(version string) release.VersionRecord {
	record := release.VersionRecord{Version: version, Platforms: []release.PlatformBuild{}}

	for _, artifact := range a.artifacts {
		if artifact.Version != version {
			continue
		}

		record.CreatedAt = artifact.CreatedAt
		record.Platforms = append(record.Platforms, release.PlatformBuild{
			Platform:    artifact.Platform,
			DownloadURL: artifact.DownloadURL,
			FileName:    artifact.FileName,
			FileSize:    artifact.FileSize,
		})
	}

	return record
}

func (a *releaseAPI) registered() []release.Artifact {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]release.Artifact(nil), a.artifacts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
