package publisher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oshokin/release-pipeline/internal/domain/release"
)

// ManifestFiles are the updater feed descriptors uploaded at the bucket root.
//
//nolint:gochecknoglobals // Fixed list of updater descriptors.
var ManifestFiles = []string{
	"latest.yml",
	"latest-mac.yml",
	"latest-linux.yml",
}

// PlannedArtifact is a build output selected for publishing.
type PlannedArtifact struct {
	Platform release.Platform
	Archive  release.ArchiveType
	FileName string
	Path     string
	Size     int64
}

// Key returns the object key the artifact is uploaded under.
func (a PlannedArtifact) Key(version string) string {
	return version + "/" + a.FileName
}

// SkippedFile is a build output left out of the release.
type SkippedFile struct {
	FileName string
	Reason   string
}

// Plan lists everything a publish run is going to do.
type Plan struct {
	Version string
	Dir     string
	// Manifests are the updater descriptors found in Dir.
	Manifests []string
	// MissingManifests are expected descriptors that were not built.
	MissingManifests []string
	Artifacts        []PlannedArtifact
	// Duplicates are outputs whose platform was already taken by an earlier file.
	Duplicates []SkippedFile
}

// BuildPlan scans dir and selects the files to publish.
func BuildPlan(dir, version string) (*Plan, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("release directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("release directory %s: %w", dir, errNotDirectory)
	}

	plan := &Plan{Version: version, Dir: dir}

	for _, name := range ManifestFiles {
		if _, err = os.Stat(filepath.Join(dir, name)); err != nil {
			plan.MissingManifests = append(plan.MissingManifests, name)
			continue
		}

		plan.Manifests = append(plan.Manifests, name)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read release directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	taken := make(map[release.Platform]string, len(release.PlatformPatterns()))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		pattern, ok := release.MatchPattern(entry.Name())
		if !ok {
			continue
		}

		if first, seen := taken[pattern.Platform]; seen {
			plan.Duplicates = append(plan.Duplicates, SkippedFile{
				FileName: entry.Name(),
				Reason:   fmt.Sprintf("platform %s already provided by %s", pattern.Platform, first),
			})

			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}

		taken[pattern.Platform] = entry.Name()

		plan.Artifacts = append(plan.Artifacts, PlannedArtifact{
			Platform: pattern.Platform,
			Archive:  pattern.Archive,
			FileName: entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
			Size:     fileInfo.Size(),
		})
	}

	return plan, nil
}
