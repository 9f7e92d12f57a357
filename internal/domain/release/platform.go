package release

import (
	"regexp"
	"runtime"
)

// Platform is the canonical {os}-{arch} key that routes an artifact to an update channel.
type Platform string

// Supported platforms.
const (
	PlatformDarwinARM64 Platform = "darwin-arm64"
	PlatformDarwinX64   Platform = "darwin-x64"
	PlatformWin32X64    Platform = "win32-x64"
	PlatformWin32ARM64  Platform = "win32-arm64"
	PlatformLinuxX64    Platform = "linux-x64"
	PlatformLinuxARM64  Platform = "linux-arm64"
)

// ArchiveType describes how an artifact is installed on the client.
type ArchiveType string

// Archive types produced by the desktop build.
const (
	ArchiveZip      ArchiveType = "zip"
	ArchiveExe      ArchiveType = "exe"
	ArchiveAppImage ArchiveType = "AppImage"
)

// PlatformPattern maps file names matching Rule to a platform.
type PlatformPattern struct {
	// Rule matches the artifact file name.
	Rule *regexp.Regexp
	// Platform is assigned on match.
	Platform Platform
	// Archive is the artifact's archive type.
	Archive ArchiveType
}

// platformPatterns is evaluated top to bottom; architecture-qualified rules
// precede the generic fallbacks they would otherwise shadow.
//
//nolint:gochecknoglobals // Immutable lookup table.
var platformPatterns = []PlatformPattern{
	{Rule: regexp.MustCompile(`-mac-arm64\.zip$`), Platform: PlatformDarwinARM64, Archive: ArchiveZip},
	{Rule: regexp.MustCompile(`-mac-x64\.zip$`), Platform: PlatformDarwinX64, Archive: ArchiveZip},
	{Rule: regexp.MustCompile(`-arm64\.exe$`), Platform: PlatformWin32ARM64, Archive: ArchiveExe},
	{Rule: regexp.MustCompile(` Setup .*\.exe$`), Platform: PlatformWin32X64, Archive: ArchiveExe},
	{Rule: regexp.MustCompile(`-arm64\.AppImage$`), Platform: PlatformLinuxARM64, Archive: ArchiveAppImage},
	{Rule: regexp.MustCompile(`-x86_64\.AppImage$`), Platform: PlatformLinuxX64, Archive: ArchiveAppImage},
	{Rule: regexp.MustCompile(`\.AppImage$`), Platform: PlatformLinuxX64, Archive: ArchiveAppImage},
}

// PlatformPatterns returns a copy of the ordered pattern table.
func PlatformPatterns() []PlatformPattern {
	return append([]PlatformPattern(nil), platformPatterns...)
}

// MatchPattern returns the first pattern whose rule matches fileName.
// The boolean is false when the file is not a release artifact.
func MatchPattern(fileName string) (PlatformPattern, bool) {
	for _, p := range platformPatterns {
		if p.Rule.MatchString(fileName) {
			return p, true
		}
	}

	return PlatformPattern{}, false
}

// DetectPlatform resolves the platform of a build output file name.
// It returns false when no pattern matches, meaning the file should be skipped.
func DetectPlatform(fileName string) (Platform, bool) {
	p, ok := MatchPattern(fileName)

	return p.Platform, ok
}

// PlatformFor maps Go's GOOS/GOARCH pair onto a Platform key.
// It returns false for combinations the desktop build does not ship.
func PlatformFor(goos, goarch string) (Platform, bool) {
	var osKey, arch string

	switch goos {
	case "darwin", "linux":
		osKey = goos
	case "windows":
		osKey = "win32"
	default:
		return "", false
	}

	switch goarch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "arm64"
	default:
		return "", false
	}

	p := Platform(osKey + "-" + arch)

	return p, p.Valid()
}

// CurrentPlatform returns the Platform of the running process.
func CurrentPlatform() (Platform, bool) {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformDarwinARM64, PlatformDarwinX64, PlatformWin32X64,
		PlatformWin32ARM64, PlatformLinuxX64, PlatformLinuxARM64:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}
