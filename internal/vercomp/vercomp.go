package vercomp

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Compare results.
const (
	Less    = -1
	Equal   = 0
	Greater = 1
)

// Compare orders two version strings and returns Less, Equal or Greater.
//
// A single leading non-digit marker (for example "v") is stripped, the rest is
// split on "." and every segment is read as a non-negative integer. Segments
// that are missing or not numeric count as zero, so "1.2" equals "1.2.0".
func Compare(a, b string) int {
	left, right := Parse(a), Parse(b)

	for i := range max(len(left), len(right)) {
		l, r := segment(left, i), segment(right, i)

		switch {
		case l > r:
			return Greater
		case l < r:
			return Less
		}
	}

	return Equal
}

// Newer reports whether candidate orders strictly after current.
func Newer(candidate, current string) bool {
	return Compare(candidate, current) == Greater
}

// Parse returns the numeric segments of a version string.
func Parse(version string) []uint64 {
	version = stripMarker(strings.TrimSpace(version))

	parts := strings.Split(version, ".")
	segments := make([]uint64, len(parts))

	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}

		segments[i] = n
	}

	return segments
}

func stripMarker(version string) string {
	r, size := utf8.DecodeRuneInString(version)
	if size == 0 || unicode.IsDigit(r) {
		return version
	}

	return version[size:]
}

func segment(segments []uint64, i int) uint64 {
	if i < len(segments) {
		return segments[i]
	}

	return 0
}
