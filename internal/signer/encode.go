package signer

import "strings"

const upperHex = "0123456789ABCDEF"

// EncodePath percent-encodes every segment of path and keeps the "/" separators.
func EncodePath(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = EncodeSegment(segment)
	}

	return strings.Join(segments, "/")
}

// EncodeKey encodes an object key segment by segment without a leading slash.
func EncodeKey(key string) string {
	return strings.TrimPrefix(EncodePath(strings.TrimPrefix(key, "/")), "/")
}

// EncodeSegment escapes everything except RFC 3986 unreserved characters,
// which is how S3 canonicalizes a path segment.
func EncodeSegment(segment string) string {
	var b strings.Builder

	b.Grow(len(segment))

	for i := range len(segment) {
		c := segment[i]
		if isUnreserved(c) {
			b.WriteByte(c)

			continue
		}

		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}

	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	default:
		return false
	}
}
