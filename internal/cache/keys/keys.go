// Package keys builds cache keys for image dimension records.
package keys

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const sharedPrefix = "dim:v1"

// Normalize reduces a cache key to the image path it names. Absolute URLs
// lose scheme, host and query so every route to a resource shares one entry.
// Leading slash runs collapse to one and path-like keys gain a leading slash.
// Both forms are re-escaped the same way, so "/a b.jpg" and "/a%20b.jpg"
// name one entry. A key that cannot be parsed as a URL is used as-is.
func Normalize(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	path := key
	if strings.Contains(key, "://") {
		u, err := url.Parse(key)
		if err != nil || u.Host == "" {
			return key
		}
		path = u.EscapedPath()
	} else if i := strings.IndexAny(key, "?#"); i >= 0 {
		path = key[:i]
	}

	return canonicalPath("/" + strings.TrimLeft(path, "/"))
}

// canonicalPath returns p in Go's standard path escaping. An invalid escape
// sequence leaves p unchanged.
func canonicalPath(p string) string {
	raw, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return (&url.URL{Path: raw}).EscapedPath()
}

// Shared returns the key used for a normalized path in the shared redis
// tier. The readable part is truncated and a 64-bit hash of the full path
// keeps long paths distinct.
func Shared(normalized string) string {
	safe := sanitizeForKey(normalized)

	const maxPathLen = 160
	if len(safe) > maxPathLen {
		safe = safe[:maxPathLen]
	}
	return fmt.Sprintf("%s:%s:h=%016x", sharedPrefix, safe, xxhash.Sum64String(normalized))
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := r
		switch {
		case isAlphaNum(r) || r == '/' || r == '.' || r == '_' || r == '-':
		case r == ' ' || r == '\t':
			out = '_'
		default:
			// anything else, including non-ASCII, becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
