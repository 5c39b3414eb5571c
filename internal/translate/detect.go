package translate

import (
	"log/slog"
	"net/url"
	"strings"
)

const (
	compositeParam = "im"
	dotPrefix      = "im."
)

// legacy single-word names
var namedParams = map[string]struct{}{
	"imwidth":   {},
	"imheight":  {},
	"impolicy":  {},
	"imquality": {},
	"imformat":  {},
	"imcrop":    {},
	"imrotate":  {},
	"imdensity": {},
	"imbypass":  {},
	"imcolor":   {},
}

func isNamedParam(name string) bool {
	_, ok := namedParams[name]
	return ok
}

// isLegacyParam reports whether a query name belongs to the legacy dialect.
func isLegacyParam(name string) bool {
	return name == compositeParam || strings.HasPrefix(name, dotPrefix) || isNamedParam(name)
}

// Detect reports whether u carries legacy dialect parameters. Signals are
// checked in order: composite im, im.* names, then flat names.
func Detect(u *url.URL, log *slog.Logger) bool {
	if u == nil || u.RawQuery == "" {
		return false
	}
	pairs := queryPairs(u.RawQuery)

	signal := ""
	switch {
	case hasPair(pairs, func(n string) bool { return n == compositeParam }):
		signal = "composite"
	case hasPair(pairs, func(n string) bool { return strings.HasPrefix(n, dotPrefix) }):
		signal = "dot"
	case hasPair(pairs, isNamedParam):
		signal = "named"
	}
	if signal == "" {
		return false
	}
	if log != nil {
		log.Debug("legacy image dialect detected", "signal", signal, "path", u.Path)
	}
	return true
}

func hasPair(pairs []queryPair, match func(string) bool) bool {
	for _, p := range pairs {
		if match(p.name) {
			return true
		}
	}
	return false
}

type queryPair struct {
	name  string
	value string
}

// queryPairs splits a raw query on '&' keeping request order. Only '&'
// separates pairs so composite values may contain ';'. Pairs whose escapes
// cannot be decoded are dropped.
func queryPairs(raw string) []queryPair {
	var out []queryPair
	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err != nil || name == "" {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out = append(out, queryPair{name: name, value: value})
	}
	return out
}
