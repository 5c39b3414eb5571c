package formats

import (
	"regexp"
	"strconv"
	"strings"
)

// preference order for automatic format selection
var autoOrder = []string{"avif", "webp"}

// checked in order; Chromium derivatives must precede Chrome
var uaPatterns = []struct {
	browser string
	re      *regexp.Regexp
}{
	{"edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
	{"opera", regexp.MustCompile(`OPR/([\d.]+)`)},
	{"samsung", regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
	{"firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
	{"chrome", regexp.MustCompile(`(?:Chrome|CriOS)/([\d.]+)`)},
	{"safari", regexp.MustCompile(`Version/([\d.]+).*Safari/`)},
}

// DetectBrowser extracts a browser id and version from a User-Agent.
func DetectBrowser(userAgent string) (browser, version string, ok bool) {
	for _, p := range uaPatterns {
		if m := p.re.FindStringSubmatch(userAgent); m != nil {
			return p.browser, m[1], true
		}
	}
	return "", "", false
}

// Negotiate picks the best modern encoding for a client: an explicit Accept
// entry wins, otherwise the User-Agent is checked against the support
// table. An empty result means keep the original format.
func Negotiate(accept, userAgent string) string {
	accepted := acceptedImageTypes(accept)
	for _, f := range autoOrder {
		if accepted[f] {
			return f
		}
	}
	browser, version, ok := DetectBrowser(userAgent)
	if !ok {
		return ""
	}
	for _, f := range autoOrder {
		if IsSupported(f, browser, version) {
			return f
		}
	}
	return ""
}

// acceptedImageTypes returns image subtypes listed with a non-zero q value.
func acceptedImageTypes(accept string) map[string]bool {
	out := map[string]bool{}
	for part := range strings.SplitSeq(accept, ",") {
		fields := strings.Split(part, ";")
		mt := strings.ToLower(strings.TrimSpace(fields[0]))
		sub, ok := strings.CutPrefix(mt, "image/")
		if !ok || sub == "*" {
			continue
		}
		q := 1.0
		for _, f := range fields[1:] {
			k, v, found := strings.Cut(strings.TrimSpace(f), "=")
			if found && strings.EqualFold(k, "q") {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		if q > 0 {
			out[sub] = true
		}
	}
	return out
}
