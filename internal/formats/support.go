// Package formats answers which browsers can decode which image encodings.
package formats

import (
	"regexp"
	"strconv"
	"strings"
)

// minimum browser versions, from caniuse data
var support = map[string]map[string]float64{
	"webp": {
		"chrome":  32,
		"firefox": 65,
		"safari":  14,
		"edge":    18,
		"opera":   19,
		"samsung": 4,
	},
	"avif": {
		"chrome":  85,
		"firefox": 93,
		"safari":  16.4,
		"edge":    121,
		"opera":   71,
		"samsung": 14,
	},
}

var browserAliases = map[string]string{
	"chrome":           "chrome",
	"google chrome":    "chrome",
	"chromium":         "chrome",
	"crios":            "chrome",
	"firefox":          "firefox",
	"ff":               "firefox",
	"fxios":            "firefox",
	"safari":           "safari",
	"mobile safari":    "safari",
	"ios safari":       "safari",
	"edge":             "edge",
	"msedge":           "edge",
	"edg":              "edge",
	"opera":            "opera",
	"opr":              "opera",
	"samsung":          "samsung",
	"samsunginternet":  "samsung",
	"samsung internet": "samsung",
	"samsungbrowser":   "samsung",
}

// NormalizeBrowser maps a browser name or alias to its table id.
func NormalizeBrowser(name string) (string, bool) {
	id, ok := browserAliases[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

var versionPattern = regexp.MustCompile(`^\d+(\.\d+)?`)

// ParseVersion reads the leading major[.minor] of a version string.
func ParseVersion(v string) (float64, bool) {
	m := versionPattern.FindString(strings.TrimSpace(v))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsSupported reports whether browser at version can decode format. Unknown
// formats, unknown browsers and non-numeric versions are unsupported.
func IsSupported(format, browser, version string) bool {
	byBrowser, ok := support[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return false
	}
	id, ok := NormalizeBrowser(browser)
	if !ok {
		return false
	}
	minVersion, ok := byBrowser[id]
	if !ok {
		return false
	}
	v, ok := ParseVersion(version)
	if !ok {
		return false
	}
	return v >= minVersion
}
