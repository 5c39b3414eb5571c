package translate

import (
	"net/url"
	"strings"
)

// Rewrite returns a copy of u with every legacy parameter removed and opts
// appended as ordinary query parameters in name order. Non-legacy
// parameters keep their original order and encoding.
func Rewrite(u *url.URL, opts Options) *url.URL {
	if u == nil {
		return nil
	}
	out := *u
	if u.User != nil {
		user := *u.User
		out.User = &user
	}

	var kept []string
	for part := range strings.SplitSeq(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		k, _, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err == nil && isLegacyParam(name) {
			continue
		}
		kept = append(kept, part)
	}

	for _, n := range opts.Names() {
		s := opts[n].String()
		if s == "" {
			continue
		}
		kept = append(kept, url.QueryEscape(string(n))+"="+url.QueryEscape(s))
	}
	out.RawQuery = strings.Join(kept, "&")
	out.ForceQuery = false
	return &out
}
