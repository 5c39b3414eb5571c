package translate

import (
	"log/slog"
	"net/url"
	"strings"
)

// ParseResult holds the recognised parameters in request order and the
// number of malformed tokens that were skipped.
type ParseResult struct {
	Params  []Param
	Skipped int
}

// Parse collects legacy parameters from u. A malformed token is skipped and
// parsing continues with the next one.
func Parse(u *url.URL, log *slog.Logger) ParseResult {
	var res ParseResult
	if u == nil {
		return res
	}
	for _, p := range queryPairs(u.RawQuery) {
		switch {
		case p.name == compositeParam:
			parseComposite(p.value, &res)
		case strings.HasPrefix(p.name, dotPrefix):
			name := strings.ToLower(strings.TrimPrefix(p.name, dotPrefix))
			res.add(name, p.value, SourceDot)
		case isNamedParam(p.name):
			res.add(p.name, p.value, SourceNamed)
		}
	}
	if res.Skipped > 0 && log != nil {
		log.Debug("skipped malformed legacy tokens", "skipped", res.Skipped, "kept", len(res.Params))
	}
	return res
}

func (r *ParseResult) add(name, value string, src Source) {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		r.Skipped++
		return
	}
	r.Params = append(r.Params, Param{Name: name, Value: Infer(value), Source: src})
}

// parseComposite handles the im= mini-language. Segments are separated by
// ';' and each segment is one of
//
//	Resize,width=250,height=125
//	resize=width:100,height:200
//	quality=80 | quality:80 | width=10,height=20
//	Grayscale
func parseComposite(value string, r *ParseResult) {
	for seg := range strings.SplitSeq(value, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		transform, args := splitSegment(seg)
		transform = strings.ToLower(strings.TrimSpace(transform))

		for tok := range strings.SplitSeq(args, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			k, v, ok := splitPair(tok)
			if !ok {
				if transform == "" && isWord(tok) {
					r.Params = append(r.Params, Param{Name: strings.ToLower(tok), Value: Bool(true), Source: SourceShort})
				} else {
					r.Skipped++
				}
				continue
			}
			name := strings.ToLower(k)
			if transform != "" {
				name = transform + "." + name
			}
			r.add(name, v, SourceShort)
		}
	}
}

// splitSegment separates a transform name from its argument list. An empty
// transform means the segment is a list of plain pairs.
func splitSegment(seg string) (string, string) {
	eq := strings.IndexByte(seg, '=')
	comma := strings.IndexByte(seg, ',')
	switch {
	case comma >= 0 && (eq < 0 || comma < eq):
		return seg[:comma], seg[comma+1:]
	case eq >= 0:
		head, rest := seg[:eq], seg[eq+1:]
		first, _, _ := strings.Cut(rest, ",")
		if k, _, ok := strings.Cut(first, ":"); ok && isIdent(strings.TrimSpace(k)) {
			return head, rest
		}
	}
	return "", seg
}

func splitPair(tok string) (string, string, bool) {
	i := strings.IndexAny(tok, "=:")
	if i < 0 {
		return "", "", false
	}
	k := strings.TrimSpace(tok[:i])
	v := strings.TrimSpace(tok[i+1:])
	if k == "" {
		return "", "", false
	}
	return k, v, true
}

// isIdent accepts a letter followed by letters or digits.
func isIdent(s string) bool {
	for i, r := range s {
		letter := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

func isWord(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return s != ""
}
