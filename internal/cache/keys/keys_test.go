package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestNormalize_AbsoluteURLReducesToPath(t *testing.T) {
	a := Normalize("https://img.example.com/a/b.jpg?x=1")
	b := Normalize("http://other-host:8080/a/b.jpg#frag")
	c := Normalize("/a/b.jpg")
	if a != c || b != c {
		t.Fatalf("keys differ: a=%q b=%q c=%q", a, b, c)
	}
	if c != "/a/b.jpg" {
		t.Fatalf("got %q want /a/b.jpg", c)
	}
}

func TestNormalize_LeadingSlashes(t *testing.T) {
	cases := map[string]string{
		"a.jpg":          "/a.jpg",
		"///a.jpg":       "/a.jpg",
		"//a/b.jpg?q=1":  "/a/b.jpg",
		"  /a.jpg  ":     "/a.jpg",
		"":               "",
		"https://h.test": "/",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNormalize_EscapingIsCanonical(t *testing.T) {
	want := "/photos/a%20b.jpg"
	for _, in := range []string{
		"/photos/a%20b.jpg",
		"/photos/a b.jpg",
		"photos/a%20b.jpg?w=1",
		"https://cdn.example.com/photos/a%20b.jpg?x=1",
		"https://cdn.example.com/photos/a b.jpg",
		"/photos/%61%20b.jpg",
	} {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q)=%q want %q", in, got, want)
		}
	}
	if got := Normalize("/bad%zz.jpg"); got != "/bad%zz.jpg" {
		t.Fatalf("invalid escape rewritten: %q", got)
	}
}

func TestNormalize_UnparseableFallsBackToRaw(t *testing.T) {
	raw := "http://[::1/broken"
	if got := Normalize(raw); got != raw {
		t.Fatalf("got %q want raw key %q", got, raw)
	}
}

func TestShared_DeterministicAndSafe(t *testing.T) {
	k1 := Shared("/photos/Göteborg summer.jpg")
	k2 := Shared("/photos/Göteborg summer.jpg")
	if k1 != k2 {
		t.Fatalf("determinism failed: %s vs %s", k1, k2)
	}
	for _, r := range k1 {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k1)
		}
	}
	if !strings.HasPrefix(k1, "dim:v1:/photos/") {
		t.Fatalf("unexpected prefix: %s", k1)
	}
	if !regexp.MustCompile(`:h=[0-9a-f]{16}$`).MatchString(k1) {
		t.Fatalf("missing hash suffix: %s", k1)
	}
}

func TestShared_LongPathsStayDistinct(t *testing.T) {
	base := "/" + strings.Repeat("x", 300)
	if Shared(base+"a.jpg") == Shared(base+"b.jpg") {
		t.Fatalf("truncated keys must still differ by hash")
	}
}
