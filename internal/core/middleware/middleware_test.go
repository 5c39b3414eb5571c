package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mylog "github.com/mohammed-shakir/akamai-compat-edge/internal/logger"
)

func TestLogging_PropagatesRequestIDAndPath(t *testing.T) {
	var buf bytes.Buffer
	zl := mylog.Build(mylog.Config{Level: "debug"}, &buf)
	log := mylog.NewSlog(&zl)

	var seen string
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/img/a.jpg?imwidth=100", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "abc" {
		t.Fatalf("request id in context=%q want abc", seen)
	}
	if rr.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("response header not echoed")
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("bad log line %q: %v", buf.String(), err)
	}
	if line["image_path"] != "/img/a.jpg" || line["request_id"] != "abc" || line["component"] != "http" {
		t.Fatalf("unexpected log fields: %v", line)
	}
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	zl := mylog.Build(mylog.Config{Level: "error"}, &bytes.Buffer{})
	h := Logging(mylog.NewSlog(&zl))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/a.jpg", nil))
	if len(rr.Header().Get("X-Request-ID")) != 16 {
		t.Fatalf("generated id=%q", rr.Header().Get("X-Request-ID"))
	}
}

func TestRecover_Returns500AndLogs(t *testing.T) {
	var buf bytes.Buffer
	zl := mylog.Build(mylog.Config{Level: "info"}, &buf)

	h := Recover(mylog.NewSlog(&zl))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/a.jpg", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/a.jpg", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status=%d called=%v", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin")
	}
}
