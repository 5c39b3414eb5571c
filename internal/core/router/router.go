// Package router holds the HTTP handlers that translate legacy image URLs
// and hand them to the resizer.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/dimensions"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/executor"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/formats"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/translate"
)

const autoFormat = "auto"

// Translator is satisfied by *translate.Pipeline.
type Translator interface {
	Evaluate(ctx context.Context, u *url.URL) translate.Result
}

// Upstream is the part of the executor the handlers need.
type Upstream interface {
	Forward(w http.ResponseWriter, r *http.Request, target *url.URL)
	Dimensions(ctx context.Context, path string) (dimensions.Record, error)
}

var _ Upstream = (*executor.Executor)(nil)

// Image translates legacy parameters on the incoming URL, resolves
// format=auto for the client, and proxies the rewritten request.
func Image(logger *slog.Logger, tr Translator, up Upstream) http.HandlerFunc {
	return observed("/*", func(w http.ResponseWriter, r *http.Request) {
		res := tr.Evaluate(r.Context(), r.URL)
		if res.Outcome == translate.NotApplicable {
			up.Forward(w, r, r.URL)
			return
		}

		opts := res.Options
		if b, ok := opts.Get(translate.Bypass); ok && b.Kind() == translate.KindBool && b.String() == "true" {
			// serve the original: strip the legacy parameters but apply nothing
			opts = translate.Options{}
		}
		if negotiateFormat(opts, r) {
			w.Header().Add("Vary", "Accept")
		}

		target := translate.Rewrite(r.URL, opts)
		logger.DebugContext(r.Context(), "legacy request translated",
			"outcome", res.Outcome.String(),
			"skipped", res.Skipped,
			"rewritten", target.RequestURI())
		up.Forward(w, r, target)
	})
}

// negotiateFormat replaces format=auto with the best encoding the client
// accepts, or drops it to keep the original. It reports whether the
// response depends on the Accept header.
func negotiateFormat(opts translate.Options, r *http.Request) bool {
	v, ok := opts.Get(translate.Format)
	if !ok || v.String() != autoFormat {
		return false
	}
	if f := formats.Negotiate(r.Header.Get("Accept"), r.Header.Get("User-Agent")); f != "" {
		opts[translate.Format] = translate.String(f)
	} else {
		delete(opts, translate.Format)
	}
	return true
}

type translateResponse struct {
	Outcome   string            `json:"outcome"`
	Options   translate.Options `json:"options"`
	Skipped   int               `json:"skipped"`
	Rewritten string            `json:"rewritten"`
	Error     string            `json:"error,omitempty"`
}

// Translate reports what the pipeline makes of the URL in the url query
// parameter without contacting the resizer.
func Translate(tr Translator) http.HandlerFunc {
	return observed("/translate", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if raw == "" {
			http.Error(w, "missing required parameter: url", http.StatusBadRequest)
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			http.Error(w, "invalid url: "+err.Error(), http.StatusBadRequest)
			return
		}

		res := tr.Evaluate(r.Context(), u)
		out := translateResponse{
			Outcome:   res.Outcome.String(),
			Options:   res.Options,
			Skipped:   res.Skipped,
			Rewritten: translate.Rewrite(u, res.Options).String(),
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// Dimensions returns the cached or freshly fetched size of the image at the
// wildcard path.
func Dimensions(logger *slog.Logger, up Upstream) http.HandlerFunc {
	return observed("/dimensions/*", func(w http.ResponseWriter, r *http.Request) {
		path := chi.URLParam(r, "*")
		if path == "" {
			http.Error(w, "missing image path", http.StatusBadRequest)
			return
		}
		rec, err := up.Dimensions(r.Context(), path)
		switch {
		case errors.Is(err, executor.ErrNoDimensions):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		case err != nil:
			logger.WarnContext(r.Context(), "dimension lookup failed", "path", path, "err", err)
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func observed(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}
