// Package executor talks to the resizer backend: it proxies rewritten image
// requests and fetches image metadata for the dimension cache.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/dimensions"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/keys"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
)

const upstreamName = "resizer"

// ErrNoDimensions is returned when the backend metadata lacks a usable size.
var ErrNoDimensions = errors.New("metadata has no dimensions")

type Executor struct {
	logger     *slog.Logger
	client     *http.Client
	resizerURL *url.URL
	dims       *dimensions.Tiered
	startNow   func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, resizer string, dims *dimensions.Tiered) (*Executor, error) {
	u, err := url.Parse(resizer)
	if err != nil {
		return nil, fmt.Errorf("parse resizer url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("resizer url %q must be absolute", resizer)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if dims == nil {
		dims = dimensions.NewTiered(dimensions.New(), nil, 0, logger)
	}
	return &Executor{
		logger:     logger,
		client:     client,
		resizerURL: u,
		dims:       dims,
		startNow:   time.Now,
	}, nil
}

// upstream maps an incoming path and query onto the resizer base URL.
func (e *Executor) upstream(target *url.URL) *url.URL {
	out := *e.resizerURL
	out.Path = strings.TrimRight(e.resizerURL.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
	out.RawPath = ""
	out.RawQuery = target.RawQuery
	return &out
}

// Forward proxies r to the resizer using target's path and query and
// streams the response back.
func (e *Executor) Forward(w http.ResponseWriter, r *http.Request, target *url.URL) {
	dst := e.upstream(target)
	start := e.startNow()

	rt := http.RoundTripper(http.DefaultTransport)
	if e.client.Transport != nil {
		rt = e.client.Transport
	}

	proxy := &httputil.ReverseProxy{
		Transport: rt,

		Rewrite: func(p *httputil.ProxyRequest) {
			p.Out.URL = dst
			p.Out.Host = dst.Host
			p.SetXForwarded()
		},

		ModifyResponse: func(resp *http.Response) error {
			dur := time.Since(start)
			e.logger.DebugContext(resp.Request.Context(), "forward done",
				"status", resp.StatusCode,
				"duration", dur.String())
			observability.ObserveUpstreamLatency(upstreamName, dur.Seconds())
			return nil
		},

		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			e.logger.ErrorContext(r.Context(), "reverse proxy error", "err", err)
			http.Error(w, "upstream proxy error: "+err.Error(), http.StatusBadGateway)
		},
	}

	e.logger.DebugContext(r.Context(), "forward image request", "upstream", dst.String())
	proxy.ServeHTTP(w, r)
}

type metadata struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Original *struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	} `json:"original"`
}

// Dimensions returns the source dimensions of the image at path, from the
// dimension cache when possible and otherwise from the resizer's JSON
// metadata output.
func (e *Executor) Dimensions(ctx context.Context, path string) (dimensions.Record, error) {
	path = keys.Normalize(path)
	if rec, ok := e.dims.Lookup(ctx, path); ok {
		return rec, nil
	}

	rec, err := e.fetchMetadata(ctx, path)
	if err != nil {
		return dimensions.Record{}, err
	}
	e.dims.Store(ctx, path, rec)
	if cached, ok := e.dims.Local().Get(path); ok {
		return cached, nil
	}
	return rec, nil
}

func (e *Executor) fetchMetadata(ctx context.Context, path string) (dimensions.Record, error) {
	// cache keys are escaped; the upstream URL escapes the decoded form again
	raw, err := url.PathUnescape(path)
	if err != nil {
		raw = path
	}
	u := e.upstream(&url.URL{Path: raw, RawQuery: url.Values{"format": {"json"}}.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return dimensions.Record{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return dimensions.Record{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(upstreamName, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return dimensions.Record{}, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	var md metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&md); err != nil {
		return dimensions.Record{}, fmt.Errorf("decode metadata: %w", err)
	}

	rec := dimensions.Record{Width: md.Width, Height: md.Height, Format: md.Format}
	// the source size wins over the size of any transformed output
	if o := md.Original; o != nil && o.Width > 0 && o.Height > 0 {
		rec.Width, rec.Height = o.Width, o.Height
		if o.Format != "" {
			rec.Format = o.Format
		}
	}
	rec.Format = strings.TrimPrefix(strings.ToLower(rec.Format), "image/")
	if rec.Width <= 0 || rec.Height <= 0 {
		return dimensions.Record{}, fmt.Errorf("%s: %w", path, ErrNoDimensions)
	}
	rec.AspectRatio = float64(rec.Width) / float64(rec.Height)
	return rec, nil
}
