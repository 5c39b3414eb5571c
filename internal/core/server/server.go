// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/config"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/health"
	middleware "github.com/mohammed-shakir/akamai-compat-edge/internal/core/middleware"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/router"
)

// Deps are the collaborators the routes dispatch to. A nil Metrics serves
// the default registry; a nil Ready always reports ready.
type Deps struct {
	Translator router.Translator
	Upstream   router.Upstream
	Metrics    http.Handler
	Ready      health.ReadinessReporter
}

// NewHandler builds the route table.
func NewHandler(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/translate", router.Translate(d.Translator))
	r.Get("/dimensions/*", router.Dimensions(logger, d.Upstream))

	img := router.Image(logger, d.Translator, d.Upstream)
	r.Get("/*", img)
	r.Head("/*", img)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http listen: %w", err)
	}
}
