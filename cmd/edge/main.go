package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/dimensions"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/redisstore"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/config"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/executor"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/httpclient"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/server"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/logger"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/metrics"
	"github.com/mohammed-shakir/akamai-compat-edge/internal/translate"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	derivativesFlag := flag.String("derivatives", "", "derivative definitions file (overrides DERIVATIVES_FILE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *derivativesFlag != "" {
		cfg.DerivativesFile = *derivativesFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "edge",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting edge",
		"addr", cfg.Addr,
		"version", Version,
		"resizer", cfg.ResizerURL,
		"advanced_features", cfg.AdvancedFeatures)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := buildPipeline(cfg, appLog)
	if err != nil {
		appLog.Error("failed to load derivatives", "err", err, "file", cfg.DerivativesFile)
		return 1
	}
	appLog.Info("translation pipeline ready", "stages", pipeline.Stages())

	dims, closeDims, err := buildDimensionCache(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("failed to initialize dimension cache", "err", err)
		return 1
	}
	defer closeDims()

	exec, err := executor.New(appLog, httpclient.NewOutbound(), cfg.ResizerURL, dims)
	if err != nil {
		appLog.Error("failed to initialize executor", "err", err)
		return 1
	}

	deps := server.Deps{Translator: pipeline, Upstream: exec}

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Addr: cfg.Metrics.Addr,
			Path: cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		deps.Metrics = p.Handler()
		go serveMetrics(ctx, appLog, cfg.Metrics, p.Handler())
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, dims)
		deps.Ready = consumer
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func buildPipeline(cfg config.Config, log *slog.Logger) (*translate.Pipeline, error) {
	pc := translate.PipelineConfig{
		AdvancedFeatures: cfg.AdvancedFeatures,
		AutoGravity:      cfg.AutoGravity,
		Derivatives:      cfg.Derivatives,
	}
	if cfg.DerivativesFile != "" {
		raw, err := config.LoadDerivatives(cfg.DerivativesFile)
		if err != nil {
			return nil, err
		}
		pc.DerivativeSet = make(map[string]translate.Options, len(raw))
		for name, opts := range raw {
			pc.DerivativeSet[name] = translate.OptionsFromStrings(opts)
		}
		log.Info("derivatives loaded", "count", len(raw))
	}
	return translate.NewPipeline(pc, log), nil
}

func buildDimensionCache(ctx context.Context, cfg config.Config, log *slog.Logger) (*dimensions.Tiered, func(), error) {
	local := dimensions.New(
		dimensions.WithMaxSize(cfg.DimensionCache.MaxSize),
		dimensions.WithTTL(cfg.DimensionCache.TTL),
		dimensions.WithOnEvict(func(_ string, reason dimensions.EvictReason) {
			observability.IncDimensionEviction(string(reason))
		}),
	)

	if cfg.DimensionCache.RedisAddr == "" {
		return dimensions.NewTiered(local, nil, cfg.DimensionCache.OpTimeout, log), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rc, err := redisstore.New(pingCtx, cfg.DimensionCache.RedisAddr,
		redisstore.WithReadTimeout(cfg.DimensionCache.OpTimeout),
		redisstore.WithWriteTimeout(cfg.DimensionCache.OpTimeout),
	)
	if err != nil {
		return nil, nil, err
	}
	log.Info("shared dimension tier enabled", "redis", cfg.DimensionCache.RedisAddr)
	closeFn := func() {
		if err := rc.Close(); err != nil {
			log.Warn("closing shared dimension tier", "err", err)
		}
	}
	return dimensions.NewTiered(local, rc, cfg.DimensionCache.OpTimeout, log), closeFn, nil
}

func serveMetrics(ctx context.Context, log *slog.Logger, mc config.MetricsCfg, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(mc.Path, h)

	srv := &http.Server{
		Addr:              mc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown error", "err", err)
		}
	}()

	log.Info("metrics listening", "addr", mc.Addr, "path", mc.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server exited", "err", err)
	}
}
