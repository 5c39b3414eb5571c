// Package observability holds the prometheus collectors for the edge
// service and small helpers to record into them.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of resizer backend calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	translationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacy_translations_total",
			Help: "Legacy parameter translations by outcome.",
		},
		[]string{"outcome"},
	)

	skippedTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legacy_skipped_tokens_total",
			Help: "Malformed legacy parameter tokens skipped while parsing.",
		},
	)

	dimensionCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dimension_cache_results_total",
			Help: "Dimension cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	dimensionCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dimension_cache_evictions_total",
			Help: "Dimension cache entries removed by reason.",
		},
		[]string{"reason"},
	)

	dimensionStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dimension_store_op_total",
			Help: "Shared dimension store operations by result.",
		},
		[]string{"op", "result"},
	)

	dimensionStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dimension_store_op_duration_seconds",
			Help:    "Shared dimension store operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Image invalidation events by op and result.",
		},
		[]string{"op", "result"},
	)

	invalidatedPaths = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_paths_total",
			Help: "Image paths purged from the dimension caches.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		translationsTotal, skippedTokensTotal,
		dimensionCacheResults, dimensionCacheEvictions,
		dimensionStoreOps, dimensionStoreDuration,
		invalidationEvents, invalidatedPaths,
	}
}

// Init registers the collectors on reg in addition to the default registry.
// Build info is left to the registry owner.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveTranslation(outcome string, skipped int) {
	translationsTotal.WithLabelValues(outcome).Inc()
	if skipped > 0 {
		skippedTokensTotal.Add(float64(skipped))
	}
}

func IncDimensionHit(tier string)  { dimensionCacheResults.WithLabelValues(tier, "hit").Inc() }
func IncDimensionMiss(tier string) { dimensionCacheResults.WithLabelValues(tier, "miss").Inc() }

func IncDimensionEviction(reason string) {
	dimensionCacheEvictions.WithLabelValues(reason).Inc()
}

func ObserveDimensionStoreOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	dimensionStoreOps.WithLabelValues(op, result).Inc()
	dimensionStoreDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveInvalidation(op string, paths int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	invalidationEvents.WithLabelValues(op, result).Inc()
	if paths > 0 {
		invalidatedPaths.Add(float64(paths))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
