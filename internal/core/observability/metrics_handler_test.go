package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/translate", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "app_build_info") || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestInit_CustomRegistryExposesDomainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
	Init(reg) // second registration must be tolerated

	ObserveTranslation("translated", 2)
	IncDimensionHit("memory")
	IncDimensionMiss("redis")
	IncDimensionEviction("capacity")
	ObserveDimensionStoreOp("get", errors.New("down"), 0.001)
	ObserveInvalidation("update", 3, nil)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`legacy_translations_total{outcome="translated"}`,
		`legacy_skipped_tokens_total`,
		`dimension_cache_results_total{outcome="hit",tier="memory"}`,
		`dimension_cache_results_total{outcome="miss",tier="redis"}`,
		`dimension_cache_evictions_total{reason="capacity"}`,
		`dimension_store_op_total{op="get",result="error"}`,
		`invalidation_events_total{op="update",result="ok"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
