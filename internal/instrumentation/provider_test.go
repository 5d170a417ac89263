package instrumentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName: "test-service",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.PrometheusHandler() != nil {
		t.Error("disabled provider should not expose a scrape handler")
	}
	if provider.Tracer("x") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}

	// no-op recorder must not panic
	provider.Metrics().RecordGraphOperation(context.Background(), OperationList, "inbox", StatusSuccess, time.Millisecond)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TraceSamplingRate: 2,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Error("expected provider to be enabled")
	}

	m := provider.Metrics()
	m.RecordHTTPRequest(ctx, http.MethodGet, "/get_mail", 200, 20*time.Millisecond)
	m.RecordTokenRefresh(ctx, RefreshResultSuccess)
	m.RecordExtraction(ctx, ExtractionMiss)

	handler := provider.PrometheusHandler()
	if handler == nil {
		t.Fatal("expected prometheus handler")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"http_requests_total", "oauth_token_refresh_total", "extractions_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestNewProvider_TwoProvidersDoNotCollide(t *testing.T) {
	ctx := context.Background()
	cfg := Config{ServiceName: "a", Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone}

	p1, err := NewProvider(ctx, cfg)
	if err != nil {
		t.Fatalf("first provider: %v", err)
	}
	defer func() { _ = p1.Shutdown(ctx) }()

	p2, err := NewProvider(ctx, cfg)
	if err != nil {
		t.Fatalf("second provider: %v", err)
	}
	defer func() { _ = p2.Shutdown(ctx) }()
}

func TestNewProvider_StdoutTracing(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.Tracer("test") == nil {
		t.Error("expected tracer")
	}
}
