package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/identity-adapter/internal/infra/config"
)

func TestAuthMetricsCountsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("NewAuthMetrics returned error: %v", err)
	}

	metrics.ObserveAuthentication("local", "success")
	metrics.ObserveAuthentication("local", "success")
	metrics.ObserveAuthentication("local", "locked_out")
	metrics.ObserveExternalProvisioned("google")

	if got := testutil.ToFloat64(metrics.Authentications.WithLabelValues("local", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %f", got)
	}

	if got := testutil.ToFloat64(metrics.Authentications.WithLabelValues("local", "locked_out")); got != 1 {
		t.Fatalf("expected 1 lockout, got %f", got)
	}

	if got := testutil.ToFloat64(metrics.Provisioned.WithLabelValues("google")); got != 1 {
		t.Fatalf("expected 1 provisioned account, got %f", got)
	}
}

func TestAuthMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("first NewAuthMetrics returned error: %v", err)
	}

	second, err := NewAuthMetrics(registry)
	if err != nil {
		t.Fatalf("second NewAuthMetrics returned error: %v", err)
	}

	first.ObserveAuthentication("external", "success")
	if got := testutil.ToFloat64(second.Authentications.WithLabelValues("external", "success")); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}

func TestAuthMetricsNilIsNoop(t *testing.T) {
	var metrics *AuthMetrics
	metrics.ObserveAuthentication("local", "success")
	metrics.ObserveExternalProvisioned("google")
}

func TestNewTracerProviderDisabledWithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{ServiceName: "identity-adapter"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	if tp.Enabled() {
		t.Fatal("expected tracing to be disabled without an endpoint")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestNewTracerProviderWithEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{
		OTLPEndpoint: "localhost:4318",
		ServiceName:  "identity-adapter",
		SamplingRate: 1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	if !tp.Enabled() {
		t.Fatal("expected tracing to be enabled")
	}

	if tp.Tracer("test") == nil {
		t.Fatal("expected a tracer")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
