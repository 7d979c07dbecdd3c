package telemetry_test

import (
	"context"
	"testing"

	"github.com/melih/lighthouse-deploy/internal/telemetry"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("LIGHTHOUSE_OTEL_ENDPOINT", "")
	t.Setenv("LIGHTHOUSE_OTEL_ENABLED", "")

	shutdown, err := telemetry.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	t.Setenv("LIGHTHOUSE_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("LIGHTHOUSE_OTEL_ENABLED", "false")

	shutdown, err := telemetry.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_ProviderWithEndpoint(t *testing.T) {
	// Non-routable, nothing is exported.
	t.Setenv("LIGHTHOUSE_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("LIGHTHOUSE_OTEL_ENABLED", "")

	shutdown, err := telemetry.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := telemetry.Tracer().Start(context.Background(), "render")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing against an unreachable endpoint may fail; it must not hang.
	_ = shutdown(ctx)
}
