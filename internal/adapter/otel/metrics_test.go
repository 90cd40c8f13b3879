package otel

import (
	"context"
	"testing"

	"github.com/Strob0t/democrm/internal/tenancy"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	// The global no-op provider accepts measurements without a backend.
	ctx := context.Background()
	m.Resolved(ctx, tenancy.OutcomeTenant)
	m.BindFailed(ctx, "acme_corp", "switch")
	m.SweepCompleted(ctx, 3, 1)
}

func TestEndSpan(t *testing.T) {
	_, span := StartSweepSpan(context.Background(), "deletion")
	EndSpan(span, nil)

	_, span = StartProvisionSpan(context.Background(), "Acme")
	EndSpan(span, context.Canceled)
}
