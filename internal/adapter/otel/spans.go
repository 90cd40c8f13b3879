package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Strob0t/democrm"

// StartProvisionSpan starts a span for provisioning a company.
func StartProvisionSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.provision",
		trace.WithAttributes(attribute.String("tenant.name", name)),
	)
}

// StartSweepSpan starts a span for a cross-tenant sweep.
func StartSweepSpan(ctx context.Context, job string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.sweep",
		trace.WithAttributes(attribute.String("sweep.job", job)),
	)
}

// StartTenantActionSpan starts a span for one tenant inside a sweep.
func StartTenantActionSpan(ctx context.Context, partition string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.action",
		trace.WithAttributes(attribute.String("tenant.partition", partition)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
