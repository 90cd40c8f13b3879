package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/democrm/internal/tenancy"
)

const meterName = "github.com/Strob0t/democrm"

// Metrics holds the tenancy metric instruments. It implements
// tenancy.Observer.
type Metrics struct {
	Resolutions    metric.Int64Counter
	BindFailures   metric.Int64Counter
	SweepTenants   metric.Int64Counter
	SweepFailures  metric.Int64Counter
	TenantsCreated metric.Int64Counter
	UsersSwept     metric.Int64Counter
}

var _ tenancy.Observer = (*Metrics)(nil)

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Resolutions, err = meter.Int64Counter("democrm.tenancy.resolutions",
		metric.WithDescription("Tenant hint resolutions by outcome"))
	if err != nil {
		return nil, err
	}

	m.BindFailures, err = meter.Int64Counter("democrm.tenancy.bind_failures",
		metric.WithDescription("Partition binding failures by stage"))
	if err != nil {
		return nil, err
	}

	m.SweepTenants, err = meter.Int64Counter("democrm.sweep.tenants",
		metric.WithDescription("Tenants visited by sweeps"))
	if err != nil {
		return nil, err
	}

	m.SweepFailures, err = meter.Int64Counter("democrm.sweep.failures",
		metric.WithDescription("Tenant actions that failed during sweeps"))
	if err != nil {
		return nil, err
	}

	m.TenantsCreated, err = meter.Int64Counter("democrm.tenants.provisioned",
		metric.WithDescription("Companies provisioned"))
	if err != nil {
		return nil, err
	}

	m.UsersSwept, err = meter.Int64Counter("democrm.users.deleted",
		metric.WithDescription("Users removed by the deletion sweep"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) Resolved(ctx context.Context, outcome string) {
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) BindFailed(ctx context.Context, p tenancy.Partition, stage string) {
	m.BindFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("public", p.IsPublic()),
	))
}

func (m *Metrics) SweepCompleted(ctx context.Context, total, failed int) {
	m.SweepTenants.Add(ctx, int64(total))
	m.SweepFailures.Add(ctx, int64(failed))
}
