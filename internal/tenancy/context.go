package tenancy

import (
	"context"

	"github.com/Strob0t/democrm/internal/domain/tenant"
)

type scopeKey struct{}

type tenantKey struct{}

// scope is the per-unit-of-work binding. conn is nil when the partition
// was attached without a store connection.
type scope struct {
	partition Partition
	conn      Conn
}

// ContextWithPartition attaches p to ctx without binding a connection.
func ContextWithPartition(ctx context.Context, p Partition) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{partition: p})
}

func contextWithScope(ctx context.Context, s scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) (scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(scope)
	return s, ok
}

// PartitionFromContext returns the partition active in ctx.
func PartitionFromContext(ctx context.Context) (Partition, bool) {
	s, ok := scopeFrom(ctx)
	if !ok || s.partition == "" {
		return "", false
	}
	return s.partition, true
}

// CurrentOrPublic returns the active partition, or Public when none is bound.
func CurrentOrPublic(ctx context.Context) Partition {
	if p, ok := PartitionFromContext(ctx); ok {
		return p
	}
	return Public
}

// ConnFromContext returns the store connection bound by Binder.WithPartition.
func ConnFromContext(ctx context.Context) (Conn, bool) {
	s, ok := scopeFrom(ctx)
	if !ok || s.conn == nil {
		return nil, false
	}
	return s.conn, true
}

// ContextWithTenant attaches the resolved tenant record to ctx.
func ContextWithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFromContext returns the resolved tenant, nil under Public.
func TenantFromContext(ctx context.Context) *tenant.Tenant {
	t, _ := ctx.Value(tenantKey{}).(*tenant.Tenant)
	return t
}
