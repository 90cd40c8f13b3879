package tenancy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/democrm/internal/domain/tenant"
)

// TenantFailure records one tenant's failure during a sweep.
type TenantFailure struct {
	TenantID  string
	Partition Partition
	Err       error
}

func (f TenantFailure) Error() string {
	return fmt.Sprintf("tenant %s (%s): %v", f.TenantID, f.Partition, f.Err)
}

func (f TenantFailure) Unwrap() error { return f.Err }

// Action is a unit of work run once per tenant, bound to its partition.
type Action func(ctx context.Context, t tenant.Tenant) error

// Sweeper runs actions across every tenant partition.
type Sweeper struct {
	dir    Directory
	binder *Binder
	log    *slog.Logger
	obs    Observer
}

// NewSweeper creates a Sweeper. obs may be nil.
func NewSweeper(dir Directory, binder *Binder, log *slog.Logger, obs Observer) *Sweeper {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Sweeper{dir: dir, binder: binder, log: log, obs: obs}
}

// ForEachTenant runs action for every tenant sequentially, each under its
// own partition. A failing or panicking tenant is recorded and the sweep
// moves on. The returned error is non-nil only when the tenant list cannot
// be read or ctx is cancelled; failures collected up to that point are
// still returned.
func (s *Sweeper) ForEachTenant(ctx context.Context, action Action) ([]TenantFailure, error) {
	tenants, err := s.dir.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	var failures []TenantFailure
	for i := range tenants {
		if err := ctx.Err(); err != nil {
			s.obs.SweepCompleted(ctx, i, len(failures))
			return failures, fmt.Errorf("sweep stopped after %d of %d tenants: %w", i, len(tenants), err)
		}

		t := tenants[i]
		part := Partition(t.SchemaName)
		if err := s.runOne(ctx, part, t, action); err != nil {
			s.log.Error("tenant sweep action failed", "tenant_id", t.ID, "partition", part, "error", err)
			failures = append(failures, TenantFailure{TenantID: t.ID, Partition: part, Err: err})
		}
	}

	s.obs.SweepCompleted(ctx, len(tenants), len(failures))
	return failures, nil
}

func (s *Sweeper) runOne(ctx context.Context, part Partition, t tenant.Tenant, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.binder.WithPartition(ctx, part, func(ctx context.Context) error {
		return action(ContextWithTenant(ctx, &t), t)
	})
}
