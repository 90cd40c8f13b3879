package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
)

// Resolver maps a request hint to a partition using the Directory.
type Resolver struct {
	dir Directory
	obs Observer
}

// NewResolver creates a Resolver. obs may be nil.
func NewResolver(dir Directory, obs Observer) *Resolver {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Resolver{dir: dir, obs: obs}
}

// Resolve returns the partition for hint. An empty hint resolves to Public.
// A hint matching no domain fails with ErrTenantNotFound.
func (r *Resolver) Resolve(ctx context.Context, hint string) (Partition, error) {
	t, err := r.ResolveTenant(ctx, hint)
	if err != nil {
		return "", err
	}
	if t == nil {
		return Public, nil
	}
	return Partition(t.SchemaName), nil
}

// ResolveTenant is Resolve returning the full tenant record, nil for Public.
func (r *Resolver) ResolveTenant(ctx context.Context, hint string) (*tenant.Tenant, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		r.obs.Resolved(ctx, OutcomePublic)
		return nil, nil
	}

	memo := memoFrom(ctx)
	if t, ok := memo.get(hint); ok {
		return t, nil
	}

	t, err := r.dir.TenantByHostnamePrefix(ctx, hint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.obs.Resolved(ctx, OutcomeNotFound)
			return nil, fmt.Errorf("resolve %q: %w", hint, ErrTenantNotFound)
		}
		r.obs.Resolved(ctx, OutcomeError)
		return nil, fmt.Errorf("resolve %q: %w", hint, err)
	}

	memo.put(hint, t)
	r.obs.Resolved(ctx, OutcomeTenant)
	return t, nil
}

type memoKey struct{}

// resolveMemo caches resolutions for the lifetime of one request.
type resolveMemo struct {
	mu      sync.Mutex
	tenants map[string]*tenant.Tenant
}

// WithResolveMemo returns a context in which repeated resolutions of the
// same hint hit the directory once. Attach it per request, never to a
// long-lived context.
func WithResolveMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoKey{}, &resolveMemo{tenants: make(map[string]*tenant.Tenant)})
}

func memoFrom(ctx context.Context) *resolveMemo {
	m, _ := ctx.Value(memoKey{}).(*resolveMemo)
	return m
}

func (m *resolveMemo) get(hint string) (*tenant.Tenant, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[strings.ToLower(hint)]
	return t, ok
}

func (m *resolveMemo) put(hint string, t *tenant.Tenant) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.tenants[strings.ToLower(hint)] = t
	m.mu.Unlock()
}
