// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/democrm/internal/adapter/otel"
	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/port/database"
	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// CompanyService handles the company directory.
type CompanyService struct {
	store       database.Store
	provisioner *tenancy.Provisioner
	queue       messagequeue.Queue
	metrics     *cfotel.Metrics
	log         *slog.Logger
}

// NewCompanyService creates a new CompanyService. metrics may be nil.
func NewCompanyService(store database.Store, provisioner *tenancy.Provisioner, queue messagequeue.Queue, metrics *cfotel.Metrics, log *slog.Logger) *CompanyService {
	return &CompanyService{
		store:       store,
		provisioner: provisioner,
		queue:       queue,
		metrics:     metrics,
		log:         log,
	}
}

// List returns every company with its domains.
func (s *CompanyService) List(ctx context.Context) ([]tenant.Company, error) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	companies := make([]tenant.Company, 0, len(tenants))
	for i := range tenants {
		c, err := s.withDomains(ctx, &tenants[i])
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, nil
}

// Get returns a company by ID.
func (s *CompanyService) Get(ctx context.Context, id string) (*tenant.Company, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withDomains(ctx, t)
}

// Current returns the company owning the partition bound in ctx.
// Under the public partition it fails with tenancy.ErrTenantNotFound.
func (s *CompanyService) Current(ctx context.Context) (*tenant.Company, error) {
	t := tenancy.TenantFromContext(ctx)
	if t == nil {
		var err error
		t, err = tenancy.TenantForPartition(ctx, s.store, tenancy.CurrentOrPublic(ctx))
		if err != nil {
			return nil, err
		}
	}
	return s.withDomains(ctx, t)
}

// Provision creates a company with its partition and primary domain, then
// announces it on the queue.
func (s *CompanyService) Provision(ctx context.Context, req tenant.ProvisionRequest) (*tenant.Company, error) {
	ctx, span := cfotel.StartProvisionSpan(ctx, req.Name)
	t, d, err := s.provisioner.Provision(ctx, req)
	cfotel.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TenantsCreated.Add(ctx, 1)
	}
	s.publish(ctx, messagequeue.SubjectTenantProvisioned, t, d.Hostname)
	return &tenant.Company{Tenant: *t, Domains: []tenant.Domain{*d}}, nil
}

// Update applies a partial update to the company identified by id. Only
// the company owning the current partition may be updated. The partition
// name is fixed at provisioning, so a new name is accepted only when it
// derives the same partition name ("acme corp" to "Acme-Corp").
func (s *CompanyService) Update(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Company, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur := tenancy.CurrentOrPublic(ctx); cur.IsPublic() || string(cur) != t.SchemaName {
		return nil, fmt.Errorf("this is not your company: %w", domain.ErrForbidden)
	}

	if req.Name != nil {
		if err := s.checkRename(ctx, t, tenant.NormalizeName(*req.Name)); err != nil {
			return nil, err
		}
	}

	req.Apply(t)
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, messagequeue.SubjectTenantUpdated, t, "")
	return s.withDomains(ctx, t)
}

// checkRename rejects names that are malformed, already used by another
// company (directly or through their derived partition name), or that
// would derive a partition other than t's.
func (s *CompanyService) checkRename(ctx context.Context, t *tenant.Tenant, name string) error {
	if check := tenancy.CheckPartitionName(tenancy.DerivePartitionName(name)); check != tenancy.NameOK {
		return fmt.Errorf("rename to %q: %s: %w", name, check, check.Err())
	}

	other, err := s.store.TenantByName(ctx, name)
	switch {
	case err == nil && other.ID != t.ID:
		return fmt.Errorf("a company with this name already exists: %w", domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return err
	}

	part := tenancy.DerivePartitionName(name)
	other, err = s.store.TenantBySchema(ctx, string(part))
	switch {
	case err == nil && other.ID != t.ID:
		return fmt.Errorf("a company with this name already exists: %w", domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if string(part) != t.SchemaName {
		return fmt.Errorf("a new name must keep the company's partition %s: %w", t.SchemaName, domain.ErrConflict)
	}
	return nil
}

func (s *CompanyService) withDomains(ctx context.Context, t *tenant.Tenant) (*tenant.Company, error) {
	domains, err := s.store.ListDomains(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains of %s: %w", t.ID, err)
	}
	return &tenant.Company{Tenant: *t, Domains: domains}, nil
}

// publish emits a lifecycle event. Failures are logged; the directory
// change has already been committed.
func (s *CompanyService) publish(ctx context.Context, subject string, t *tenant.Tenant, hostname string) {
	data, err := json.Marshal(messagequeue.TenantEventPayload{
		TenantID:   t.ID,
		Name:       t.Name,
		SchemaName: t.SchemaName,
		Hostname:   hostname,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "marshal tenant event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		s.log.WarnContext(ctx, "publish tenant event", "subject", subject, "tenant_id", t.ID, "error", err)
	}
}
