package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
)

// PartitionManager creates and drops the physical partitions.
type PartitionManager interface {
	// CreatePartition creates p and applies the tenant migrations to it.
	// It fails with an error wrapping ErrDuplicateTenant if p exists.
	CreatePartition(ctx context.Context, p Partition) error
	DropPartition(ctx context.Context, p Partition) error
}

// Provisioner creates tenants together with their partition and primary domain.
type Provisioner struct {
	registry   Registry
	partitions PartitionManager
	baseDomain string
	log        *slog.Logger
	now        func() time.Time
}

// NewProvisioner creates a Provisioner registering hostnames under baseDomain.
func NewProvisioner(registry Registry, partitions PartitionManager, baseDomain string, log *slog.Logger) *Provisioner {
	return &Provisioner{
		registry:   registry,
		partitions: partitions,
		baseDomain: baseDomain,
		log:        log,
		now:        time.Now,
	}
}

// CheckName validates displayName against the naming rules and the directory.
// A non-nil error means the directory could not be consulted.
func (p *Provisioner) CheckName(ctx context.Context, displayName string) (NameCheck, error) {
	name := tenant.NormalizeName(displayName)
	part := DerivePartitionName(name)

	if c := CheckPartitionName(part); c != NameOK {
		return c, nil
	}

	if _, err := p.registry.TenantByName(ctx, name); err == nil {
		return NameTaken, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return NameOK, fmt.Errorf("check name %q: %w", name, err)
	}

	if _, err := p.registry.TenantBySchema(ctx, string(part)); err == nil {
		return NameTaken, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return NameOK, fmt.Errorf("check partition %s: %w", part, err)
	}

	return NameOK, nil
}

// Provision creates the tenant described by req. The partition is created
// first; if registering the tenant fails afterwards the partition is
// dropped again, so a failed call leaves no partition, tenant or domain.
func (p *Provisioner) Provision(ctx context.Context, req tenant.ProvisionRequest) (*tenant.Tenant, *tenant.Domain, error) {
	if cur := CurrentOrPublic(ctx); !cur.IsPublic() {
		return nil, nil, fmt.Errorf("provision under %s: %w", cur, ErrNotPublic)
	}
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("provision: %w: %v", domain.ErrValidation, err)
	}
	req.Normalize()

	check, err := p.CheckName(ctx, req.Name)
	if err != nil {
		return nil, nil, err
	}
	if check != NameOK {
		return nil, nil, fmt.Errorf("provision %q: %s: %w", req.Name, check, check.Err())
	}

	part := DerivePartitionName(req.Name)
	now := p.now().UTC()
	t := &tenant.Tenant{
		ID:               uuid.NewString(),
		Name:             req.Name,
		SchemaName:       string(part),
		Email:            req.Email,
		Phone:            req.Phone,
		State:            req.State,
		Country:          req.Country,
		Currency:         req.Currency,
		Timezone:         req.Timezone,
		AutoCreateSchema: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	d := &tenant.Domain{
		ID:        uuid.NewString(),
		Hostname:  DeriveHostname(req.Name, p.baseDomain),
		IsPrimary: true,
		TenantID:  t.ID,
		CreatedAt: now,
	}

	if err := p.partitions.CreatePartition(ctx, part); err != nil {
		return nil, nil, fmt.Errorf("provision %q: create partition: %w", req.Name, err)
	}

	if err := p.registry.InsertTenant(ctx, t, d); err != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRestoreTimeout)
		defer cancel()
		if derr := p.partitions.DropPartition(dctx, part); derr != nil {
			p.log.Error("orphaned partition after failed provisioning",
				"partition", part, "error", derr)
		}
		return nil, nil, fmt.Errorf("provision %q: register: %w", req.Name, err)
	}

	p.log.Info("tenant provisioned", "tenant_id", t.ID, "partition", part, "hostname", d.Hostname)
	return t, d, nil
}
