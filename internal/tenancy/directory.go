package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
)

// Directory is the read side of the shared tenant directory.
// Lookups that match nothing return an error wrapping domain.ErrNotFound.
type Directory interface {
	// TenantByHostnamePrefix returns the tenant owning the oldest domain
	// whose hostname starts with prefix, compared case-insensitively.
	TenantByHostnamePrefix(ctx context.Context, prefix string) (*tenant.Tenant, error)
	TenantBySchema(ctx context.Context, schema string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
}

// Registry extends Directory with the writes performed by the Provisioner.
type Registry interface {
	Directory
	// TenantByName matches display names case-insensitively.
	TenantByName(ctx context.Context, name string) (*tenant.Tenant, error)
	// InsertTenant stores t and its primary domain d atomically.
	InsertTenant(ctx context.Context, t *tenant.Tenant, d *tenant.Domain) error
}

// TenantForPartition returns the tenant owning p.
func TenantForPartition(ctx context.Context, dir Directory, p Partition) (*tenant.Tenant, error) {
	if p.IsPublic() {
		return nil, fmt.Errorf("partition %s: %w", p, ErrTenantNotFound)
	}
	t, err := dir.TenantBySchema(ctx, string(p))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("partition %s: %w", p, ErrTenantNotFound)
		}
		return nil, fmt.Errorf("partition %s: %w", p, err)
	}
	return t, nil
}

// DisplayNameFor returns the display name of the tenant owning p.
func DisplayNameFor(ctx context.Context, dir Directory, p Partition) (string, error) {
	t, err := TenantForPartition(ctx, dir, p)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}
