package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/democrm/internal/domain/tenant"
)

const companyColumns = `c.id, c.name, c.schema_name, c.email, c.phone, c.state, c.country,
	c.currency, c.timezone, c.auto_create_schema, c.created_at, c.updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.SchemaName, &t.Email, &t.Phone, &t.State, &t.Country,
		&t.Currency, &t.Timezone, &t.AutoCreateSchema, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// --- Directory reads ---

func (s *Store) TenantByHostnamePrefix(ctx context.Context, prefix string) (*tenant.Tenant, error) {
	row := s.directory(ctx).QueryRow(ctx,
		`SELECT `+companyColumns+`
		 FROM public.domains d JOIN public.companies c ON c.id = d.tenant_id
		 WHERE starts_with(lower(d.hostname), lower($1))
		 ORDER BY d.created_at ASC, d.id ASC
		 LIMIT 1`, prefix)
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapPostgresError(err, "tenant by hostname %q", prefix)
	}
	return &t, nil
}

func (s *Store) TenantBySchema(ctx context.Context, schema string) (*tenant.Tenant, error) {
	row := s.directory(ctx).QueryRow(ctx,
		`SELECT `+companyColumns+` FROM public.companies c WHERE c.schema_name = $1`, schema)
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapPostgresError(err, "tenant by schema %s", schema)
	}
	return &t, nil
}

func (s *Store) TenantByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	row := s.directory(ctx).QueryRow(ctx,
		`SELECT `+companyColumns+` FROM public.companies c WHERE lower(c.name) = lower($1)`, name)
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapPostgresError(err, "tenant by name %q", name)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := s.directory(ctx).QueryRow(ctx,
		`SELECT `+companyColumns+` FROM public.companies c WHERE c.id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapPostgresError(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.directory(ctx).Query(ctx,
		`SELECT `+companyColumns+` FROM public.companies c ORDER BY c.created_at ASC, c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return orEmpty(tenants), rows.Err()
}

func (s *Store) ListDomains(ctx context.Context, tenantID string) ([]tenant.Domain, error) {
	rows, err := s.directory(ctx).Query(ctx,
		`SELECT id, hostname, is_primary, tenant_id, created_at
		 FROM public.domains WHERE tenant_id = $1 ORDER BY is_primary DESC, created_at ASC`, tenantID)
	if err != nil {
		return nil, mapPostgresError(err, "list domains %s", tenantID)
	}
	defer rows.Close()

	var domains []tenant.Domain
	for rows.Next() {
		var d tenant.Domain
		if err := rows.Scan(&d.ID, &d.Hostname, &d.IsPrimary, &d.TenantID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return orEmpty(domains), rows.Err()
}

// --- Directory writes ---

// InsertTenant stores t and its primary domain in one transaction.
func (s *Store) InsertTenant(ctx context.Context, t *tenant.Tenant, d *tenant.Domain) error {
	return pgx.BeginFunc(ctx, s.directory(ctx), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO public.companies
			   (id, name, schema_name, email, phone, state, country, currency, timezone,
			    auto_create_schema, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			t.ID, t.Name, t.SchemaName, t.Email, t.Phone, t.State, t.Country, t.Currency, t.Timezone,
			t.AutoCreateSchema, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return mapPostgresError(err, "insert tenant %s", t.SchemaName)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO public.domains (id, hostname, is_primary, tenant_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			d.ID, d.Hostname, d.IsPrimary, d.TenantID, d.CreatedAt)
		if err != nil {
			return mapPostgresError(err, "insert domain %s", d.Hostname)
		}
		return nil
	})
}

// UpdateTenant writes the contact fields and display name of t. The schema
// name is fixed at provisioning and never rewritten.
func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	row := s.directory(ctx).QueryRow(ctx,
		`UPDATE public.companies
		 SET name = $2, email = $3, phone = $4, state = $5, country = $6,
		     currency = $7, timezone = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		t.ID, t.Name, t.Email, t.Phone, t.State, t.Country, t.Currency, t.Timezone)
	if err := row.Scan(&t.UpdatedAt); err != nil {
		return mapPostgresError(err, "update tenant %s", t.ID)
	}
	return nil
}
