package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/tenancy"
)

func TestCompanyService_Provision(t *testing.T) {
	env := newTestEnv(t)
	svc := env.companies()

	c, err := svc.Provision(context.Background(), tenant.ProvisionRequest{Name: "acme corp", Currency: "usd"})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if c.Name != "Acme Corp" || c.SchemaName != "acme_corp" || c.Currency != "USD" {
		t.Fatalf("unexpected company: %+v", c.Tenant)
	}
	if len(c.Domains) != 1 || c.Domains[0].Hostname != "acme-corp.crm.test" || !c.Domains[0].IsPrimary {
		t.Fatalf("unexpected domains: %+v", c.Domains)
	}
	if !env.connector.Exists("acme_corp") {
		t.Fatal("partition was not created")
	}

	msgs := env.queue.messages(messagequeue.SubjectTenantProvisioned)
	if len(msgs) != 1 {
		t.Fatalf("published %d provisioned events, want 1", len(msgs))
	}
	var ev messagequeue.TenantEventPayload
	if err := json.Unmarshal(msgs[0].data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.TenantID != c.ID || ev.Hostname != "acme-corp.crm.test" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCompanyService_ProvisionPublishFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.queue.publishErr = errors.New("nats down")

	if _, err := env.companies().Provision(context.Background(), tenant.ProvisionRequest{Name: "Acme"}); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(env.store.Tenants()) != 1 {
		t.Fatal("company should be stored even when the event is lost")
	}
}

func TestCompanyService_ProvisionUnderTenant(t *testing.T) {
	env := newTestEnv(t)
	p := env.addCompany(t, "Acme")
	svc := env.companies()

	env.in(t, p, func(ctx context.Context) {
		_, err := svc.Provision(ctx, tenant.ProvisionRequest{Name: "Beta"})
		if !errors.Is(err, tenancy.ErrNotPublic) {
			t.Fatalf("err = %v, want ErrNotPublic", err)
		}
	})
	if len(env.store.Tenants()) != 1 {
		t.Fatal("no company should have been added")
	}
}

func TestCompanyService_Current(t *testing.T) {
	env := newTestEnv(t)
	acme := env.addCompany(t, "Acme")
	env.addCompany(t, "Beta")
	svc := env.companies()

	env.in(t, acme, func(ctx context.Context) {
		c, err := svc.Current(ctx)
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if c.SchemaName != "acme" || len(c.Domains) != 1 {
			t.Fatalf("unexpected company: %+v", c)
		}
	})

	env.in(t, tenancy.Public, func(ctx context.Context) {
		if _, err := svc.Current(ctx); !errors.Is(err, tenancy.ErrTenantNotFound) {
			t.Fatalf("err = %v, want ErrTenantNotFound", err)
		}
	})
}

func TestCompanyService_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	env.addCompany(t, "Acme")
	env.addCompany(t, "Beta")
	svc := env.companies()

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || len(list[1].Domains) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	c, err := svc.Get(context.Background(), list[1].ID)
	if err != nil || c.Name != "Beta" {
		t.Fatalf("Get = %+v, %v", c, err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCompanyService_Update(t *testing.T) {
	env := newTestEnv(t)
	acme := env.addCompany(t, "Acme")
	env.addCompany(t, "Beta Co")
	svc := env.companies()
	acmeID := env.store.Tenants()[0].ID
	betaID := env.store.Tenants()[1].ID

	tests := []struct {
		name    string
		id      string
		req     tenant.UpdateRequest
		wantErr error
	}{
		{"not your company", betaID, tenant.UpdateRequest{Phone: ptr("1")}, domain.ErrForbidden},
		{"unknown company", "missing", tenant.UpdateRequest{Phone: ptr("1")}, domain.ErrNotFound},
		{"empty name", acmeID, tenant.UpdateRequest{Name: ptr("  ")}, domain.ErrValidation},
		{"bad email", acmeID, tenant.UpdateRequest{Email: ptr("nope")}, domain.ErrValidation},
		{"name taken", acmeID, tenant.UpdateRequest{Name: ptr("beta co")}, domain.ErrConflict},
		{"partition taken", acmeID, tenant.UpdateRequest{Name: ptr("Beta-Co")}, domain.ErrConflict},
		{"reserved name", acmeID, tenant.UpdateRequest{Name: ptr("Public")}, tenancy.ErrReservedName},
		{"name moves partition", acmeID, tenant.UpdateRequest{Name: ptr("Acme Holdings")}, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.in(t, acme, func(ctx context.Context) {
				_, err := svc.Update(ctx, tt.id, tt.req)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			})
		})
	}

	env.in(t, acme, func(ctx context.Context) {
		c, err := svc.Update(ctx, acmeID, tenant.UpdateRequest{
			Name:     ptr("acme"),
			Email:    ptr("Sales@Acme.Example"),
			Country:  ptr("new zealand"),
			Currency: ptr("nzd"),
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if c.Name != "Acme" || c.Email != "sales@acme.example" || c.Country != "New Zealand" || c.Currency != "NZD" {
			t.Fatalf("fields not normalized: %+v", c.Tenant)
		}
		if c.SchemaName != "acme" {
			t.Fatalf("schema name changed to %q", c.SchemaName)
		}
	})

	env.in(t, tenancy.Public, func(ctx context.Context) {
		if _, err := svc.Update(ctx, acmeID, tenant.UpdateRequest{Phone: ptr("1")}); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden under public", err)
		}
	})

	if n := len(env.queue.messages(messagequeue.SubjectTenantUpdated)); n != 1 {
		t.Fatalf("published %d update events, want 1", n)
	}
}

func TestCompanyService_UpdateKeepsOwnName(t *testing.T) {
	env := newTestEnv(t)
	acme := env.addCompany(t, "Acme")
	svc := env.companies()
	id := env.store.Tenants()[0].ID

	env.in(t, acme, func(ctx context.Context) {
		if _, err := svc.Update(ctx, id, tenant.UpdateRequest{Name: ptr("ACME")}); err != nil {
			t.Fatalf("renaming to own name: %v", err)
		}
	})
}
