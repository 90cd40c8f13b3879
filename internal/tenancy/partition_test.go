package tenancy_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/democrm/internal/tenancy"
)

func TestDerivePartitionName(t *testing.T) {
	tests := []struct {
		in   string
		want tenancy.Partition
	}{
		{"Acme Corp", "acme_corp"},
		{"acme corp", "acme_corp"},
		{"  Acme Corp  ", "acme_corp"},
		{"O'Reilly & Sons", "o_reilly___sons"},
		{"ACME-2024", "acme_2024"},
		{"Public", "public"},
		{"Café", "caf_"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := tenancy.DerivePartitionName(tt.in)
			if got != tt.want {
				t.Fatalf("DerivePartitionName(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := tenancy.DerivePartitionName(tt.in); again != got {
				t.Fatalf("not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestDeriveHostname(t *testing.T) {
	tests := []struct {
		name, base, want string
	}{
		{"Acme Corp", "crm.example.com", "acme-corp.crm.example.com"},
		{"Acme Corp", ".CRM.example.com.", "acme-corp.crm.example.com"},
		{"Acme Corp", "", "acme-corp"},
		{"Big  Co.", "example.com", "big-co.example.com"},
		{"Acme Corp.", "example.com", "acme-corp.example.com"},
		{"Acme, Inc.", "example.com", "acme-inc.example.com"},
		{"  -Über GmbH-", "example.com", "ber-gmbh.example.com"},
	}
	for _, tt := range tests {
		if got := tenancy.DeriveHostname(tt.name, tt.base); got != tt.want {
			t.Errorf("DeriveHostname(%q, %q) = %q, want %q", tt.name, tt.base, got, tt.want)
		}
	}
}

func TestCheckPartitionName(t *testing.T) {
	tests := []struct {
		part tenancy.Partition
		want tenancy.NameCheck
	}{
		{"acme_corp", tenancy.NameOK},
		{"", tenancy.NameEmpty},
		{"___", tenancy.NameEmpty},
		{"public", tenancy.NameReserved},
		{"information_schema", tenancy.NameReserved},
		{"pg_catalog", tenancy.NameReserved},
		{"pg_anything", tenancy.NameReserved},
		{tenancy.Partition(strings.Repeat("a", 64)), tenancy.NameTooLong},
		{tenancy.Partition(strings.Repeat("a", 63)), tenancy.NameOK},
	}
	for _, tt := range tests {
		if got := tenancy.CheckPartitionName(tt.part); got != tt.want {
			t.Errorf("CheckPartitionName(%q) = %s, want %s", tt.part, got, tt.want)
		}
	}
}

func TestNameCheckErr(t *testing.T) {
	if err := tenancy.NameOK.Err(); err != nil {
		t.Fatalf("NameOK.Err() = %v", err)
	}
	if !errors.Is(tenancy.NameReserved.Err(), tenancy.ErrReservedName) {
		t.Error("NameReserved should map to ErrReservedName")
	}
	if !errors.Is(tenancy.NameTaken.Err(), tenancy.ErrDuplicateTenant) {
		t.Error("NameTaken should map to ErrDuplicateTenant")
	}
	for _, c := range []tenancy.NameCheck{tenancy.NameEmpty, tenancy.NameTooLong} {
		if !errors.Is(c.Err(), tenancy.ErrInvalidName) {
			t.Errorf("%s should map to ErrInvalidName", c)
		}
	}
}
