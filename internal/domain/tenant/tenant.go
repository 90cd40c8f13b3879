// Package tenant defines the company (tenant) and domain models of the
// shared directory.
package tenant

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tenant is one company with its own isolated schema.
type Tenant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SchemaName       string    `json:"schema_name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	State            string    `json:"state,omitempty"`
	Country          string    `json:"country,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	Timezone         string    `json:"timezone,omitempty"`
	AutoCreateSchema bool      `json:"auto_create_schema"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Domain is a routable hostname owned by exactly one tenant.
type Domain struct {
	ID        string    `json:"id"`
	Hostname  string    `json:"hostname"`
	IsPrimary bool      `json:"is_primary"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProvisionRequest holds the fields accepted when a new company is created.
type ProvisionRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	Currency string `json:"currency,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Validate checks the contact fields. Name rules live with the provisioner.
func (r *ProvisionRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return errors.New("invalid email format")
		}
	}
	return nil
}

// Normalize applies the stored casing rules to every field.
func (r *ProvisionRequest) Normalize() {
	r.Name = NormalizeName(r.Name)
	r.Email = lower(r.Email)
	r.Phone = lower(r.Phone)
	r.State = titleCase(r.State)
	r.Country = titleCase(r.Country)
	r.Currency = upper(r.Currency)
	r.Timezone = lower(r.Timezone)
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	State    *string `json:"state,omitempty"`
	Country  *string `json:"country,omitempty"`
	Currency *string `json:"currency,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// Validate checks fields that are present.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name must not be empty")
	}
	if r.Email != nil && *r.Email != "" {
		if _, err := mail.ParseAddress(*r.Email); err != nil {
			return errors.New("invalid email format")
		}
	}
	return nil
}

// Apply copies the normalized, non-nil fields onto t.
func (r *UpdateRequest) Apply(t *Tenant) {
	if r.Name != nil {
		t.Name = NormalizeName(*r.Name)
	}
	if r.Email != nil {
		t.Email = lower(*r.Email)
	}
	if r.Phone != nil {
		t.Phone = lower(*r.Phone)
	}
	if r.State != nil {
		t.State = titleCase(*r.State)
	}
	if r.Country != nil {
		t.Country = titleCase(*r.Country)
	}
	if r.Currency != nil {
		t.Currency = upper(*r.Currency)
	}
	if r.Timezone != nil {
		t.Timezone = lower(*r.Timezone)
	}
}

// NormalizeName trims and title-cases a company display name.
func NormalizeName(name string) string {
	return titleCase(name)
}

// Casers are not safe for concurrent use, so each call builds its own.
func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// Company is a tenant together with its routable hostnames, as exposed
// by the directory API.
type Company struct {
	Tenant
	Domains []Domain `json:"domains"`
}
