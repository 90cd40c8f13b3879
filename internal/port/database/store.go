// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/domain/user"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// Store is the port interface for database operations.
//
// Company methods read and write the shared directory. User methods act on
// the partition bound in ctx and fail with tenancy.ErrTenantRequired under
// the public partition.
type Store interface {
	tenancy.Registry

	// Companies
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error
	ListDomains(ctx context.Context, tenantID string) ([]tenant.Domain, error)

	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	SetUserDeletionDate(ctx context.Context, id string, date *time.Time) error
	DeleteUsersDue(ctx context.Context, day time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error
}
