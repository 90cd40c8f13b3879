package tenancy_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/Strob0t/democrm/internal/domain/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingDirectory struct{ err error }

func (f failingDirectory) TenantByHostnamePrefix(context.Context, string) (*tenant.Tenant, error) {
	return nil, f.err
}

func (f failingDirectory) TenantBySchema(context.Context, string) (*tenant.Tenant, error) {
	return nil, f.err
}

func (f failingDirectory) ListTenants(context.Context) ([]tenant.Tenant, error) {
	return nil, f.err
}
