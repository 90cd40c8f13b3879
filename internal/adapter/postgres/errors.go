package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// Constraints whose violation means a tenant name or partition is taken.
var tenantUniqueConstraints = map[string]bool{
	"companies_pkey":             true,
	"companies_schema_name_key":  true,
	"companies_name_lower_key":   true,
	"domains_hostname_lower_key": true,
}

// Client-facing messages for other unique constraints.
var conflictMessages = map[string]string{
	"users_email_key": "a user with this email already exists",
}

// mapPostgresError maps PostgreSQL errors to sentinel errors, prefixed with
// the formatted message. Unknown errors are wrapped unchanged.
func mapPostgresError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", msg, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if tenantUniqueConstraints[pgErr.ConstraintName] {
			return fmt.Errorf("%s: %w", msg, tenancy.ErrDuplicateTenant)
		}
		if m, ok := conflictMessages[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%s: %s: %w", msg, m, domain.ErrConflict)
		}
		return fmt.Errorf("%s: %s: %w", msg, pgErr.ConstraintName, domain.ErrConflict)

	case pgerrcode.DuplicateSchema:
		return fmt.Errorf("%s: %w", msg, tenancy.ErrDuplicateTenant)

	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "companies_schema_name_not_reserved" {
			return fmt.Errorf("%s: %w", msg, tenancy.ErrReservedName)
		}
		return fmt.Errorf("%s: %s: %w", msg, pgErr.ConstraintName, domain.ErrValidation)

	case pgerrcode.InvalidSchemaName, pgerrcode.UndefinedTable:
		return fmt.Errorf("%s: %w: %s", msg, tenancy.ErrPartitionBinding, pgErr.Message)

	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%s: %s: %w", msg, pgErr.Detail, domain.ErrNotFound)

	case pgerrcode.InvalidTextRepresentation:
		// Malformed UUIDs in path parameters behave like unknown IDs.
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)

	default:
		return fmt.Errorf("%s: postgres error [%s]: %w", msg, pgErr.Code, err)
	}
}
