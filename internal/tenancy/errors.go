package tenancy

import "errors"

var (
	// ErrTenantNotFound is returned when a hint matches no domain.
	ErrTenantNotFound = errors.New("company does not exist")

	// ErrDuplicateTenant is returned when a name or partition is already taken.
	ErrDuplicateTenant = errors.New("company already exists")

	// ErrReservedName is returned when a name derives to a reserved partition.
	ErrReservedName = errors.New("company name is reserved")

	// ErrInvalidName is returned when a name derives to an unusable partition.
	ErrInvalidName = errors.New("invalid company name")

	// ErrPartitionBinding is returned when the store refuses to switch partitions.
	ErrPartitionBinding = errors.New("partition binding failed")

	// ErrNotPublic is returned when a directory write is attempted while
	// bound to a tenant partition.
	ErrNotPublic = errors.New("operation requires the public partition")

	// ErrTenantRequired is returned when tenant-scoped data is accessed
	// under the public partition.
	ErrTenantRequired = errors.New("operation requires a company partition")
)
