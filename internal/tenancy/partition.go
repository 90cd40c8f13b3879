// Package tenancy maps request hints to tenant partitions and scopes units
// of work to a single partition.
//
// A partition is a Postgres schema: either Public, which holds the shared
// directory, or the schema owned by exactly one tenant. The active
// partition travels in the context.Context of the unit of work.
package tenancy

import (
	"strings"
)

// Partition names a data namespace.
type Partition string

// Public is the shared partition holding the tenant directory.
const Public Partition = "public"

// MaxPartitionNameLen is the Postgres identifier limit in bytes.
const MaxPartitionNameLen = 63

// String implements fmt.Stringer.
func (p Partition) String() string { return string(p) }

// IsPublic reports whether p is the shared partition.
func (p Partition) IsPublic() bool { return p == Public }

// DerivePartitionName maps a display name to its partition: trimmed,
// lowercased, and every rune outside [a-z0-9] replaced with '_'.
func DerivePartitionName(displayName string) Partition {
	lowered := strings.ToLower(strings.TrimSpace(displayName))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return Partition(b.String())
}

// DeriveHostname maps a display name to its primary hostname under
// baseDomain. The label is the partition name with each run of '_' turned
// into a single '-' and no leading or trailing '-', so it is a valid DNS
// label ("Acme, Inc." gives "acme-inc").
func DeriveHostname(displayName, baseDomain string) string {
	words := strings.FieldsFunc(string(DerivePartitionName(displayName)), func(r rune) bool { return r == '_' })
	label := strings.Join(words, "-")
	baseDomain = strings.Trim(strings.ToLower(baseDomain), ".")
	if baseDomain == "" {
		return label
	}
	return label + "." + baseDomain
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// NameCheck is the outcome of validating a prospective tenant name.
type NameCheck int

const (
	NameOK NameCheck = iota
	NameEmpty
	NameTooLong
	NameReserved
	NameTaken
)

func (c NameCheck) String() string {
	switch c {
	case NameOK:
		return "ok"
	case NameEmpty:
		return "empty"
	case NameTooLong:
		return "too_long"
	case NameReserved:
		return "reserved"
	case NameTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Err returns the sentinel matching c, or nil for NameOK.
func (c NameCheck) Err() error {
	switch c {
	case NameOK:
		return nil
	case NameReserved:
		return ErrReservedName
	case NameTaken:
		return ErrDuplicateTenant
	default:
		return ErrInvalidName
	}
}

// CheckPartitionName performs the checks that need no directory access.
func CheckPartitionName(p Partition) NameCheck {
	s := string(p)
	if strings.Trim(s, "_") == "" {
		return NameEmpty
	}
	if len(s) > MaxPartitionNameLen {
		return NameTooLong
	}
	if IsReserved(p) {
		return NameReserved
	}
	return NameOK
}

// IsReserved reports whether p collides with a system schema.
func IsReserved(p Partition) bool {
	s := string(p)
	return p == Public || s == "information_schema" || strings.HasPrefix(s, "pg_")
}
