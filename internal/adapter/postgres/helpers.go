package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// querier is the statement surface shared by pools, connections and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// directoryConn is the surface directory statements need, including
// transactions.
type directoryConn interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// directory returns the session bound in ctx, or the pool when ctx carries
// none. Directory tables are schema-qualified, so they resolve the same way
// under any search_path, and a bound request never holds a second pooled
// connection.
func (s *Store) directory(ctx context.Context) directoryConn {
	if conn, ok := tenancy.ConnFromContext(ctx); ok {
		if sess, ok := conn.(*Session); ok {
			return sess.conn
		}
	}
	return s.pool
}

// boundQuerier returns the session bound to a tenant partition in ctx.
// Tenant tables are unqualified, so they must never run on an unbound
// connection.
func boundQuerier(ctx context.Context) (querier, error) {
	if tenancy.CurrentOrPublic(ctx).IsPublic() {
		return nil, tenancy.ErrTenantRequired
	}
	conn, ok := tenancy.ConnFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no session bound", tenancy.ErrPartitionBinding)
	}
	sess, ok := conn.(*Session)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected connection %T", tenancy.ErrPartitionBinding, conn)
	}
	return sess.conn, nil
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return mapPostgresError(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
