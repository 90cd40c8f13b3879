package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/democrm/internal/port/database"
)

// Store implements the tenant directory and the tenant-scoped stores.
// Directory tables are schema-qualified and use the bound session when
// there is one, otherwise the pool; tenant tables always go through the
// session bound in the request context.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
