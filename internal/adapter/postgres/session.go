package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/democrm/internal/tenancy"
)

// Connector hands out pooled sessions for tenancy.Binder.
type Connector struct {
	pool *pgxpool.Pool
}

// NewConnector creates a Connector over pool.
func NewConnector(pool *pgxpool.Pool) *Connector {
	return &Connector{pool: pool}
}

// Acquire implements tenancy.Connector.
func (c *Connector) Acquire(ctx context.Context) (tenancy.Conn, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	return &Session{conn: conn}, nil
}

const discardTimeout = 2 * time.Second

// Session is one pooled connection whose search_path follows the bound
// partition.
type Session struct {
	conn *pgxpool.Conn
}

// SwitchPartition points search_path at p alone, so unqualified names can
// only resolve inside p.
func (s *Session) SwitchPartition(ctx context.Context, p tenancy.Partition) error {
	if !p.IsPublic() {
		var exists bool
		err := s.conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $1)`,
			string(p),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: look up schema %s: %w", tenancy.ErrPartitionBinding, p, err)
		}
		if !exists {
			return fmt.Errorf("%w: schema %q does not exist", tenancy.ErrPartitionBinding, p)
		}
	}

	path := pgx.Identifier{string(p)}.Sanitize()
	if _, err := s.conn.Exec(ctx, `SELECT pg_catalog.set_config('search_path', $1, false)`, path); err != nil {
		return fmt.Errorf("%w: set search_path %s: %w", tenancy.ErrPartitionBinding, p, err)
	}
	return nil
}

// Release returns the connection to the pool.
func (s *Session) Release() {
	s.conn.Release()
}

// Discard takes the connection out of the pool and closes it, so a
// session left on an unknown search_path is never handed out again.
func (s *Session) Discard() {
	conn := s.conn.Hijack()
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	_ = conn.Close(ctx)
}
