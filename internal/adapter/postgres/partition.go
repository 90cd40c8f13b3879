package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Strob0t/democrm/internal/tenancy"
)

// Partitions creates, migrates and drops tenant schemas. DDL runs on the
// session bound in ctx when there is one.
type Partitions struct {
	pool *pgxpool.Pool
}

func (m *Partitions) exec(ctx context.Context, sql string) error {
	var q querier = m.pool
	if conn, ok := tenancy.ConnFromContext(ctx); ok {
		if sess, ok := conn.(*Session); ok {
			q = sess.conn
		}
	}
	_, err := q.Exec(ctx, sql)
	return err
}

// NewPartitions creates a Partitions manager over pool.
func NewPartitions(pool *pgxpool.Pool) *Partitions {
	return &Partitions{pool: pool}
}

// CreatePartition creates schema p and applies the tenant migrations.
func (m *Partitions) CreatePartition(ctx context.Context, p tenancy.Partition) error {
	if tenancy.IsReserved(p) {
		return fmt.Errorf("create schema %s: %w", p, tenancy.ErrReservedName)
	}
	if err := m.exec(ctx, "CREATE SCHEMA "+pgx.Identifier{string(p)}.Sanitize()); err != nil {
		return mapPostgresError(err, "create schema %s", p)
	}
	if err := m.MigratePartition(ctx, p); err != nil {
		if derr := m.DropPartition(context.WithoutCancel(ctx), p); derr != nil {
			return fmt.Errorf("%w (drop after failed migration: %v)", err, derr)
		}
		return err
	}
	return nil
}

// MigratePartition applies pending tenant migrations to schema p. The goose
// version table lives inside p.
func (m *Partitions) MigratePartition(ctx context.Context, p tenancy.Partition) error {
	fsys, err := tenantMigrations()
	if err != nil {
		return err
	}

	cfg := m.pool.Config().ConnConfig.Copy()
	cfg.RuntimeParams["search_path"] = pgx.Identifier{string(p)}.Sanitize()
	db := stdlib.OpenDB(*cfg)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("migrate %s: new provider: %w", p, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", p, err)
	}
	return nil
}

// DropPartition drops schema p and everything in it.
func (m *Partitions) DropPartition(ctx context.Context, p tenancy.Partition) error {
	if tenancy.IsReserved(p) {
		return fmt.Errorf("drop schema %s: %w", p, tenancy.ErrReservedName)
	}
	if err := m.exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{string(p)}.Sanitize()+" CASCADE"); err != nil {
		return mapPostgresError(err, "drop schema %s", p)
	}
	return nil
}
