package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	cfnats "github.com/Strob0t/democrm/internal/adapter/nats"
	"github.com/Strob0t/democrm/internal/adapter/natskv"
	cfotel "github.com/Strob0t/democrm/internal/adapter/otel"
	"github.com/Strob0t/democrm/internal/adapter/postgres"
	"github.com/Strob0t/democrm/internal/config"
	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/service"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// app holds the wired tenancy core and services shared by the server and
// the admin commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	pool  *pgxpool.Pool
	queue messagequeue.Queue

	store      *postgres.Store
	partitions *postgres.Partitions
	binder     *tenancy.Binder
	resolver   *tenancy.Resolver

	companies   *service.CompanyService
	users       *service.UserService
	maintenance *service.MaintenanceService
}

// newApp connects to Postgres (and NATS when enabled), applies the public
// migrations and wires every service.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	var (
		queue  messagequeue.Queue = messagequeue.Nop{}
		leases *natskv.Leases
	)
	if cfg.NATS.Enabled {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		queue = q

		// A bucket entry outlives its day, so a late replica cannot sweep twice.
		leases, err = natskv.Open(ctx, q.JetStream(), leaseBucket, 25*time.Hour, leaseHolder())
		if err != nil {
			_ = q.Close()
			pool.Close()
			return nil, fmt.Errorf("nats kv: %w", err)
		}
	}

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		_ = queue.Close()
		pool.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store := postgres.NewStore(pool)
	partitions := postgres.NewPartitions(pool)
	binder := tenancy.NewBinder(postgres.NewConnector(pool), log,
		tenancy.WithObserver(metrics),
		tenancy.WithRestoreTimeout(cfg.Tenancy.RestoreTimeout),
	)
	provisioner := tenancy.NewProvisioner(store, partitions, cfg.Tenancy.BaseDomain, log)
	sweeper := tenancy.NewSweeper(store, binder, log, metrics)

	maintenance := service.NewMaintenanceService(store, sweeper, partitions, queue, metrics, log)
	if leases != nil {
		maintenance.SetLeases(leases)
	}

	return &app{
		cfg:         cfg,
		log:         log,
		pool:        pool,
		queue:       queue,
		store:       store,
		partitions:  partitions,
		binder:      binder,
		resolver:    tenancy.NewResolver(store, metrics),
		companies:   service.NewCompanyService(store, provisioner, queue, metrics, log),
		users:       service.NewUserService(store, cfg.Auth.BcryptCost),
		maintenance: maintenance,
	}, nil
}

const leaseBucket = "democrm_leases"

func leaseHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func (a *app) Close() {
	if err := a.queue.Close(); err != nil {
		a.log.Warn("close queue", "error", err)
	}
	a.pool.Close()
}
