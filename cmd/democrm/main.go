package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/democrm/internal/adapter/http"
	cfotel "github.com/Strob0t/democrm/internal/adapter/otel"
	"github.com/Strob0t/democrm/internal/config"
	"github.com/Strob0t/democrm/internal/logger"
	"github.com/Strob0t/democrm/internal/middleware"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"base_domain", cfg.Tenancy.BaseDomain,
		"nats", cfg.NATS.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown := func(context.Context) error { return nil }
	if cfg.OTEL.Enabled {
		otelShutdown, err = cfotel.Init(ctx, cfg.OTEL.ServiceName, version, log)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Infrastructure & services ---
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Companies: a.companies,
		Users:     a.users,
		DB:        a.store,
		Version:   version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin, cfg.Tenancy.HintHeader))
	if cfg.OTEL.Enabled {
		r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	tenantMW := middleware.Tenant(a.resolver, a.binder, middleware.TenantOptions{
		HintHeader:     cfg.Tenancy.HintHeader,
		BaseDomain:     cfg.Tenancy.BaseDomain,
		SubdomainHints: cfg.Tenancy.SubdomainHints,
		OnError:        cfhttp.TenantError,
	}, log)
	cfhttp.MountRoutes(r, handlers, tenantMW)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var offset time.Duration
	if cfg.Sweep.Enabled {
		if offset, err = cfg.Sweep.Clock(); err != nil {
			return fmt.Errorf("sweep schedule: %w", err)
		}
	}

	cancelSub, err := a.maintenance.StartSweepSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("sweep subscriber: %w", err)
	}
	defer cancelSub()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Sweep.Enabled {
		g.Go(func() error {
			log.Info("deletion sweep scheduled", "at", cfg.Sweep.At)
			return a.maintenance.RunScheduler(gctx, offset)
		})
	}

	return g.Wait()
}
