package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cfotel "github.com/Strob0t/democrm/internal/adapter/otel"
	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/port/database"
	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// Migrator applies pending tenant migrations to one partition.
type Migrator interface {
	MigratePartition(ctx context.Context, p tenancy.Partition) error
}

// Lease claims a job key once across every replica.
type Lease interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Holder(ctx context.Context, key string) (string, error)
}

// SweepReport summarizes one deletion sweep.
type SweepReport struct {
	Date         string
	Tenants      int
	UsersDeleted int64
	Failures     []tenancy.TenantFailure
}

// MaintenanceService runs jobs across every company: the scheduled member
// deletion sweep and tenant schema migrations.
type MaintenanceService struct {
	store    database.Store
	sweeper  *tenancy.Sweeper
	migrator Migrator
	queue    messagequeue.Queue
	metrics  *cfotel.Metrics
	leases   Lease
	log      *slog.Logger
	now      func() time.Time

	// One sweep at a time, whether scheduled or requested.
	sweepMu sync.Mutex
}

// NewMaintenanceService creates a new MaintenanceService. metrics may be nil.
func NewMaintenanceService(store database.Store, sweeper *tenancy.Sweeper, migrator Migrator, queue messagequeue.Queue, metrics *cfotel.Metrics, log *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		store:    store,
		sweeper:  sweeper,
		migrator: migrator,
		queue:    queue,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// SetLeases makes scheduled sweeps run on one replica per day.
func (s *MaintenanceService) SetLeases(l Lease) {
	s.leases = l
}

// SweepDeletions removes, in every company, the members whose deletion
// date is on or before day, then publishes the report. Per-company
// failures are collected in the report; the error is reserved for sweeps
// that could not run to the end.
func (s *MaintenanceService) SweepDeletions(ctx context.Context, day time.Time) (*SweepReport, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	ctx, span := cfotel.StartSweepSpan(ctx, "user_deletion")
	started := s.now().UTC()
	report := &SweepReport{Date: day.UTC().Format(time.DateOnly)}

	failures, err := s.sweeper.ForEachTenant(ctx, func(ctx context.Context, t tenant.Tenant) error {
		ctx, span := cfotel.StartTenantActionSpan(ctx, t.SchemaName)
		report.Tenants++
		n, err := s.store.DeleteUsersDue(ctx, day)
		cfotel.EndSpan(span, err)
		if err != nil {
			return err
		}
		report.UsersDeleted += n
		if n > 0 {
			s.log.InfoContext(ctx, "scheduled members deleted", "tenant_id", t.ID, "count", n)
		}
		return nil
	})
	report.Failures = failures
	cfotel.EndSpan(span, err)

	if s.metrics != nil {
		s.metrics.UsersSwept.Add(ctx, report.UsersDeleted)
	}
	s.log.InfoContext(ctx, "deletion sweep finished",
		"date", report.Date,
		"tenants", report.Tenants,
		"users_deleted", report.UsersDeleted,
		"failures", len(report.Failures),
	)
	s.publishReport(ctx, report, started)

	if err != nil {
		return report, fmt.Errorf("deletion sweep %s: %w", report.Date, err)
	}
	return report, nil
}

// MigrateTenants applies pending tenant migrations to every company schema.
func (s *MaintenanceService) MigrateTenants(ctx context.Context) ([]tenancy.TenantFailure, error) {
	ctx, span := cfotel.StartSweepSpan(ctx, "migrate_tenants")
	failures, err := s.sweeper.ForEachTenant(ctx, func(ctx context.Context, t tenant.Tenant) error {
		return s.migrator.MigratePartition(ctx, tenancy.Partition(t.SchemaName))
	})
	cfotel.EndSpan(span, err)
	return failures, err
}

// RunScheduler runs SweepDeletions every day at offset past midnight UTC
// until ctx is cancelled.
func (s *MaintenanceService) RunScheduler(ctx context.Context, offset time.Duration) error {
	for {
		now := s.now()
		next := nextRun(now, offset)
		s.log.Debug("next deletion sweep scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case fired := <-timer.C:
			s.scheduledSweep(ctx, fired)
		}
	}
}

// scheduledSweep runs the sweep for day unless another replica already
// claimed it. A lease error does not block the sweep; deleting due members
// twice is harmless.
func (s *MaintenanceService) scheduledSweep(ctx context.Context, day time.Time) {
	if s.leases != nil {
		key := "deletion-sweep." + day.UTC().Format(time.DateOnly)
		ok, err := s.leases.TryAcquire(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("sweep lease unavailable, sweeping anyway", "key", key, "error", err)
		case !ok:
			holder, herr := s.leases.Holder(ctx, key)
			if herr != nil {
				holder = "unknown"
			}
			s.log.Info("deletion sweep claimed by another replica", "key", key, "holder", holder)
			return
		}
	}
	if _, err := s.SweepDeletions(ctx, day); err != nil {
		s.log.Error("scheduled deletion sweep failed", "error", err)
	}
}

// nextRun returns the first instant strictly after now that lies offset
// past a UTC midnight.
func nextRun(now time.Time, offset time.Duration) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(offset)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartSweepSubscriber runs a deletion sweep for every request received on
// the sweep subject.
func (s *MaintenanceService) StartSweepSubscriber(ctx context.Context) (cancel func(), err error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectSweepRequested, func(msgCtx context.Context, _ string, data []byte) error {
		var req messagequeue.SweepRequestedPayload
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("unmarshal sweep request: %w", err)
		}

		day := s.now().UTC()
		if req.Date != "" {
			d, err := time.Parse(time.DateOnly, req.Date)
			if err != nil {
				// Redelivery cannot fix a malformed date.
				s.log.Warn("ignoring sweep request", "date", req.Date, "error", err)
				return nil
			}
			day = d
		}

		_, err := s.SweepDeletions(msgCtx, day)
		return err
	})
}

func (s *MaintenanceService) publishReport(ctx context.Context, r *SweepReport, started time.Time) {
	payload := messagequeue.SweepCompletedPayload{
		Date:         r.Date,
		Tenants:      r.Tenants,
		UsersDeleted: r.UsersDeleted,
		Failures:     make([]messagequeue.SweepFailure, 0, len(r.Failures)),
		StartedAt:    started,
		FinishedAt:   s.now().UTC(),
	}
	for _, f := range r.Failures {
		payload.Failures = append(payload.Failures, messagequeue.SweepFailure{
			TenantID:  f.TenantID,
			Partition: f.Partition.String(),
			Error:     f.Err.Error(),
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.ErrorContext(ctx, "marshal sweep report", "error", err)
		return
	}
	if err := s.queue.Publish(context.WithoutCancel(ctx), messagequeue.SubjectSweepCompleted, data); err != nil {
		s.log.WarnContext(ctx, "publish sweep report", "error", err)
	}
}
