package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/user"
	"github.com/Strob0t/democrm/internal/port/database"
	"github.com/Strob0t/democrm/internal/port/messagequeue"
	"github.com/Strob0t/democrm/internal/tenancy"
	"github.com/Strob0t/democrm/internal/tenancy/tenancytest"
)

// Ensure fakeStore implements database.Store at compile time.
var _ database.Store = (*fakeStore)(nil)

// fakeStore keeps members per partition, reading the partition from the
// fake connection bound in ctx the way the Postgres store reads search_path.
type fakeStore struct {
	*tenancytest.Directory

	mu    sync.Mutex
	users map[tenancy.Partition][]user.User

	// Error hooks, keyed by partition.
	deleteErr map[tenancy.Partition]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Directory: tenancytest.NewDirectory(),
		users:     make(map[tenancy.Partition][]user.User),
		deleteErr: make(map[tenancy.Partition]error),
	}
}

func boundPartition(ctx context.Context) (tenancy.Partition, error) {
	p := tenancytest.CurrentPartition(ctx)
	if p == "" {
		return "", tenancy.ErrPartitionBinding
	}
	if p.IsPublic() {
		return "", tenancy.ErrTenantRequired
	}
	return p, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, u *user.User) error {
	p, err := boundPartition(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users[p] {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", domain.ErrConflict)
		}
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[p] = append(s.users[p], *u)
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	p, err := boundPartition(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users[p] {
		if s.users[p][i].ID == id {
			u := s.users[p][i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func (s *fakeStore) ListUsers(ctx context.Context) ([]user.User, error) {
	p, err := boundPartition(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]user.User{}, s.users[p]...), nil
}

func (s *fakeStore) SetUserDeletionDate(ctx context.Context, id string, date *time.Time) error {
	p, err := boundPartition(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users[p] {
		if s.users[p][i].ID == id {
			s.users[p][i].DeletionDate = date
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func (s *fakeStore) DeleteUsersDue(ctx context.Context, day time.Time) (int64, error) {
	p, err := boundPartition(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[p]; err != nil {
		return 0, err
	}
	cutoff := day.UTC().Format(time.DateOnly)
	var kept []user.User
	var deleted int64
	for _, u := range s.users[p] {
		if u.DeletionDate != nil && u.DeletionDate.UTC().Format(time.DateOnly) <= cutoff {
			deleted++
			continue
		}
		kept = append(kept, u)
	}
	s.users[p] = kept
	return deleted, nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

// seedUser stores u directly in partition p.
func (s *fakeStore) seedUser(p tenancy.Partition, u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p] = append(s.users[p], u)
}

func (s *fakeStore) usersIn(p tenancy.Partition) []user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]user.User(nil), s.users[p]...)
}

type publishedMessage struct {
	subject string
	data    []byte
}

// recordingQueue captures published messages and registered handlers.
type recordingQueue struct {
	mu        sync.Mutex
	published []publishedMessage
	handlers  map[string]messagequeue.Handler

	publishErr error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{handlers: make(map[string]messagequeue.Handler)}
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMessage{subject: subject, data: data})
	return nil
}

func (q *recordingQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = handler
	return func() {
		q.mu.Lock()
		delete(q.handlers, subject)
		q.mu.Unlock()
	}, nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) messages(subject string) []publishedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []publishedMessage
	for _, m := range q.published {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

func (q *recordingQueue) deliver(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	h := q.handlers[subject]
	q.mu.Unlock()
	if h == nil {
		return fmt.Errorf("no handler for %s", subject)
	}
	return h(ctx, subject, data)
}

// testEnv wires the tenancy core to in-memory adapters.
type testEnv struct {
	store      *fakeStore
	connector  *tenancytest.Connector
	partitions *tenancytest.Partitions
	binder     *tenancy.Binder
	queue      *recordingQueue
	log        *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	connector := tenancytest.NewConnector()
	return &testEnv{
		store:      newFakeStore(),
		connector:  connector,
		partitions: tenancytest.NewPartitions(connector),
		binder:     tenancy.NewBinder(connector, log),
		queue:      newRecordingQueue(),
		log:        log,
	}
}

// addCompany registers a company in the directory and creates its partition.
func (e *testEnv) addCompany(t *testing.T, name string) tenancy.Partition {
	t.Helper()
	tn := e.store.AddTenant(name, string(tenancy.DerivePartitionName(name))+".crm.test")
	p := tenancy.Partition(tn.SchemaName)
	if err := e.partitions.CreatePartition(context.Background(), p); err != nil {
		t.Fatalf("create partition %s: %v", p, err)
	}
	return p
}

// in runs fn bound to partition p.
func (e *testEnv) in(t *testing.T, p tenancy.Partition, fn func(ctx context.Context)) {
	t.Helper()
	err := e.binder.WithPartition(context.Background(), p, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("bind %s: %v", p, err)
	}
}

func (e *testEnv) companies() *CompanyService {
	prov := tenancy.NewProvisioner(e.store, e.partitions, "crm.test", e.log)
	return NewCompanyService(e.store, prov, e.queue, nil, e.log)
}

func (e *testEnv) maintenance(m Migrator) *MaintenanceService {
	sweeper := tenancy.NewSweeper(e.store, e.binder, e.log, nil)
	return NewMaintenanceService(e.store, sweeper, m, e.queue, nil, e.log)
}

func ptr[T any](v T) *T { return &v }
