package tenancy_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/democrm/internal/tenancy"
	"github.com/Strob0t/democrm/internal/tenancy/tenancytest"
)

func TestWithPartitionBindsAndReleases(t *testing.T) {
	conns := tenancytest.NewConnector("acme_corp")
	b := tenancy.NewBinder(conns, discardLogger())

	var inside tenancy.Partition
	var bound tenancy.Partition
	err := b.WithPartition(context.Background(), "acme_corp", func(ctx context.Context) error {
		inside = tenancy.CurrentOrPublic(ctx)
		bound = tenancytest.CurrentPartition(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("WithPartition: %v", err)
	}
	if inside != "acme_corp" || bound != "acme_corp" {
		t.Fatalf("inside = %q, conn = %q, want acme_corp", inside, bound)
	}
	if n := conns.Open(); n != 0 {
		t.Fatalf("open connections after return = %d", n)
	}
}

func TestWithPartitionRestoresOnError(t *testing.T) {
	conns := tenancytest.NewConnector("tenant_a", "tenant_b")
	b := tenancy.NewBinder(conns, discardLogger())

	boom := errors.New("boom")
	err := b.WithPartition(context.Background(), "tenant_a", func(ctx context.Context) error {
		innerErr := b.WithPartition(ctx, "tenant_b", func(ctx context.Context) error {
			if got := tenancy.CurrentOrPublic(ctx); got != "tenant_b" {
				t.Errorf("inner partition = %q", got)
			}
			return boom
		})
		if !errors.Is(innerErr, boom) {
			t.Errorf("inner err = %v, want boom", innerErr)
		}
		if got := tenancy.CurrentOrPublic(ctx); got != "tenant_a" {
			t.Errorf("context partition after inner = %q, want tenant_a", got)
		}
		if got := tenancytest.CurrentPartition(ctx); got != "tenant_a" {
			t.Errorf("connection partition after inner = %q, want tenant_a", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer: %v", err)
	}
	if conns.Open() != 0 || conns.Discarded() != 0 {
		t.Fatalf("open=%d discarded=%d", conns.Open(), conns.Discarded())
	}
}

func TestWithPartitionRestoresOnPanic(t *testing.T) {
	conns := tenancytest.NewConnector("tenant_a", "tenant_b")
	b := tenancy.NewBinder(conns, discardLogger())

	_ = b.WithPartition(context.Background(), "tenant_a", func(ctx context.Context) error {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic to propagate")
				}
			}()
			_ = b.WithPartition(ctx, "tenant_b", func(context.Context) error {
				panic("handler bug")
			})
		}()
		if got := tenancytest.CurrentPartition(ctx); got != "tenant_a" {
			t.Errorf("connection partition after panic = %q, want tenant_a", got)
		}
		return nil
	})

	func() {
		defer func() { _ = recover() }()
		_ = b.WithPartition(context.Background(), "tenant_b", func(context.Context) error {
			panic("outer bug")
		})
	}()
	if n := conns.Open(); n != 0 {
		t.Fatalf("open connections after panic = %d", n)
	}
}

func TestWithPartitionRestoresAfterCancellation(t *testing.T) {
	conns := tenancytest.NewConnector("acme_corp")
	b := tenancy.NewBinder(conns, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var conn *tenancytest.Conn
	err := b.WithPartition(ctx, "acme_corp", func(ctx context.Context) error {
		c, _ := tenancy.ConnFromContext(ctx)
		conn = c.(*tenancytest.Conn)
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := conn.Current(); got != tenancy.Public {
		t.Fatalf("connection left on %q, want public", got)
	}
	if conns.Open() != 0 || conns.Discarded() != 0 {
		t.Fatalf("open=%d discarded=%d", conns.Open(), conns.Discarded())
	}
}

func TestWithPartitionMissingSchema(t *testing.T) {
	conns := tenancytest.NewConnector()
	b := tenancy.NewBinder(conns, discardLogger())

	called := false
	err := b.WithPartition(context.Background(), "ghost", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, tenancy.ErrPartitionBinding) {
		t.Fatalf("err = %v, want ErrPartitionBinding", err)
	}
	if called {
		t.Fatal("work ran without a binding")
	}
	if conns.Open() != 0 {
		t.Fatalf("connection leaked")
	}
}

func TestWithPartitionDiscardsUnrestorableConn(t *testing.T) {
	conns := tenancytest.NewConnector("acme_corp")
	b := tenancy.NewBinder(conns, discardLogger(), tenancy.WithRestoreTimeout(time.Second))

	err := b.WithPartition(context.Background(), "acme_corp", func(context.Context) error {
		conns.FailSwitchTo(tenancy.Public, errors.New("server closed the connection"))
		return nil
	})
	if err != nil {
		t.Fatalf("work result should stand, got %v", err)
	}
	if conns.Discarded() != 1 || conns.Open() != 0 {
		t.Fatalf("discarded=%d open=%d, want 1 and 0", conns.Discarded(), conns.Open())
	}
}

func TestWithPartitionConcurrentRequestsIsolated(t *testing.T) {
	conns := tenancytest.NewConnector("acme_corp")
	b := tenancy.NewBinder(conns, discardLogger())

	rows := map[tenancy.Partition][]string{
		tenancy.Public: {"directory"},
		"acme_corp":    {"acme-lead-1", "acme-lead-2"},
	}
	read := func(ctx context.Context) []string {
		return rows[tenancytest.CurrentPartition(ctx)]
	}

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	gate := make(chan struct{})

	for i := 0; i < rounds; i++ {
		for _, p := range []tenancy.Partition{"acme_corp", tenancy.Public} {
			wg.Add(1)
			go func(p tenancy.Partition) {
				defer wg.Done()
				<-gate
				errs <- b.WithPartition(context.Background(), p, func(ctx context.Context) error {
					time.Sleep(time.Millisecond)
					got := read(ctx)
					if len(got) != len(rows[p]) || got[0] != rows[p][0] {
						return errors.New("cross-talk: " + string(p) + " saw " + got[0])
					}
					if tenancy.CurrentOrPublic(ctx) != p {
						return errors.New("context partition mismatch for " + string(p))
					}
					return nil
				})
			}(p)
		}
	}
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if n := conns.Open(); n != 0 {
		t.Fatalf("open connections = %d", n)
	}
}

func TestCurrentOrPublic(t *testing.T) {
	if got := tenancy.CurrentOrPublic(context.Background()); got != tenancy.Public {
		t.Fatalf("empty context = %q", got)
	}
	ctx := tenancy.ContextWithPartition(context.Background(), "globex")
	if got := tenancy.CurrentOrPublic(ctx); got != "globex" {
		t.Fatalf("got %q, want globex", got)
	}
	if _, ok := tenancy.ConnFromContext(ctx); ok {
		t.Fatal("ContextWithPartition must not carry a connection")
	}
}
