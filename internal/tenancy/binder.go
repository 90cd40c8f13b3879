package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Conn is one store connection that can be pointed at a partition.
type Conn interface {
	// SwitchPartition makes p the target of subsequent statements. It must
	// fail with an error wrapping ErrPartitionBinding when the store
	// refuses the switch.
	SwitchPartition(ctx context.Context, p Partition) error
	// Release returns the connection to its pool.
	Release()
	// Discard closes the connection so it is never reused.
	Discard()
}

// Connector hands out connections for binding.
type Connector interface {
	Acquire(ctx context.Context) (Conn, error)
}

const defaultRestoreTimeout = 5 * time.Second

// Binder scopes units of work to a partition.
type Binder struct {
	connector      Connector
	log            *slog.Logger
	obs            Observer
	restoreTimeout time.Duration
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) BinderOption {
	return func(b *Binder) {
		if obs != nil {
			b.obs = obs
		}
	}
}

// WithRestoreTimeout bounds the time spent restoring a connection.
func WithRestoreTimeout(d time.Duration) BinderOption {
	return func(b *Binder) {
		if d > 0 {
			b.restoreTimeout = d
		}
	}
}

// NewBinder creates a Binder.
func NewBinder(connector Connector, log *slog.Logger, opts ...BinderOption) *Binder {
	b := &Binder{
		connector:      connector,
		log:            log,
		obs:            nopObserver{},
		restoreTimeout: defaultRestoreTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// WithPartition runs work with a context bound to p.
//
// At the outermost level a connection is acquired, switched to p, and on
// return switched back to Public and released. Nested calls reuse the
// connection already bound in ctx and switch it back to the enclosing
// partition. The restore runs on every exit path, including panics and
// cancellation of ctx. A connection that cannot be restored is discarded.
func (b *Binder) WithPartition(ctx context.Context, p Partition, work func(ctx context.Context) error) (err error) {
	if outer, ok := scopeFrom(ctx); ok && outer.conn != nil {
		return b.nested(ctx, outer, p, work)
	}

	conn, err := b.connector.Acquire(ctx)
	if err != nil {
		b.obs.BindFailed(ctx, p, "acquire")
		return fmt.Errorf("bind %s: acquire connection: %w", p, err)
	}

	if err := conn.SwitchPartition(ctx, p); err != nil {
		b.obs.BindFailed(ctx, p, "switch")
		conn.Discard()
		return fmt.Errorf("bind %s: %w", p, bindingErr(err))
	}

	defer func() {
		rctx, cancel := b.restoreContext(ctx)
		defer cancel()
		if rerr := conn.SwitchPartition(rctx, Public); rerr != nil {
			b.obs.BindFailed(ctx, p, "restore")
			b.log.Warn("discarding connection after failed partition restore",
				"partition", p, "error", rerr)
			conn.Discard()
			return
		}
		conn.Release()
	}()

	return work(contextWithScope(ctx, scope{partition: p, conn: conn}))
}

func (b *Binder) nested(ctx context.Context, outer scope, p Partition, work func(ctx context.Context) error) (err error) {
	if outer.partition == p {
		return work(ctx)
	}

	if err := outer.conn.SwitchPartition(ctx, p); err != nil {
		b.obs.BindFailed(ctx, p, "switch")
		// The switch may have half-applied; put the outer partition back.
		if rerr := b.restore(ctx, outer); rerr != nil {
			return errors.Join(fmt.Errorf("bind %s: %w", p, bindingErr(err)), rerr)
		}
		return fmt.Errorf("bind %s: %w", p, bindingErr(err))
	}

	defer func() {
		if rerr := b.restore(ctx, outer); rerr != nil {
			b.obs.BindFailed(ctx, outer.partition, "restore")
			err = errors.Join(err, rerr)
		}
	}()

	return work(contextWithScope(ctx, scope{partition: p, conn: outer.conn}))
}

func (b *Binder) restore(ctx context.Context, outer scope) error {
	rctx, cancel := b.restoreContext(ctx)
	defer cancel()
	if err := outer.conn.SwitchPartition(rctx, outer.partition); err != nil {
		return fmt.Errorf("restore %s: %w", outer.partition, bindingErr(err))
	}
	return nil
}

func (b *Binder) restoreContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.restoreTimeout)
}

func bindingErr(err error) error {
	if errors.Is(err, ErrPartitionBinding) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPartitionBinding, err)
}
