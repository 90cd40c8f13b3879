// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for NATS subjects used by democrm.
const (
	SubjectTenantProvisioned = "tenants.provisioned"
	SubjectTenantUpdated     = "tenants.updated"
	SubjectSweepRequested    = "tenants.sweep.requested" // on-demand deletion sweep
	SubjectSweepCompleted    = "tenants.sweep.completed"
)

// Nop is a Queue that drops published messages and never delivers any.
// It stands in when NATS is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }

func (Nop) Subscribe(context.Context, string, Handler) (func(), error) { return func() {}, nil }

func (Nop) Close() error { return nil }
