package tenancy

import "context"

// Observer receives tenancy events for metrics. Implementations must be
// safe for concurrent use.
type Observer interface {
	Resolved(ctx context.Context, outcome string)
	BindFailed(ctx context.Context, p Partition, stage string)
	SweepCompleted(ctx context.Context, total, failed int)
}

// Resolution outcomes passed to Observer.Resolved.
const (
	OutcomePublic   = "public"
	OutcomeTenant   = "tenant"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type nopObserver struct{}

func (nopObserver) Resolved(context.Context, string)              {}
func (nopObserver) BindFailed(context.Context, Partition, string) {}
func (nopObserver) SweepCompleted(context.Context, int, int)      {}
