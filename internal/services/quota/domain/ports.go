package domain

import (
	"context"
	"time"
)

// LedgerPort is the admission surface the pipeline and custody intake use.
// The ledger is the sole mutator of period counters; everyone else only
// reads remaining-capacity snapshots
type LedgerPort interface {
	// TryConsume atomically checks and increments the (tenant, kind, period)
	// counter. Hard caps deny at the cap; soft caps always admit and
	// accumulate overage
	TryConsume(ctx context.Context, tenantID string, kind ResourceKind, amount int64) (Decision, error)

	// Release compensates a reservation after a downstream failure,
	// flooring at zero
	Release(ctx context.Context, tenantID string, kind ResourceKind, amount int64) error

	// Snapshot returns the current period counters for a tenant
	Snapshot(ctx context.Context, tenantID string) ([]Period, error)
}

// CloserPort is used by the sweeper at period boundaries
type CloserPort interface {
	// CloseExpired archives periods past their end and emits overage
	// snapshots for billing
	CloseExpired(ctx context.Context, now time.Time) ([]Snapshot, error)
}

// LedgerRepo is the persistence seam bound per query/tx
type LedgerRepo interface {
	// EnsurePeriod lazily creates the current period row with the given cap
	EnsurePeriod(ctx context.Context, tenantID string, kind ResourceKind, start, end time.Time, cap Cap) error

	// Consume performs the single atomic check-and-increment. ok=false means
	// a hard cap denied the request
	Consume(ctx context.Context, tenantID string, kind ResourceKind, now time.Time, amount int64) (Period, bool, error)

	// Release decrements used with a zero floor
	Release(ctx context.Context, tenantID string, kind ResourceKind, now time.Time, amount int64) error

	// ListCurrent returns the open periods for a tenant
	ListCurrent(ctx context.Context, tenantID string, now time.Time) ([]Period, error)

	// CloseExpired archives ended periods and returns their final counters
	CloseExpired(ctx context.Context, now time.Time) ([]Period, error)
}
