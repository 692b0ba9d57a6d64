package domain

import (
	"context"
	"time"

	"custodian/internal/core/detector"
)

// StorePort is the findings surface detection and reporting use
type StorePort interface {
	// Record upserts findings for a detection pass. Candidates marked for
	// escalation land pending; the rest land rule-matched. Resolved rows
	// are never reverted by a re-run
	Record(ctx context.Context, caseID string, timelineVersion int, cands []detector.Candidate) ([]Finding, error)

	ListByCase(ctx context.Context, caseID string) ([]Finding, error)

	// PendingCount counts inference-escalated findings for the case
	PendingCount(ctx context.Context, caseID string) (int, error)

	// Resolve applies the one-way escalated -> confirmed|rejected move
	Resolve(ctx context.Context, findingID string, to Disposition, reason string, confidence float64) (Finding, error)
}

// QueuePort is the escalation worker's view of pending findings
type QueuePort interface {
	// Lease claims up to limit due pending findings; claimed rows are
	// invisible to other workers until their next attempt time
	Lease(ctx context.Context, now time.Time, limit int) ([]Finding, error)

	// Retry reschedules a leased finding after a failed provider call
	Retry(ctx context.Context, findingID string, attempts int, nextAttemptAt time.Time) error

	// Resolve finishes a leased finding
	Resolve(ctx context.Context, findingID string, to Disposition, reason string, confidence float64) (Finding, error)
}

// FindingRepo is the persistence seam bound per query/tx
type FindingRepo interface {
	Upsert(ctx context.Context, f Finding) (Finding, error)
	Get(ctx context.Context, id string) (Finding, error)
	ListByCase(ctx context.Context, caseID string) ([]Finding, error)
	CountPending(ctx context.Context, caseID string) (int, error)
	// ResolvePending updates the row only while it is still escalated
	ResolvePending(ctx context.Context, id string, to Disposition, reason string, confidence float64, at time.Time) (Finding, bool, error)
	// LeaseDue claims due pending rows with FOR UPDATE SKIP LOCKED and
	// pushes their next attempt time out by hold
	LeaseDue(ctx context.Context, now time.Time, hold time.Duration, limit int) ([]Finding, error)
	SetRetry(ctx context.Context, id string, attempts int, nextAttemptAt, at time.Time) error
}
