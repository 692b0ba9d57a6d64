package domain

import (
	"context"
	"time"

	"custodian/internal/core/timeline"
)

// CasePort is the case lifecycle surface other modules use
type CasePort interface {
	Create(ctx context.Context, tenantID, title string) (Case, error)
	Get(ctx context.Context, caseID string) (Case, error)

	// AddSource attaches an artifact; ingest order is assigned atomically
	AddSource(ctx context.Context, in AddSourceInput) (Source, error)
	Sources(ctx context.Context, caseID string) ([]Source, error)

	// ListPending returns cases that have not reached the synchronize
	// barrier yet (created or ingesting), oldest first, for batch runs
	ListPending(ctx context.Context, limit int) ([]Case, error)

	// Transition moves the case along the lifecycle with a compare-and-set
	// on the current status; illegal moves are a conflict
	Transition(ctx context.Context, caseID string, to Status) (Case, error)

	// AddWarning records an absorbed failure without failing the case
	AddWarning(ctx context.Context, caseID, warning string) error

	// Cancel moves any non-terminal case to cancelled. State is retained
	Cancel(ctx context.Context, caseID string) (Case, error)
}

// TimelinePort persists synchronized timelines under monotonic versions
type TimelinePort interface {
	// Save assigns the next version for the case and returns it. Existing
	// versions are never overwritten
	Save(ctx context.Context, t timeline.Timeline) (int, error)
	Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error)
	Latest(ctx context.Context, caseID string) (timeline.Timeline, error)
}

// CaseRepo is the persistence seam bound per query/tx
type CaseRepo interface {
	Insert(ctx context.Context, c Case) error
	Get(ctx context.Context, id string) (Case, error)
	// UpdateStatus applies the move only if the row still holds from
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (Case, bool, error)
	// CancelIfActive moves to cancelled unless the row is already terminal
	CancelIfActive(ctx context.Context, id string, at time.Time) (Case, bool, error)
	AppendWarning(ctx context.Context, id, warning string, at time.Time) error

	InsertSource(ctx context.Context, s Source) (Source, error)
	ListSources(ctx context.Context, caseID string) ([]Source, error)

	ListByStatus(ctx context.Context, statuses []Status, limit int) ([]Case, error)
}

// TimelineRepo persists timeline versions
type TimelineRepo interface {
	Insert(ctx context.Context, t timeline.Timeline) (int, error)
	Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error)
	Latest(ctx context.Context, caseID string) (timeline.Timeline, error)
}
