// Package service implements finding persistence and the escalation queue
package service

import (
	"context"
	"time"

	"custodian/internal/core/detector"
	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	"custodian/internal/services/findings/domain"

	"github.com/google/uuid"
)

// DefaultLeaseHold is how long a leased finding stays invisible to other
// workers before its claim expires
const DefaultLeaseHold = 2 * time.Minute

// Svc implements domain.StorePort and domain.QueuePort
type Svc struct {
	tx   repokit.TxRunner
	repo repokit.Binder[domain.FindingRepo]
	hold time.Duration
	now  func() time.Time
}

// New constructs the findings service
func New(tx repokit.TxRunner, repo repokit.Binder[domain.FindingRepo]) *Svc {
	return &Svc{tx: tx, repo: repo, hold: DefaultLeaseHold, now: time.Now}
}

// Record upserts one finding per candidate. Escalating candidates land
// pending with a due-now attempt slot; re-running a detection pass over the
// same timeline version refreshes rows instead of duplicating them
func (s *Svc) Record(ctx context.Context, caseID string, timelineVersion int,
	cands []detector.Candidate,
) ([]domain.Finding, error) {
	if caseID == "" {
		return nil, perr.InvalidArgf("case id is required")
	}
	now := s.now().UTC()
	out := make([]domain.Finding, 0, len(cands))
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		for _, c := range cands {
			f := domain.Finding{
				ID:              uuid.NewString(),
				CaseID:          caseID,
				TimelineVersion: timelineVersion,
				RuleID:          c.RuleID,
				Doctrine:        c.Doctrine,
				SpanStart:       c.Start,
				SpanEnd:         c.End,
				StartIdx:        c.StartIdx,
				EndIdx:          c.EndIdx,
				Confidence:      c.Confidence,
				Severity:        c.Severity,
				Summary:         c.Summary,
				Disposition:     domain.DispositionRuleMatched,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if c.Escalate {
				f.Disposition = domain.DispositionEscalated
				f.NextAttemptAt = &now
			}
			got, err := r.Upsert(ctx, f)
			if err != nil {
				return err
			}
			out = append(out, got)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pending := 0
	for _, f := range out {
		if f.Disposition.Pending() {
			pending++
		}
	}
	logger.C(ctx).Info().
		Str("case_id", caseID).
		Int("timeline_version", timelineVersion).
		Int("findings", len(out)).
		Int("pending", pending).
		Msg("findings recorded")
	return out, nil
}

// ListByCase returns findings ordered by span
func (s *Svc) ListByCase(ctx context.Context, caseID string) ([]domain.Finding, error) {
	var out []domain.Finding
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.repo.Bind(q).ListByCase(ctx, caseID)
		return err
	})
	return out, err
}

// PendingCount counts findings still blocking finalization
func (s *Svc) PendingCount(ctx context.Context, caseID string) (int, error) {
	var n int
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		n, err = s.repo.Bind(q).CountPending(ctx, caseID)
		return err
	})
	return n, err
}

// Resolve applies the one-way escalated -> confirmed|rejected move. A row
// that already left the escalated state is a conflict, not a rewrite
func (s *Svc) Resolve(ctx context.Context, findingID string, to domain.Disposition,
	reason string, confidence float64,
) (domain.Finding, error) {
	if !domain.CanResolve(domain.DispositionEscalated, to) {
		return domain.Finding{}, perr.InvalidArgf("cannot resolve to %q", to)
	}
	var out domain.Finding
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		f, ok, err := r.ResolvePending(ctx, findingID, to, reason, confidence, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			cur, gerr := r.Get(ctx, findingID)
			if gerr != nil {
				return gerr
			}
			return perr.Conflictf("finding %s is already %s", findingID, cur.Disposition)
		}
		out = f
		return nil
	})
	if err != nil {
		return domain.Finding{}, err
	}
	logger.C(ctx).Info().
		Str("finding_id", findingID).
		Str("disposition", string(to)).
		Str("reason", reason).
		Msg("finding resolved")
	return out, nil
}

// Lease claims up to limit due pending findings for an escalation worker
func (s *Svc) Lease(ctx context.Context, now time.Time, limit int) ([]domain.Finding, error) {
	var out []domain.Finding
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.repo.Bind(q).LeaseDue(ctx, now, s.hold, limit)
		return err
	})
	return out, err
}

// Retry reschedules a leased finding after a failed provider call
func (s *Svc) Retry(ctx context.Context, findingID string, attempts int, nextAttemptAt time.Time) error {
	return s.tx.Tx(ctx, func(q repokit.Queryer) error {
		return s.repo.Bind(q).SetRetry(ctx, findingID, attempts, nextAttemptAt, s.now().UTC())
	})
}
