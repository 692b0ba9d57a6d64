// Package repo provides repository implementations for the findings service
package repo

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/findings/domain"
)

type binder struct{}

// NewPG returns a Postgres binder for domain.FindingRepo
func NewPG() repokit.Binder[domain.FindingRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.FindingRepo { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

const findingCols = `id, case_id, timeline_version, rule_id, doctrine,
	span_start_ns, span_end_ns, start_idx, end_idx,
	confidence, severity, summary, disposition, reason,
	attempts, next_attempt_at, created_at, updated_at`

func scanFinding(row repokit.Row) (domain.Finding, error) {
	var (
		f       domain.Finding
		startNS int64
		endNS   int64
	)
	err := row.Scan(&f.ID, &f.CaseID, &f.TimelineVersion, &f.RuleID, &f.Doctrine,
		&startNS, &endNS, &f.StartIdx, &f.EndIdx,
		&f.Confidence, &f.Severity, &f.Summary, &f.Disposition, &f.Reason,
		&f.Attempts, &f.NextAttemptAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return domain.Finding{}, err
	}
	f.SpanStart = time.Duration(startNS)
	f.SpanEnd = time.Duration(endNS)
	return f, nil
}

// Upsert inserts the finding or refreshes the existing row for the same
// (case, timeline version, span, doctrine). Only unresolved rows are
// refreshed: a confirmed or rejected finding is settled and stays settled
func (s *pg) Upsert(ctx context.Context, f domain.Finding) (domain.Finding, error) {
	const q = `
		INSERT INTO findings
			(id, case_id, timeline_version, rule_id, doctrine,
			 span_start_ns, span_end_ns, start_idx, end_idx,
			 confidence, severity, summary, disposition, reason,
			 attempts, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (case_id, timeline_version, span_start_ns, span_end_ns, doctrine)
		DO UPDATE SET
			rule_id    = EXCLUDED.rule_id,
			confidence = EXCLUDED.confidence,
			severity   = EXCLUDED.severity,
			summary    = EXCLUDED.summary,
			updated_at = EXCLUDED.updated_at
		WHERE findings.disposition IN ('rule-matched', 'inference-escalated')
		RETURNING ` + findingCols
	got, err := scanFinding(s.q.QueryRow(ctx, q,
		f.ID, f.CaseID, f.TimelineVersion, f.RuleID, string(f.Doctrine),
		int64(f.SpanStart), int64(f.SpanEnd), f.StartIdx, f.EndIdx,
		f.Confidence, f.Severity, f.Summary, string(f.Disposition), f.Reason,
		f.Attempts, f.NextAttemptAt, f.CreatedAt, f.UpdatedAt))
	if err != nil {
		mapped := perr.FromPostgres(err, "upsert finding")
		if perr.IsCode(mapped, perr.ErrorCodeNotFound) {
			// conflict hit a resolved row; return it untouched
			return s.getBySpan(ctx, f)
		}
		return domain.Finding{}, mapped
	}
	return got, nil
}

func (s *pg) getBySpan(ctx context.Context, f domain.Finding) (domain.Finding, error) {
	const q = `
		SELECT ` + findingCols + `
		  FROM findings
		 WHERE case_id = $1 AND timeline_version = $2
		   AND span_start_ns = $3 AND span_end_ns = $4 AND doctrine = $5`
	got, err := scanFinding(s.q.QueryRow(ctx, q,
		f.CaseID, f.TimelineVersion, int64(f.SpanStart), int64(f.SpanEnd), string(f.Doctrine)))
	if err != nil {
		return domain.Finding{}, perr.FromPostgres(err, "get finding by span")
	}
	return got, nil
}

func (s *pg) Get(ctx context.Context, id string) (domain.Finding, error) {
	f, err := scanFinding(s.q.QueryRow(ctx, `SELECT `+findingCols+` FROM findings WHERE id = $1`, id))
	if err != nil {
		return domain.Finding{}, perr.FromPostgresf(err, "get finding %s", id)
	}
	return f, nil
}

func (s *pg) ListByCase(ctx context.Context, caseID string) ([]domain.Finding, error) {
	const q = `
		SELECT ` + findingCols + `
		  FROM findings
		 WHERE case_id = $1
		 ORDER BY span_start_ns, rule_id, start_idx`
	rows, err := s.q.Query(ctx, q, caseID)
	if err != nil {
		return nil, perr.FromPostgres(err, "list findings")
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *pg) CountPending(ctx context.Context, caseID string) (int, error) {
	const q = `
		SELECT COUNT(*) FROM findings
		 WHERE case_id = $1 AND disposition = 'inference-escalated'`
	var n int
	if err := s.q.QueryRow(ctx, q, caseID).Scan(&n); err != nil {
		return 0, perr.FromPostgres(err, "count pending findings")
	}
	return n, nil
}

// ResolvePending is the one-way gate: the update only applies while the row
// is still escalated, so a resolution can never be overwritten
func (s *pg) ResolvePending(ctx context.Context, id string, to domain.Disposition,
	reason string, confidence float64, at time.Time,
) (domain.Finding, bool, error) {
	const q = `
		UPDATE findings
		   SET disposition = $2, reason = $3, confidence = $4, updated_at = $5
		 WHERE id = $1 AND disposition = 'inference-escalated'
		RETURNING ` + findingCols
	f, err := scanFinding(s.q.QueryRow(ctx, q, id, string(to), reason, confidence, at))
	if err != nil {
		mapped := perr.FromPostgresf(err, "resolve finding %s", id)
		if perr.IsCode(mapped, perr.ErrorCodeNotFound) {
			return domain.Finding{}, false, nil
		}
		return domain.Finding{}, false, mapped
	}
	return f, true, nil
}

// LeaseDue claims due pending findings. SKIP LOCKED keeps concurrent workers
// off each other's rows; bumping next_attempt_at is the lease itself, so a
// crashed worker's claim simply expires
func (s *pg) LeaseDue(ctx context.Context, now time.Time, hold time.Duration, limit int) ([]domain.Finding, error) {
	const q = `
		WITH due AS (
			SELECT id FROM findings
			 WHERE disposition = 'inference-escalated'
			   AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
			 ORDER BY next_attempt_at NULLS FIRST, created_at
			 LIMIT $2
			 FOR UPDATE SKIP LOCKED
		)
		UPDATE findings f
		   SET next_attempt_at = $3, updated_at = $1
		  FROM due
		 WHERE f.id = due.id
		RETURNING ` + findingCols
	rows, err := s.q.Query(ctx, q, now, limit, now.Add(hold))
	if err != nil {
		return nil, perr.FromPostgres(err, "lease findings")
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *pg) SetRetry(ctx context.Context, id string, attempts int, nextAttemptAt, at time.Time) error {
	const q = `
		UPDATE findings
		   SET attempts = $2, next_attempt_at = $3, updated_at = $4
		 WHERE id = $1 AND disposition = 'inference-escalated'`
	_, err := s.q.Exec(ctx, q, id, attempts, nextAttemptAt, at)
	if err != nil {
		return perr.FromPostgresf(err, "set retry for finding %s", id)
	}
	return nil
}
