// Package repo provides repository implementations for the quota service
package repo

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/quota/domain"
)

// binder implements repokit.Binder[domain.LedgerRepo]
type binder struct{}

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.LedgerRepo { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

func (s *pg) EnsurePeriod(ctx context.Context, tenantID string, kind domain.ResourceKind,
	start, end time.Time, cap domain.Cap,
) error {
	const q = `
		INSERT INTO quota_periods
			(tenant_id, kind, period_start, period_end, used, cap, cap_mode)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (tenant_id, kind, period_start) DO NOTHING`
	_, err := s.q.Exec(ctx, q, tenantID, string(kind), start, end, cap.Amount, string(cap.Mode))
	if err != nil {
		return perr.FromPostgres(err, "ensure quota period")
	}
	return nil
}

// Consume is the single atomic check-and-increment: the cap test and the
// increment happen in one UPDATE so there is no read-then-write race window
func (s *pg) Consume(ctx context.Context, tenantID string, kind domain.ResourceKind,
	now time.Time, amount int64,
) (domain.Period, bool, error) {
	const q = `
		UPDATE quota_periods
		   SET used = used + $4
		 WHERE tenant_id = $1
		   AND kind = $2
		   AND period_start <= $3 AND period_end > $3
		   AND archived_at IS NULL
		   AND (cap_mode = 'soft' OR used + $4 <= cap)
		RETURNING tenant_id, kind, period_start, period_end, used, cap, cap_mode`
	var p domain.Period
	err := s.q.QueryRow(ctx, q, tenantID, string(kind), now, amount).Scan(
		&p.TenantID, &p.Kind, &p.PeriodStart, &p.PeriodEnd, &p.Used, &p.Cap, &p.Mode)
	if err != nil {
		mapped := perr.FromPostgres(err, "quota consume")
		if perr.IsCode(mapped, perr.ErrorCodeNotFound) {
			// no row updated: the hard cap held, or the period is missing
			cur, gerr := s.current(ctx, tenantID, kind, now)
			if gerr != nil {
				return domain.Period{}, false, gerr
			}
			return cur, false, nil
		}
		return domain.Period{}, false, mapped
	}
	return p, true, nil
}

func (s *pg) current(ctx context.Context, tenantID string, kind domain.ResourceKind,
	now time.Time,
) (domain.Period, error) {
	const q = `
		SELECT tenant_id, kind, period_start, period_end, used, cap, cap_mode
		  FROM quota_periods
		 WHERE tenant_id = $1 AND kind = $2
		   AND period_start <= $3 AND period_end > $3
		   AND archived_at IS NULL`
	var p domain.Period
	err := s.q.QueryRow(ctx, q, tenantID, string(kind), now).Scan(
		&p.TenantID, &p.Kind, &p.PeriodStart, &p.PeriodEnd, &p.Used, &p.Cap, &p.Mode)
	if err != nil {
		return domain.Period{}, perr.FromPostgres(err, "current quota period")
	}
	return p, nil
}

func (s *pg) Release(ctx context.Context, tenantID string, kind domain.ResourceKind,
	now time.Time, amount int64,
) error {
	const q = `
		UPDATE quota_periods
		   SET used = GREATEST(used - $4, 0)
		 WHERE tenant_id = $1 AND kind = $2
		   AND period_start <= $3 AND period_end > $3
		   AND archived_at IS NULL`
	_, err := s.q.Exec(ctx, q, tenantID, string(kind), now, amount)
	if err != nil {
		return perr.FromPostgres(err, "quota release")
	}
	return nil
}

func (s *pg) ListCurrent(ctx context.Context, tenantID string, now time.Time) ([]domain.Period, error) {
	const q = `
		SELECT tenant_id, kind, period_start, period_end, used, cap, cap_mode
		  FROM quota_periods
		 WHERE tenant_id = $1
		   AND period_start <= $2 AND period_end > $2
		   AND archived_at IS NULL
		 ORDER BY kind`
	rows, err := s.q.Query(ctx, q, tenantID, now)
	if err != nil {
		return nil, perr.FromPostgres(err, "list quota periods")
	}
	defer rows.Close()

	var out []domain.Period
	for rows.Next() {
		var p domain.Period
		if err := rows.Scan(&p.TenantID, &p.Kind, &p.PeriodStart, &p.PeriodEnd, &p.Used, &p.Cap, &p.Mode); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CloseExpired archives every ended period and returns the final counters so
// the caller can emit billing snapshots
func (s *pg) CloseExpired(ctx context.Context, now time.Time) ([]domain.Period, error) {
	const q = `
		UPDATE quota_periods
		   SET archived_at = $1
		 WHERE period_end <= $1
		   AND archived_at IS NULL
		RETURNING tenant_id, kind, period_start, period_end, used, cap, cap_mode`
	rows, err := s.q.Query(ctx, q, now)
	if err != nil {
		return nil, perr.FromPostgres(err, "close quota periods")
	}
	defer rows.Close()

	var out []domain.Period
	for rows.Next() {
		var p domain.Period
		if err := rows.Scan(&p.TenantID, &p.Kind, &p.PeriodStart, &p.PeriodEnd, &p.Used, &p.Cap, &p.Mode); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
