// Package service implements the quota ledger over Postgres with a
// ClickHouse usage event stream
package service

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	"custodian/internal/platform/config"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	"custodian/internal/platform/store"
	"custodian/internal/services/quota/domain"
)

// Caps maps resource kinds to their per-period plan limits
type Caps map[domain.ResourceKind]domain.Cap

// DefaultCaps are used when a tenant has no explicit plan overrides
func DefaultCaps(cfg config.Conf) Caps {
	return Caps{
		domain.KindVideoCount: {
			Amount: int64(cfg.MayInt("CAP_VIDEO_COUNT", 100)),
			Mode:   domain.CapHard,
		},
		domain.KindPDFCount: {
			Amount: int64(cfg.MayInt("CAP_PDF_COUNT", 500)),
			Mode:   domain.CapHard,
		},
		domain.KindStorageBytes: {
			Amount: int64(cfg.MayInt("CAP_STORAGE_GB", 50)) << 30,
			Mode:   domain.CapSoft,
		},
	}
}

// usage event columns in insert order
var usageCols = []string{"tenant_id", "kind", "amount", "admitted", "at"}

// snapshot columns in insert order
var snapshotCols = []string{"tenant_id", "kind", "period_end", "used", "cap", "overage", "at"}

// Svc implements domain.LedgerPort and domain.CloserPort on Postgres
type Svc struct {
	tx   repokit.TxRunner
	repo repokit.Binder[domain.LedgerRepo]
	ch   store.Clickhouse
	caps Caps
	now  func() time.Time
}

// New constructs the ledger service. ch may be nil; usage events are then
// skipped (single-node mode)
func New(tx repokit.TxRunner, repo repokit.Binder[domain.LedgerRepo], ch store.Clickhouse, caps Caps) *Svc {
	return &Svc{tx: tx, repo: repo, ch: ch, caps: caps, now: time.Now}
}

// TryConsume atomically admits or denies the amount against the current
// period, creating the period lazily on first use
func (s *Svc) TryConsume(ctx context.Context, tenantID string, kind domain.ResourceKind, amount int64) (domain.Decision, error) {
	if amount <= 0 {
		return domain.Decision{}, perr.InvalidArgf("amount must be positive")
	}
	cap, ok := s.caps[kind]
	if !ok {
		return domain.Decision{}, perr.InvalidArgf("no cap configured for kind %q", kind)
	}

	now := s.now().UTC()
	start, end := periodBounds(now)

	var (
		p        domain.Period
		admitted bool
	)
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		if err := r.EnsurePeriod(ctx, tenantID, kind, start, end, cap); err != nil {
			return err
		}
		var err error
		p, admitted, err = r.Consume(ctx, tenantID, kind, now, amount)
		return err
	})
	if err != nil {
		return domain.Decision{}, err
	}

	s.emitUsage(ctx, tenantID, kind, amount, admitted, now)

	d := domain.Decision{
		Admitted: admitted,
		Used:     p.Used,
		Cap:      p.Cap,
		Overage:  p.Overage(),
	}
	if !admitted {
		d.Reason = "hard cap reached"
	}
	return d, nil
}

// Release compensates a reservation after a downstream failure
func (s *Svc) Release(ctx context.Context, tenantID string, kind domain.ResourceKind, amount int64) error {
	if amount <= 0 {
		return perr.InvalidArgf("amount must be positive")
	}
	now := s.now().UTC()
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		return s.repo.Bind(q).Release(ctx, tenantID, kind, now, amount)
	})
	if err != nil {
		return err
	}
	s.emitUsage(ctx, tenantID, kind, -amount, true, now)
	return nil
}

// Snapshot returns the open period counters for a tenant
func (s *Svc) Snapshot(ctx context.Context, tenantID string) ([]domain.Period, error) {
	var out []domain.Period
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.repo.Bind(q).ListCurrent(ctx, tenantID, s.now().UTC())
		return err
	})
	return out, err
}

// CloseExpired archives ended periods and emits billing snapshots
func (s *Svc) CloseExpired(ctx context.Context, now time.Time) ([]domain.Snapshot, error) {
	var closed []domain.Period
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		closed, err = s.repo.Bind(q).CloseExpired(ctx, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	snaps := make([]domain.Snapshot, 0, len(closed))
	rows := make([][]any, 0, len(closed))
	for _, p := range closed {
		sn := domain.Snapshot{
			TenantID:  p.TenantID,
			Kind:      p.Kind,
			PeriodEnd: p.PeriodEnd,
			Used:      p.Used,
			Cap:       p.Cap,
			Overage:   p.Overage(),
		}
		snaps = append(snaps, sn)
		rows = append(rows, []any{sn.TenantID, string(sn.Kind), sn.PeriodEnd, sn.Used, sn.Cap, sn.Overage, now})
	}
	if s.ch != nil && len(rows) > 0 {
		if err := s.ch.Insert(ctx, "quota_snapshots", snapshotCols, rows); err != nil {
			// billing consumes these; a failed emit must not lose the close,
			// so log and let the caller retry from the archived rows
			logger.Named("quota").Error().Err(err).Int("snapshots", len(rows)).Msg("snapshot emit failed")
		}
	}
	return snaps, nil
}

func (s *Svc) emitUsage(ctx context.Context, tenantID string, kind domain.ResourceKind, amount int64, admitted bool, at time.Time) {
	if s.ch == nil {
		return
	}
	err := s.ch.Insert(ctx, "quota_usage_events", usageCols, [][]any{{
		tenantID, string(kind), amount, admitted, at,
	}})
	if err != nil {
		logger.Named("quota").Warn().Err(err).Msg("usage event emit failed")
	}
}

// periodBounds returns the calendar-month billing window containing t
func periodBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
