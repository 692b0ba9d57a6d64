// Package repo provides repository implementations for the cases service
package repo

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/cases/domain"
)

type binder struct{}

// NewPG returns a Postgres binder for domain.CaseRepo
func NewPG() repokit.Binder[domain.CaseRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.CaseRepo { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

const caseCols = `id, tenant_id, title, status, warnings, created_at, updated_at`

func scanCase(row repokit.Row) (domain.Case, error) {
	var c domain.Case
	err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.Status, &c.Warnings, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *pg) Insert(ctx context.Context, c domain.Case) error {
	const q = `
		INSERT INTO cases (id, tenant_id, title, status, warnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.Exec(ctx, q, c.ID, c.TenantID, c.Title, string(c.Status), c.Warnings, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return perr.FromPostgres(err, "insert case")
	}
	return nil
}

func (s *pg) Get(ctx context.Context, id string) (domain.Case, error) {
	c, err := scanCase(s.q.QueryRow(ctx, `SELECT `+caseCols+` FROM cases WHERE id = $1`, id))
	if err != nil {
		return domain.Case{}, perr.FromPostgresf(err, "get case %s", id)
	}
	return c, nil
}

func (s *pg) ListByStatus(ctx context.Context, statuses []domain.Status, limit int) ([]domain.Case, error) {
	const q = `
		SELECT ` + caseCols + `
		  FROM cases
		 WHERE status = ANY($1)
		 ORDER BY created_at, id
		 LIMIT $2`
	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}
	rows, err := s.q.Query(ctx, q, ss, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list cases by status")
	}
	defer rows.Close()

	var out []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus is a compare-and-set on the current status so two racing
// transitions cannot both win
func (s *pg) UpdateStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (domain.Case, bool, error) {
	const q = `
		UPDATE cases
		   SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		RETURNING ` + caseCols
	c, err := scanCase(s.q.QueryRow(ctx, q, id, string(from), string(to), at))
	if err != nil {
		mapped := perr.FromPostgresf(err, "transition case %s", id)
		if perr.IsCode(mapped, perr.ErrorCodeNotFound) {
			return domain.Case{}, false, nil
		}
		return domain.Case{}, false, mapped
	}
	return c, true, nil
}

func (s *pg) CancelIfActive(ctx context.Context, id string, at time.Time) (domain.Case, bool, error) {
	const q = `
		UPDATE cases
		   SET status = 'cancelled', updated_at = $2
		 WHERE id = $1 AND status NOT IN ('complete', 'partial', 'cancelled')
		RETURNING ` + caseCols
	c, err := scanCase(s.q.QueryRow(ctx, q, id, at))
	if err != nil {
		mapped := perr.FromPostgresf(err, "cancel case %s", id)
		if perr.IsCode(mapped, perr.ErrorCodeNotFound) {
			return domain.Case{}, false, nil
		}
		return domain.Case{}, false, mapped
	}
	return c, true, nil
}

func (s *pg) AppendWarning(ctx context.Context, id, warning string, at time.Time) error {
	const q = `
		UPDATE cases
		   SET warnings = array_append(warnings, $2), updated_at = $3
		 WHERE id = $1`
	tag, err := s.q.Exec(ctx, q, id, warning, at)
	if err != nil {
		return perr.FromPostgresf(err, "append warning to case %s", id)
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("case %s not found", id)
	}
	return nil
}

// InsertSource assigns ingest order inside the statement so concurrent
// attaches to the same case stay dense and ordered
func (s *pg) InsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	const q = `
		INSERT INTO case_sources
			(id, case_id, artifact_id, kind, priority, ingest_order,
			 anchor_wall_clock, anchor_offset_ns, added_at)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(ingest_order), 0) + 1 FROM case_sources WHERE case_id = $2),
			$6, $7, $8)
		RETURNING ingest_order`
	err := s.q.QueryRow(ctx, q,
		src.ID, src.CaseID, src.ArtifactID, string(src.Kind), src.Priority,
		src.AnchorWallClock, int64(src.AnchorOffset), src.AddedAt,
	).Scan(&src.IngestOrder)
	if err != nil {
		return domain.Source{}, perr.FromPostgres(err, "insert case source")
	}
	return src, nil
}

func (s *pg) ListSources(ctx context.Context, caseID string) ([]domain.Source, error) {
	const q = `
		SELECT id, case_id, artifact_id, kind, priority, ingest_order,
		       anchor_wall_clock, anchor_offset_ns, added_at
		  FROM case_sources
		 WHERE case_id = $1
		 ORDER BY ingest_order`
	rows, err := s.q.Query(ctx, q, caseID)
	if err != nil {
		return nil, perr.FromPostgres(err, "list case sources")
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var (
			src      domain.Source
			offsetNS int64
		)
		if err := rows.Scan(&src.ID, &src.CaseID, &src.ArtifactID, &src.Kind, &src.Priority,
			&src.IngestOrder, &src.AnchorWallClock, &offsetNS, &src.AddedAt); err != nil {
			return nil, err
		}
		src.AnchorOffset = time.Duration(offsetNS)
		out = append(out, src)
	}
	return out, rows.Err()
}
