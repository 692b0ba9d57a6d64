package repo

import (
	"context"
	"encoding/json"
	"time"

	"custodian/internal/core/timeline"
	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/cases/domain"
)

type timelineBinder struct{}

// NewTimelinePG returns a Postgres binder for domain.TimelineRepo
func NewTimelinePG() repokit.Binder[domain.TimelineRepo] { return timelineBinder{} }

// Bind implements repokit.Binder
func (timelineBinder) Bind(q repokit.Queryer) domain.TimelineRepo { return &timelinePG{q: q} }

type timelinePG struct{ q repokit.Queryer }

// Insert writes the timeline under the next version for the case. Versions
// only grow; an existing version is never overwritten
func (s *timelinePG) Insert(ctx context.Context, t timeline.Timeline) (int, error) {
	entries, err := json.Marshal(t.Entries)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnknown, "encode timeline entries")
	}
	markers, err := json.Marshal(t.Markers)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnknown, "encode timeline markers")
	}

	const q = `
		INSERT INTO timelines (case_id, version, strategy, entries, markers, created_at)
		VALUES ($1,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM timelines WHERE case_id = $1),
			$2, $3, $4, $5)
		RETURNING version`
	var version int
	err = s.q.QueryRow(ctx, q, t.CaseID, string(t.Strategy), entries, markers, time.Now().UTC()).
		Scan(&version)
	if err != nil {
		return 0, perr.FromPostgres(err, "insert timeline")
	}
	return version, nil
}

func (s *timelinePG) Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error) {
	const q = `
		SELECT case_id, version, strategy, entries, markers
		  FROM timelines
		 WHERE case_id = $1 AND version = $2`
	return s.scan(s.q.QueryRow(ctx, q, caseID, version))
}

func (s *timelinePG) Latest(ctx context.Context, caseID string) (timeline.Timeline, error) {
	const q = `
		SELECT case_id, version, strategy, entries, markers
		  FROM timelines
		 WHERE case_id = $1
		 ORDER BY version DESC
		 LIMIT 1`
	return s.scan(s.q.QueryRow(ctx, q, caseID))
}

func (s *timelinePG) scan(row repokit.Row) (timeline.Timeline, error) {
	var (
		t        timeline.Timeline
		strategy string
		entries  []byte
		markers  []byte
	)
	if err := row.Scan(&t.CaseID, &t.Version, &strategy, &entries, &markers); err != nil {
		return timeline.Timeline{}, perr.FromPostgres(err, "get timeline")
	}
	t.Strategy = timeline.Strategy(strategy)
	if err := json.Unmarshal(entries, &t.Entries); err != nil {
		return timeline.Timeline{}, perr.Wrap(err, perr.ErrorCodeUnknown, "decode timeline entries")
	}
	if err := json.Unmarshal(markers, &t.Markers); err != nil {
		return timeline.Timeline{}, perr.Wrap(err, perr.ErrorCodeUnknown, "decode timeline markers")
	}
	return t, nil
}
