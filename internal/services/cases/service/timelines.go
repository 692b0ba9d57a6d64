package service

import (
	"context"

	"custodian/internal/core/timeline"
	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/cases/domain"
)

// TimelineSvc implements domain.TimelinePort
type TimelineSvc struct {
	tx   repokit.TxRunner
	repo repokit.Binder[domain.TimelineRepo]
}

// NewTimelines constructs the timeline persistence service
func NewTimelines(tx repokit.TxRunner, repo repokit.Binder[domain.TimelineRepo]) *TimelineSvc {
	return &TimelineSvc{tx: tx, repo: repo}
}

// Save persists the timeline under the next version for its case
func (s *TimelineSvc) Save(ctx context.Context, t timeline.Timeline) (int, error) {
	if t.CaseID == "" {
		return 0, perr.InvalidArgf("timeline case id is required")
	}
	var version int
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		version, err = s.repo.Bind(q).Insert(ctx, t)
		return err
	})
	return version, err
}

// Get returns a specific timeline version
func (s *TimelineSvc) Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error) {
	var t timeline.Timeline
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		t, err = s.repo.Bind(q).Get(ctx, caseID, version)
		return err
	})
	return t, err
}

// Latest returns the highest timeline version for the case
func (s *TimelineSvc) Latest(ctx context.Context, caseID string) (timeline.Timeline, error) {
	var t timeline.Timeline
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		t, err = s.repo.Bind(q).Latest(ctx, caseID)
		return err
	})
	return t, err
}
