// Package service implements case lifecycle and timeline persistence
package service

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	"custodian/internal/services/cases/domain"

	"github.com/google/uuid"
)

// Svc implements domain.CasePort
type Svc struct {
	tx   repokit.TxRunner
	repo repokit.Binder[domain.CaseRepo]
	now  func() time.Time
}

// New constructs the cases service
func New(tx repokit.TxRunner, repo repokit.Binder[domain.CaseRepo]) *Svc {
	return &Svc{tx: tx, repo: repo, now: time.Now}
}

// Create opens a new case in the created state
func (s *Svc) Create(ctx context.Context, tenantID, title string) (domain.Case, error) {
	if tenantID == "" {
		return domain.Case{}, perr.InvalidArgf("tenant id is required")
	}
	now := s.now().UTC()
	c := domain.Case{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     title,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		return s.repo.Bind(q).Insert(ctx, c)
	})
	if err != nil {
		return domain.Case{}, err
	}
	logger.C(ctx).Info().Str("case_id", c.ID).Str("tenant_id", tenantID).Msg("case created")
	return c, nil
}

// Get returns the case
func (s *Svc) Get(ctx context.Context, caseID string) (domain.Case, error) {
	var c domain.Case
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		c, err = s.repo.Bind(q).Get(ctx, caseID)
		return err
	})
	return c, err
}

// AddSource attaches an artifact to the case; only allowed before the
// synchronize barrier
func (s *Svc) AddSource(ctx context.Context, in domain.AddSourceInput) (domain.Source, error) {
	if _, err := timelinePriority(in.Priority); err != nil {
		return domain.Source{}, err
	}
	src := domain.Source{
		ID:              uuid.NewString(),
		CaseID:          in.CaseID,
		ArtifactID:      in.ArtifactID,
		Kind:            in.Kind,
		Priority:        in.Priority,
		AnchorWallClock: in.AnchorWallClock,
		AnchorOffset:    in.AnchorOffset,
		AddedAt:         s.now().UTC(),
	}
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		c, err := r.Get(ctx, in.CaseID)
		if err != nil {
			return err
		}
		if c.Status != domain.StatusCreated && c.Status != domain.StatusIngesting {
			return perr.Conflictf("case %s is %s, sources are closed", c.ID, c.Status)
		}
		src, err = r.InsertSource(ctx, src)
		return err
	})
	if err != nil {
		return domain.Source{}, err
	}
	return src, nil
}

// Sources lists the case inputs in ingest order
func (s *Svc) Sources(ctx context.Context, caseID string) ([]domain.Source, error) {
	var out []domain.Source
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.repo.Bind(q).ListSources(ctx, caseID)
		return err
	})
	return out, err
}

// ListPending returns cases still awaiting a pipeline run, oldest first
func (s *Svc) ListPending(ctx context.Context, limit int) ([]domain.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Case
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.repo.Bind(q).ListByStatus(ctx,
			[]domain.Status{domain.StatusCreated, domain.StatusIngesting}, limit)
		return err
	})
	return out, err
}

// Transition applies a lifecycle move with compare-and-set semantics
func (s *Svc) Transition(ctx context.Context, caseID string, to domain.Status) (domain.Case, error) {
	var out domain.Case
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		c, err := r.Get(ctx, caseID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(c.Status, to) {
			return perr.Conflictf("case %s cannot move %s -> %s", caseID, c.Status, to)
		}
		moved, ok, err := r.UpdateStatus(ctx, caseID, c.Status, to, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			// someone else won the race between Get and the update
			return perr.Conflictf("case %s changed concurrently", caseID)
		}
		out = moved
		return nil
	})
	if err != nil {
		return domain.Case{}, err
	}
	logger.C(ctx).Info().Str("case_id", caseID).Str("status", string(to)).Msg("case transitioned")
	return out, nil
}

// AddWarning records an absorbed failure on the case
func (s *Svc) AddWarning(ctx context.Context, caseID, warning string) error {
	return s.tx.Tx(ctx, func(q repokit.Queryer) error {
		return s.repo.Bind(q).AppendWarning(ctx, caseID, warning, s.now().UTC())
	})
}

// Cancel moves a non-terminal case to cancelled. Already-terminal cases are
// a conflict; the partial state is retained for audit either way
func (s *Svc) Cancel(ctx context.Context, caseID string) (domain.Case, error) {
	var out domain.Case
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		c, ok, err := r.CancelIfActive(ctx, caseID, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			cur, gerr := r.Get(ctx, caseID)
			if gerr != nil {
				return gerr
			}
			return perr.Conflictf("case %s is already %s", caseID, cur.Status)
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Case{}, err
	}
	logger.C(ctx).Info().Str("case_id", caseID).Msg("case cancelled")
	return out, nil
}

func timelinePriority(p int) (int, error) {
	if p < 0 || p > 9 {
		return 0, perr.InvalidArgf("source priority %d out of range", p)
	}
	return p, nil
}
