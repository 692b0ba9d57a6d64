package service

import (
	"context"

	"custodian/internal/adapters/providers/inference"
	"custodian/internal/platform/logger"
	findingsdomain "custodian/internal/services/findings/domain"
)

// handle processes a single leased finding. The provider call runs under its
// own timeout; a failed call reschedules with backoff until attempts are
// exhausted, at which point the finding resolves rejected with reason
// provider-unavailable so finalization is never blocked forever
func (s *Svc) handle(ctx context.Context, f findingsdomain.Finding) error {
	in := inference.Input{
		CaseID:          f.CaseID,
		TimelineVersion: f.TimelineVersion,
		StartIdx:        f.StartIdx,
		EndIdx:          f.EndIdx,
		Doctrine:        string(f.Doctrine),
		RuleID:          f.RuleID,
		Summary:         f.Summary,
		Excerpt:         s.excerpt(ctx, f),
		Confidence:      f.Confidence,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	assessment, err := s.provider.Assess(callCtx, in)
	cancel()

	if err != nil {
		attempts := f.Attempts + 1
		if attempts >= s.cfg.MaxAttempts {
			logger.Named("escalate-worker").Warn().
				Str("finding_id", f.ID).
				Int("attempts", attempts).
				Msg("provider attempts exhausted, rejecting")
			_, rerr := s.queue.Resolve(ctx, f.ID, findingsdomain.DispositionRejected,
				findingsdomain.ReasonProviderUnavailable, f.Confidence)
			return rerr
		}
		return s.queue.Retry(ctx, f.ID, attempts, s.now().UTC().Add(s.backoff(attempts)))
	}

	to := findingsdomain.DispositionRejected
	if assessment.Confirmed {
		to = findingsdomain.DispositionConfirmed
	}
	_, err = s.queue.Resolve(ctx, f.ID, to, assessment.Rationale, assessment.Confidence)
	return err
}

// excerpt pulls the span's entry texts for provider context. Best effort:
// a missing timeline never blocks the attempt
func (s *Svc) excerpt(ctx context.Context, f findingsdomain.Finding) []string {
	tl, err := s.timelines.Get(ctx, f.CaseID, f.TimelineVersion)
	if err != nil {
		logger.Named("escalate-worker").Debug().Err(err).
			Str("finding_id", f.ID).
			Msg("timeline load failed, sending summary only")
		return nil
	}
	if f.StartIdx < 0 || f.StartIdx >= len(tl.Entries) {
		return nil
	}
	end := f.EndIdx
	if end >= len(tl.Entries) {
		end = len(tl.Entries) - 1
	}
	if end-f.StartIdx+1 > s.cfg.ExcerptLimit {
		end = f.StartIdx + s.cfg.ExcerptLimit - 1
	}
	out := make([]string, 0, end-f.StartIdx+1)
	for _, e := range tl.Entries[f.StartIdx : end+1] {
		out = append(out, e.Text)
	}
	return out
}
