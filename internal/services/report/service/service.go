// Package service assembles finished cases into tier-gated reports
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"custodian/internal/adapters/providers/citation"
	"custodian/internal/core/doctrine"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	casesdomain "custodian/internal/services/cases/domain"
	findingsdomain "custodian/internal/services/findings/domain"
	"custodian/internal/services/report/domain"
)

// watermark is the overlay text applied below the forensic tier
const watermark = "EVALUATION COPY - NOT FOR EVIDENTIARY USE"

// doctrineCitations maps doctrine tags to the authorities cited for them.
// Resolution goes through the citation port; ids unknown to the provider
// are simply omitted
var doctrineCitations = map[doctrine.Tag][]string{
	doctrine.TagFourth:     {"terry-v-ohio-1968", "katz-v-united-states-1967"},
	doctrine.TagFifth:      {"miranda-v-arizona-1966"},
	doctrine.TagUseOfForce: {"graham-v-connor-1989", "tennessee-v-garner-1985"},
	doctrine.TagFourteenth: {"whren-v-united-states-1996"},
}

// Svc implements domain.AssemblerPort
type Svc struct {
	cases     casesdomain.CasePort
	timelines casesdomain.TimelinePort
	findings  findingsdomain.StorePort
	citations citation.Port
	now       func() time.Time
}

// New constructs the report service. citations may be nil; reports then
// render without resolved authorities
func New(cases casesdomain.CasePort, timelines casesdomain.TimelinePort,
	findings findingsdomain.StorePort, citations citation.Port,
) *Svc {
	return &Svc{cases: cases, timelines: timelines, findings: findings, citations: citations, now: time.Now}
}

// Render assembles the report. Finalization is blocked while any finding is
// still escalated: an incomplete analysis must not present as final
func (s *Svc) Render(ctx context.Context, caseID string, tier domain.Tier) (domain.Report, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return domain.Report{}, err
	}

	pending, err := s.findings.PendingCount(ctx, caseID)
	if err != nil {
		return domain.Report{}, err
	}
	if pending > 0 {
		return domain.Report{}, perr.PendingFindingsf(
			"case %s has %d findings awaiting inference", caseID, pending)
	}

	fnds, err := s.findings.ListByCase(ctx, caseID)
	if err != nil {
		return domain.Report{}, err
	}

	rep := domain.Report{
		CaseID:      c.ID,
		Title:       c.Title,
		Status:      c.Status,
		Tier:        tier,
		Warnings:    c.Warnings,
		GeneratedAt: s.now().UTC(),
	}
	if c.Status == casesdomain.StatusCancelled {
		rep.Banner = "cancelled"
	}
	if tier.Watermarked() {
		rep.Watermark = watermark
	}

	// a cancelled case may have no timeline yet; render what exists
	if tl, err := s.timelines.Latest(ctx, caseID); err == nil {
		rep.TimelineVersion = tl.Version
		rep.TimelineSpan = tl.Span()
		rep.EntryCount = len(tl.Entries)
		rep.MarkerCount = len(tl.Markers)
	} else if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.Report{}, err
	}

	cits := s.resolveCitations(ctx, fnds)
	for _, f := range fnds {
		rf := domain.Finding{
			Doctrine:    f.Doctrine,
			Disposition: f.Disposition,
			SpanStart:   f.SpanStart,
			SpanEnd:     f.SpanEnd,
			Confidence:  f.Confidence,
			Severity:    f.Severity,
			Summary:     f.Summary,
			Reason:      f.Reason,
		}
		if tier.Redacted() {
			rf.Summary = fmt.Sprintf("%s finding (%s)", f.Doctrine, f.Disposition)
			rf.Reason = ""
		}
		for _, id := range doctrineCitations[f.Doctrine] {
			if cit, ok := cits[id]; ok {
				rf.Citations = append(rf.Citations, cit)
			}
		}
		rep.Findings = append(rep.Findings, rf)
	}

	logger.C(ctx).Info().
		Str("case_id", caseID).
		Str("tier", string(tier)).
		Int("findings", len(rep.Findings)).
		Bool("watermarked", rep.Watermark != "").
		Msg("report rendered")
	return rep, nil
}

// resolveCitations looks up every authority the findings touch in one call.
// Lookup failure degrades the report, it never blocks it
func (s *Svc) resolveCitations(ctx context.Context, fnds []findingsdomain.Finding) map[string]citation.Citation {
	if s.citations == nil || len(fnds) == 0 {
		return nil
	}
	want := map[string]struct{}{}
	for _, f := range fnds {
		for _, id := range doctrineCitations[f.Doctrine] {
			want[id] = struct{}{}
		}
	}
	if len(want) == 0 {
		return nil
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out, err := s.citations.Lookup(ctx, ids)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("citation lookup failed, rendering without authorities")
		return nil
	}
	return out
}
