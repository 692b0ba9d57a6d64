// Package service runs rule-phase detection over persisted timelines
package service

import (
	"context"

	"custodian/internal/core/detector"
	"custodian/internal/core/timeline"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	casesdomain "custodian/internal/services/cases/domain"
	findingsdomain "custodian/internal/services/findings/domain"
)

// Svc implements domain.RunnerPort
type Svc struct {
	det       *detector.Detector
	timelines casesdomain.TimelinePort
	findings  findingsdomain.StorePort
}

// New constructs the detection service
func New(det *detector.Detector, timelines casesdomain.TimelinePort,
	findings findingsdomain.StorePort,
) *Svc {
	return &Svc{det: det, timelines: timelines, findings: findings}
}

// Run applies the doctrine pack to the timeline version and records one
// finding per candidate. Re-runs refresh rows, they never duplicate
func (s *Svc) Run(ctx context.Context, caseID string, timelineVersion int) ([]findingsdomain.Finding, error) {
	if caseID == "" {
		return nil, perr.InvalidArgf("case id is required")
	}

	var (
		tl  timeline.Timeline
		err error
	)
	if timelineVersion > 0 {
		tl, err = s.timelines.Get(ctx, caseID, timelineVersion)
	} else {
		tl, err = s.timelines.Latest(ctx, caseID)
	}
	if err != nil {
		return nil, err
	}

	cands := s.det.Detect(tl)
	logger.C(ctx).Info().
		Str("case_id", caseID).
		Int("timeline_version", tl.Version).
		Int("entries", len(tl.Entries)).
		Int("candidates", len(cands)).
		Msg("detection pass complete")

	return s.findings.Record(ctx, caseID, tl.Version, cands)
}
