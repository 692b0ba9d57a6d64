package service

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"custodian/internal/core/event"
	"custodian/internal/core/timeline"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	casesdomain "custodian/internal/services/cases/domain"
	"custodian/internal/services/pipeline/domain"
)

// sourceOut is one source's normalization outcome crossing the barrier
type sourceOut struct {
	src    casesdomain.Source
	events []event.Event
	err    error
}

// Process drives the case from ingesting through detection. Per-source
// provider and adapter failures are absorbed as warnings and downgrade the
// case to partial; integrity and quota failures fail the run
func (s *Svc) Process(ctx context.Context, caseID string) (domain.Result, error) {
	log := logger.C(ctx)

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return domain.Result{}, err
	}
	if c.Status == casesdomain.StatusCreated {
		if c, err = s.cases.Transition(ctx, caseID, casesdomain.StatusIngesting); err != nil {
			return domain.Result{}, err
		}
	}
	if c.Status != casesdomain.StatusIngesting {
		return domain.Result{}, perr.Conflictf("case %s is %s, cannot process", caseID, c.Status)
	}

	srcs, err := s.cases.Sources(ctx, caseID)
	if err != nil {
		return domain.Result{}, err
	}
	if len(srcs) == 0 {
		return domain.Result{}, perr.InsufficientEventsf("case %s has no sources", caseID)
	}

	// fan out normalization; the semaphore bounds provider pressure
	outs := make([]sourceOut, len(srcs))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range srcs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			events, err := s.gather(ctx, c, srcs[i])
			outs[i] = sourceOut{src: srcs[i], events: events, err: err}
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return domain.Result{}, s.cancelled(ctx, c, srcs)
	}

	var (
		warnings []string
		tlSrcs   []timeline.Source
	)
	for _, o := range outs {
		if o.err != nil {
			if fatal(o.err) {
				return domain.Result{}, o.err
			}
			warnings = append(warnings, fmt.Sprintf("source %s: %v", o.src.ID, o.err))
			continue
		}
		ts := timeline.Source{
			ID:          o.src.ID,
			Kind:        o.src.Kind,
			Priority:    o.src.Priority,
			IngestOrder: o.src.IngestOrder,
			Events:      o.events,
		}
		if ts.Priority == 0 {
			ts.Priority = timeline.DefaultPriority(o.src.Kind)
		}
		if o.src.AnchorWallClock != nil {
			ts.Anchor = &timeline.Anchor{
				WallClock: *o.src.AnchorWallClock,
				Offset:    o.src.AnchorOffset,
			}
		}
		tlSrcs = append(tlSrcs, ts)
	}

	if _, err = s.cases.Transition(ctx, caseID, casesdomain.StatusSynchronizing); err != nil {
		return domain.Result{}, err
	}

	tl, err := timeline.Synchronize(caseID, tlSrcs, timeline.Config{AnchorTolerance: s.cfg.AnchorTolerance})
	if err != nil {
		return domain.Result{}, err
	}
	version, err := s.timelines.Save(ctx, tl)
	if err != nil {
		return domain.Result{}, err
	}

	if ctx.Err() != nil {
		return domain.Result{}, s.cancelled(ctx, c, srcs)
	}

	if _, err = s.cases.Transition(ctx, caseID, casesdomain.StatusDetecting); err != nil {
		return domain.Result{}, err
	}

	found, err := s.detect.Run(ctx, caseID, version)
	if err != nil {
		return domain.Result{}, err
	}

	final := casesdomain.StatusComplete
	if len(warnings) > 0 {
		final = casesdomain.StatusPartial
		for _, w := range warnings {
			if werr := s.cases.AddWarning(ctx, caseID, w); werr != nil {
				log.Warn().Err(werr).Str("case_id", caseID).Msg("warning record failed")
			}
		}
	}
	if _, err = s.cases.Transition(ctx, caseID, final); err != nil {
		return domain.Result{}, err
	}

	log.Info().
		Str("case_id", caseID).
		Str("status", string(final)).
		Int("timeline_version", version).
		Int("findings", len(found)).
		Int("warnings", len(warnings)).
		Msg("pipeline run complete")

	return domain.Result{
		CaseID:          caseID,
		Status:          final,
		TimelineVersion: version,
		Findings:        len(found),
		Warnings:        warnings,
	}, nil
}

// gather fetches raw segments for one source and normalizes them
func (s *Svc) gather(ctx context.Context, c casesdomain.Case, src casesdomain.Source) ([]event.Event, error) {
	art, err := s.custody.Get(ctx, src.ArtifactID)
	if err != nil {
		return nil, err
	}

	var raw []event.RawSegment
	switch src.Kind {
	case event.KindTranscript:
		raw, err = s.transcribe.Transcribe(ctx, transcriptionInput(art))
	case event.KindOCR:
		raw, err = s.extract.Extract(ctx, ocrInput(art))
	case event.KindCADLog, event.KindAnnotation:
		raw, err = s.readLines(ctx, src.ArtifactID)
	default:
		return nil, perr.SourceAdapterf("unknown source kind %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}

	out, err := s.norm.Normalize(src.ID, src.Kind, raw)
	if err != nil {
		return nil, err
	}
	if out.Skipped > 0 {
		logger.C(ctx).Warn().
			Str("case_id", c.ID).
			Str("source_id", src.ID).
			Int("skipped", out.Skipped).
			Msg("unparseable segments skipped")
	}
	return out.Events, nil
}

// readLines turns stored text bytes into one raw segment per line
func (s *Svc) readLines(ctx context.Context, artifactID string) ([]event.RawSegment, error) {
	rc, err := s.custody.Open(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []event.RawSegment
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		out = append(out, event.RawSegment{Text: line, Confidence: 1})
	}
	if err := sc.Err(); err != nil {
		return nil, perr.SourceAdapterf("read artifact %s: %v", artifactID, err)
	}
	return out, nil
}

// cancelled settles a cancelled run: the case is marked (never deleted) and
// the admission units for its sources are released. Cleanup runs detached
// from the cancelled context
func (s *Svc) cancelled(ctx context.Context, c casesdomain.Case, srcs []casesdomain.Source) error {
	cleanup := context.WithoutCancel(ctx)
	log := logger.Named("pipeline")

	if _, err := s.cases.Cancel(cleanup, c.ID); err != nil && !perr.IsCode(err, perr.ErrorCodeConflict) {
		log.Error().Err(err).Str("case_id", c.ID).Msg("cancel mark failed")
	}

	if s.quota != nil {
		for _, src := range srcs {
			art, err := s.custody.Get(cleanup, src.ArtifactID)
			if err != nil {
				log.Warn().Err(err).Str("artifact_id", src.ArtifactID).Msg("release lookup failed")
				continue
			}
			kind := resourceKindFor(art.Mime)
			if err := s.quota.Release(cleanup, c.TenantID, kind, 1); err != nil {
				log.Warn().Err(err).Str("tenant_id", c.TenantID).Str("kind", string(kind)).
					Msg("quota release failed")
			}
		}
	}
	return perr.Wrapf(ctx.Err(), perr.ErrorCodeConflict, "case %s cancelled", c.ID)
}
