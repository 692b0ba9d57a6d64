package normalize

import (
	"time"

	"custodian/internal/core/event"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
)

// DefaultConfidenceFloor flags segments below it as low confidence
const DefaultConfidenceFloor = 0.35

// Config tunes the normalizer
type Config struct {
	// ConfidenceFloor below which events are flagged low_confidence, never dropped
	ConfidenceFloor float64
}

// Normalizer converts raw segments into events, one adapter per source kind
type Normalizer struct {
	floor float64
}

// Output carries the normalized events plus the explicit skip count so callers
// can account for every input segment: len(Events) + Skipped == len(raw)
type Output struct {
	Events  []event.Event
	Skipped int
}

// New constructs a Normalizer
func New(cfg Config) *Normalizer {
	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Normalizer{floor: floor}
}

// Normalize dispatches to the adapter for kind.
// Unknown kinds are a hard failure with a source adapter code
func (n *Normalizer) Normalize(sourceID string, kind event.SourceKind, raw []event.RawSegment) (Output, error) {
	switch kind {
	case event.KindTranscript:
		return n.transcript(sourceID, raw)
	case event.KindOCR:
		return n.ocr(sourceID, raw)
	case event.KindCADLog:
		return n.cadlog(sourceID, raw)
	case event.KindAnnotation:
		return n.annotation(sourceID, raw)
	}
	return Output{}, perr.SourceAdapterf("unrecognized source kind %q", kind)
}

// transcript trusts provider-reported timestamps and cleans the text
func (n *Normalizer) transcript(sourceID string, raw []event.RawSegment) (Output, error) {
	out := Output{Events: make([]event.Event, 0, len(raw))}
	for _, seg := range raw {
		ev := event.Event{
			SourceID:   sourceID,
			Kind:       event.KindTranscript,
			Start:      secs(seg.StartSeconds),
			End:        secs(seg.EndSeconds),
			Speaker:    seg.Speaker,
			Text:       cleanText(seg.Text),
			Confidence: seg.Confidence,
		}
		if ev.End < ev.Start {
			// provider glitch: clamp to a point event rather than dropping evidence
			ev.End = ev.Start
		}
		n.flag(&ev)
		if err := ev.Validate(); err != nil {
			return Output{}, perr.Wrapf(err, perr.ErrorCodeSourceAdapter, "transcript segment for %s", sourceID)
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// ocr assigns synthetic zero-duration offsets in page order
func (n *Normalizer) ocr(sourceID string, raw []event.RawSegment) (Output, error) {
	out := Output{Events: make([]event.Event, 0, len(raw))}
	for i, seg := range raw {
		page := seg.Page
		if page <= 0 {
			page = i + 1
		}
		off := time.Duration(page-1) * time.Second
		ev := event.Event{
			SourceID:   sourceID,
			Kind:       event.KindOCR,
			Start:      off,
			End:        off,
			Text:       cleanText(seg.Text),
			Confidence: seg.Confidence,
		}
		n.flag(&ev)
		if err := ev.Validate(); err != nil {
			return Output{}, perr.Wrapf(err, perr.ErrorCodeSourceAdapter, "ocr span for %s", sourceID)
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// cadlog parses delimited or fixed-width CAD lines into point events.
// Unparseable lines are the only segments ever skipped, and each skip is logged
func (n *Normalizer) cadlog(sourceID string, raw []event.RawSegment) (Output, error) {
	log := logger.Named("normalize")
	out := Output{Events: make([]event.Event, 0, len(raw))}
	var base time.Duration
	haveBase := false
	for i, seg := range raw {
		ln, ok := parseCADLine(seg.Line)
		if !ok {
			out.Skipped++
			log.Warn().
				Str("source_id", sourceID).
				Int("line_no", i).
				Msg("skipping unparseable cad line")
			continue
		}
		if !haveBase {
			base = ln.at
			haveBase = true
		}
		off := ln.at - base
		if off < 0 {
			// out-of-order CAD line, pin to stream start
			off = 0
		}
		ev := event.Event{
			SourceID:   sourceID,
			Kind:       event.KindCADLog,
			Start:      off,
			End:        off,
			Speaker:    ln.unit,
			Text:       cleanText(ln.text),
			Confidence: 1,
		}
		if err := ev.Validate(); err != nil {
			return Output{}, perr.Wrapf(err, perr.ErrorCodeSourceAdapter, "cad line for %s", sourceID)
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// annotation passes manual notes through as authored
func (n *Normalizer) annotation(sourceID string, raw []event.RawSegment) (Output, error) {
	out := Output{Events: make([]event.Event, 0, len(raw))}
	for _, seg := range raw {
		ev := event.Event{
			SourceID:   sourceID,
			Kind:       event.KindAnnotation,
			Start:      secs(seg.StartSeconds),
			End:        secs(seg.EndSeconds),
			Speaker:    seg.Speaker,
			Text:       cleanText(seg.Text),
			Confidence: 1,
		}
		if ev.End < ev.Start {
			ev.End = ev.Start
		}
		if err := ev.Validate(); err != nil {
			return Output{}, perr.Wrapf(err, perr.ErrorCodeSourceAdapter, "annotation for %s", sourceID)
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// flag marks low confidence without dropping; silent dropping of evidence is disallowed
func (n *Normalizer) flag(ev *event.Event) {
	if ev.Confidence < n.floor {
		ev.LowConfidence = true
	}
}

func secs(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
