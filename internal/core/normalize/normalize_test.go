package normalize_test

import (
	"testing"
	"time"

	"custodian/internal/core/event"
	"custodian/internal/core/normalize"
	perr "custodian/internal/platform/errors"
)

func TestNormalizeTranscript(t *testing.T) {
	n := normalize.New(normalize.Config{})
	raw := []event.RawSegment{
		{Speaker: "OFC-1", StartSeconds: 1.5, EndSeconds: 4, Text: "step  out of the vehicle", Confidence: 0.92},
		{Speaker: "SUBJ", StartSeconds: 4, EndSeconds: 3, Text: "why", Confidence: 0.88},
	}

	out, err := n.Normalize("src-a", event.KindTranscript, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Events)+out.Skipped != len(raw) {
		t.Fatalf("accounting broken: %d events + %d skipped != %d raw", len(out.Events), out.Skipped, len(raw))
	}
	if out.Skipped != 0 {
		t.Fatalf("transcript adapter must never skip, skipped %d", out.Skipped)
	}

	ev := out.Events[0]
	if ev.Start != 1500*time.Millisecond || ev.End != 4*time.Second {
		t.Fatalf("unexpected offsets %s-%s", ev.Start, ev.End)
	}
	if ev.Text != "step out of the vehicle" {
		t.Fatalf("expected whitespace collapsed, got %q", ev.Text)
	}
	// end before start clamps to a point event instead of dropping
	if out.Events[1].End != out.Events[1].Start {
		t.Fatalf("expected clamped point event, got %s-%s", out.Events[1].Start, out.Events[1].End)
	}
}

func TestNormalizeFlagsLowConfidence(t *testing.T) {
	n := normalize.New(normalize.Config{ConfidenceFloor: 0.5})
	out, err := n.Normalize("src-a", event.KindTranscript, []event.RawSegment{
		{StartSeconds: 0, EndSeconds: 1, Text: "inaudible", Confidence: 0.2},
		{StartSeconds: 1, EndSeconds: 2, Text: "clear", Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Events[0].LowConfidence {
		t.Fatalf("expected low confidence flag on segment below floor")
	}
	if out.Events[1].LowConfidence {
		t.Fatalf("segment above floor must not be flagged")
	}
	if len(out.Events) != 2 {
		t.Fatalf("low confidence must flag, never drop: got %d events", len(out.Events))
	}
}

func TestNormalizeOCRSyntheticOffsets(t *testing.T) {
	n := normalize.New(normalize.Config{})
	out, err := n.Normalize("doc-1", event.KindOCR, []event.RawSegment{
		{Page: 1, Text: "incident report", Confidence: 0.9},
		{Page: 3, Text: "narrative", Confidence: 0.9},
		{Text: "unnumbered", Confidence: 0.9}, // falls back to position
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Events[0].Start != 0 || out.Events[1].Start != 2*time.Second {
		t.Fatalf("expected page-order offsets, got %s and %s", out.Events[0].Start, out.Events[1].Start)
	}
	if out.Events[2].Start != 2*time.Second {
		t.Fatalf("expected positional fallback offset 2s got %s", out.Events[2].Start)
	}
	for _, ev := range out.Events {
		if ev.Start != ev.End {
			t.Fatalf("ocr events must be zero duration, got %s-%s", ev.Start, ev.End)
		}
	}
}

func TestNormalizeCADLogAccounting(t *testing.T) {
	n := normalize.New(normalize.Config{})
	raw := []event.RawSegment{
		{Line: "14:02:10|A12|traffic stop initiated"},
		{Line: "garbage line with no clock"},
		{Line: "14:02:45,A12,subject detained"},
		{Line: "14:03:05 UNIT0007 backup on scene"},
		{Line: ""},
	}

	out, err := n.Normalize("cad-1", event.KindCADLog, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Events)+out.Skipped != len(raw) {
		t.Fatalf("accounting broken: %d events + %d skipped != %d raw", len(out.Events), out.Skipped, len(raw))
	}
	if out.Skipped != 2 {
		t.Fatalf("expected 2 skipped unparseable lines got %d", out.Skipped)
	}

	if out.Events[0].Start != 0 {
		t.Fatalf("first parsed line is the base, expected offset 0 got %s", out.Events[0].Start)
	}
	if out.Events[1].Start != 35*time.Second {
		t.Fatalf("expected 35s offset from base got %s", out.Events[1].Start)
	}
	if out.Events[1].Speaker != "A12" {
		t.Fatalf("expected unit A12 got %q", out.Events[1].Speaker)
	}
	if out.Events[2].Text != "backup on scene" {
		t.Fatalf("fixed width parse failed, got text %q", out.Events[2].Text)
	}
	for _, ev := range out.Events {
		if ev.Confidence != 1 {
			t.Fatalf("cad events carry full confidence, got %v", ev.Confidence)
		}
	}
}

func TestNormalizeUnknownKind(t *testing.T) {
	n := normalize.New(normalize.Config{})
	_, err := n.Normalize("x", event.SourceKind("telemetry"), nil)
	if !perr.IsCode(err, perr.ErrorCodeSourceAdapter) {
		t.Fatalf("expected source adapter error got %v", err)
	}
}

func TestNormalizeAnnotationFullConfidence(t *testing.T) {
	n := normalize.New(normalize.Config{ConfidenceFloor: 0.9})
	out, err := n.Normalize("note-1", event.KindAnnotation, []event.RawSegment{
		{Speaker: "reviewer", StartSeconds: 10, EndSeconds: 12, Text: "subject raised hands here"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Events[0].Confidence != 1 || out.Events[0].LowConfidence {
		t.Fatalf("annotations are authored, expected confidence 1 unflagged")
	}
}
