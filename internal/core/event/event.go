// Package event defines the normalized event representation shared by the
// normalizer, synchronizer and detector
package event

import (
	"time"

	perr "custodian/internal/platform/errors"
)

// SourceKind identifies which adapter produced an event
type SourceKind string

// Known source kinds. Selection is by explicit enum, never runtime type inspection
const (
	KindTranscript SourceKind = "transcript"
	KindOCR        SourceKind = "ocr"
	KindCADLog     SourceKind = "cadlog"
	KindAnnotation SourceKind = "annotation"
)

// ParseSourceKind validates a wire string into a SourceKind
// unknown kinds are a hard failure, not a best-effort pass-through
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case KindTranscript, KindOCR, KindCADLog, KindAnnotation:
		return SourceKind(s), nil
	}
	return "", perr.SourceAdapterf("unrecognized source kind %q", s)
}

// Event is a single normalized occurrence derived from one source.
// Offsets are duration-relative to the source's own zero, not wall-clock,
// unless the owning source carries a wall-clock anchor
type Event struct {
	SourceID      string        `json:"source_id"`
	Kind          SourceKind    `json:"kind"`
	Start         time.Duration `json:"start_ns"`
	End           time.Duration `json:"end_ns"`
	Speaker       string        `json:"speaker,omitempty"`
	Text          string        `json:"text"`
	Confidence    float64       `json:"confidence"`
	LowConfidence bool          `json:"low_confidence,omitempty"`
}

// Validate enforces the event invariants: start <= end, non-negative offsets,
// confidence within [0,1]
func (e Event) Validate() error {
	if e.Start < 0 || e.End < 0 {
		return perr.InvalidArgf("event offsets must be non-negative")
	}
	if e.Start > e.End {
		return perr.InvalidArgf("event start %s after end %s", e.Start, e.End)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return perr.InvalidArgf("event confidence %v outside [0,1]", e.Confidence)
	}
	return nil
}

// RawSegment is the untyped input shape handed to the normalizer.
// Adapters read only the fields their kind populates
type RawSegment struct {
	// transcript + annotation
	Speaker      string  `json:"speaker,omitempty"`
	StartSeconds float64 `json:"start_seconds,omitempty"`
	EndSeconds   float64 `json:"end_seconds,omitempty"`
	Text         string  `json:"text,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`

	// ocr
	Page int `json:"page,omitempty"`

	// cadlog
	Line string `json:"line,omitempty"`
}
