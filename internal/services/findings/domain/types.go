// Package domain defines the core types and interfaces for the findings service
package domain

import (
	"time"

	"custodian/internal/core/doctrine"
	perr "custodian/internal/platform/errors"
)

// Disposition is the finding state. Transitions are one-way:
// inference-escalated may move to inference-confirmed or inference-rejected,
// rule-matched and the two resolved states admit no further moves
type Disposition string

// Finding dispositions
const (
	DispositionRuleMatched Disposition = "rule-matched"
	DispositionEscalated   Disposition = "inference-escalated"
	DispositionConfirmed   Disposition = "inference-confirmed"
	DispositionRejected    Disposition = "inference-rejected"
)

// Pending reports whether the finding still blocks report finalization
func (d Disposition) Pending() bool { return d == DispositionEscalated }

// CanResolve reports whether from may move to to
func CanResolve(from, to Disposition) bool {
	if from != DispositionEscalated {
		return false
	}
	return to == DispositionConfirmed || to == DispositionRejected
}

// ParseDisposition validates a wire disposition value
func ParseDisposition(s string) (Disposition, error) {
	switch Disposition(s) {
	case DispositionRuleMatched, DispositionEscalated, DispositionConfirmed, DispositionRejected:
		return Disposition(s), nil
	}
	return "", perr.InvalidArgf("unknown disposition %q", s)
}

// ReasonProviderUnavailable marks findings rejected because every provider
// attempt failed, not because the inference said no
const ReasonProviderUnavailable = "provider-unavailable"

// Finding is one detected potential violation pinned to a timeline span.
// The (case, timeline version, span, doctrine) tuple is unique: re-running
// detection updates the row, it never duplicates it
type Finding struct {
	ID              string       `json:"id"`
	CaseID          string       `json:"case_id"`
	TimelineVersion int          `json:"timeline_version"`
	RuleID          string       `json:"rule_id"`
	Doctrine        doctrine.Tag `json:"doctrine"`

	SpanStart time.Duration `json:"span_start"`
	SpanEnd   time.Duration `json:"span_end"`
	// StartIdx/EndIdx are entry indexes into the timeline version
	StartIdx int `json:"start_idx"`
	EndIdx   int `json:"end_idx"`

	Confidence float64     `json:"confidence"`
	Severity   int         `json:"severity"`
	Summary    string      `json:"summary"`
	Disposition Disposition `json:"disposition"`
	// Reason explains a resolution: provider rationale or
	// provider-unavailable on attempt exhaustion
	Reason string `json:"reason,omitempty"`

	// Escalation retry state, persisted so workers resume across restarts
	Attempts      int        `json:"attempts"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
