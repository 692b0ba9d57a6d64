// Package domain defines the core types and interfaces for the report service
package domain

import (
	"time"

	"custodian/internal/adapters/providers/citation"
	"custodian/internal/core/doctrine"
	perr "custodian/internal/platform/errors"
	casesdomain "custodian/internal/services/cases/domain"
	findingsdomain "custodian/internal/services/findings/domain"
)

// Tier is the tenant plan level driving report fidelity
type Tier string

// Plan tiers, lowest to highest
const (
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierForensic     Tier = "forensic"
)

// ParseTier validates a wire tier value
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierBasic, TierProfessional, TierForensic:
		return Tier(s), nil
	}
	return "", perr.InvalidArgf("unknown tier %q", s)
}

// Watermarked reports whether renders at this tier carry the overlay text
func (t Tier) Watermarked() bool { return t != TierForensic }

// Redacted reports whether finding detail is reduced to summaries
func (t Tier) Redacted() bool { return t == TierBasic }

// Finding is one rendered finding, possibly redacted by tier
type Finding struct {
	Doctrine    doctrine.Tag                `json:"doctrine"`
	Disposition findingsdomain.Disposition  `json:"disposition"`
	SpanStart   time.Duration               `json:"span_start"`
	SpanEnd     time.Duration               `json:"span_end"`
	Confidence  float64                     `json:"confidence"`
	Severity    int                         `json:"severity"`
	Summary     string                      `json:"summary"`
	Reason      string                      `json:"reason,omitempty"`
	Citations   []citation.Citation         `json:"citations,omitempty"`
}

// Report is the exportable assembly of a finished case
type Report struct {
	CaseID     string             `json:"case_id"`
	Title      string             `json:"title"`
	Status     casesdomain.Status `json:"status"`
	Tier       Tier               `json:"tier"`
	// Banner is set for cancelled cases so partial state is never mistaken
	// for a finished analysis
	Banner    string `json:"banner,omitempty"`
	Watermark string `json:"watermark,omitempty"`

	TimelineVersion int           `json:"timeline_version"`
	TimelineSpan    time.Duration `json:"timeline_span"`
	EntryCount      int           `json:"entry_count"`
	MarkerCount     int           `json:"marker_count"`

	Findings    []Finding `json:"findings"`
	Warnings    []string  `json:"warnings,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
