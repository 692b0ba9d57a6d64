// Package domain defines the core types and interfaces for the cases service
package domain

import (
	"time"

	"custodian/internal/core/event"
	perr "custodian/internal/platform/errors"
)

// Status is the case lifecycle state
type Status string

// Case lifecycle states. Terminal states are never left
const (
	StatusCreated       Status = "created"
	StatusIngesting     Status = "ingesting"
	StatusSynchronizing Status = "synchronizing"
	StatusDetecting     Status = "detecting"
	StatusComplete      Status = "complete"
	StatusPartial       Status = "partial"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether the state admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusPartial || s == StatusCancelled
}

// transitions is the forward edge set. Cancellation is handled separately:
// any non-terminal state may move to cancelled
var transitions = map[Status][]Status{
	StatusCreated:       {StatusIngesting},
	StatusIngesting:     {StatusSynchronizing},
	StatusSynchronizing: {StatusDetecting},
	StatusDetecting:     {StatusComplete, StatusPartial},
}

// CanTransition reports whether from -> to is a legal lifecycle move
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a wire status value
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCreated, StatusIngesting, StatusSynchronizing, StatusDetecting,
		StatusComplete, StatusPartial, StatusCancelled:
		return Status(s), nil
	}
	return "", perr.InvalidArgf("unknown case status %q", s)
}

// Case is one investigation unit owning sources, timelines and findings
type Case struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Title    string   `json:"title"`
	Status   Status   `json:"status"`
	// Warnings accumulate absorbed per-source failures; a non-empty list at
	// completion downgrades the case to partial
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source attaches an admitted artifact to a case as a normalization input
type Source struct {
	ID         string           `json:"id"`
	CaseID     string           `json:"case_id"`
	ArtifactID string           `json:"artifact_id"`
	Kind       event.SourceKind `json:"kind"`
	// Priority ranks the source for timeline tie-breaks, lower wins
	Priority int `json:"priority"`
	// IngestOrder is assigned at attach time and never changes
	IngestOrder int `json:"ingest_order"`
	// Anchor fields are set when the source logged against a shared
	// wall-clock reference
	AnchorWallClock *time.Time    `json:"anchor_wall_clock,omitempty"`
	AnchorOffset    time.Duration `json:"anchor_offset,omitempty"`
	AddedAt         time.Time     `json:"added_at"`
}

// AddSourceInput attaches an artifact to a case
type AddSourceInput struct {
	CaseID          string
	ArtifactID      string
	Kind            event.SourceKind
	Priority        int
	AnchorWallClock *time.Time
	AnchorOffset    time.Duration
}
