// Package timeline merges normalized events from multiple sources into one
// deterministic, conflict-resolved timeline
package timeline

import (
	"time"

	"custodian/internal/core/event"
)

// Strategy records how the timeline offsets were resolved
type Strategy string

// Anchor strategies
const (
	StrategyWallClock Strategy = "wall-clock"
	StrategyRelative  Strategy = "relative"
	StrategyMixed     Strategy = "mixed"
)

// Anchor ties a position inside a source stream to a shared wall-clock
// reference, typically a CAD timestamp both cameras logged against
type Anchor struct {
	WallClock time.Time
	// Offset is the position within the source stream at WallClock
	Offset time.Duration
}

// Source is one normalized event stream entering a synchronization run
type Source struct {
	ID string
	Kind event.SourceKind
	// Priority ranks sources for tie-breaks and relative ordering,
	// lower wins: primary camera 1, secondary camera 2, document 3,
	// log 4, annotation 5
	Priority int
	// IngestOrder is the order the source was admitted, second tie-break key
	IngestOrder int
	Anchor     *Anchor
	Events     []event.Event
}

// DefaultPriority returns the rank for a kind; callers distinguish primary
// from secondary cameras by assigning 1 and 2 explicitly
func DefaultPriority(kind event.SourceKind) int {
	switch kind {
	case event.KindTranscript:
		return 1
	case event.KindOCR:
		return 3
	case event.KindCADLog:
		return 4
	case event.KindAnnotation:
		return 5
	}
	return 9
}

// Entry is an event with its resolved global offsets
type Entry struct {
	event.Event
	// Resolved offsets on the common zero-based axis. The embedded event
	// keeps its original source-relative offsets untouched
	ResolvedStart time.Duration
	ResolvedEnd   time.Duration
	Anchored      bool
}

// MarkerKind labels timeline markers
type MarkerKind string

// Marker kinds
const (
	// MarkerAmbiguity flags a span where events from different sources
	// overlap with no authoritative pick; both events are retained
	MarkerAmbiguity MarkerKind = "ambiguity"
	// MarkerBoundary records where ordering degrades from anchored to
	// relative so readers know reliability changes
	MarkerBoundary MarkerKind = "boundary"
)

// Marker annotates a span of the timeline
type Marker struct {
	Kind      MarkerKind
	Start     time.Duration
	End       time.Duration
	SourceIDs []string
}

// Timeline is the ordered, globally aligned event sequence for one case
type Timeline struct {
	CaseID   string
	Version  int
	Strategy Strategy
	Entries  []Entry
	Markers  []Marker
}

// Span returns the resolved end offset of the last entry
func (t Timeline) Span() time.Duration {
	var max time.Duration
	for _, e := range t.Entries {
		if e.ResolvedEnd > max {
			max = e.ResolvedEnd
		}
	}
	return max
}
