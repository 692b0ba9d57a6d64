package timeline

import (
	"sort"
	"time"

	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
)

// DefaultAnchorTolerance is how far apart two CAD wall-clock references may be
// and still count as the same shared anchor
const DefaultAnchorTolerance = 2 * time.Second

// Config tunes a synchronization run
type Config struct {
	AnchorTolerance time.Duration
}

// Synchronize merges the sources into one timeline.
//
// Sources sharing a wall-clock anchor within the tolerance are rebased onto a
// common zero. The rest are appended as relative blocks in (priority, ingest
// order) with a boundary marker at the transition. Overlapping events from
// different anchored sources are retained and flagged with exactly one
// ambiguity marker per overlapping span. The run is deterministic: identical
// input yields identical output, ties always break by (priority, ingest
// order), never map iteration
func Synchronize(caseID string, sources []Source, cfg Config) (Timeline, error) {
	tol := cfg.AnchorTolerance
	if tol <= 0 {
		tol = DefaultAnchorTolerance
	}
	if len(sources) == 0 {
		return Timeline{}, perr.InsufficientEventsf("no sources for case %s", caseID)
	}

	log := logger.Named("timeline")

	// drop empty sources up front, logged not fatal
	live := make([]Source, 0, len(sources))
	for _, s := range sources {
		if len(s.Events) == 0 {
			log.Warn().Str("case_id", caseID).Str("source_id", s.ID).Msg("skipping source with zero events")
			continue
		}
		live = append(live, s)
	}
	if len(live) == 0 {
		return Timeline{}, perr.InsufficientEventsf("no usable events for case %s", caseID)
	}

	// deterministic source order
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Priority != live[j].Priority {
			return live[i].Priority < live[j].Priority
		}
		return live[i].IngestOrder < live[j].IngestOrder
	})

	anchored, relative := splitByAnchor(live, tol)

	tl := Timeline{CaseID: caseID}

	entries := rebase(anchored)
	tl.Entries = entries
	tl.Markers = append(tl.Markers, ambiguitySpans(entries)...)

	cursor := tl.Span()
	if len(entries) > 0 && len(relative) > 0 {
		tl.Markers = append(tl.Markers, Marker{
			Kind:  MarkerBoundary,
			Start: cursor,
			End:   cursor,
		})
	}
	tl.Entries = append(tl.Entries, appendRelative(relative, cursor)...)

	switch {
	case len(entries) > 0 && len(relative) > 0:
		tl.Strategy = StrategyMixed
	case len(entries) > 0:
		tl.Strategy = StrategyWallClock
	default:
		tl.Strategy = StrategyRelative
	}
	return tl, nil
}

// splitByAnchor partitions sources into the anchored cluster and the rest.
// The cluster reference is the highest-priority anchored source; a cluster of
// one is no cluster at all, a shared anchor needs at least two parties
func splitByAnchor(sorted []Source, tol time.Duration) (anchored, relative []Source) {
	var ref *Source
	for i := range sorted {
		if sorted[i].Anchor != nil {
			ref = &sorted[i]
			break
		}
	}
	if ref == nil {
		return nil, sorted
	}
	for _, s := range sorted {
		if s.Anchor != nil && within(s.Anchor.WallClock, ref.Anchor.WallClock, tol) {
			anchored = append(anchored, s)
		} else {
			relative = append(relative, s)
		}
	}
	if len(anchored) < 2 {
		return nil, sorted
	}
	return anchored, relative
}

func within(a, b time.Time, tol time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// rebase shifts all anchored sources onto one zero-based axis
func rebase(anchored []Source) []Entry {
	if len(anchored) == 0 {
		return nil
	}

	type keyed struct {
		Entry
		priority int
		ingest   int
		seq      int
	}

	// wall-clock start of each event, then shift so the earliest is zero
	var entries []keyed
	var earliest time.Time
	first := true
	for _, s := range anchored {
		base := s.Anchor.WallClock.Add(-s.Anchor.Offset) // wall-clock at stream zero
		for i, ev := range s.Events {
			ws := base.Add(ev.Start)
			if first || ws.Before(earliest) {
				earliest = ws
				first = false
			}
			entries = append(entries, keyed{
				Entry:    Entry{Event: ev, Anchored: true},
				priority: s.Priority,
				ingest:   s.IngestOrder,
				seq:      i,
			})
		}
	}
	// second pass now that the zero point is known
	idx := 0
	for _, s := range anchored {
		base := s.Anchor.WallClock.Add(-s.Anchor.Offset)
		delta := base.Sub(earliest)
		for _, ev := range s.Events {
			entries[idx].ResolvedStart = delta + ev.Start
			entries[idx].ResolvedEnd = delta + ev.End
			idx++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ResolvedStart != entries[j].ResolvedStart {
			return entries[i].ResolvedStart < entries[j].ResolvedStart
		}
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		if entries[i].ingest != entries[j].ingest {
			return entries[i].ingest < entries[j].ingest
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = entries[i].Entry
	}
	return out
}

// appendRelative lays unanchored sources after cursor as contiguous blocks in
// the already sorted (priority, ingest order)
func appendRelative(relative []Source, cursor time.Duration) []Entry {
	var out []Entry
	for _, s := range relative {
		var min time.Duration
		for i, ev := range s.Events {
			if i == 0 || ev.Start < min {
				min = ev.Start
			}
		}
		blockEnd := cursor
		for _, ev := range s.Events {
			e := Entry{
				Event:         ev,
				ResolvedStart: cursor + ev.Start - min,
				ResolvedEnd:   cursor + ev.End - min,
				Anchored:      false,
			}
			if e.ResolvedEnd > blockEnd {
				blockEnd = e.ResolvedEnd
			}
			out = append(out, e)
		}
		cursor = blockEnd
	}
	return out
}

// ambiguitySpans finds cross-source overlaps among anchored entries and emits
// one marker per maximal overlapping span. Both events are always retained;
// picking the authoritative one is a human judgment
func ambiguitySpans(entries []Entry) []Marker {
	type span struct {
		start, end time.Duration
		sources    map[string]struct{}
	}
	var spans []span

	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if b.ResolvedStart >= a.ResolvedEnd {
				break // entries sorted by start, nothing past here overlaps a
			}
			if a.SourceID == b.SourceID {
				continue
			}
			os := maxDur(a.ResolvedStart, b.ResolvedStart)
			oe := minDur(a.ResolvedEnd, b.ResolvedEnd)
			if oe <= os {
				continue
			}
			merged := false
			for k := range spans {
				if os <= spans[k].end && spans[k].start <= oe {
					if os < spans[k].start {
						spans[k].start = os
					}
					if oe > spans[k].end {
						spans[k].end = oe
					}
					spans[k].sources[a.SourceID] = struct{}{}
					spans[k].sources[b.SourceID] = struct{}{}
					merged = true
					break
				}
			}
			if !merged {
				spans = append(spans, span{
					start:   os,
					end:     oe,
					sources: map[string]struct{}{a.SourceID: {}, b.SourceID: {}},
				})
			}
		}
	}

	// a pair interval merges into the first span it touches, which can grow
	// that span into a neighbour; coalesce so one maximal region emits one marker
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	coalesced := spans[:0]
	for _, sp := range spans {
		if n := len(coalesced); n > 0 && sp.start <= coalesced[n-1].end {
			last := &coalesced[n-1]
			if sp.end > last.end {
				last.end = sp.end
			}
			for id := range sp.sources {
				last.sources[id] = struct{}{}
			}
			continue
		}
		coalesced = append(coalesced, sp)
	}
	spans = coalesced

	markers := make([]Marker, 0, len(spans))
	for _, sp := range spans {
		ids := make([]string, 0, len(sp.sources))
		for id := range sp.sources {
			ids = append(ids, id)
		}
		sort.Strings(ids) // map order must never leak into output
		markers = append(markers, Marker{
			Kind:      MarkerAmbiguity,
			Start:     sp.start,
			End:       sp.end,
			SourceIDs: ids,
		})
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Start < markers[j].Start })
	return markers
}

func maxDur(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
