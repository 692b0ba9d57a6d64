package timeline_test

import (
	"reflect"
	"testing"
	"time"

	"custodian/internal/core/event"
	"custodian/internal/core/timeline"
	perr "custodian/internal/platform/errors"
)

func ev(sourceID string, start, end time.Duration, text string) event.Event {
	return event.Event{
		SourceID:   sourceID,
		Kind:       event.KindTranscript,
		Start:      start,
		End:        end,
		Text:       text,
		Confidence: 0.9,
	}
}

func twoCameras(anchorGap time.Duration) []timeline.Source {
	t0 := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	return []timeline.Source{
		{
			ID:          "cam-1",
			Kind:        event.KindTranscript,
			Priority:    1,
			IngestOrder: 1,
			Anchor:      &timeline.Anchor{WallClock: t0, Offset: 0},
			Events: []event.Event{
				ev("cam-1", 0, 10*time.Second, "step out of the vehicle"),
				ev("cam-1", 12*time.Second, 20*time.Second, "hands behind your back"),
			},
		},
		{
			ID:          "cam-2",
			Kind:        event.KindTranscript,
			Priority:    2,
			IngestOrder: 2,
			Anchor:      &timeline.Anchor{WallClock: t0.Add(anchorGap), Offset: 0},
			Events: []event.Event{
				ev("cam-2", 0, 9*time.Second, "stepping out now"),
			},
		},
	}
}

func TestSynchronizeTwoAnchoredCameras(t *testing.T) {
	tl, err := timeline.Synchronize("case-1", twoCameras(time.Second), timeline.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Strategy != timeline.StrategyWallClock {
		t.Fatalf("expected wall-clock strategy got %s", tl.Strategy)
	}
	if len(tl.Entries) != 3 {
		t.Fatalf("expected 3 entries got %d", len(tl.Entries))
	}

	// cam-2 started one second after cam-1, so its event lands at 1s
	if tl.Entries[0].ResolvedStart != 0 || tl.Entries[1].ResolvedStart != time.Second {
		t.Fatalf("unexpected resolved starts %s and %s",
			tl.Entries[0].ResolvedStart, tl.Entries[1].ResolvedStart)
	}
	for _, e := range tl.Entries {
		if !e.Anchored {
			t.Fatalf("entry from %s should be anchored", e.SourceID)
		}
	}

	// one overlapping span, one marker, both events retained
	if len(tl.Markers) != 1 {
		t.Fatalf("expected exactly one ambiguity marker got %d", len(tl.Markers))
	}
	m := tl.Markers[0]
	if m.Kind != timeline.MarkerAmbiguity {
		t.Fatalf("expected ambiguity marker got %s", m.Kind)
	}
	if m.Start != time.Second || m.End != 10*time.Second {
		t.Fatalf("expected overlap 1s-10s got %s-%s", m.Start, m.End)
	}
	if !reflect.DeepEqual(m.SourceIDs, []string{"cam-1", "cam-2"}) {
		t.Fatalf("expected sorted source ids got %v", m.SourceIDs)
	}
}

func TestSynchronizeAnchorOutsideTolerance(t *testing.T) {
	// 5s apart with a 2s tolerance: no shared anchor, everything is relative
	tl, err := timeline.Synchronize("case-1", twoCameras(5*time.Second),
		timeline.Config{AnchorTolerance: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Strategy != timeline.StrategyRelative {
		t.Fatalf("expected relative strategy got %s", tl.Strategy)
	}
	for _, e := range tl.Entries {
		if e.Anchored {
			t.Fatalf("no entry should be anchored without a shared reference")
		}
	}
	// cam-2's block follows cam-1's span end
	last := tl.Entries[len(tl.Entries)-1]
	if last.SourceID != "cam-2" || last.ResolvedStart != 20*time.Second {
		t.Fatalf("expected cam-2 block appended at 20s, got %s at %s", last.SourceID, last.ResolvedStart)
	}
}

func TestSynchronizeMixedWithBoundaryMarker(t *testing.T) {
	sources := twoCameras(time.Second)
	sources = append(sources, timeline.Source{
		ID:          "note-1",
		Kind:        event.KindAnnotation,
		Priority:    5,
		IngestOrder: 3,
		Events: []event.Event{
			ev("note-1", 0, 2*time.Second, "reviewer note"),
		},
	})

	tl, err := timeline.Synchronize("case-1", sources, timeline.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Strategy != timeline.StrategyMixed {
		t.Fatalf("expected mixed strategy got %s", tl.Strategy)
	}

	var boundaries int
	for _, m := range tl.Markers {
		if m.Kind == timeline.MarkerBoundary {
			boundaries++
			if m.Start != 20*time.Second {
				t.Fatalf("expected boundary at anchored span end 20s got %s", m.Start)
			}
		}
	}
	if boundaries != 1 {
		t.Fatalf("expected exactly one boundary marker got %d", boundaries)
	}

	last := tl.Entries[len(tl.Entries)-1]
	if last.SourceID != "note-1" || last.Anchored {
		t.Fatalf("expected unanchored note appended last, got %s anchored=%v", last.SourceID, last.Anchored)
	}
	if last.ResolvedStart != 20*time.Second {
		t.Fatalf("expected note block at 20s got %s", last.ResolvedStart)
	}
}

func TestSynchronizeDeterministic(t *testing.T) {
	sources := twoCameras(time.Second)
	sources = append(sources, timeline.Source{
		ID:          "cad-1",
		Kind:        event.KindCADLog,
		Priority:    4,
		IngestOrder: 3,
		Events: []event.Event{
			ev("cad-1", 0, 0, "traffic stop initiated"),
			ev("cad-1", 35*time.Second, 35*time.Second, "subject detained"),
		},
	})

	first, err := timeline.Synchronize("case-1", sources, timeline.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := timeline.Synchronize("case-1", sources, timeline.Config{})
		if err != nil {
			t.Fatalf("unexpected error on run %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged from the first run", i)
		}
	}
}

func TestSynchronizeTieBreakByPriority(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	mk := func(id string, prio, order int) timeline.Source {
		return timeline.Source{
			ID: id, Kind: event.KindTranscript, Priority: prio, IngestOrder: order,
			Anchor: &timeline.Anchor{WallClock: t0},
			Events: []event.Event{ev(id, 0, 5*time.Second, "simultaneous")},
		}
	}

	tl, err := timeline.Synchronize("case-1",
		[]timeline.Source{mk("cam-b", 2, 1), mk("cam-a", 1, 2)}, timeline.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tl.Entries[0].SourceID != "cam-a" {
		t.Fatalf("equal starts must order by priority, got %s first", tl.Entries[0].SourceID)
	}
}

func TestSynchronizeAmbiguityCoalescesAcrossSources(t *testing.T) {
	// three anchored sources whose pairwise overlaps chain into one region,
	// plus a separate overlap later: one marker per maximal region, not one
	// per pair
	t0 := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	mk := func(id string, prio, order int, evs ...event.Event) timeline.Source {
		return timeline.Source{
			ID: id, Kind: event.KindTranscript, Priority: prio, IngestOrder: order,
			Anchor: &timeline.Anchor{WallClock: t0},
			Events: evs,
		}
	}
	sources := []timeline.Source{
		mk("cam-1", 1, 1,
			ev("cam-1", 0, 10*time.Second, "step out of the vehicle"),
			ev("cam-1", 25*time.Second, 28*time.Second, "stay where you are")),
		mk("cam-2", 2, 2, ev("cam-2", 5*time.Second, 20*time.Second, "stepping out now")),
		mk("cam-3", 3, 3, ev("cam-3", 8*time.Second, 30*time.Second, "backup on scene")),
	}

	tl, err := timeline.Synchronize("case-1", sources, timeline.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var amb []timeline.Marker
	for _, m := range tl.Markers {
		if m.Kind == timeline.MarkerAmbiguity {
			amb = append(amb, m)
		}
	}
	if len(amb) != 2 {
		t.Fatalf("expected 2 maximal ambiguity markers got %d: %+v", len(amb), amb)
	}
	if amb[0].Start != 5*time.Second || amb[0].End != 20*time.Second {
		t.Fatalf("expected first overlap 5s-20s got %s-%s", amb[0].Start, amb[0].End)
	}
	if !reflect.DeepEqual(amb[0].SourceIDs, []string{"cam-1", "cam-2", "cam-3"}) {
		t.Fatalf("expected all three sources on the merged span got %v", amb[0].SourceIDs)
	}
	if amb[1].Start != 25*time.Second || amb[1].End != 28*time.Second {
		t.Fatalf("expected second overlap 25s-28s got %s-%s", amb[1].Start, amb[1].End)
	}
	if !reflect.DeepEqual(amb[1].SourceIDs, []string{"cam-1", "cam-3"}) {
		t.Fatalf("expected cam-1/cam-3 on the late span got %v", amb[1].SourceIDs)
	}
}

func TestSynchronizeNoSources(t *testing.T) {
	_, err := timeline.Synchronize("case-1", nil, timeline.Config{})
	if !perr.IsCode(err, perr.ErrorCodeInsufficientEvents) {
		t.Fatalf("expected insufficient events error got %v", err)
	}

	_, err = timeline.Synchronize("case-1", []timeline.Source{
		{ID: "empty", Kind: event.KindTranscript, Priority: 1, IngestOrder: 1},
	}, timeline.Config{})
	if !perr.IsCode(err, perr.ErrorCodeInsufficientEvents) {
		t.Fatalf("expected insufficient events for empty sources got %v", err)
	}
}
