package detector_test

import (
	"testing"
	"time"

	"custodian/internal/core/detector"
	"custodian/internal/core/doctrine"
	"custodian/internal/core/event"
	"custodian/internal/core/timeline"
)

func mustPack(t *testing.T) *doctrine.Pack {
	t.Helper()
	pack, err := doctrine.Load()
	if err != nil {
		t.Fatalf("doctrine load failed: %v", err)
	}
	return pack
}

func entries(texts ...string) timeline.Timeline {
	tl := timeline.Timeline{CaseID: "case-1", Version: 1}
	for i, txt := range texts {
		at := time.Duration(i*10) * time.Second
		tl.Entries = append(tl.Entries, timeline.Entry{
			Event: event.Event{
				SourceID:   "cam-1",
				Kind:       event.KindTranscript,
				Text:       txt,
				Confidence: 0.9,
			},
			ResolvedStart: at,
			ResolvedEnd:   at + 5*time.Second,
			Anchored:      true,
		})
	}
	return tl
}

func byRule(cands []detector.Candidate, ruleID string) *detector.Candidate {
	for i := range cands {
		if cands[i].RuleID == ruleID {
			return &cands[i]
		}
	}
	return nil
}

func TestDetectMirandaAbsence(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	tl := entries(
		"You are under arrest",
		"get in the car",
		"watch your head",
	)

	cands := d.Detect(tl)
	c := byRule(cands, "miranda-absence")
	if c == nil {
		t.Fatalf("expected miranda-absence candidate, got %v", cands)
	}
	if c.Doctrine != doctrine.TagFifth {
		t.Fatalf("expected fifth-amendment doctrine got %s", c.Doctrine)
	}
	if c.StartIdx != 0 || c.EndIdx != 2 {
		t.Fatalf("expected span over entries 0-2 got %d-%d", c.StartIdx, c.EndIdx)
	}
	if c.Escalate {
		t.Fatalf("high confidence absence match should not escalate")
	}
}

func TestDetectMirandaAdvisoryGiven(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	tl := entries(
		"You are under arrest",
		"you have the right to remain silent",
	)
	if c := byRule(d.Detect(tl), "miranda-absence"); c != nil {
		t.Fatalf("advisory within window must suppress the candidate, got %+v", c)
	}
}

func TestDetectForceOnCompliantEscalates(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	tl := entries(
		"taser deployed on the subject",
		"he was compliant the whole time",
	)

	c := byRule(d.Detect(tl), "force-on-compliant")
	if c == nil {
		t.Fatalf("expected force-on-compliant candidate")
	}
	if !c.Escalate {
		t.Fatalf("rule is marked for escalation, candidate was not")
	}
	if c.Doctrine != doctrine.TagUseOfForce {
		t.Fatalf("expected use-of-force doctrine got %s", c.Doctrine)
	}
}

func TestDetectWindowExpired(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	// co-occurrence 40s after the trigger, outside the 30s window
	tl := entries(
		"taser deployed on the subject",
		"radio traffic",
		"radio traffic continues",
		"clear of the scene",
		"he was compliant the whole time",
	)
	if c := byRule(d.Detect(tl), "force-on-compliant"); c != nil {
		t.Fatalf("match outside the rule window must not fire, got %+v", c)
	}
}

func TestDetectLemmaBackstop(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	tl := entries("that was a chokehold")

	c := byRule(d.Detect(tl), "lemma:chokehold")
	if c == nil {
		t.Fatalf("expected lemma candidate")
	}
	if !c.Escalate {
		t.Fatalf("lemma hits always escalate")
	}
	if c.StartIdx != 0 || c.EndIdx != 0 {
		t.Fatalf("lemma span is the single entry, got %d-%d", c.StartIdx, c.EndIdx)
	}
}

func TestDetectFoldedMatching(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	// mixed case and messy whitespace still match; stored text is untouched
	tl := entries("That  Was A  CHOKEHOLD")
	if byRule(d.Detect(tl), "lemma:chokehold") == nil {
		t.Fatalf("expected folded text to match the lemma")
	}
	if tl.Entries[0].Text != "That  Was A  CHOKEHOLD" {
		t.Fatalf("detection must never rewrite event text")
	}
}

func TestDetectSortedAndDeduplicated(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	tl := entries(
		"illegal search of the trunk",
		"you are under arrest",
		"nothing further",
	)

	cands := d.Detect(tl)
	if len(cands) == 0 {
		t.Fatalf("expected candidates")
	}
	seen := map[string]int{}
	for i, c := range cands {
		if i > 0 && cands[i-1].Start > c.Start {
			t.Fatalf("candidates not sorted by start: %s before %s", cands[i-1].Start, c.Start)
		}
		seen[c.RuleID]++
	}
	if seen["lemma:illegal search"] != 1 {
		t.Fatalf("expected exactly one lemma candidate got %d", seen["lemma:illegal search"])
	}
}

func TestDetectEscalateBelowThreshold(t *testing.T) {
	// a floor above every rule's confidence forces escalation across the board
	d := detector.New(mustPack(t), detector.Config{EscalateBelow: 0.99})
	tl := entries("You are under arrest", "get in the car")

	c := byRule(d.Detect(tl), "miranda-absence")
	if c == nil {
		t.Fatalf("expected miranda-absence candidate")
	}
	if !c.Escalate {
		t.Fatalf("confidence below threshold must escalate")
	}
}

func TestDetectEmptyTimeline(t *testing.T) {
	d := detector.New(mustPack(t), detector.Config{})
	if cands := d.Detect(timeline.Timeline{}); cands != nil {
		t.Fatalf("expected no candidates for empty timeline, got %v", cands)
	}
}
