// Package detector runs the rule phase of violation detection over a
// synchronized timeline. It is local and deterministic, no external calls;
// spans needing judgment are marked for escalation and handled elsewhere
package detector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"custodian/internal/core/doctrine"
	"custodian/internal/core/normalize"
	"custodian/internal/core/timeline"
)

// DefaultEscalateBelow is the certainty threshold under which a rule match is
// sent to the legal-inference provider
const DefaultEscalateBelow = 0.75

// Config tunes a detection run
type Config struct {
	EscalateBelow float64
}

// Candidate is a rule-phase match over an entry range of the timeline
type Candidate struct {
	RuleID   string
	Doctrine doctrine.Tag
	// entry index range, inclusive
	StartIdx int
	EndIdx   int
	// resolved offsets of the range
	Start time.Duration
	End   time.Duration

	Confidence float64
	Severity   int
	// Escalate marks the candidate for inference review
	Escalate bool
	Summary  string
}

// Detector applies a compiled doctrine pack
type Detector struct {
	pack          *doctrine.Pack
	escalateBelow float64
}

// New constructs a Detector
func New(pack *doctrine.Pack, cfg Config) *Detector {
	below := cfg.EscalateBelow
	if below <= 0 {
		below = DefaultEscalateBelow
	}
	return &Detector{pack: pack, escalateBelow: below}
}

// Detect scans the timeline and returns candidates sorted by
// (start offset, rule id, start index) so runs are reproducible
func (d *Detector) Detect(tl timeline.Timeline) []Candidate {
	if len(tl.Entries) == 0 {
		return nil
	}

	// fold every entry once; matching never touches the stored text
	folded := make([]string, len(tl.Entries))
	for i, e := range tl.Entries {
		folded[i] = normalize.Fold(e.Text)
	}

	var out []Candidate
	seen := map[string]struct{}{}
	emit := func(c Candidate) {
		key := fmt.Sprintf("%s:%d:%d", c.RuleID, c.StartIdx, c.EndIdx)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if c.Escalate || c.Confidence < d.escalateBelow {
			c.Escalate = true
		}
		out = append(out, c)
	}

	for _, rule := range d.pack.Rules {
		switch rule.Kind {
		case doctrine.KindPresence:
			d.presence(tl, folded, rule, emit)
		case doctrine.KindAbsence:
			d.absence(tl, folded, rule, emit)
		}
	}
	d.lemmas(tl, folded, emit)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].RuleID != out[j].RuleID {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].StartIdx < out[j].StartIdx
	})
	return out
}

// presence fires when trigger and co-occurrence both appear within the window
func (d *Detector) presence(tl timeline.Timeline, folded []string, rule doctrine.Rule, emit func(Candidate)) {
	for i, e := range tl.Entries {
		if !rule.Trigger.MatchString(folded[i]) {
			continue
		}
		horizon := e.ResolvedStart + rule.Window
		for j := i; j < len(tl.Entries) && tl.Entries[j].ResolvedStart <= horizon; j++ {
			if !rule.Co.MatchString(folded[j]) {
				continue
			}
			lo, hi := i, j
			if hi < lo {
				lo, hi = hi, lo
			}
			emit(Candidate{
				RuleID:     rule.ID,
				Doctrine:   rule.Doctrine,
				StartIdx:   lo,
				EndIdx:     hi,
				Start:      tl.Entries[lo].ResolvedStart,
				End:        tl.Entries[hi].ResolvedEnd,
				Confidence: rule.Confidence,
				Severity:   rule.Severity,
				Escalate:   rule.Escalate,
				Summary:    fmt.Sprintf("%s trigger with co-occurring marker", rule.ID),
			})
			break
		}
	}
}

// absence fires when the expected phrase never appears within the window
// after the trigger, e.g. no Miranda advisory after an in-custody marker
func (d *Detector) absence(tl timeline.Timeline, folded []string, rule doctrine.Rule, emit func(Candidate)) {
	for i, e := range tl.Entries {
		if !rule.Trigger.MatchString(folded[i]) {
			continue
		}
		horizon := e.ResolvedStart + rule.Window
		last := i
		found := false
		for j := i; j < len(tl.Entries) && tl.Entries[j].ResolvedStart <= horizon; j++ {
			last = j
			if rule.Expect.MatchString(folded[j]) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		emit(Candidate{
			RuleID:     rule.ID,
			Doctrine:   rule.Doctrine,
			StartIdx:   i,
			EndIdx:     last,
			Start:      tl.Entries[i].ResolvedStart,
			End:        tl.Entries[last].ResolvedEnd,
			Confidence: rule.Confidence,
			Severity:   rule.Severity,
			Escalate:   rule.Escalate,
			Summary:    fmt.Sprintf("%s expected phrase absent within %s", rule.ID, rule.Window),
		})
	}
}

// lemmas is the keyword backstop; every lemma hit escalates
func (d *Detector) lemmas(tl timeline.Timeline, folded []string, emit func(Candidate)) {
	for _, lm := range d.pack.Lemmas {
		for i := range tl.Entries {
			if !strings.Contains(folded[i], lm.Term) {
				continue
			}
			emit(Candidate{
				RuleID:     "lemma:" + lm.Term,
				Doctrine:   lm.Doctrine,
				StartIdx:   i,
				EndIdx:     i,
				Start:      tl.Entries[i].ResolvedStart,
				End:        tl.Entries[i].ResolvedEnd,
				Confidence: lm.Confidence,
				Severity:   lm.Severity,
				Escalate:   true,
				Summary:    fmt.Sprintf("lemma %q present", lm.Term),
			})
		}
	}
}
