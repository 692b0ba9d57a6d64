// Package doctrine loads and compiles violation detection rules from the
// embedded rules.json. It prepares regex triggers and lemma backstops for
// the detector
package doctrine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed rules.json
var embedded []byte

// Tag is a doctrine category label
type Tag string

// Doctrine tags
const (
	TagFourth     Tag = "fourth-amendment"
	TagFifth      Tag = "fifth-amendment"
	TagUseOfForce Tag = "use-of-force"
	TagFourteenth Tag = "fourteenth-amendment"
	TagOther      Tag = "other"
)

// RuleKind distinguishes how a rule fires
type RuleKind string

// Rule kinds
const (
	// KindPresence fires when trigger and co-occurrence both match inside the window
	KindPresence RuleKind = "presence"
	// KindAbsence fires when the trigger matches and the expected phrase
	// never appears inside the window after it
	KindAbsence RuleKind = "absence"
)

type rawRule struct {
	ID            string  `json:"id"`
	Doctrine      string  `json:"doctrine"`
	Kind          string  `json:"kind"`
	Trigger       string  `json:"trigger"`
	Co            string  `json:"co,omitempty"`
	Expect        string  `json:"expect,omitempty"`
	WindowSeconds int     `json:"window_seconds"`
	Confidence    float64 `json:"confidence"`
	Severity      int     `json:"severity"`
	Escalate      bool    `json:"escalate,omitempty"`
}

type rawLemma struct {
	Term       string  `json:"term"`
	Doctrine   string  `json:"doctrine"`
	Confidence float64 `json:"confidence"`
	Severity   int     `json:"severity"`
}

type rawPack struct {
	Version int            `json:"version"`
	Meta    map[string]any `json:"meta"`
	Rules   []rawRule      `json:"rules"`
	Lemmas  []rawLemma     `json:"lemmas"`
}

// Rule is one compiled detection rule
type Rule struct {
	ID       string
	Doctrine Tag
	Kind     RuleKind
	Trigger  *regexp.Regexp
	// Co is the co-occurrence pattern for presence rules
	Co *regexp.Regexp
	// Expect is the phrase whose absence fires an absence rule
	Expect     *regexp.Regexp
	Window     time.Duration
	Confidence float64
	Severity   int
	// Escalate forces inference review regardless of confidence
	Escalate bool
}

// Lemma is a keyword backstop: a plain folded substring that always escalates
type Lemma struct {
	Term       string
	Doctrine   Tag
	Confidence float64
	Severity   int
}

// Pack is a compiled rule pack
type Pack struct {
	Version int
	Rules   []Rule
	Lemmas  []Lemma
}

// Load parses and compiles the embedded pack
func Load() (*Pack, error) {
	return compile(embedded)
}

func compile(src []byte) (*Pack, error) {
	var raw rawPack
	if err := json.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("doctrine: parse rules.json: %w", err)
	}

	p := &Pack{Version: raw.Version}

	for _, r := range raw.Rules {
		tag, err := parseTag(r.Doctrine)
		if err != nil {
			return nil, fmt.Errorf("doctrine: rule %s: %w", r.ID, err)
		}
		kind := RuleKind(r.Kind)
		if kind != KindPresence && kind != KindAbsence {
			return nil, fmt.Errorf("doctrine: rule %s: unknown kind %q", r.ID, r.Kind)
		}
		rule := Rule{
			ID:         r.ID,
			Doctrine:   tag,
			Kind:       kind,
			Window:     time.Duration(r.WindowSeconds) * time.Second,
			Confidence: r.Confidence,
			Severity:   r.Severity,
			Escalate:   r.Escalate,
		}
		if rule.Trigger, err = compilePattern(r.ID, "trigger", r.Trigger); err != nil {
			return nil, err
		}
		switch kind {
		case KindPresence:
			if rule.Co, err = compilePattern(r.ID, "co", r.Co); err != nil {
				return nil, err
			}
		case KindAbsence:
			if rule.Expect, err = compilePattern(r.ID, "expect", r.Expect); err != nil {
				return nil, err
			}
		}
		if rule.Window <= 0 {
			return nil, fmt.Errorf("doctrine: rule %s: window_seconds must be positive", r.ID)
		}
		p.Rules = append(p.Rules, rule)
	}

	for _, l := range raw.Lemmas {
		tag, err := parseTag(l.Doctrine)
		if err != nil {
			return nil, fmt.Errorf("doctrine: lemma %q: %w", l.Term, err)
		}
		term := strings.ToLower(strings.TrimSpace(l.Term))
		if term == "" {
			continue
		}
		p.Lemmas = append(p.Lemmas, Lemma{
			Term:       term,
			Doctrine:   tag,
			Confidence: l.Confidence,
			Severity:   l.Severity,
		})
	}

	// stable iteration order for deterministic detection runs
	sort.SliceStable(p.Rules, func(i, j int) bool { return p.Rules[i].ID < p.Rules[j].ID })
	sort.SliceStable(p.Lemmas, func(i, j int) bool { return p.Lemmas[i].Term < p.Lemmas[j].Term })

	return p, nil
}

func compilePattern(ruleID, field, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("doctrine: rule %s: empty %s pattern", ruleID, field)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("doctrine: rule %s: compile %s: %w", ruleID, field, err)
	}
	return re, nil
}

func parseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagFourth, TagFifth, TagUseOfForce, TagFourteenth, TagOther:
		return Tag(s), nil
	}
	return "", fmt.Errorf("unknown doctrine tag %q", s)
}
