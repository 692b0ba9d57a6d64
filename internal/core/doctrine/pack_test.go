package doctrine_test

import (
	"sort"
	"testing"

	"custodian/internal/core/doctrine"
)

func TestLoadEmbeddedPack(t *testing.T) {
	pack, err := doctrine.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if pack.Version != 1 {
		t.Fatalf("expected pack version 1 got %d", pack.Version)
	}
	if len(pack.Rules) == 0 || len(pack.Lemmas) == 0 {
		t.Fatalf("expected rules and lemmas, got %d/%d", len(pack.Rules), len(pack.Lemmas))
	}
}

func TestLoadCompilesPatterns(t *testing.T) {
	pack, err := doctrine.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	for _, r := range pack.Rules {
		if r.Trigger == nil {
			t.Fatalf("rule %s has no compiled trigger", r.ID)
		}
		switch r.Kind {
		case doctrine.KindPresence:
			if r.Co == nil {
				t.Fatalf("presence rule %s has no co pattern", r.ID)
			}
		case doctrine.KindAbsence:
			if r.Expect == nil {
				t.Fatalf("absence rule %s has no expect pattern", r.ID)
			}
		default:
			t.Fatalf("rule %s has unknown kind %q", r.ID, r.Kind)
		}
		if r.Window <= 0 {
			t.Fatalf("rule %s has non-positive window", r.ID)
		}
	}
}

func TestLoadStableOrder(t *testing.T) {
	pack, err := doctrine.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !sort.SliceIsSorted(pack.Rules, func(i, j int) bool { return pack.Rules[i].ID < pack.Rules[j].ID }) {
		t.Fatalf("rules must be sorted by id")
	}
	if !sort.SliceIsSorted(pack.Lemmas, func(i, j int) bool { return pack.Lemmas[i].Term < pack.Lemmas[j].Term }) {
		t.Fatalf("lemmas must be sorted by term")
	}
	for _, l := range pack.Lemmas {
		if l.Term == "" {
			t.Fatalf("empty lemma term survived compilation")
		}
	}
}
