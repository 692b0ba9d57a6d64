package domain_test

import (
	"testing"

	"custodian/internal/services/cases/domain"
)

func TestCanTransitionForwardPath(t *testing.T) {
	path := []domain.Status{
		domain.StatusCreated,
		domain.StatusIngesting,
		domain.StatusSynchronizing,
		domain.StatusDetecting,
		domain.StatusComplete,
	}
	for i := 0; i < len(path)-1; i++ {
		if !domain.CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
	if !domain.CanTransition(domain.StatusDetecting, domain.StatusPartial) {
		t.Fatalf("detecting may finish partial")
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	bad := [][2]domain.Status{
		{domain.StatusCreated, domain.StatusSynchronizing},
		{domain.StatusCreated, domain.StatusComplete},
		{domain.StatusIngesting, domain.StatusDetecting},
		{domain.StatusComplete, domain.StatusIngesting},
		{domain.StatusDetecting, domain.StatusCreated},
	}
	for _, pair := range bad {
		if domain.CanTransition(pair[0], pair[1]) {
			t.Fatalf("%s -> %s must be illegal", pair[0], pair[1])
		}
	}
}

func TestCancelFromAnyActiveState(t *testing.T) {
	active := []domain.Status{
		domain.StatusCreated,
		domain.StatusIngesting,
		domain.StatusSynchronizing,
		domain.StatusDetecting,
	}
	for _, s := range active {
		if !domain.CanTransition(s, domain.StatusCancelled) {
			t.Fatalf("expected cancel from %s to be legal", s)
		}
	}

	terminal := []domain.Status{
		domain.StatusComplete,
		domain.StatusPartial,
		domain.StatusCancelled,
	}
	for _, s := range terminal {
		if domain.CanTransition(s, domain.StatusCancelled) {
			t.Fatalf("terminal state %s must not be cancellable", s)
		}
		if !s.Terminal() {
			t.Fatalf("%s should report terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := domain.ParseStatus("synchronizing")
	if err != nil || got != domain.StatusSynchronizing {
		t.Fatalf("expected synchronizing got %s err=%v", got, err)
	}
	if _, err := domain.ParseStatus("archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
