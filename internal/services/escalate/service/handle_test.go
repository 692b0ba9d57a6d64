package service

import (
	"context"
	"testing"
	"time"

	"custodian/internal/adapters/providers/inference"
	"custodian/internal/core/timeline"
	perr "custodian/internal/platform/errors"
	findingsdomain "custodian/internal/services/findings/domain"
)

type fakeQueue struct {
	leased []findingsdomain.Finding

	retried       bool
	retryAttempts int
	retryAt       time.Time

	resolved   bool
	resolvedTo findingsdomain.Disposition
	reason     string
	confidence float64
}

func (q *fakeQueue) Lease(ctx context.Context, now time.Time, limit int) ([]findingsdomain.Finding, error) {
	out := q.leased
	q.leased = nil
	return out, nil
}

func (q *fakeQueue) Retry(ctx context.Context, findingID string, attempts int, nextAttemptAt time.Time) error {
	q.retried = true
	q.retryAttempts = attempts
	q.retryAt = nextAttemptAt
	return nil
}

func (q *fakeQueue) Resolve(ctx context.Context, findingID string, to findingsdomain.Disposition,
	reason string, confidence float64,
) (findingsdomain.Finding, error) {
	q.resolved = true
	q.resolvedTo = to
	q.reason = reason
	q.confidence = confidence
	return findingsdomain.Finding{ID: findingID, Disposition: to, Reason: reason}, nil
}

type fakeTimelines struct {
	tl  timeline.Timeline
	err error
}

func (f *fakeTimelines) Save(ctx context.Context, t timeline.Timeline) (int, error) {
	return 0, perr.Newf(perr.ErrorCodeUnknown, "not implemented")
}

func (f *fakeTimelines) Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error) {
	if f.err != nil {
		return timeline.Timeline{}, f.err
	}
	return f.tl, nil
}

func (f *fakeTimelines) Latest(ctx context.Context, caseID string) (timeline.Timeline, error) {
	return f.Get(ctx, caseID, 0)
}

type fakeProvider struct {
	calls      int
	err        error
	assessment inference.Assessment
}

func (p *fakeProvider) Assess(ctx context.Context, in inference.Input) (inference.Assessment, error) {
	p.calls++
	if p.err != nil {
		return inference.Assessment{}, p.err
	}
	return p.assessment, nil
}

func leasedFinding(attempts int) findingsdomain.Finding {
	return findingsdomain.Finding{
		ID:              "f-1",
		CaseID:          "case-1",
		TimelineVersion: 1,
		RuleID:          "force-on-compliant",
		Doctrine:        "use-of-force",
		StartIdx:        0,
		EndIdx:          1,
		Confidence:      0.7,
		Disposition:     findingsdomain.DispositionEscalated,
		Attempts:        attempts,
	}
}

func TestHandleConfirms(t *testing.T) {
	q := &fakeQueue{}
	p := &fakeProvider{assessment: inference.Assessment{
		Confirmed:  true,
		Confidence: 0.93,
		Rationale:  "force applied after compliance established",
	}}
	s := New(q, &fakeTimelines{err: perr.NotFoundf("no timeline")}, p, Config{})

	if err := s.handle(context.Background(), leasedFinding(0)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !q.resolved || q.resolvedTo != findingsdomain.DispositionConfirmed {
		t.Fatalf("expected confirmed resolution, got resolved=%v to=%s", q.resolved, q.resolvedTo)
	}
	if q.reason != "force applied after compliance established" || q.confidence != 0.93 {
		t.Fatalf("provider rationale must carry through, got %q %v", q.reason, q.confidence)
	}
}

func TestHandleRejects(t *testing.T) {
	q := &fakeQueue{}
	p := &fakeProvider{assessment: inference.Assessment{Confirmed: false, Confidence: 0.3, Rationale: "no violation"}}
	s := New(q, &fakeTimelines{err: perr.NotFoundf("no timeline")}, p, Config{})

	if err := s.handle(context.Background(), leasedFinding(0)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if q.resolvedTo != findingsdomain.DispositionRejected || q.reason != "no violation" {
		t.Fatalf("expected rejection with rationale, got %s %q", q.resolvedTo, q.reason)
	}
}

func TestHandleRetriesWithBackoff(t *testing.T) {
	q := &fakeQueue{}
	p := &fakeProvider{err: perr.Newf(perr.ErrorCodeProviderUnavailable, "timeout")}
	s := New(q, &fakeTimelines{err: perr.NotFoundf("no timeline")}, p, Config{MaxAttempts: 3, RetryBaseMs: 100})

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if err := s.handle(context.Background(), leasedFinding(0)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if q.resolved {
		t.Fatalf("first failure must reschedule, not resolve")
	}
	if !q.retried || q.retryAttempts != 1 {
		t.Fatalf("expected retry with attempts=1, got retried=%v attempts=%d", q.retried, q.retryAttempts)
	}
	if got := q.retryAt.Sub(base); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms backoff for attempt 1 got %s", got)
	}
}

func TestHandleExhaustionRejectsUnavailable(t *testing.T) {
	q := &fakeQueue{}
	p := &fakeProvider{err: perr.Newf(perr.ErrorCodeProviderUnavailable, "timeout")}
	s := New(q, &fakeTimelines{err: perr.NotFoundf("no timeline")}, p, Config{MaxAttempts: 3})

	// the finding has already burned two attempts; this is the third and last
	if err := s.handle(context.Background(), leasedFinding(2)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if q.retried {
		t.Fatalf("exhausted finding must not reschedule")
	}
	if !q.resolved || q.resolvedTo != findingsdomain.DispositionRejected {
		t.Fatalf("expected rejection, got resolved=%v to=%s", q.resolved, q.resolvedTo)
	}
	if q.reason != findingsdomain.ReasonProviderUnavailable {
		t.Fatalf("expected reason %q got %q", findingsdomain.ReasonProviderUnavailable, q.reason)
	}
	// the rule confidence survives so reports still rank the span
	if q.confidence != 0.7 {
		t.Fatalf("expected original confidence 0.7 got %v", q.confidence)
	}
}

func TestExcerptClampsToTimeline(t *testing.T) {
	tl := timeline.Timeline{Version: 1}
	for _, txt := range []string{"one", "two", "three"} {
		e := timeline.Entry{}
		e.Text = txt
		tl.Entries = append(tl.Entries, e)
	}

	s := New(&fakeQueue{}, &fakeTimelines{tl: tl}, &fakeProvider{}, Config{ExcerptLimit: 2})

	f := leasedFinding(0)
	f.StartIdx, f.EndIdx = 1, 10 // end index past the timeline
	got := s.excerpt(context.Background(), f)
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("expected clamped excerpt [two three] got %v", got)
	}

	f.StartIdx = 99
	if got := s.excerpt(context.Background(), f); got != nil {
		t.Fatalf("out of range span yields no excerpt, got %v", got)
	}
}
