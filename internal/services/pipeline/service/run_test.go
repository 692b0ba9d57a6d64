package service_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"custodian/internal/adapters/providers/ocr"
	"custodian/internal/adapters/providers/transcription"
	"custodian/internal/core/event"
	"custodian/internal/core/timeline"
	perr "custodian/internal/platform/errors"
	casesdomain "custodian/internal/services/cases/domain"
	custodydomain "custodian/internal/services/custody/domain"
	findingsdomain "custodian/internal/services/findings/domain"
	"custodian/internal/services/pipeline/service"
	quotadomain "custodian/internal/services/quota/domain"
)

type fakeCases struct {
	mu       sync.Mutex
	c        casesdomain.Case
	srcs     []casesdomain.Source
	warnings []string
}

func (f *fakeCases) Create(ctx context.Context, tenantID, title string) (casesdomain.Case, error) {
	return casesdomain.Case{}, perr.Newf(perr.ErrorCodeUnknown, "not implemented")
}

func (f *fakeCases) Get(ctx context.Context, caseID string) (casesdomain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.c, nil
}

func (f *fakeCases) AddSource(ctx context.Context, in casesdomain.AddSourceInput) (casesdomain.Source, error) {
	return casesdomain.Source{}, perr.Newf(perr.ErrorCodeUnknown, "not implemented")
}

func (f *fakeCases) Sources(ctx context.Context, caseID string) ([]casesdomain.Source, error) {
	return f.srcs, nil
}

func (f *fakeCases) ListPending(ctx context.Context, limit int) ([]casesdomain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.c.Status == casesdomain.StatusCreated || f.c.Status == casesdomain.StatusIngesting {
		return []casesdomain.Case{f.c}, nil
	}
	return nil, nil
}

func (f *fakeCases) Transition(ctx context.Context, caseID string, to casesdomain.Status) (casesdomain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !casesdomain.CanTransition(f.c.Status, to) {
		return casesdomain.Case{}, perr.Conflictf("illegal move %s -> %s", f.c.Status, to)
	}
	f.c.Status = to
	return f.c, nil
}

func (f *fakeCases) AddWarning(ctx context.Context, caseID, warning string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, warning)
	return nil
}

func (f *fakeCases) Cancel(ctx context.Context, caseID string) (casesdomain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.c.Status.Terminal() {
		return casesdomain.Case{}, perr.Conflictf("case already %s", f.c.Status)
	}
	f.c.Status = casesdomain.StatusCancelled
	return f.c, nil
}

func (f *fakeCases) status() casesdomain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.c.Status
}

type fakeTimelines struct {
	saved *timeline.Timeline
}

func (f *fakeTimelines) Save(ctx context.Context, t timeline.Timeline) (int, error) {
	t.Version = 1
	f.saved = &t
	return 1, nil
}

func (f *fakeTimelines) Get(ctx context.Context, caseID string, version int) (timeline.Timeline, error) {
	if f.saved == nil {
		return timeline.Timeline{}, perr.NotFoundf("no timeline")
	}
	return *f.saved, nil
}

func (f *fakeTimelines) Latest(ctx context.Context, caseID string) (timeline.Timeline, error) {
	return f.Get(ctx, caseID, 0)
}

type fakeCustody struct {
	arts  map[string]custodydomain.Artifact
	blobs map[string]string
}

func (f *fakeCustody) Admit(ctx context.Context, in custodydomain.AdmitInput) (custodydomain.Artifact, error) {
	return custodydomain.Artifact{}, perr.Newf(perr.ErrorCodeUnknown, "not implemented")
}

func (f *fakeCustody) Verify(ctx context.Context, artifactID string) (bool, error) { return true, nil }

func (f *fakeCustody) Get(ctx context.Context, artifactID string) (custodydomain.Artifact, error) {
	a, ok := f.arts[artifactID]
	if !ok {
		return custodydomain.Artifact{}, perr.NotFoundf("artifact %s", artifactID)
	}
	return a, nil
}

func (f *fakeCustody) Open(ctx context.Context, artifactID string) (io.ReadCloser, error) {
	b, ok := f.blobs[artifactID]
	if !ok {
		return nil, perr.Integrityf("blob for %s missing", artifactID)
	}
	return io.NopCloser(strings.NewReader(b)), nil
}

func (f *fakeCustody) Provenance(ctx context.Context, artifactID string) ([]custodydomain.ProvenanceRecord, error) {
	return nil, nil
}

type release struct {
	tenant string
	kind   quotadomain.ResourceKind
	amount int64
}

type fakeQuota struct {
	mu       sync.Mutex
	released []release
}

func (f *fakeQuota) TryConsume(ctx context.Context, tenantID string, kind quotadomain.ResourceKind, amount int64) (quotadomain.Decision, error) {
	return quotadomain.Decision{Admitted: true}, nil
}

func (f *fakeQuota) Release(ctx context.Context, tenantID string, kind quotadomain.ResourceKind, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, release{tenant: tenantID, kind: kind, amount: amount})
	return nil
}

func (f *fakeQuota) Snapshot(ctx context.Context, tenantID string) ([]quotadomain.Period, error) {
	return nil, nil
}

type fakeTranscriber struct {
	segs map[string][]event.RawSegment
	errs map[string]error
	hook func()
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, in transcription.Input) ([]event.RawSegment, error) {
	if f.hook != nil {
		f.hook()
	}
	if err := f.errs[in.ArtifactID]; err != nil {
		return nil, err
	}
	return f.segs[in.ArtifactID], nil
}

type fakeOCR struct{}

func (f *fakeOCR) Extract(ctx context.Context, in ocr.Input) ([]event.RawSegment, error) {
	return nil, perr.Newf(perr.ErrorCodeProviderUnavailable, "ocr not wired in this test")
}

type fakeDetect struct {
	found []findingsdomain.Finding
}

func (f *fakeDetect) Run(ctx context.Context, caseID string, timelineVersion int) ([]findingsdomain.Finding, error) {
	return f.found, nil
}

// fixture builds a created case with two anchored camera sources
func fixture() (*fakeCases, *fakeCustody, *fakeTranscriber) {
	t0 := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)
	cases := &fakeCases{
		c: casesdomain.Case{ID: "case-1", TenantID: "tenant-a", Status: casesdomain.StatusCreated},
		srcs: []casesdomain.Source{
			{
				ID: "src-cam1", CaseID: "case-1", ArtifactID: "art-1",
				Kind: event.KindTranscript, Priority: 1, IngestOrder: 1,
				AnchorWallClock: &t0,
			},
			{
				ID: "src-cam2", CaseID: "case-1", ArtifactID: "art-2",
				Kind: event.KindTranscript, Priority: 2, IngestOrder: 2,
				AnchorWallClock: &t1,
			},
		},
	}
	custody := &fakeCustody{
		arts: map[string]custodydomain.Artifact{
			"art-1": {ID: "art-1", TenantID: "tenant-a", Mime: "video/mp4"},
			"art-2": {ID: "art-2", TenantID: "tenant-a", Mime: "video/mp4"},
		},
	}
	transcriber := &fakeTranscriber{
		segs: map[string][]event.RawSegment{
			"art-1": {
				{StartSeconds: 0, EndSeconds: 10, Text: "you are under arrest", Confidence: 0.95},
				{StartSeconds: 12, EndSeconds: 15, Text: "get in the car", Confidence: 0.9},
			},
			"art-2": {
				{StartSeconds: 0, EndSeconds: 9, Text: "hands behind your back", Confidence: 0.92},
			},
		},
		errs: map[string]error{},
	}
	return cases, custody, transcriber
}

func pipelineWith(cases *fakeCases, custody *fakeCustody, transcriber *fakeTranscriber,
	quota *fakeQuota, detect *fakeDetect,
) *service.Svc {
	return service.New(cases, &fakeTimelines{}, custody, quota, transcriber, &fakeOCR{}, detect,
		service.Config{Concurrency: 2})
}

func TestProcessCompletes(t *testing.T) {
	cases, custody, transcriber := fixture()
	detect := &fakeDetect{found: []findingsdomain.Finding{{ID: "f-1"}}}
	svc := pipelineWith(cases, custody, transcriber, &fakeQuota{}, detect)

	res, err := svc.Process(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Status != casesdomain.StatusComplete {
		t.Fatalf("expected complete got %s", res.Status)
	}
	if res.TimelineVersion != 1 || res.Findings != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("clean run must carry no warnings, got %v", res.Warnings)
	}
	if cases.status() != casesdomain.StatusComplete {
		t.Fatalf("case should be complete, is %s", cases.status())
	}
}

func TestProcessProviderFailureIsPartial(t *testing.T) {
	cases, custody, transcriber := fixture()
	transcriber.errs["art-2"] = perr.Newf(perr.ErrorCodeProviderUnavailable, "transcription down")
	svc := pipelineWith(cases, custody, transcriber, &fakeQuota{}, &fakeDetect{})

	res, err := svc.Process(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("per-source provider failure must be absorbed: %v", err)
	}
	if res.Status != casesdomain.StatusPartial {
		t.Fatalf("expected partial got %s", res.Status)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "src-cam2") {
		t.Fatalf("expected one warning naming the source, got %v", res.Warnings)
	}
	if len(cases.warnings) != 1 {
		t.Fatalf("warning must be recorded on the case, got %v", cases.warnings)
	}
}

func TestProcessIntegrityFailureIsFatal(t *testing.T) {
	cases, custody, transcriber := fixture()
	transcriber.errs["art-1"] = perr.Integrityf("digest mismatch on art-1")
	svc := pipelineWith(cases, custody, transcriber, &fakeQuota{}, &fakeDetect{})

	_, err := svc.Process(context.Background(), "case-1")
	if !perr.IsCode(err, perr.ErrorCodeIntegrity) {
		t.Fatalf("integrity failures must fail the run, got %v", err)
	}
	if cases.status() == casesdomain.StatusComplete || cases.status() == casesdomain.StatusPartial {
		t.Fatalf("failed run must not finish the case, status %s", cases.status())
	}
}

func TestProcessNoSources(t *testing.T) {
	cases, custody, transcriber := fixture()
	cases.srcs = nil
	svc := pipelineWith(cases, custody, transcriber, &fakeQuota{}, &fakeDetect{})

	_, err := svc.Process(context.Background(), "case-1")
	if !perr.IsCode(err, perr.ErrorCodeInsufficientEvents) {
		t.Fatalf("expected insufficient events got %v", err)
	}
}

func TestProcessRejectsFinishedCase(t *testing.T) {
	cases, custody, transcriber := fixture()
	cases.c.Status = casesdomain.StatusComplete
	svc := pipelineWith(cases, custody, transcriber, &fakeQuota{}, &fakeDetect{})

	_, err := svc.Process(context.Background(), "case-1")
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("expected conflict for finished case got %v", err)
	}
}

func TestProcessCancellationReleasesQuota(t *testing.T) {
	cases, custody, transcriber := fixture()
	quota := &fakeQuota{}

	ctx, cancel := context.WithCancel(context.Background())
	transcriber.hook = cancel // cancelled mid-ingest

	svc := pipelineWith(cases, custody, transcriber, quota, &fakeDetect{})
	_, err := svc.Process(ctx, "case-1")
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("expected conflict-coded cancellation got %v", err)
	}
	if cases.status() != casesdomain.StatusCancelled {
		t.Fatalf("expected cancelled case got %s", cases.status())
	}

	quota.mu.Lock()
	defer quota.mu.Unlock()
	if len(quota.released) != 2 {
		t.Fatalf("expected one release per source, got %d", len(quota.released))
	}
	for _, r := range quota.released {
		if r.tenant != "tenant-a" || r.kind != quotadomain.KindVideoCount || r.amount != 1 {
			t.Fatalf("release must mirror the admission charge, got %+v", r)
		}
	}
}

func TestProcessReadsAnnotationLines(t *testing.T) {
	cases, custody, transcriber := fixture()
	cases.srcs = append(cases.srcs, casesdomain.Source{
		ID: "src-note", CaseID: "case-1", ArtifactID: "art-3",
		Kind: event.KindAnnotation, IngestOrder: 3,
	})
	custody.arts["art-3"] = custodydomain.Artifact{ID: "art-3", TenantID: "tenant-a", Mime: "text/plain"}
	custody.blobs = map[string]string{"art-3": "reviewer note one\n\nreviewer note two\n"}

	tls := &fakeTimelines{}
	svc := service.New(cases, tls, custody, &fakeQuota{}, transcriber, &fakeOCR{}, &fakeDetect{},
		service.Config{Concurrency: 2})

	res, err := svc.Process(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Status != casesdomain.StatusComplete {
		t.Fatalf("expected complete got %s", res.Status)
	}

	var noteEvents int
	for _, e := range tls.saved.Entries {
		if e.SourceID == "src-note" {
			noteEvents++
		}
	}
	if noteEvents != 2 {
		t.Fatalf("expected 2 annotation events (blank lines dropped), got %d", noteEvents)
	}
}
