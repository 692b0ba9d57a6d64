// Package service implements the case processing pipeline: concurrent
// per-source normalization, the synchronize barrier, then detection
package service

import (
	"strings"
	"time"

	"custodian/internal/adapters/providers/ocr"
	"custodian/internal/adapters/providers/transcription"
	"custodian/internal/core/normalize"
	perr "custodian/internal/platform/errors"
	casesdomain "custodian/internal/services/cases/domain"
	custodydomain "custodian/internal/services/custody/domain"
	detectdomain "custodian/internal/services/detect/domain"
	quotadomain "custodian/internal/services/quota/domain"
)

// Config tunes the pipeline
type Config struct {
	Concurrency     int
	AnchorTolerance time.Duration
	ConfidenceFloor float64
}

// Svc implements domain.RunnerPort
type Svc struct {
	cases     casesdomain.CasePort
	timelines casesdomain.TimelinePort
	custody   custodydomain.StorePort
	quota     quotadomain.LedgerPort

	transcribe transcription.Port
	extract    ocr.Port
	detect     detectdomain.RunnerPort

	norm *normalize.Normalizer
	cfg  Config
}

// New constructs the pipeline service
func New(
	cases casesdomain.CasePort,
	timelines casesdomain.TimelinePort,
	custody custodydomain.StorePort,
	quota quotadomain.LedgerPort,
	transcribe transcription.Port,
	extract ocr.Port,
	detect detectdomain.RunnerPort,
	cfg Config,
) *Svc {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Svc{
		cases:      cases,
		timelines:  timelines,
		custody:    custody,
		quota:      quota,
		transcribe: transcribe,
		extract:    extract,
		detect:     detect,
		norm:       normalize.New(normalize.Config{ConfidenceFloor: cfg.ConfidenceFloor}),
		cfg:        cfg,
	}
}

// resourceKindFor mirrors the admission-time charge so cancellation releases
// the same unit that was consumed
func resourceKindFor(mime string) quotadomain.ResourceKind {
	if strings.HasPrefix(mime, "video/") {
		return quotadomain.KindVideoCount
	}
	return quotadomain.KindPDFCount
}

func transcriptionInput(art custodydomain.Artifact) transcription.Input {
	return transcription.Input{
		ArtifactID: art.ID,
		SHA256:     art.SHA256,
		Mime:       art.Mime,
	}
}

func ocrInput(art custodydomain.Artifact) ocr.Input {
	return ocr.Input{
		ArtifactID: art.ID,
		SHA256:     art.SHA256,
		Mime:       art.Mime,
	}
}

// fatal reports whether a per-source failure must fail the whole run rather
// than downgrade it to partial
func fatal(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeIntegrity) ||
		perr.IsCode(err, perr.ErrorCodeQuotaDenied)
}
