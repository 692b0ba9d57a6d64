// Package module wires the pipeline runner into the API using modkit
package module

import (
	"net/http"
	"time"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	"custodian/internal/adapters/providers"
	"custodian/internal/adapters/providers/ocr"
	"custodian/internal/adapters/providers/transcription"
	str "custodian/internal/platform/strings"
	casesdomain "custodian/internal/services/cases/domain"
	custodydomain "custodian/internal/services/custody/domain"
	detectdomain "custodian/internal/services/detect/domain"
	"custodian/internal/services/pipeline/domain"
	pipelinehttp "custodian/internal/services/pipeline/http"
	pipelinesvc "custodian/internal/services/pipeline/service"
	quotadomain "custodian/internal/services/quota/domain"
)

// In are ports this module consumes, injected via modkit.WithPorts
type In struct {
	Cases     casesdomain.CasePort
	Timelines casesdomain.TimelinePort
	Custody   custodydomain.StorePort
	Quota     quotadomain.LedgerPort
	Detect    detectdomain.RunnerPort

	// Providers may be pre-built (tests); when nil they are constructed
	// from config
	Transcription transcription.Port
	OCR           ocr.Port
}

// Ports exposed by the pipeline module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the pipeline module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the pipeline module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("pipeline"), modkit.WithPrefix("/pipeline")}, opts...)...)

	in, _ := b.Ports.(In)

	cfg := deps.Cfg.Prefix("CORE_PIPELINE_")
	if in.Transcription == nil {
		in.Transcription = transcription.New(providers.Options{
			BaseURL: cfg.MayString("TRANSCRIBE_URL", "http://localhost:9301"),
			APIKey:  cfg.MayString("TRANSCRIBE_KEY", ""),
			Timeout: cfg.MayDuration("TRANSCRIBE_TIMEOUT", 2*time.Minute),
		})
	}
	if in.OCR == nil {
		in.OCR = ocr.New(providers.Options{
			BaseURL: cfg.MayString("OCR_URL", "http://localhost:9302"),
			APIKey:  cfg.MayString("OCR_KEY", ""),
			Timeout: cfg.MayDuration("OCR_TIMEOUT", 2*time.Minute),
		})
	}

	svc := pipelinesvc.New(
		in.Cases, in.Timelines, in.Custody, in.Quota,
		in.Transcription, in.OCR, in.Detect,
		pipelinesvc.Config{
			Concurrency:     cfg.MayInt("CONCURRENCY", 4),
			AnchorTolerance: cfg.MayDuration("ANCHOR_TOLERANCE", 2*time.Second),
			ConfidenceFloor: cfg.MayFloat64("CONFIDENCE_FLOOR", 0.35),
		},
	)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Runner: svc},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		pipelinehttp.Register(r, m.ports.Runner)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Ports returns the module ports for cross wiring
func (m *Module) Ports() any { return m.ports }
