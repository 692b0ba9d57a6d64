// Package module wires the report assembler into the API using modkit
package module

import (
	"net/http"
	"time"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	"custodian/internal/adapters/providers"
	"custodian/internal/adapters/providers/citation"
	str "custodian/internal/platform/strings"
	casesdomain "custodian/internal/services/cases/domain"
	findingsdomain "custodian/internal/services/findings/domain"
	"custodian/internal/services/report/domain"
	reporthttp "custodian/internal/services/report/http"
	reportsvc "custodian/internal/services/report/service"
)

// In are ports this module consumes, injected via modkit.WithPorts
type In struct {
	Cases     casesdomain.CasePort
	Timelines casesdomain.TimelinePort
	Findings  findingsdomain.StorePort

	// Citations may be pre-built (tests); nil constructs from config
	Citations citation.Port
}

// Ports exposed by the report module
type Ports struct {
	Assembler domain.AssemblerPort
}

// Module implements the report module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the report module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("report"), modkit.WithPrefix("/report")}, opts...)...)

	in, _ := b.Ports.(In)

	cfg := deps.Cfg.Prefix("CORE_REPORT_")
	if in.Citations == nil {
		if base := cfg.MayString("CITATION_URL", ""); base != "" {
			in.Citations = citation.New(providers.Options{
				BaseURL: base,
				APIKey:  cfg.MayString("CITATION_KEY", ""),
				Timeout: cfg.MayDuration("CITATION_TIMEOUT", 15*time.Second),
			})
		}
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Assembler: reportsvc.New(in.Cases, in.Timelines, in.Findings, in.Citations)},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		reporthttp.Register(r, m.ports.Assembler)
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
