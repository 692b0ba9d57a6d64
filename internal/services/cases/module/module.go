// Package module wires the cases service into the API using modkit
package module

import (
	"net/http"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	str "custodian/internal/platform/strings"
	"custodian/internal/services/cases/domain"
	caseshttp "custodian/internal/services/cases/http"
	casesrepo "custodian/internal/services/cases/repo"
	casessvc "custodian/internal/services/cases/service"
)

// Ports exposed by the cases module
type Ports struct {
	Cases     domain.CasePort
	Timelines domain.TimelinePort
}

// Module implements the cases module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the cases module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("cases"), modkit.WithPrefix("/cases")}, opts...)...)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports: Ports{
			Cases:     casessvc.New(deps.PG, casesrepo.NewPG()),
			Timelines: casessvc.NewTimelines(deps.PG, casesrepo.NewTimelinePG()),
		},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		caseshttp.Register(r, m.ports.Cases, m.ports.Timelines)
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
