// Package module wires the findings service into the API using modkit
package module

import (
	"net/http"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	str "custodian/internal/platform/strings"
	"custodian/internal/services/findings/domain"
	findingshttp "custodian/internal/services/findings/http"
	findingsrepo "custodian/internal/services/findings/repo"
	findingssvc "custodian/internal/services/findings/service"
)

// Ports exposed by the findings module
type Ports struct {
	Store domain.StorePort
	Queue domain.QueuePort
}

// Module implements the findings module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the findings module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("findings"), modkit.WithPrefix("/findings")}, opts...)...)

	svc := findingssvc.New(deps.PG, findingsrepo.NewPG())

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Store: svc, Queue: svc},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		findingshttp.Register(r, m.ports.Store)
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
