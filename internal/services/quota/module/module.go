// Package module wires the quota ledger into the API using modkit
package module

import (
	"net/http"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	str "custodian/internal/platform/strings"
	"custodian/internal/services/quota/domain"
	quotahttp "custodian/internal/services/quota/http"
	quotarepo "custodian/internal/services/quota/repo"
	quotasvc "custodian/internal/services/quota/service"
)

// Ports exposed by the quota module
type Ports struct {
	Ledger domain.LedgerPort
	Closer domain.CloserPort
}

// Module implements the quota module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the quota module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("quota"), modkit.WithPrefix("/quota")}, opts...)...)

	caps := quotasvc.DefaultCaps(deps.Cfg.Prefix("CORE_QUOTA_"))
	svc := quotasvc.New(deps.PG, quotarepo.NewPG(), deps.CH, caps)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Ledger: svc, Closer: svc},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		quotahttp.Register(r, m.ports.Ledger)
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
