// Package module wires the custody store into the API using modkit
package module

import (
	"net/http"
	"time"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	str "custodian/internal/platform/strings"
	"custodian/internal/services/custody/domain"
	custodyhttp "custodian/internal/services/custody/http"
	custodyrepo "custodian/internal/services/custody/repo"
	custodysvc "custodian/internal/services/custody/service"
	quotadomain "custodian/internal/services/quota/domain"
)

// In are ports this module consumes, injected via modkit.WithPorts
type In struct {
	Quota quotadomain.LedgerPort
}

// Ports exposed by the custody module
type Ports struct {
	Store domain.StorePort
	Sweep domain.SweepPort
}

// Module implements the custody module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	in        In
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the custody module
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("custody"), modkit.WithPrefix("/custody")}, opts...)...)

	cfg := deps.Cfg.Prefix("CORE_CUSTODY_")
	svc, err := custodysvc.New(
		deps.PG,
		custodyrepo.NewPG(),
		custodyrepo.NewProvenance(deps.CH),
		custodysvc.Config{
			BlobRoot:   cfg.MayString("BLOB_ROOT", "/var/lib/custodian/blobs"),
			Retention:  cfg.MayDuration("RETENTION", 90*24*time.Hour),
			SweepBatch: cfg.MayInt("SWEEP_BATCH", 500),
		},
	)
	if err != nil {
		return nil, err
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Store: svc, Sweep: svc},
	}
	if in, ok := b.Ports.(In); ok {
		m.in = in
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		custodyhttp.Register(r, m.ports.Store, m.in.Quota)
		if external != nil {
			external(r)
		}
	}
	return m, nil
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
