// Package module wires the detection service into the API using modkit
package module

import (
	"net/http"

	modkit "custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	"custodian/internal/core/detector"
	"custodian/internal/core/doctrine"
	str "custodian/internal/platform/strings"
	casesdomain "custodian/internal/services/cases/domain"
	"custodian/internal/services/detect/domain"
	detecthttp "custodian/internal/services/detect/http"
	detectsvc "custodian/internal/services/detect/service"
	findingsdomain "custodian/internal/services/findings/domain"
)

// In are ports this module consumes, injected via modkit.WithPorts
type In struct {
	Timelines casesdomain.TimelinePort
	Findings  findingsdomain.StorePort
}

// Ports exposed by the detect module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the detect module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the detect module. The doctrine pack is embedded; a load
// failure is a build defect, not a runtime condition
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("detect"), modkit.WithPrefix("/detect")}, opts...)...)

	in, _ := b.Ports.(In)

	pack, err := doctrine.Load()
	if err != nil {
		return nil, err
	}
	cfg := deps.Cfg.Prefix("CORE_DETECT_")
	det := detector.New(pack, detector.Config{
		EscalateBelow: cfg.MayFloat64("ESCALATE_BELOW", detector.DefaultEscalateBelow),
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     Ports{Runner: detectsvc.New(det, in.Timelines, in.Findings)},
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		detecthttp.Register(r, m.ports.Runner)
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
