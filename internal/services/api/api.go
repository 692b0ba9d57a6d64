// Package api provides the HTTP API for the application
package api

import (
	"strings"

	"custodian/internal/platform/config"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	phttp "custodian/internal/platform/net/http"
	"custodian/internal/platform/store"

	"custodian/internal/modkit"
	"custodian/internal/modkit/httpkit"
	"custodian/internal/modkit/module"
	"custodian/internal/modkit/swaggerkit"

	casesmod "custodian/internal/services/cases/module"
	custodymod "custodian/internal/services/custody/module"
	detectmod "custodian/internal/services/detect/module"
	findingsmod "custodian/internal/services/findings/module"
	pipelinemod "custodian/internal/services/pipeline/module"
	quotamod "custodian/internal/services/quota/module"
	reportmod "custodian/internal/services/report/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) error {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	// quota first: custody's admission gate consumes its ledger port
	quota := quotamod.New(deps)
	ledger := module.MustPortsOf[quotamod.Ports](quota).Ledger

	custody, err := custodymod.New(deps, modkit.WithPorts(custodymod.In{Quota: ledger}))
	if err != nil {
		return err
	}
	custodyStore := module.MustPortsOf[custodymod.Ports](custody).Store

	cases := casesmod.New(deps)
	casePorts := module.MustPortsOf[casesmod.Ports](cases)

	findings := findingsmod.New(deps)
	findingStore := module.MustPortsOf[findingsmod.Ports](findings).Store

	detect, err := detectmod.New(deps, modkit.WithPorts(detectmod.In{
		Timelines: casePorts.Timelines,
		Findings:  findingStore,
	}))
	if err != nil {
		return err
	}
	runner := module.MustPortsOf[detectmod.Ports](detect).Runner

	pipeline := pipelinemod.New(deps, modkit.WithPorts(pipelinemod.In{
		Cases:     casePorts.Cases,
		Timelines: casePorts.Timelines,
		Custody:   custodyStore,
		Quota:     ledger,
		Detect:    runner,
	}))

	report := reportmod.New(deps, modkit.WithPorts(reportmod.In{
		Cases:     casePorts.Cases,
		Timelines: casePorts.Timelines,
		Findings:  findingStore,
	}))

	mods := []module.Module{
		quota,
		custody,
		cases,
		findings,
		detect,
		pipeline,
		report,
	}

	// versioned API with a common middleware stack; module routes group under
	// bearer auth when API keys are configured
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler stay outside the protected group
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		mount := func(gr httpkit.Router) {
			for _, m := range mods {
				// register each module's ports under its own name (for cross-module lookups)
				module.Register(m.Name(), m.Ports())

				// mount module routes under its Prefix()
				m.MountRoutes(gr)
			}
		}
		if p := authPort(opt.Config); p != nil {
			httpkit.Protected(api, p, mount)
			return
		}
		mount(api)
	})
	return nil
}

// authPort builds the bearer parser from configured API keys. Entries are
// token:operator:tenant triples; no entries disables auth for local runs
func authPort(cfg config.Conf) *httpkit.Port {
	entries := cfg.Prefix("CORE_HTTP_").MayCSV("AUTH_KEYS", nil)
	if len(entries) == 0 {
		return nil
	}
	type principal struct{ operator, tenant string }
	keys := make(map[string]principal, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 3)
		if len(parts) != 3 {
			logger.Named("api").Warn().Str("entry", e).Msg("malformed auth key entry skipped")
			continue
		}
		keys[parts[0]] = principal{operator: parts[1], tenant: parts[2]}
	}
	return httpkit.NewPortFunc(func(token string) (string, string, error) {
		p, ok := keys[token]
		if !ok {
			return "", "", perr.Unauthorizedf("unknown api key")
		}
		return p.operator, p.tenant, nil
	})
}
