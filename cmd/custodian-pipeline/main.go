package main

import (
	"context"
	"flag"
	"time"

	"custodian/internal/modkit"
	"custodian/internal/modkit/module"
	"custodian/internal/platform/config"
	"custodian/internal/platform/logger"
	"custodian/internal/platform/store"

	casesmod "custodian/internal/services/cases/module"
	custodymod "custodian/internal/services/custody/module"
	detectmod "custodian/internal/services/detect/module"
	findingsmod "custodian/internal/services/findings/module"
	pipelinemod "custodian/internal/services/pipeline/module"
	quotamod "custodian/internal/services/quota/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbCfg.MustString("DBURL"),
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", true),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "custodian",
			ClientTag:  "pipeline",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fCase     = flag.String("case", "", "process a single case id and exit")
		fBatch    = flag.Int("batch", 50, "max pending cases per pass")
		fInterval = flag.Duration("interval", 0, "poll interval for pending cases; 0 runs one pass and exits")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	// same wiring order as the API: quota feeds custody's admission gate,
	// detect consumes case timelines and the finding store
	quota := quotamod.New(deps)
	module.Register(quota.Name(), quota.Ports())
	ledger := module.MustPortsOf[quotamod.Ports](quota).Ledger

	custody, err := custodymod.New(deps, modkit.WithPorts(custodymod.In{Quota: ledger}))
	if err != nil {
		l.Panic().Err(err).Msg("custody module failed")
	}
	module.Register(custody.Name(), custody.Ports())
	custodyStore := module.MustPortsOf[custodymod.Ports](custody).Store

	cases := casesmod.New(deps)
	module.Register(cases.Name(), cases.Ports())
	casePorts := module.MustPortsOf[casesmod.Ports](cases)

	findings := findingsmod.New(deps)
	module.Register(findings.Name(), findings.Ports())
	findingStore := module.MustPortsOf[findingsmod.Ports](findings).Store

	detect, err := detectmod.New(deps, modkit.WithPorts(detectmod.In{
		Timelines: casePorts.Timelines,
		Findings:  findingStore,
	}))
	if err != nil {
		l.Panic().Err(err).Msg("detect module failed")
	}
	module.Register(detect.Name(), detect.Ports())

	pipeline := pipelinemod.New(deps, modkit.WithPorts(pipelinemod.In{
		Cases:     casePorts.Cases,
		Timelines: casePorts.Timelines,
		Custody:   custodyStore,
		Quota:     ledger,
		Detect:    module.MustPortsOf[detectmod.Ports](detect).Runner,
	}))
	module.Register(pipeline.Name(), pipeline.Ports())
	runner := module.MustPortsOf[pipelinemod.Ports](pipeline).Runner

	ctx := context.Background()

	process := func(id string) {
		res, err := runner.Process(ctx, id)
		if err != nil {
			l.Error().Err(err).Str("case_id", id).Msg("pipeline run failed")
			return
		}
		l.Info().Str("case_id", id).Str("status", string(res.Status)).
			Int("timeline_version", res.TimelineVersion).
			Int("findings", res.Findings).
			Msg("pipeline run done")
	}

	if *fCase != "" {
		process(*fCase)
		return
	}

	pass := func() {
		pending, err := casePorts.Cases.ListPending(ctx, *fBatch)
		if err != nil {
			l.Error().Err(err).Msg("listing pending cases failed")
			return
		}
		for _, c := range pending {
			process(c.ID)
		}
		l.Info().Int("cases", len(pending)).Msg("pipeline pass done")
	}

	pass()
	if *fInterval <= 0 {
		return
	}
	ticker := time.NewTicker(*fInterval)
	defer ticker.Stop()
	for range ticker.C {
		pass()
	}
}
