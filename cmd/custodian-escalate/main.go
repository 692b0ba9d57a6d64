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

	"custodian/internal/adapters/providers"
	"custodian/internal/adapters/providers/inference"
	casesmod "custodian/internal/services/cases/module"
	escalatesvc "custodian/internal/services/escalate/service"
	findingsmod "custodian/internal/services/findings/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")
	provCfg := root.Prefix("CORE_ESCALATE_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbCfg.MustString("DBURL"),
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
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
		fConc   = flag.Int("concurrency", 4, "worker concurrency")
		fBatch  = flag.Int("batch", 16, "DB lease batch size per poll")
		fRetry  = flag.Int("retry_base_ms", 1000, "base backoff (ms) for failed provider calls")
		fMaxAtt = flag.Int("max_attempts", 3, "provider attempts before rejecting as unavailable")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	findings := findingsmod.New(deps)
	module.Register(findings.Name(), findings.Ports())
	cases := casesmod.New(deps)
	module.Register(cases.Name(), cases.Ports())

	provider := inference.New(providers.Options{
		BaseURL:    provCfg.MustString("INFERENCE_URL"),
		APIKey:     provCfg.MayString("INFERENCE_KEY", ""),
		Timeout:    provCfg.MayDuration("INFERENCE_TIMEOUT", 30*time.Second),
		MaxRetries: 1, // the worker owns retry policy, not the transport
	})

	worker := escalatesvc.New(
		module.MustPortsOf[findingsmod.Ports](findings).Queue,
		module.MustPortsOf[casesmod.Ports](cases).Timelines,
		provider,
		escalatesvc.Config{
			Concurrency:     *fConc,
			TakeBatch:       *fBatch,
			RetryBaseMs:     *fRetry,
			MaxAttempts:     *fMaxAtt,
			ProviderTimeout: provCfg.MayDuration("INFERENCE_TIMEOUT", 30*time.Second),
		},
	)

	if err := worker.Run(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("escalate worker failed")
	}
}
