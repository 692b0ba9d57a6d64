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

	custodymod "custodian/internal/services/custody/module"
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
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", true),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "custodian",
			ClientTag:  "sweeper",
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
		fInterval = flag.Duration("interval", 0, "sweep interval; 0 runs one pass and exits")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	custody, err := custodymod.New(deps)
	if err != nil {
		l.Panic().Err(err).Msg("custody module failed")
	}
	module.Register(custody.Name(), custody.Ports())
	quota := quotamod.New(deps)
	module.Register(quota.Name(), quota.Ports())

	sweep := module.MustPortsOf[custodymod.Ports](custody).Sweep
	closer := module.MustPortsOf[quotamod.Ports](quota).Closer

	ctx := context.Background()
	pass := func() {
		now := time.Now().UTC()
		removed, err := sweep.SweepExpired(ctx, now)
		if err != nil {
			l.Error().Err(err).Msg("retention sweep failed")
		} else {
			l.Info().Int("removed", removed).Msg("retention sweep done")
		}
		snaps, err := closer.CloseExpired(ctx, now)
		if err != nil {
			l.Error().Err(err).Msg("quota period close failed")
		} else {
			l.Info().Int("closed", len(snaps)).Msg("quota period close done")
		}
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
